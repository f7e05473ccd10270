package core

import (
	"slices"

	"github.com/JonMunkholm/seconvert/internal/schema"
)

// EmitFunc hands one output record to the converter. Observers must return
// any error it reports.
type EmitFunc func(rec schema.Record) error

// Observer transforms source-schema records into destination-schema records.
//
// The converter calls OnHeader once the input header row has been validated,
// OnRow for every input record (in input order), and OnEnd after the input is
// exhausted. OnRow may call emit zero, one or many times; each call becomes an
// output row. Observers may keep their own state between calls.
type Observer interface {
	OnHeader(header []string, fm schema.FieldMap) error
	OnRow(rec schema.Record, emit EmitFunc) error
	OnEnd() error
}

// SchemaBinder is implemented by observers that need to check the schemas
// they will be used with. The converter calls Bind when it is constructed.
type SchemaBinder interface {
	Bind(from, to *schema.Schema) error
}

// BaseObserver does nothing. Embed it to implement only the methods needed.
type BaseObserver struct{}

func (BaseObserver) OnHeader([]string, schema.FieldMap) error { return nil }
func (BaseObserver) OnRow(schema.Record, EmitFunc) error      { return nil }
func (BaseObserver) OnEnd() error                             { return nil }

// RowFunc maps one input record to its output records. Returning no records
// drops the input row.
type RowFunc func(rec schema.Record) ([]schema.Record, error)

// FuncObserver adapts a RowFunc to the Observer interface.
type FuncObserver struct {
	BaseObserver
	fn     RowFunc
	params []string
}

// Func wraps fn as an Observer.
//
// If params are given they declare the source field ids fn reads; Bind then
// requires them to match the source schema's field ids exactly.
func Func(fn RowFunc, params ...string) *FuncObserver {
	return &FuncObserver{fn: fn, params: params}
}

// Bind checks the declared parameters against the source schema.
func (o *FuncObserver) Bind(from, _ *schema.Schema) error {
	if len(o.params) == 0 {
		return nil
	}

	ids := from.FieldIDs()
	var undeclared, unconsumed []string
	for _, p := range o.params {
		if !slices.Contains(ids, p) {
			undeclared = append(undeclared, p)
		}
	}
	for _, id := range ids {
		if !slices.Contains(o.params, id) {
			unconsumed = append(unconsumed, id)
		}
	}

	if len(undeclared) == 0 && len(unconsumed) == 0 {
		return nil
	}
	return &ObserverContractError{
		Schema:     from.ID(),
		Undeclared: undeclared,
		Unconsumed: unconsumed,
	}
}

// OnRow calls the wrapped function and emits its results in order.
func (o *FuncObserver) OnRow(rec schema.Record, emit EmitFunc) error {
	out, err := o.fn(rec)
	if err != nil {
		return err
	}
	for _, r := range out {
		if err := emit(r); err != nil {
			return err
		}
	}
	return nil
}
