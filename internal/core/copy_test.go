package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeCopyTarget records every row handed to CopyFrom.
type fakeCopyTarget struct {
	table   pgx.Identifier
	columns []string
	batches [][][]any
	err     error
}

func (f *fakeCopyTarget) CopyFrom(_ context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.table = table
	f.columns = columns
	var batch [][]any
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		batch = append(batch, values)
	}
	f.batches = append(f.batches, batch)
	return int64(len(batch)), nil
}

// fakeTx is a pgx.Tx whose CopyFrom goes to a fakeCopyTarget. Methods not
// overridden panic through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	target     *fakeCopyTarget
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	return tx.target.CopyFrom(ctx, table, columns, src)
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeBeginner struct{ tx *fakeTx }

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) { return b.tx, nil }

func TestCopySink_Batches(t *testing.T) {
	target := &fakeCopyTarget{}
	columns := []CopyColumn{{Name: "id", Kind: ColumnNumeric}, {Name: "name"}}
	sink := NewCopySink(context.Background(), target, "public.orgs", columns, 2)

	if err := sink.WriteHeader([]string{"Identifier", "Name"}); err != nil {
		t.Fatal(err)
	}
	for _, row := range [][]any{{"1", "a"}, {"2", nil}, {"3", "c"}} {
		if err := sink.WriteRow(row); err != nil {
			t.Fatal(err)
		}
	}
	if err := sink.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(target.batches) != 2 || len(target.batches[0]) != 2 || len(target.batches[1]) != 1 {
		t.Fatalf("batches = %v", target.batches)
	}
	if sink.Copied() != 3 {
		t.Errorf("Copied = %d, want 3", sink.Copied())
	}
	if strings.Join(target.table, ".") != "public.orgs" {
		t.Errorf("table = %v", target.table)
	}
	if _, ok := target.batches[0][0][0].(pgtype.Numeric); !ok {
		t.Errorf("id should be numeric, got %T", target.batches[0][0][0])
	}
	if target.batches[0][1][1] != nil {
		t.Errorf("nil should be copied as NULL, got %#v", target.batches[0][1][1])
	}
}

func TestCopySink_WidthMismatch(t *testing.T) {
	sink := NewCopySink(context.Background(), &fakeCopyTarget{}, "t", []CopyColumn{{Name: "a"}}, 0)
	if err := sink.WriteHeader([]string{"A", "B"}); err == nil {
		t.Error("expected header width error")
	}
	if err := sink.WriteRow([]any{"1", "2"}); err == nil {
		t.Error("expected row width error")
	}
}

func TestCopySink_FlushError(t *testing.T) {
	target := &fakeCopyTarget{err: errors.New(`relation "t" does not exist`)}
	sink := NewCopySink(context.Background(), target, "t", []CopyColumn{{Name: "a"}}, 10)
	if err := sink.WriteRow([]any{"x"}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Flush(); err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("expected copy error, got %v", err)
	}
}

func TestConvertToTable(t *testing.T) {
	tx := &fakeTx{target: &fakeCopyTarget{}}
	c := newTestConverter(t, Func(dropTags), "", "")

	n, err := c.ConvertToTable(context.Background(), &fakeBeginner{tx: tx},
		strings.NewReader("Org ID,Organisation,Tags\n1,Acme,\n2,Globex,\n"),
		TableLoad{Table: "orgs", Columns: map[string]ColumnKind{"id": ColumnNumeric}})
	if err != nil {
		t.Fatalf("ConvertToTable: %v", err)
	}
	if n != 2 {
		t.Errorf("copied = %d, want 2", n)
	}
	if !tx.committed {
		t.Error("transaction not committed")
	}
	if strings.Join(tx.target.columns, ",") != "id,name" {
		t.Errorf("columns = %v", tx.target.columns)
	}
}

func TestConvertToTable_RollsBackOnError(t *testing.T) {
	tx := &fakeTx{target: &fakeCopyTarget{}}
	c := newTestConverter(t, Func(dropTags), RejectError, "")

	_, err := c.ConvertToTable(context.Background(), &fakeBeginner{tx: tx},
		strings.NewReader("Org ID,Organisation,Tags\n1,A,\n1,B,\n"),
		TableLoad{Table: "orgs"})
	if err == nil {
		t.Fatal("expected error")
	}
	if tx.committed || !tx.rolledBack {
		t.Errorf("committed=%v rolledBack=%v, want rollback only", tx.committed, tx.rolledBack)
	}
}

func TestConvertToTable_NeedsTable(t *testing.T) {
	c := newTestConverter(t, Func(dropTags), "", "")
	_, err := c.ConvertToTable(context.Background(), &fakeBeginner{}, strings.NewReader(""), TableLoad{})
	if err == nil || !strings.Contains(err.Error(), "table not found") {
		t.Errorf("expected missing table error, got %v", err)
	}
}
