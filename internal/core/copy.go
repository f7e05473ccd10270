package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultCopyBatchSize is the number of rows sent per COPY when no batch
// size is configured.
const DefaultCopyBatchSize = 1000

// CopyTarget is the subset of pgx.Conn, pgx.Tx and pgxpool.Pool used by
// CopySink.
type CopyTarget interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// TxBeginner starts the transaction a table load runs in. *pgxpool.Pool
// and *pgx.Conn satisfy it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CopyColumn is one destination column of a table load.
type CopyColumn struct {
	Name string
	Kind ColumnKind
}

// CopySink writes output rows into a Postgres table with COPY, in batches.
type CopySink struct {
	ctx       context.Context
	db        CopyTarget
	table     pgx.Identifier
	columns   []CopyColumn
	names     []string
	batchSize int

	batch  [][]any
	copied int64
}

// NewCopySink returns a sink copying into table, which may be qualified as
// "schema.table". columns must line up with the rows written.
func NewCopySink(ctx context.Context, db CopyTarget, table string, columns []CopyColumn, batchSize int) *CopySink {
	if batchSize <= 0 {
		batchSize = DefaultCopyBatchSize
	}
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	return &CopySink{
		ctx:       ctx,
		db:        db,
		table:     pgx.Identifier(strings.Split(table, ".")),
		columns:   columns,
		names:     names,
		batchSize: batchSize,
		batch:     make([][]any, 0, batchSize),
	}
}

// WriteHeader checks the header width against the sink's columns.
func (s *CopySink) WriteHeader(headers []string) error {
	if len(headers) != len(s.columns) {
		return fmt.Errorf("table %s has %d columns configured, output has %d fields",
			s.table.Sanitize(), len(s.columns), len(headers))
	}
	return nil
}

func (s *CopySink) WriteRow(row []any) error {
	if len(row) != len(s.columns) {
		return fmt.Errorf("row has %d values, table %s has %d columns", len(row), s.table.Sanitize(), len(s.columns))
	}
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = s.columns[i].Kind.coerce(v)
	}
	s.batch = append(s.batch, values)
	if len(s.batch) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// Flush copies any buffered rows.
func (s *CopySink) Flush() error {
	if len(s.batch) == 0 {
		return nil
	}
	n, err := s.db.CopyFrom(s.ctx, s.table, s.names, pgx.CopyFromRows(s.batch))
	s.copied += n
	s.batch = make([][]any, 0, s.batchSize)
	if err != nil {
		return fmt.Errorf("copy into %s: %w", s.table.Sanitize(), err)
	}
	return nil
}

// Copied returns the number of rows the database accepted.
func (s *CopySink) Copied() int64 { return s.copied }

// TableLoad describes where ConvertToTable writes.
type TableLoad struct {
	Table     string
	Columns   map[string]ColumnKind // by destination field id, text when absent
	BatchSize int
}

// ConvertToTable converts CSV input and copies the output rows into a
// Postgres table inside one transaction. Columns are named by the
// destination schema's field ids. Nothing is committed unless the whole
// conversion succeeds. input is closed on return if it implements
// io.Closer.
func (c *Converter) ConvertToTable(ctx context.Context, db TxBeginner, input io.Reader, load TableLoad) (copied int64, err error) {
	if rc, ok := input.(io.Closer); ok {
		defer rc.Close()
	}
	if load.Table == "" {
		return 0, errors.New("table not found: no table name given")
	}

	ids := c.to.FieldIDs()
	columns := make([]CopyColumn, len(ids))
	for i, id := range ids {
		columns[i] = CopyColumn{Name: id, Kind: load.Columns[id]}
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sink := NewCopySink(ctx, tx, load.Table, columns, load.BatchSize)
	if err := c.ConvertCSV(input, sink); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	c.logger.Info("table load complete", "table", load.Table, "rows_copied", sink.Copied())
	return sink.Copied(), nil
}
