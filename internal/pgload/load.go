// Package pgload bulk-loads the rows of a Processor into a Postgres table.
//
// The header row names the target columns. Every field is sent as text; an
// empty field becomes NULL. Rows stream straight from the scratch file into
// COPY, so memory use does not grow with the file.
package pgload

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/fileprocessor/internal/record"
)

var (
	// ErrNoHeaders is returned when the source has no header row to name
	// the target columns.
	ErrNoHeaders = errors.New("source has no header row")

	// ErrFieldCount is returned when a row's width differs from the header's.
	ErrFieldCount = errors.New("wrong number of fields")

	// ErrDatabaseDisabled is returned by callers that were started without
	// a database.
	ErrDatabaseDisabled = errors.New("database not configured")
)

// DB is the pgx surface Load needs. *pgxpool.Pool, *pgx.Conn and pgx.Tx
// satisfy it.
type DB interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Source is what Load reads: a header and a row iterator. *core.Processor
// opened with Options.Headers satisfies it.
type Source interface {
	Headers() record.Row
	Rows() iter.Seq2[record.Row, error]
}

// Options tunes Load.
type Options struct {
	// CreateTable issues CREATE TABLE IF NOT EXISTS with one text column
	// per header field before copying.
	CreateTable bool

	// Logger receives progress output. Nil means slog.Default().
	Logger *slog.Logger
}

// Result summarizes a load.
type Result struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Rows    int64    `json:"rows"`
}

// ParseTable splits "schema.table" into an identifier. Names are taken
// literally and quoted when the statement is built.
func ParseTable(name string) (pgx.Identifier, error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}
	return pgx.Identifier(parts), nil
}

// Columns derives column names from a header row. Names are trimmed; an
// empty or duplicate name is an error.
func Columns(header record.Row) ([]string, error) {
	if len(header) == 0 || header.Blank() {
		return nil, ErrNoHeaders
	}
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, fmt.Errorf("header field %d is empty", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate header %q", name)
		}
		seen[name] = true
		cols[i] = name
	}
	return cols, nil
}

// Load copies every row of src into table.
func Load(ctx context.Context, db DB, table string, src Source, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ident, err := ParseTable(table)
	if err != nil {
		return Result{}, err
	}
	cols, err := Columns(src.Headers())
	if err != nil {
		return Result{}, err
	}

	if opts.CreateTable {
		if _, err := db.Exec(ctx, createTableSQL(ident, cols)); err != nil {
			return Result{}, fmt.Errorf("create table %s: %w", ident.Sanitize(), err)
		}
	}

	rs := newRowSource(ctx, src.Rows(), len(cols))
	defer rs.stop()

	n, err := db.CopyFrom(ctx, ident, cols, rs)
	if err != nil {
		return Result{}, fmt.Errorf("copy into %s: %w", ident.Sanitize(), err)
	}

	logger.Info("rows loaded", "table", ident.Sanitize(), "columns", len(cols), "rows", n)
	return Result{Table: ident.Sanitize(), Columns: cols, Rows: n}, nil
}

func createTableSQL(ident pgx.Identifier, cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c}.Sanitize() + " text"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))
}

// rowSource adapts a row iterator to pgx.CopyFromSource.
type rowSource struct {
	ctx    context.Context
	next   func() (record.Row, error, bool)
	stop   func()
	width  int
	n      int
	values []any
	err    error
}

func newRowSource(ctx context.Context, rows iter.Seq2[record.Row, error], width int) *rowSource {
	next, stop := iter.Pull2(rows)
	return &rowSource{ctx: ctx, next: next, stop: stop, width: width}
}

func (s *rowSource) Next() bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}

	row, err, ok := s.next()
	if !ok {
		return false
	}
	if err != nil {
		s.err = err
		return false
	}

	s.n++
	if len(row) != s.width {
		s.err = fmt.Errorf("row %d: %w: got %d, header has %d", s.n, ErrFieldCount, len(row), s.width)
		return false
	}

	values := make([]any, len(row))
	for i, f := range row {
		values[i] = toPgText(f)
	}
	s.values = values
	return true
}

func (s *rowSource) Values() ([]any, error) { return s.values, nil }

func (s *rowSource) Err() error { return s.err }

// toPgText maps an empty field to NULL.
func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
