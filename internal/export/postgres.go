package export

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

var (
	// ErrSinkDisabled is returned when no database is configured.
	ErrSinkDisabled = errors.New("database export is not configured")

	// ErrInvalidTableName is returned for table names outside [a-z_][a-z0-9_]*.
	ErrInvalidTableName = errors.New("invalid table name")
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// DBTX is the subset of pgx used inside the export transaction.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Beginner starts transactions. Satisfied by *pgxpool.Pool and *pgx.Conn.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresSink writes tables into PostgreSQL as text columns.
type PostgresSink struct {
	db Beginner
}

// NewPostgresSink returns a sink writing through db. A nil db yields a sink
// whose Write always fails with ErrSinkDisabled.
func NewPostgresSink(db Beginner) *PostgresSink {
	return &PostgresSink{db: db}
}

// Enabled reports whether the sink has a database.
func (s *PostgresSink) Enabled() bool { return s != nil && s.db != nil }

// Write replaces the contents of the named table with t. The table is
// created if missing with one nullable text column per field. Empty cells
// are stored as NULL. All statements run in one transaction, so a failed
// copy leaves the previous contents in place. It returns the number of rows
// copied.
func (s *PostgresSink) Write(ctx context.Context, name string, t *table.Table) (int64, error) {
	if !s.Enabled() {
		return 0, ErrSinkDisabled
	}
	if !tableNamePattern.MatchString(name) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	n, err := replaceTable(ctx, tx, name, t)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", name, err)
	}
	return n, nil
}

func replaceTable(ctx context.Context, db DBTX, name string, t *table.Table) (int64, error) {
	ident := pgx.Identifier{name}
	if _, err := db.Exec(ctx, createTableSQL(ident, t.Fields())); err != nil {
		return 0, fmt.Errorf("create table %s: %w", name, err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE "+ident.Sanitize()); err != nil {
		return 0, fmt.Errorf("truncate %s: %w", name, err)
	}

	n, err := db.CopyFrom(ctx, ident, t.Fields(), &tableSource{t: t, row: -1})
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", name, err)
	}
	return n, nil
}

func createTableSQL(ident pgx.Identifier, fields []string) string {
	sql := "CREATE TABLE IF NOT EXISTS " + ident.Sanitize() + " ("
	for i, f := range fields {
		if i > 0 {
			sql += ", "
		}
		sql += pgx.Identifier{f}.Sanitize() + " TEXT"
	}
	return sql + ")"
}

// tableSource adapts a table to pgx.CopyFromSource.
type tableSource struct {
	t   *table.Table
	row int
}

func (s *tableSource) Next() bool {
	s.row++
	return s.row < s.t.Len()
}

func (s *tableSource) Values() ([]any, error) {
	vals := make([]any, s.t.Width())
	for c := range vals {
		v := s.t.At(s.row, c)
		if v.IsEmpty() {
			continue
		}
		vals[c] = v.String()
	}
	return vals, nil
}

func (s *tableSource) Err() error { return nil }
