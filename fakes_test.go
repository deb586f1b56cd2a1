package recql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows serves canned rows through the pgx.Rows interface.
type fakeRows struct {
	columns []string
	rows    [][]any
	pos     int
	err     error
	closed  bool
}

func (r *fakeRows) Close()                        { r.closed = true }
func (r *fakeRows) Err() error                    { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) RawValues() [][]byte           { return nil }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		out[i] = pgconn.FieldDescription{Name: c}
	}
	return out
}

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case **string:
			if row[i] == nil {
				*p = nil
				continue
			}
			s := row[i].(string)
			*p = &s
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

// call is one statement sent to fakeDB.
type call struct {
	sql  string
	args []any
}

// fakeDB answers each Query with the next queued result.
type fakeDB struct {
	calls   []call
	results []*fakeRows
	errs    []error
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.calls = append(db.calls, call{sql: sql, args: args})
	n := len(db.calls) - 1
	if n < len(db.errs) && db.errs[n] != nil {
		return nil, db.errs[n]
	}
	if n >= len(db.results) {
		return &fakeRows{}, nil
	}
	return db.results[n], nil
}

// returning queues a result set.
func (db *fakeDB) returning(columns []string, rows ...[]any) *fakeDB {
	db.results = append(db.results, &fakeRows{columns: columns, rows: rows})
	db.errs = append(db.errs, nil)
	return db
}

// failing queues a driver error.
func (db *fakeDB) failing(err error) *fakeDB {
	db.results = append(db.results, nil)
	db.errs = append(db.errs, err)
	return db
}

// status queues a single status string answer of a write procedure.
func (db *fakeDB) status(raw string) *fakeDB {
	return db.returning([]string{"status"}, []any{raw})
}

// fakeTx is a transaction that only supports Query.
type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return tx.db.Query(ctx, sql, args...)
}
