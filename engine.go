package recql

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/zoobzio/recql/internal/types"
	"github.com/zoobzio/recql/schema"
)

// Querier runs a query. *pgxpool.Pool, *pgx.Conn and pgx.Tx implement it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type txKey struct{}

// WithTx makes engine calls made with the returned context run inside tx.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Engine compiles and runs queries and writes.
type Engine struct {
	db          Querier
	renderer    Renderer
	registry    schema.Registry
	log         *logrus.Entry
	successCode string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logrus.Logger) EngineOption {
	return func(e *Engine) { e.log = logrus.NewEntry(l).WithField("component", "recql") }
}

// WithSuccessCode sets the status code write procedures report on success.
func WithSuccessCode(code string) EngineOption {
	return func(e *Engine) { e.successCode = code }
}

// DefaultSuccessCode is the status code reported by successful writes.
const DefaultSuccessCode = "OK"

// NewEngine creates an engine running statements rendered by renderer on db.
func NewEngine(db Querier, renderer Renderer, reg schema.Registry, opts ...EngineOption) *Engine {
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	e := &Engine{
		db:          db,
		renderer:    renderer,
		registry:    reg,
		log:         logrus.NewEntry(silent),
		successCode: DefaultSuccessCode,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok && tx != nil {
		return tx
	}
	return e.db
}

// Compile renders the SQL of a Criteria without running it.
func (e *Engine) Compile(c *Criteria) (*Compiled, error) {
	q, err := c.Query()
	if err != nil {
		return nil, err
	}
	return e.renderer.Compile(q)
}

// Execute runs a Criteria and returns its records. Queries with aggregates or
// grouping must use ExecuteResults.
func (e *Engine) Execute(ctx context.Context, c *Criteria) ([]*Record, error) {
	compiled, err := e.Compile(c)
	if err != nil {
		return nil, err
	}
	if compiled.Shape.Aggregate {
		return nil, types.Errorf(types.CodeResultShape, "query on %s returns aggregate rows, use ExecuteResults", c.Type().Name)
	}
	results, err := e.run(ctx, compiled)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, len(results))
	for i, r := range results {
		records[i] = r.Record
	}
	return records, nil
}

// ExecuteResults runs a Criteria and returns rows with their aggregate and
// group-by values.
func (e *Engine) ExecuteResults(ctx context.Context, c *Criteria) ([]*QueryResult, error) {
	compiled, err := e.Compile(c)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, compiled)
}

// ExecuteSingle runs a Criteria expected to match at most one record.
// It returns nil when nothing matches.
func (e *Engine) ExecuteSingle(ctx context.Context, c *Criteria) (*Record, error) {
	records, err := e.Execute(ctx, c)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, types.Errorf(types.CodeResultShape, "expected at most one record, got %d", len(records))
	}
}

// Count runs a Criteria whose only aggregate is count and returns the count.
func (e *Engine) Count(ctx context.Context, c *Criteria) (int64, error) {
	q, err := c.Query()
	if err != nil {
		return 0, err
	}
	if len(q.Aggregates) != 1 {
		return 0, types.Errorf(types.CodeResultShape, "count requires exactly one aggregate function, got %d", len(q.Aggregates))
	}
	if q.Aggregates[0].Function != types.AggCount {
		return 0, types.Errorf(types.CodeResultShape, "count requires a count aggregate, got %s", q.Aggregates[0].Function)
	}

	results, err := e.ExecuteResults(ctx, c)
	if err != nil {
		return 0, err
	}
	if len(results) != 1 {
		return 0, types.Errorf(types.CodeResultShape, "count expects exactly one row, got %d", len(results))
	}
	v, err := results[0].SingleAggregateValue()
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, types.Errorf(types.CodeResultShape, "count returned %T, expected int64", v)
	}
	return n, nil
}

func (e *Engine) run(ctx context.Context, compiled *Compiled) ([]*QueryResult, error) {
	log := e.log.WithFields(logrus.Fields{
		"query_id": uuid.NewString(),
		"type":     compiled.Shape.Type.Name,
	})
	log.WithField("sql", compiled.SQL).Debug("executing query")
	start := time.Now()

	rows, err := e.querier(ctx).Query(ctx, compiled.SQL)
	if err != nil {
		log.WithError(err).Warn("query failed")
		return nil, err
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	columns := make([]string, len(descriptions))
	for i, d := range descriptions {
		columns[i] = d.Name
	}

	var results []*QueryResult
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		result, err := materialize(compiled.Shape, columns, values)
		if err != nil {
			log.WithError(err).Warn("materializing row failed")
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).Warn("reading rows failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"rows":     len(results),
		"duration": time.Since(start),
	}).Debug("query complete")
	return results, nil
}
