package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zoobzio/recql"
	"github.com/zoobzio/recql/schema"
)

// engine connects to the configured database and builds an Engine over it.
func (o *RootOptions) engine(ctx context.Context, reg schema.Registry) (*recql.Engine, func(), error) {
	pool, err := Connect(ctx, o.Config.DSN, o.Log)
	if err != nil {
		return nil, nil, err
	}
	e := recql.NewEngine(pool, o.Renderer(), reg,
		recql.WithLogger(o.Log),
		recql.WithSuccessCode(o.Config.SuccessCode),
	)
	return e, pool.Close, nil
}

// NewExecCommand creates the exec command, which runs a query document and
// prints the records as JSON.
func NewExecCommand(opts *RootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <query.yaml>",
		Short: "Run a query document and print the records as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, c, err := opts.Criteria(args[0])
			if err != nil {
				return err
			}
			e, closeDB, err := opts.engine(cmd.Context(), reg)
			if err != nil {
				return err
			}
			defer closeDB()

			results, err := e.ExecuteResults(cmd.Context(), c)
			if err != nil {
				return err
			}
			return writeResults(out, results)
		},
	}
}

// NewCountCommand creates the count command, which runs a query document
// whose only aggregate is count and prints the count.
func NewCountCommand(opts *RootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "count <query.yaml>",
		Short: "Run a counting query document and print the count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, c, err := opts.Criteria(args[0])
			if err != nil {
				return err
			}
			e, closeDB, err := opts.engine(cmd.Context(), reg)
			if err != nil {
				return err
			}
			defer closeDB()

			n, err := e.Count(cmd.Context(), c)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, n)
			return err
		},
	}
}

// writeResults prints one JSON document per line: the record fields, or for
// aggregate results the group-by and aggregate values.
func writeResults(out io.Writer, results []*recql.QueryResult) error {
	enc := json.NewEncoder(out)
	for _, r := range results {
		var doc any
		if aggs := r.Aggregates(); len(aggs) > 0 {
			doc = map[string]any{
				"groupBy":    r.GroupByValues(),
				"aggregates": aggs,
			}
		} else {
			doc = r.Record.Map()
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return nil
}
