package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/zoobzio/dbml"
)

const columnsQuery = `SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = current_schema() ORDER BY table_name, ordinal_position`

// Column is one physical column reported by the database.
type Column struct {
	Table string
	Name  string
	Type  string
}

// NewCheckCommand creates the check command, which verifies that every table
// and stored column of the schema document exists in the database.
func NewCheckCommand(opts *RootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the schema document against the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := opts.Registry()
			if err != nil {
				return err
			}
			pool, err := Connect(cmd.Context(), opts.Config.DSN, opts.Log)
			if err != nil {
				return err
			}
			defer pool.Close()

			columns, err := DatabaseColumns(cmd.Context(), pool)
			if err != nil {
				return err
			}
			if err := reg.CheckDBML(DatabaseProject("database", columns)); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%d types match the database\n", len(reg.Types()))
			return err
		},
	}
}

// DatabaseColumns lists the columns of every table in the current schema.
func DatabaseColumns(ctx context.Context, pool *pgxpool.Pool) ([]Column, error) {
	rows, err := pool.Query(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("listing database columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Table, &c.Name, &c.Type); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// DatabaseProject groups columns into a dbml project with one table per
// table name, keeping the column order.
func DatabaseProject(name string, columns []Column) *dbml.Project {
	project := dbml.NewProject(name).WithDatabaseType("PostgreSQL")
	tables := make(map[string]*dbml.Table)
	for _, c := range columns {
		table, ok := tables[c.Table]
		if !ok {
			table = dbml.NewTable(c.Table)
			tables[c.Table] = table
			project.AddTable(table)
		}
		table.AddColumn(dbml.NewColumn(c.Name, c.Type))
	}
	return project
}
