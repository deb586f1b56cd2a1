package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewCompileCommand creates the compile command, which prints the SQL for a
// query document without connecting to a database.
func NewCompileCommand(opts *RootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <query.yaml>",
		Short: "Print the SQL for a query document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := opts.Criteria(args[0])
			if err != nil {
				return err
			}
			q, err := c.Query()
			if err != nil {
				return err
			}
			compiled, err := opts.Renderer().Compile(q)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, compiled.SQL)
			return err
		},
	}
}
