package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	var (
		params []string
		input  string
	)

	cmd := &cobra.Command{
		Use:   "exec <entity> [statement]",
		Short: "Execute an update or delete statement",
		Long: `Execute a data-modifying statement in a transaction and commit it.

The statement may use :name placeholders bound from --param values; bare
--param values bind positionally. The entity names the table context the
statement runs against.`,
		Example: `  leapdata exec Order "UPDATE orders SET status = :next WHERE status = :prev" -p prev=open -p next=held
  leapdata exec Ticket -i purge.sql`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) > 1 {
				text = args[1]
			}
			text, err := readQuery(cmd.InOrStdin(), text, input)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("no statement given")
			}

			return withWorkspace(cmd, func(ctx context.Context, _ *CommandContext, ws *Workspace) error {
				ds, err := ws.DataSource(ctx, args[0])
				if err != nil {
					return err
				}
				n, err := ds.Execute(ctx, text, parseParams(params)...)
				if err != nil {
					return err
				}
				if err := ws.Commit(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d rows affected\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Statement parameter as name=value (repeatable)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Read the statement from a file (- for stdin)")

	return cmd
}
