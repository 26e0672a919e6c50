package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/datasource"
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var (
		format string
		keys   []string
	)

	cmd := &cobra.Command{
		Use:   "get <entity> [identity values...]",
		Short: "Fetch one record by identity",
		Long: `Fetch a single record by its identity.

Identity values are given positionally in declared order, or by name with
--key. Named keys may also carry extra equality conditions on other
attributes, which are joined with AND.`,
		Example: `  leapdata get Customer 1
  leapdata get OrderProduct 10 A-1
  leapdata get OrderProduct --key order=10 --key product=A-1
  leapdata get Order --key id=10 --key status=open --format yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, cmdCtx *CommandContext, ws *Workspace) error {
				ds, err := ws.DataSource(ctx, args[0])
				if err != nil {
					return err
				}

				if len(keys) > 0 {
					if len(args) > 1 {
						return fmt.Errorf("give identity values either positionally or with --key, not both")
					}
					named, err := parseAssignments(keys)
					if err != nil {
						return err
					}
					if err := filterByNamedKeys(ctx, ds, named); err != nil {
						return err
					}
				} else {
					if len(args) < 2 {
						return fmt.Errorf("no identity values given")
					}
					if err := ds.Filter(ctx, "", parseKeys(args[1:])...); err != nil {
						return err
					}
				}

				rec, err := ds.Current()
				if err != nil {
					return fmt.Errorf("%s not found: %w", ds.Entity().Name, err)
				}
				return renderRecords(cmd.OutOrStdout(), ds.Entity(), []*core.Record{rec}, cmdCtx.Format(format))
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, yaml, csv, md")
	cmd.Flags().StringArrayVarP(&keys, "key", "k", nil, "Identity or condition as name=value (repeatable)")

	return cmd
}

// filterByNamedKeys splits named values into identity keys and extra
// equality conditions and filters the cursor by them.
func filterByNamedKeys(ctx context.Context, ds *datasource.DataSource, named map[string]any) error {
	keys := make(map[string]any)
	var extra []core.Value
	for name, v := range named {
		if attr, ok := ds.Entity().Attribute(name); ok && attr.Identity {
			keys[name] = v
			continue
		}
		extra = append(extra, core.Named(name, v))
	}
	sortValues(extra)
	return ds.FilterByKeys(ctx, keys, extra...)
}
