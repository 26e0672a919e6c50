package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/spf13/cobra"
)

// NewRelationCommand creates the relation command and its subcommands.
func NewRelationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relation",
		Short: "Traverse and edit declared relations",
		Long: `List, add and remove the targets of a relation declared on an entity.

Direct relations reach targets through a foreign key on the target entity.
Associative relations go through an association entity whose rows link an
owner to a target.`,
	}

	cmd.AddCommand(newRelationListCommand())
	cmd.AddCommand(newRelationAddCommand())
	cmd.AddCommand(newRelationRemoveCommand())

	return cmd
}

func newRelationListCommand() *cobra.Command {
	var (
		format string
		page   int
		size   int
	)

	cmd := &cobra.Command{
		Use:   "list <entity> <relation> <owner identity...>",
		Short: "List the targets related to an owner",
		Example: `  leapdata relation list Customer orders 1
  leapdata relation list Order products 10 --format json`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, cmdCtx *CommandContext, ws *Workspace) error {
				ds, err := ws.DataSource(ctx, args[0])
				if err != nil {
					return err
				}
				if size < 1 {
					size = ds.PageSize()
				}
				if err := ds.FilterByRelation(ctx, args[1], core.NewPageRequest(page, size), parseKeys(args[2:])...); err != nil {
					return err
				}

				rel, err := ws.Session.Relation(ctx, ds.Entity(), args[1])
				if err != nil {
					return err
				}
				if err := renderRecords(cmd.OutOrStdout(), rel.Target, ds.Page().Records, cmdCtx.Format(format)); err != nil {
					return err
				}
				printPageFooter(cmd.ErrOrStderr(), ds)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, yaml, csv, md")
	cmd.Flags().IntVar(&page, "page", 0, "Zero-based page number")
	cmd.Flags().IntVar(&size, "size", 0, "Page size (default: page_size setting)")

	return cmd
}

func newRelationAddCommand() *cobra.Command {
	var (
		format string
		fields []string
	)

	cmd := &cobra.Command{
		Use:   "add <entity> <relation> <owner identity...>",
		Short: "Link a target to an owner",
		Long: `Link a target to an owner and commit.

For associative relations the --set fields identify the existing target and
a new association row is stored. For direct relations the --set fields
describe a new target record whose owner reference is set to the owner.`,
		Example: `  leapdata relation add Order products 10 --set sku=C-3
  leapdata relation add Customer orders 3 --set id=13 --set total=3.5 --set status=open`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(fields)
			if err != nil {
				return err
			}
			return withWorkspace(cmd, func(ctx context.Context, cmdCtx *CommandContext, ws *Workspace) error {
				ds, err := ws.DataSource(ctx, args[0])
				if err != nil {
					return err
				}
				rec, err := ds.InsertRelation(ctx, args[1], values, parseKeys(args[2:])...)
				if err != nil {
					return err
				}
				if err := ws.Commit(ctx); err != nil {
					return err
				}
				return renderRecords(cmd.OutOrStdout(), rec.Entity(), []*core.Record{rec}, cmdCtx.Format(format))
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, yaml, csv, md")
	cmd.Flags().StringArrayVarP(&fields, "set", "s", nil, "Target field as name=value (repeatable)")

	return cmd
}

func newRelationRemoveCommand() *cobra.Command {
	var owner, target []string

	cmd := &cobra.Command{
		Use:   "remove <entity> <relation>",
		Short: "Unlink a target from an owner",
		Long: `Unlink a target from an owner and commit.

For associative relations the association row is deleted. For direct
relations the target record itself is deleted.`,
		Example: `  leapdata relation remove Order products --owner 10 --target C-3
  leapdata relation remove Customer orders --owner 3 --target 13`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(owner) == 0 || len(target) == 0 {
				return fmt.Errorf("both --owner and --target identity values are required")
			}
			return withWorkspace(cmd, func(ctx context.Context, _ *CommandContext, ws *Workspace) error {
				ds, err := ws.DataSource(ctx, args[0])
				if err != nil {
					return err
				}
				n, err := ds.DeleteRelation(ctx, args[1], parseKeys(owner), parseKeys(target))
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

	cmd.Flags().StringSliceVar(&owner, "owner", nil, "Owner identity values in declared order")
	cmd.Flags().StringSliceVar(&target, "target", nil, "Target identity values in declared order")

	return cmd
}
