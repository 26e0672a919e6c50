package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/datasource"
	"github.com/spf13/cobra"
)

// FetchOptions holds options for the fetch command.
type FetchOptions struct {
	Format string
	Where  string
	Input  string
	Params []string
	Page   int
	Size   int
	All    bool
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand() *cobra.Command {
	opts := &FetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <entity>",
		Short: "Fetch a page of entity records",
		Long: `Fetch records of an entity through a paged cursor.

Without --where every record is selected in identity order. A --where query
is a full SELECT whose rows map to the entity, with :name placeholders bound
from --param values. Use --all to walk every page with the cursor.`,
		Example: `  # First page of customers
  leapdata fetch Customer

  # Third page, ten per page, as JSON
  leapdata fetch Customer --page 2 --size 10 --format json

  # Filter with a parameterized query
  leapdata fetch Order --where "SELECT e.* FROM orders e WHERE e.status = :status" -p status=open

  # Every record, page by page
  leapdata fetch Product --all --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, yaml, csv, md")
	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "SELECT query whose rows map to the entity")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read the query from a file (- for stdin)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "Query parameter as name=value (repeatable)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Zero-based page number")
	cmd.Flags().IntVar(&opts.Size, "size", 0, "Page size (default: page_size setting)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Walk every page with the cursor")

	return cmd
}

func runFetch(cmd *cobra.Command, entity string, opts *FetchOptions) error {
	where, err := readQuery(cmd.InOrStdin(), opts.Where, opts.Input)
	if err != nil {
		return err
	}

	return withWorkspace(cmd, func(ctx context.Context, cmdCtx *CommandContext, ws *Workspace) error {
		ds, err := ws.DataSource(ctx, entity)
		if err != nil {
			return err
		}
		if opts.Size > 0 {
			if err := ds.SetPageSize(opts.Size); err != nil {
				return err
			}
		}
		format := cmdCtx.Format(opts.Format)
		params := parseParams(opts.Params)

		if opts.All {
			records, err := collectAll(ctx, ds, where, params)
			if err != nil {
				return err
			}
			return renderRecords(cmd.OutOrStdout(), ds.Entity(), records, format)
		}

		if opts.Page < 0 {
			return fmt.Errorf("page must not be negative, got %d", opts.Page)
		}
		req := core.NewPageRequest(opts.Page, ds.PageSize())
		if err := ds.FilterPage(ctx, where, req, params...); err != nil {
			return err
		}
		if err := renderRecords(cmd.OutOrStdout(), ds.Entity(), ds.Page().Records, format); err != nil {
			return err
		}
		printPageFooter(cmd.ErrOrStderr(), ds)
		return nil
	})
}

// collectAll walks the cursor from the first record to the last.
func collectAll(ctx context.Context, ds *datasource.DataSource, where string, params []core.Value) ([]*core.Record, error) {
	if err := ds.Filter(ctx, where, params...); err != nil {
		return nil, err
	}
	records := make([]*core.Record, 0, ds.TotalElements())
	for {
		rec, err := ds.Current()
		if errors.Is(err, core.ErrNoCurrentRecord) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		if err := ds.Next(ctx); err != nil {
			return nil, err
		}
	}
}

func printPageFooter(w io.Writer, ds *datasource.DataSource) {
	page := ds.Page()
	if page == nil {
		return
	}
	pages := (page.Total + int64(page.Request.Size) - 1) / int64(page.Request.Size)
	_, _ = fmt.Fprintf(w, "page %d of %d (%d total)\n", page.Request.Number+1, max(pages, 1), page.Total)
}

// readQuery returns the query from the flag, a file, or stdin ("-").
func readQuery(stdin io.Reader, text, input string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case input == "-":
		content, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	case input != "":
		content, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return "", nil
}
