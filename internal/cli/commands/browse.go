package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/datasource"
	"github.com/spf13/cobra"
)

const browsePrompt = "leapdata> "

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "browse <entity>",
		Short: "Walk and edit entity records interactively",
		Long: `Open an interactive cursor over an entity.

The cursor starts on the first record. Dot commands move it, filter it and
edit the current record. Edits are kept in the session until .commit.`,
		Example: `  leapdata browse Customer
  leapdata browse Order --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ctx context.Context, cmdCtx *CommandContext, ws *Workspace) error {
				ds, err := ws.DataSource(ctx, args[0])
				if err != nil {
					return err
				}
				b := newBrowser(ws, ds, cmd.OutOrStdout(), cmd.ErrOrStderr(), cmdCtx.Format(format))
				return b.run(ctx, cmd.InOrStdin())
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, yaml, csv, md")

	return cmd
}

// browser drives a cursor from dot commands.
type browser struct {
	ws     *Workspace
	ds     *datasource.DataSource
	out    io.Writer
	errOut io.Writer
	format string
}

func newBrowser(ws *Workspace, ds *datasource.DataSource, out, errOut io.Writer, format string) *browser {
	return &browser{ws: ws, ds: ds, out: out, errOut: errOut, format: format}
}

func (b *browser) run(ctx context.Context, in io.Reader) error {
	historyFile := ""
	if root := b.ws.Cfg.ProjectRoot; root != "" {
		historyFile = filepath.Join(root, ".leapdata_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          browsePrompt,
		HistoryFile:     historyFile,
		AutoComplete:    b.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(in),
		Stdout:          b.out,
		Stderr:          b.errOut,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(b.out, "Browsing %s. Type .help for commands, .quit to exit\n", b.ds.Entity().Name)
	b.handle(ctx, ".first")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if quit := b.handle(ctx, line); quit {
			return nil
		}
	}
}

// handle executes one input line and reports whether the browser should exit.
// Errors are written to the error stream and never end the loop.
func (b *browser) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ".") {
		_, _ = fmt.Fprintln(b.errOut, "Commands start with a dot (type .help for commands)")
		return false
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	var err error
	switch strings.ToLower(command) {
	case ".quit", ".exit":
		if b.ws.Session.Active() {
			_, _ = fmt.Fprintln(b.errOut, "Uncommitted changes were rolled back")
		}
		return true
	case ".help":
		printBrowseHelp(b.out)
	case ".first":
		_, err = b.ds.Fetch(ctx)
		b.showOrEmpty(err)
		return false
	case ".next":
		err = b.ds.Next(ctx)
		b.showOrEmpty(err)
		return false
	case ".prev":
		var moved bool
		moved, err = b.ds.Previous(ctx)
		if err == nil && !moved {
			_, _ = fmt.Fprintln(b.errOut, "Already at the first record")
		}
		b.showOrEmpty(err)
		return false
	case ".show":
		b.showOrEmpty(nil)
		return false
	case ".page":
		err = b.showPage()
	case ".where":
		err = b.ds.Filter(ctx, rest)
		b.showOrEmpty(err)
		return false
	case ".get":
		err = b.ds.Filter(ctx, "", parseKeys(args)...)
		b.showOrEmpty(err)
		return false
	case ".filter":
		var named map[string]any
		if named, err = parseAssignments(args); err == nil {
			err = filterByNamedKeys(ctx, b.ds, named)
		}
		b.showOrEmpty(err)
		return false
	case ".related":
		err = b.related(ctx, args)
	case ".insert":
		var fields map[string]any
		if fields, err = parseAssignments(args); err == nil {
			err = b.ds.InsertValues(fields)
		}
		b.showOrEmpty(err)
		return false
	case ".set":
		var fields map[string]any
		if fields, err = parseAssignments(args); err == nil {
			err = b.ds.Update(fields)
		}
		b.showOrEmpty(err)
		return false
	case ".save":
		var rec *core.Record
		if rec, err = b.ds.Save(ctx); err == nil {
			err = b.render(rec)
		}
	case ".delete":
		if err = b.ds.Delete(ctx); err == nil {
			_, _ = fmt.Fprintln(b.out, "Deleted (pending commit)")
		}
	case ".commit":
		if err = b.ws.Commit(ctx); err == nil {
			_, _ = fmt.Fprintln(b.out, "Committed")
		}
	case ".rollback":
		if err = b.ws.Session.Rollback(); err == nil {
			b.ws.Session.Clear()
			b.ds.Clear()
			_, _ = fmt.Fprintln(b.out, "Rolled back")
		}
	case ".size":
		err = b.resize(args)
	default:
		_, _ = fmt.Fprintf(b.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}

	if err != nil {
		_, _ = fmt.Fprintf(b.errOut, "Error: %v\n", err)
	}
	return false
}

// showOrEmpty reports err, or renders the current record.
func (b *browser) showOrEmpty(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(b.errOut, "Error: %v\n", err)
		return
	}
	rec, err := b.ds.Current()
	if errors.Is(err, core.ErrNoCurrentRecord) {
		_, _ = fmt.Fprintln(b.out, "(no current record)")
		return
	}
	if err := b.render(rec); err != nil {
		_, _ = fmt.Fprintf(b.errOut, "Error: %v\n", err)
	}
}

func (b *browser) render(rec *core.Record) error {
	return renderRecords(b.out, rec.Entity(), []*core.Record{rec}, b.format)
}

func (b *browser) showPage() error {
	page := b.ds.Page()
	if page == nil {
		_, _ = fmt.Fprintln(b.out, "(no page loaded)")
		return nil
	}
	if err := renderRecords(b.out, b.ds.Entity(), page.Records, b.format); err != nil {
		return err
	}
	printPageFooter(b.out, b.ds)
	return nil
}

// related lists the targets of a relation owned by the current record.
func (b *browser) related(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: .related <relation>")
	}
	owner, err := b.ds.Current()
	if err != nil {
		return err
	}

	rel, err := b.ws.Session.Relation(ctx, b.ds.Entity(), args[0])
	if err != nil {
		return err
	}
	targets, err := b.ws.DataSource(ctx, b.ds.Entity().Name)
	if err != nil {
		return err
	}
	if err := targets.FilterByRelation(ctx, args[0], core.NewPageRequest(0, targets.PageSize()), core.Values(owner.ColumnKey()...)...); err != nil {
		return err
	}
	if err := renderRecords(b.out, rel.Target, targets.Page().Records, b.format); err != nil {
		return err
	}
	printPageFooter(b.out, targets)
	return nil
}

func (b *browser) resize(args []string) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintf(b.out, "page size %d\n", b.ds.PageSize())
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid page size %q", args[0])
	}
	if err := b.ds.SetPageSize(n); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(b.out, "page size %d\n", n)
	return nil
}

var browseCommands = []string{
	".help", ".first", ".next", ".prev", ".show", ".page", ".where", ".get",
	".filter", ".related", ".insert", ".set", ".save", ".delete", ".commit",
	".rollback", ".size", ".quit",
}

// completer offers dot commands, with attribute names after the editing
// commands and relation names after .related.
func (b *browser) completer() *readline.PrefixCompleter {
	entity := b.ds.Entity()

	attrs := make([]readline.PrefixCompleterInterface, 0, len(entity.Attributes))
	for _, attr := range entity.Attributes {
		attrs = append(attrs, readline.PcItem(attr.Name+"="))
	}
	relIDs := make([]string, 0, len(entity.Relations))
	for id := range entity.Relations {
		relIDs = append(relIDs, id)
	}
	sort.Strings(relIDs)
	rels := make([]readline.PrefixCompleterInterface, 0, len(relIDs))
	for _, id := range relIDs {
		rels = append(rels, readline.PcItem(id))
	}

	items := make([]readline.PrefixCompleterInterface, 0, len(browseCommands))
	for _, name := range browseCommands {
		switch name {
		case ".insert", ".set", ".filter":
			items = append(items, readline.PcItem(name, attrs...))
		case ".related":
			items = append(items, readline.PcItem(name, rels...))
		default:
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}

func printBrowseHelp(w io.Writer) {
	help := `
Navigation:
  .first                 Fetch the first page and show the first record
  .next / .prev          Move the cursor one record
  .show                  Show the current record
  .page                  Show every record of the loaded page
  .size [n]              Show or change the page size

Filtering:
  .where <SELECT ...>    Filter with a query whose rows map to the entity
  .get <values...>       Filter by identity values in declared order
  .filter name=value...  Filter by identity with extra conditions
  .related <relation>    List the targets of a relation of the current record

Editing:
  .insert [name=value...]  Start a new record
  .set name=value...       Change fields of the current record
  .save                    Store the new or changed record
  .delete                  Delete the current record
  .commit / .rollback      End the transaction

  .quit / .exit          Exit (uncommitted changes are rolled back)
`
	_, _ = fmt.Fprintln(w, help)
}
