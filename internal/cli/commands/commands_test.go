package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapdata/internal/cli/config"
	clitestutil "github.com/leapstack-labs/leapdata/internal/cli/testutil"
	_ "github.com/leapstack-labs/leapdata/pkg/adapters/sqlite"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadProject creates the shop test project and loads its configuration.
func loadProject(t *testing.T) string {
	t.Helper()
	dir := clitestutil.SetupTestProject(t)
	t.Chdir(dir)

	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	_, err := config.LoadConfigWithTarget(filepath.Join(dir, "leapdata.yaml"), "", nil)
	require.NoError(t, err)
	return dir
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, string) {
	t.Helper()
	stdout, stderr, err := clitestutil.ExecuteCommand(t, cmd, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return stdout, stderr
}

func decodeRows(t *testing.T, out string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	return rows
}

func column(rows []map[string]any, name string) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row[name]
	}
	return out
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewFetchCommand(), "fetch <entity>", []string{"format", "where", "input", "param", "page", "size", "all"}},
		{NewGetCommand(), "get <entity> [identity values...]", []string{"format", "key"}},
		{NewExecCommand(), "exec <entity> [statement]", []string{"param", "input"}},
		{NewBrowseCommand(), "browse <entity>", []string{"format"}},
		{NewSeedCommand(), "seed [dir]", []string{"format"}},
		{NewSchemaCommand(), "schema [entity]", []string{"format"}},
		{NewDoctorCommand(), "doctor", []string{"format"}},
		{NewMigrateCommand(), "migrate", nil},
		{NewRelationCommand(), "relation", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestSubcommands(t *testing.T) {
	names := func(cmd *cobra.Command) []string {
		var out []string
		for _, c := range cmd.Commands() {
			out = append(out, c.Name())
		}
		return out
	}
	assert.ElementsMatch(t, []string{"up", "down", "status"}, names(NewMigrateCommand()))
	assert.ElementsMatch(t, []string{"list", "add", "remove"}, names(NewRelationCommand()))
}

func TestFetchCommand(t *testing.T) {
	loadProject(t)

	t.Run("first page", func(t *testing.T) {
		out, errOut := run(t, NewFetchCommand(), "Customer", "-f", "json")
		rows := decodeRows(t, out)
		assert.Equal(t, []any{"Alice", "Bob"}, column(rows, "name"))
		assert.Contains(t, errOut, "page 1 of 2 (3 total)")
	})

	t.Run("second page", func(t *testing.T) {
		out, _ := run(t, NewFetchCommand(), "Customer", "--page", "1", "-f", "json")
		assert.Equal(t, []any{"Carol"}, column(decodeRows(t, out), "name"))
	})

	t.Run("all pages", func(t *testing.T) {
		out, _ := run(t, NewFetchCommand(), "customer", "--all", "-f", "json")
		assert.Len(t, decodeRows(t, out), 3)
	})

	t.Run("where with parameters", func(t *testing.T) {
		out, _ := run(t, NewFetchCommand(), "Order",
			"--where", "SELECT e.* FROM orders e WHERE e.status = :status ORDER BY e.id",
			"-p", "status=open", "-f", "json")
		assert.Equal(t, []any{float64(10), float64(12)}, column(decodeRows(t, out), "id"))
	})

	t.Run("table output", func(t *testing.T) {
		out, _ := run(t, NewFetchCommand(), "Product", "--size", "5")
		clitestutil.AssertContains(t, out, "Chisel")
		clitestutil.AssertContains(t, out, "(3 rows)")
		clitestutil.AssertNoANSI(t, out)
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, _, err := clitestutil.ExecuteCommand(t, NewFetchCommand(), "Invoice")
		assert.Error(t, err)
	})
}

func TestGetCommand(t *testing.T) {
	loadProject(t)

	out, _ := run(t, NewGetCommand(), "Customer", "2", "-f", "json")
	assert.Equal(t, []any{"Bob"}, column(decodeRows(t, out), "name"))

	out, _ = run(t, NewGetCommand(), "OrderProduct", "--key", "order=10", "--key", "product=B-2", "-f", "json")
	assert.Equal(t, []any{"B-2"}, column(decodeRows(t, out), "product"))

	out, _ = run(t, NewGetCommand(), "Order", "-k", "id=10", "-k", "status=open", "-f", "csv")
	clitestutil.AssertContains(t, out, "10,1,25.5,open")

	_, _, err := clitestutil.ExecuteCommand(t, NewGetCommand(), "Customer", "99")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Customer not found")

	_, _, err = clitestutil.ExecuteCommand(t, NewGetCommand(), "Customer")
	assert.Error(t, err)
}

func TestExecCommand(t *testing.T) {
	loadProject(t)

	out, _ := run(t, NewExecCommand(), "Order", "UPDATE orders SET status = :next WHERE status = :prev", "-p", "prev=open", "-p", "next=held")
	assert.Contains(t, out, "2 rows affected")

	out, _ = run(t, NewFetchCommand(), "Order", "--all", "-f", "json")
	assert.Equal(t, []any{"held", "shipped", "held"}, column(decodeRows(t, out), "status"))
}

func TestRelationCommands(t *testing.T) {
	loadProject(t)

	t.Run("list direct", func(t *testing.T) {
		out, _ := run(t, NewRelationCommand(), "list", "Customer", "orders", "1", "-f", "json")
		assert.Equal(t, []any{float64(10), float64(11)}, column(decodeRows(t, out), "id"))
	})

	t.Run("add and list associative", func(t *testing.T) {
		run(t, NewRelationCommand(), "add", "Order", "products", "12", "--set", "sku=C-3")
		out, _ := run(t, NewRelationCommand(), "list", "Order", "products", "12", "-f", "json")
		assert.Equal(t, []any{"C-3"}, column(decodeRows(t, out), "sku"))
	})

	t.Run("remove associative", func(t *testing.T) {
		out, _ := run(t, NewRelationCommand(), "remove", "Order", "products", "--owner", "10", "--target", "A-1")
		assert.Contains(t, out, "1 rows affected")

		out, _ = run(t, NewRelationCommand(), "list", "Order", "products", "10", "-f", "json")
		assert.Equal(t, []any{"B-2"}, column(decodeRows(t, out), "sku"))
	})

	t.Run("remove requires both keys", func(t *testing.T) {
		_, _, err := clitestutil.ExecuteCommand(t, NewRelationCommand(), "remove", "Order", "products", "--owner", "10")
		assert.Error(t, err)
	})
}

func TestSeedCommand(t *testing.T) {
	loadProject(t)

	out, _ := run(t, NewSeedCommand(), "-f", "json")
	var result SeedOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Summary.TotalSeeds)
	assert.Equal(t, 3, result.Summary.TotalRows)
	assert.Equal(t, "Product", result.Seeds[0].Entity)
	assert.Equal(t, "Ticket", result.Seeds[1].Entity)

	out, _ = run(t, NewGetCommand(), "Ticket", "t-2", "-f", "json")
	rows := decodeRows(t, out)
	assert.Nil(t, rows[0]["subject"], "empty cells stay unset")

	out, _ = run(t, NewGetCommand(), "Product", "D-4", "-f", "json")
	assert.Equal(t, []any{"Drill"}, column(decodeRows(t, out), "title"))
}

func TestSeedCommand_EmptyDir(t *testing.T) {
	loadProject(t)

	out, _ := run(t, NewSeedCommand(), t.TempDir())
	assert.Contains(t, out, "No seed files found")
}

func TestMigrateCommand(t *testing.T) {
	loadProject(t)

	out, _ := run(t, NewMigrateCommand(), "status")
	assert.Contains(t, out, "migration version 2")

	out, _ = run(t, NewMigrateCommand(), "up")
	assert.Contains(t, out, "migration version 3")

	out, _ = run(t, NewMigrateCommand(), "down")
	assert.Contains(t, out, "migration version 2")
}

func TestSchemaCommand(t *testing.T) {
	loadProject(t)

	out, _ := run(t, NewSchemaCommand())
	for _, name := range []string{"Customer", "Order", "Product", "OrderProduct", "Ticket"} {
		clitestutil.AssertContains(t, out, name)
	}

	out, _ = run(t, NewSchemaCommand(), "Order", "-f", "json")
	var detail EntityDetail
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, "orders", detail.Table)
	require.Len(t, detail.Relations, 1)
	assert.Equal(t, "associative", detail.Relations[0].Kind)
	assert.Equal(t, "OrderProduct", detail.Relations[0].Association)

	out, _ = run(t, NewSchemaCommand(), "Product", "-f", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	require.NotEmpty(t, detail.Attributes, "product attributes are introspected")
	assert.Equal(t, "sku", detail.Attributes[0].Name)
	assert.True(t, detail.Attributes[0].Identity)
}

func TestDoctorCommand(t *testing.T) {
	loadProject(t)

	out, _ := run(t, NewDoctorCommand(), "-f", "json")
	var report DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	status := make(map[string]string)
	for _, c := range report.HealthChecks {
		status[c.RuleID] = c.Status
	}
	assert.Equal(t, map[string]string{
		"CF01": statusPass,
		"CF02": statusPass,
		"CF03": statusPass,
		"CN01": statusPass,
		"EN01": statusPass,
		"EN02": statusPass,
		"MG01": statusWarn,
	}, status)
	assert.Equal(t, int64(2), report.Summary.MigrationVersion)
	assert.Equal(t, 5, report.Summary.Entities)
	assert.Equal(t, 2, report.Summary.Seeds)
	assert.Equal(t, []string{getRecommendation("MG01")}, report.Recommendations)

	out, _ = run(t, NewDoctorCommand())
	clitestutil.AssertContains(t, out, "Health Score")
	clitestutil.AssertContains(t, out, "[WARN] MG01")
}

func TestBrowser(t *testing.T) {
	loadProject(t)
	ctx := context.Background()

	cmdCtx := &CommandContext{Cfg: config.GetCurrentConfig(), Logger: slog.New(slog.DiscardHandler)}
	ws, err := OpenWorkspace(ctx, cmdCtx)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	ds, err := ws.DataSource(ctx, "Customer")
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	b := newBrowser(ws, ds, &out, &errOut, "csv")
	step := func(line string) string {
		t.Helper()
		out.Reset()
		errOut.Reset()
		assert.False(t, b.handle(ctx, line))
		assert.Empty(t, errOut.String(), line)
		return out.String()
	}

	assert.Contains(t, step(".first"), "Alice")
	assert.Contains(t, step(".next"), "Bob")
	assert.Contains(t, step(".next"), "Carol")
	assert.Contains(t, step(".prev"), "Bob")
	assert.Contains(t, step(".set email=bobby@example.com"), "bobby@example.com")
	step(".save")
	assert.Contains(t, step(".commit"), "Committed")

	assert.Contains(t, step(".related orders"), "12")
	assert.Contains(t, step(".size 1"), "page size 1")
	assert.Contains(t, step(".get 3"), "Carol")
	assert.Contains(t, step(".insert name=Dave"), "Dave")
	assert.Contains(t, step(".save"), "Dave")
	assert.Contains(t, step(".rollback"), "Rolled back")
	assert.Contains(t, step(".where SELECT e.* FROM customer e WHERE e.name = 'Dave'"), "(no current record)")
	assert.Contains(t, step(".filter id=2"), "bobby@example.com")

	out.Reset()
	errOut.Reset()
	assert.False(t, b.handle(ctx, ".bogus"))
	assert.Contains(t, errOut.String(), "Unknown command")

	assert.True(t, b.handle(ctx, ".quit"))
}
