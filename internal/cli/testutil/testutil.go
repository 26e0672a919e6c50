// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapdata/internal/testutil"
	"github.com/leapstack-labs/leapdata/pkg/adapters/sqlite"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// ShopYAML declares the shop fixture entities in leapdata.yaml form.
const ShopYAML = `entities:
  - name: Customer
    attributes:
      - {name: id, type: int, identity: true, generated: true}
      - {name: name, type: string}
      - {name: email, type: string}
      - {name: createdAt, column: created_at, type: time}
    relations:
      - {id: orders, target: Order, owner_attribute: customer}
  - name: Order
    table: orders
    attributes:
      - {name: id, type: int, identity: true}
      - {name: customer, ref: Customer}
      - {name: total, type: float}
      - {name: status, type: string}
    relations:
      - {id: products, target: Product, association: OrderProduct}
  - name: Product
  - name: OrderProduct
    table: order_product
    attributes:
      - {name: order, ref: Order, identity: true}
      - {name: product, ref: Product, identity: true}
  - name: Ticket
    attributes:
      - {name: id, type: string, identity: true, generated: true}
      - {name: subject, type: string}
`

// SetupTestProject creates a temporary project whose SQLite database holds
// the migrated and seeded shop fixture. Product attributes are left to
// introspection. Returns the project directory.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "leapdata.yaml"), "page_size: 2\ntarget:\n  type: sqlite\n  database: shop.db\n"+ShopYAML)

	adp := sqlite.New(testutil.NewTestLogger(t))
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Type: "sqlite", Path: filepath.Join(dir, "shop.db")}))
	testutil.MigrateShop(t, adp.DB())
	require.NoError(t, adp.Close())

	writeFile(t, filepath.Join(dir, "seeds", "ticket.csv"), "id,subject\nt-1,printer on fire\nt-2,\n")
	writeFile(t, filepath.Join(dir, "seeds", "Product.csv"), "sku,title,price\nD-4,Drill,42.5\n")
	writeFile(t, filepath.Join(dir, "migrations", "00003_notes.sql"),
		"-- +goose Up\nCREATE TABLE note (id INTEGER PRIMARY KEY, body TEXT);\n\n-- +goose Down\nDROP TABLE note;\n")

	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// ExecuteCommand runs cmd with args and returns what it wrote to stdout
// and stderr.
func ExecuteCommand(t *testing.T, cmd *cobra.Command, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}
