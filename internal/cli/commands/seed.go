package commands

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// SeedInfo describes one loaded seed file.
type SeedInfo struct {
	Name     string `json:"name" yaml:"name"`
	Entity   string `json:"entity" yaml:"entity"`
	FilePath string `json:"file_path" yaml:"file_path"`
	Rows     int    `json:"rows" yaml:"rows"`
}

// SeedSummary totals a seed run.
type SeedSummary struct {
	TotalSeeds int `json:"total_seeds" yaml:"total_seeds"`
	TotalRows  int `json:"total_rows" yaml:"total_rows"`
}

// SeedOutput is the machine-readable result of a seed run.
type SeedOutput struct {
	Seeds   []SeedInfo  `json:"seeds" yaml:"seeds"`
	Summary SeedSummary `json:"summary" yaml:"summary"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "seed [dir]",
		Short: "Load seed records from CSV files",
		Long: `Load seed records from CSV files into their entities.

Each file is named after an entity (ticket.csv seeds Ticket) and starts with
a header row of attribute names. Every row is inserted through the entity's
cursor and saved; each file is committed on its own. Empty cells are left
unset so generated identities and defaults apply.

The directory defaults to seeds/ under the project root.`,
		Example: `  leapdata seed
  leapdata seed ./data/seeds --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runSeed(cmd, dir, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, yaml, csv, md")

	return cmd
}

func runSeed(cmd *cobra.Command, dir, format string) error {
	return withWorkspace(cmd, func(ctx context.Context, cmdCtx *CommandContext, ws *Workspace) error {
		if dir == "" {
			dir = filepath.Join(cmdCtx.Cfg.ProjectRoot, "seeds")
		}
		files, err := getSeedFiles(dir)
		if err != nil {
			return err
		}

		result := SeedOutput{Seeds: []SeedInfo{}}
		for _, file := range files {
			info, err := loadSeedFile(ctx, ws, filepath.Join(dir, file))
			if err != nil {
				return fmt.Errorf("seed %s: %w", file, err)
			}
			result.Seeds = append(result.Seeds, info)
			result.Summary.TotalSeeds++
			result.Summary.TotalRows += info.Rows
		}

		format = cmdCtx.Format(format)
		switch strings.ToLower(format) {
		case "json":
			return renderJSON(cmd.OutOrStdout(), result)
		case "yaml":
			return renderYAML(cmd.OutOrStdout(), result)
		}

		if len(result.Seeds) == 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No seed files found in %s\n", dir)
			return nil
		}
		rows := make([]map[string]any, len(result.Seeds))
		for i, s := range result.Seeds {
			rows[i] = map[string]any{"file": s.Name + ".csv", "entity": s.Entity, "rows": s.Rows}
		}
		if err := renderResults(cmd.OutOrStdout(), []string{"file", "entity", "rows"}, rows, format); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d rows loaded from %s\n", result.Summary.TotalRows, dir)
		return nil
	})
}

// getSeedFiles returns the CSV files in seedsDir in name order. A missing
// directory yields no files.
func getSeedFiles(seedsDir string) ([]string, error) {
	entries, err := os.ReadDir(seedsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// loadSeedFile inserts every row of a CSV file into the entity named by the
// file and commits.
func loadSeedFile(ctx context.Context, ws *Workspace, path string) (SeedInfo, error) {
	name := strings.TrimSuffix(filepath.Base(path), ".csv")
	info := SeedInfo{Name: name, FilePath: path}
	if abs, err := filepath.Abs(path); err == nil {
		info.FilePath = abs
	}

	ds, err := ws.DataSource(ctx, name)
	if err != nil {
		return info, err
	}
	info.Entity = ds.Entity().Name

	f, err := os.Open(path)
	if err != nil {
		return info, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return info, err
		}

		fields := make(map[string]any, len(header))
		for i, cell := range row {
			if i < len(header) && cell != "" {
				fields[header[i]] = cell
			}
		}
		if err := ds.InsertValues(fields); err != nil {
			return info, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := ds.Save(ctx); err != nil {
			return info, fmt.Errorf("line %d: %w", line, err)
		}
		info.Rows++
	}

	if err := ws.Commit(ctx); err != nil {
		return info, err
	}
	ws.Logger.Debug("seed loaded", slog.String("entity", info.Entity), slog.Int("rows", info.Rows))
	return info, nil
}
