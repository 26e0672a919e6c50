package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapdata/internal/config"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapdata project",
		Long: `Initialize a new leapdata project with a configuration file, a
migrations directory and a seeds directory.

This creates:
  - leapdata.yaml declaring the target and the entities
  - migrations/ with goose SQL migrations
  - seeds/ with CSV files named after entities

Use --example to create a small shop project with related entities.`,
		Example: `  # Initialize in current directory
  leapdata init

  # Initialize the shop example in a new directory
  leapdata init my-shop --example

  # Force overwrite existing config
  leapdata init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(cmd.OutOrStdout(), dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create the shop example project")

	return cmd
}

func runInit(w io.Writer, dir, template string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, err := listTemplateFiles(template)
	if err != nil {
		return err
	}
	groups := groupTemplateFiles(files)
	for _, group := range []string{"config", "migrations", "seeds"} {
		if len(groups[group]) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s:\n", group)
		for _, f := range groups[group] {
			_, _ = fmt.Fprintf(w, "  created %s\n", f)
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "leapdata project initialized!")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Next steps:")
	_, _ = fmt.Fprintln(w, "  leapdata migrate up     Create the tables")
	_, _ = fmt.Fprintln(w, "  leapdata seed           Load seeds/*.csv")
	_, _ = fmt.Fprintln(w, "  leapdata schema         List the declared entities")
	_, _ = fmt.Fprintln(w, "  leapdata browse <name>  Walk records interactively")

	return nil
}
