package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapdata/internal/cli/config"
	"github.com/leapstack-labs/leapdata/internal/migrate"
	"github.com/leapstack-labs/leapdata/internal/registry"
	"github.com/leapstack-labs/leapdata/pkg/adapter"
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/spf13/cobra"
)

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
	statusSkip  = "skip"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, md, json, yaml
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the project configuration, target and entity tables",
		Long: `Check that the project is ready to use.

The doctor command reports:
- whether leapdata.yaml was found and the target is valid
- whether the target accepts connections
- whether every entity table exists and every relation resolves
- the applied migration version against the migrations directory

Checks that depend on a failed check are skipped. A health score from 0 to
100 and recommendations close the report.`,
		Example: `  # Run health check
  leapdata doctor

  # Output as JSON
  leapdata doctor --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, md, json, yaml")

	return cmd
}

// DoctorOutput is the machine-readable output of the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary" yaml:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks" yaml:"health_checks"`
	Score           int            `json:"score" yaml:"score"`
	Recommendations []string       `json:"recommendations" yaml:"recommendations"`
	IssueCount      int            `json:"issue_count" yaml:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	ConfigFile       string `json:"config_file" yaml:"config_file"`
	Target           string `json:"target" yaml:"target"`
	Entities         int    `json:"entities" yaml:"entities"`
	Relations        int    `json:"relations" yaml:"relations"`
	Seeds            int    `json:"seeds" yaml:"seeds"`
	Migrations       int    `json:"migrations" yaml:"migrations"`
	MigrationVersion int64  `json:"migration_version" yaml:"migration_version"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id" yaml:"rule_id"`
	Name       string   `json:"name" yaml:"name"`
	Group      string   `json:"group" yaml:"group"`
	Status     string   `json:"status" yaml:"status"`
	IssueCount int      `json:"issue_count" yaml:"issue_count"`
	Details    []string `json:"details,omitempty" yaml:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := NewCommandContext(cmd)
	out := diagnose(ctx, cmdCtx, config.GetConfigFileUsed())

	w := cmd.OutOrStdout()
	switch strings.ToLower(cmdCtx.Format(opts.Format)) {
	case "json":
		return renderJSON(w, out)
	case "yaml":
		return renderYAML(w, out)
	case "md", "markdown":
		return renderDoctorMarkdown(w, out)
	default:
		return renderDoctorText(w, out)
	}
}

// checkList accumulates health checks in run order.
type checkList []HealthCheck

func (l *checkList) add(group, id, name, status string, details ...string) bool {
	issues := 0
	if status == statusWarn || status == statusError {
		issues = max(len(details), 1)
	}
	*l = append(*l, HealthCheck{RuleID: id, Name: name, Group: group, Status: status, IssueCount: issues, Details: details})
	return status != statusError && status != statusSkip
}

// diagnose runs every check against the loaded configuration.
func diagnose(ctx context.Context, cmdCtx *CommandContext, configFile string) *DoctorOutput {
	cfg := cmdCtx.Cfg
	var checks checkList
	summary := ProjectSummary{ConfigFile: configFile, Entities: len(cfg.Entities)}
	if cfg.Target != nil {
		summary.Target = cfg.Target.Type
	}

	if configFile == "" {
		checks.add("configuration", "CF01", "config-file", statusWarn, "no leapdata.yaml found; using built-in defaults")
	} else {
		checks.add("configuration", "CF01", "config-file", statusPass)
	}

	targetOK := true
	if err := config.ValidateTarget(cfg.Target); err != nil {
		targetOK = checks.add("configuration", "CF02", "target", statusError, err.Error())
	} else {
		checks.add("configuration", "CF02", "target", statusPass)
	}

	entitiesOK := true
	if err := cfg.ValidateEntities(); err != nil {
		entitiesOK = checks.add("configuration", "CF03", "entities", statusError, strings.SplitN(err.Error(), "\n", 2)[0])
	} else {
		checks.add("configuration", "CF03", "entities", statusPass)
	}
	for _, e := range cfg.Entities {
		summary.Relations += len(e.Relations)
	}

	if seeds, err := getSeedFiles(filepath.Join(cfg.ProjectRoot, "seeds")); err == nil {
		summary.Seeds = len(seeds)
	}
	migrations, latest := migrationFiles(cfg.MigrationsDir)
	summary.Migrations = len(migrations)

	var adp adapter.Adapter
	if targetOK {
		var err error
		adp, err = connect(ctx, cmdCtx)
		if err != nil {
			checks.add("connection", "CN01", "connect", statusError, err.Error())
		} else {
			defer func() { _ = adp.Close() }()
			checks.add("connection", "CN01", "connect", statusPass)
		}
	} else {
		checks.add("connection", "CN01", "connect", statusSkip)
	}

	if adp != nil && entitiesOK {
		checkEntities(ctx, &checks, adp, cfg.Entities)
	} else {
		checks.add("entities", "EN01", "tables", statusSkip)
		checks.add("entities", "EN02", "relations", statusSkip)
	}

	switch {
	case adp == nil:
		checks.add("migrations", "MG01", "migration-version", statusSkip)
	case len(migrations) == 0:
		checks.add("migrations", "MG01", "migration-version", statusPass, "no migrations in "+cfg.MigrationsDir)
	default:
		m, err := migrate.New(adp.DB(), cfg.Target.Type, os.DirFS(cfg.MigrationsDir), ".", cmdCtx.Logger)
		if err != nil {
			checks.add("migrations", "MG01", "migration-version", statusPass, err.Error())
			break
		}
		v, err := m.Version()
		switch {
		case err != nil:
			checks.add("migrations", "MG01", "migration-version", statusError, err.Error())
		case v < latest:
			summary.MigrationVersion = v
			checks.add("migrations", "MG01", "migration-version", statusWarn,
				fmt.Sprintf("database is at version %d, migrations go up to %d", v, latest))
		default:
			summary.MigrationVersion = v
			checks.add("migrations", "MG01", "migration-version", statusPass)
		}
	}

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}
	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, summary.Entities),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

// checkEntities verifies every entity table exists and every relation
// resolves against the introspected schema.
func checkEntities(ctx context.Context, checks *checkList, adp adapter.Adapter, defs []core.EntityConfig) {
	meta := make(map[string]*core.TableMetadata, len(defs))
	var missing []string
	for _, def := range defs {
		table := registry.TableName(def)
		m, err := adp.GetTableMetadata(ctx, table)
		if err != nil || m == nil || len(m.Columns) == 0 {
			missing = append(missing, fmt.Sprintf("%s: table %s not found", def.Name, table))
			continue
		}
		meta[table] = m
	}
	if len(missing) > 0 {
		checks.add("entities", "EN01", "tables", statusError, missing...)
		checks.add("entities", "EN02", "relations", statusSkip)
		return
	}
	checks.add("entities", "EN01", "tables", statusPass)

	reg, err := registry.Build(defs, meta)
	if err != nil {
		checks.add("entities", "EN02", "relations", statusError, err.Error())
		return
	}
	var broken []string
	for _, e := range reg.Entities() {
		for id := range e.Relations {
			if _, err := reg.Relation(e, id); err != nil {
				broken = append(broken, fmt.Sprintf("%s.%s: %v", e.Name, id, err))
			}
		}
	}
	if len(broken) > 0 {
		checks.add("entities", "EN02", "relations", statusError, broken...)
		return
	}
	checks.add("entities", "EN02", "relations", statusPass)
}

// migrationFiles lists the goose SQL files in dir and the highest version
// among them.
func migrationFiles(dir string) ([]string, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0
	}
	var files []string
	var latest int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
		prefix, _, _ := strings.Cut(entry.Name(), "_")
		if v, err := strconv.ParseInt(prefix, 10, 64); err == nil && v > latest {
			latest = v
		}
	}
	return files, latest
}

// calculateHealthScore computes a health score from 0-100.
// With more entities each individual issue has less impact. Errors count
// double.
func calculateHealthScore(checks []HealthCheck, entityCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 10.0
	if entityCount > 5 {
		basePenalty = 5.0
	}
	if entityCount > 20 {
		basePenalty = 2.0
	}

	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int(score)
}

// generateRecommendations creates actionable recommendations for failed checks.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}

		rec := getRecommendation(check.RuleID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(ruleID string) string {
	switch ruleID {
	case "CF01":
		return "Run 'leapdata init' to create leapdata.yaml"
	case "CF02":
		return "Set target.type to one of the registered adapters"
	case "CF03":
		return "Declare the entities to work with under entities: in leapdata.yaml"
	case "CN01":
		return "Check the target host, credentials and database path"
	case "EN01":
		return "Run 'leapdata migrate up' or fix the table names of the entities"
	case "EN02":
		return "Point relations at declared entities with reference attributes"
	case "MG01":
		return "Run 'leapdata migrate up' to apply pending migrations"
	default:
		return ""
	}
}

func statusLabel(status string) string {
	switch status {
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	case statusSkip:
		return "SKIP"
	default:
		return "PASS"
	}
}

func renderDoctorText(w io.Writer, out *DoctorOutput) error {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	p("\nleapdata Project Health Report\n")
	p("%s\n\n", strings.Repeat("=", 55))

	p("Project Summary\n")
	cfgFile := out.Summary.ConfigFile
	if cfgFile == "" {
		cfgFile = "(none)"
	}
	p("   Config: %s | Target: %s\n", cfgFile, out.Summary.Target)
	p("   Entities: %d | Relations: %d | Seeds: %d\n", out.Summary.Entities, out.Summary.Relations, out.Summary.Seeds)
	p("   Migrations: %d | Applied version: %d\n\n", out.Summary.Migrations, out.Summary.MigrationVersion)

	p("Health Checks\n\n")
	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			p("   %s\n", titleCaser.String(currentGroup))
			p("   %s\n", strings.Repeat("-", 40))
		}

		p("   [%s] %s: %s", statusLabel(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			p(" (%d issues)", check.IssueCount)
		}
		p("\n")

		for i, detail := range check.Details {
			if i >= 3 {
				p("       ... and %d more\n", len(check.Details)-3)
				break
			}
			p("       - %s\n", detail)
		}
	}
	p("\n%s\n", strings.Repeat("=", 55))
	p("   Health Score: %d/100\n\n", out.Score)

	if len(out.Recommendations) > 0 {
		p("Recommendations\n")
		for i, rec := range out.Recommendations {
			p("   %d. %s\n", i+1, rec)
		}
		p("\n")
	}

	return nil
}

func renderDoctorMarkdown(w io.Writer, out *DoctorOutput) error {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	p("# leapdata Project Health Report\n\n")

	p("## Project Summary\n\n")
	p("- **Config**: %s\n", out.Summary.ConfigFile)
	p("- **Target**: %s\n", out.Summary.Target)
	p("- **Entities**: %d\n", out.Summary.Entities)
	p("- **Relations**: %d\n", out.Summary.Relations)
	p("- **Seeds**: %d\n", out.Summary.Seeds)
	p("- **Migrations**: %d (applied version %d)\n\n", out.Summary.Migrations, out.Summary.MigrationVersion)

	p("## Health Checks\n\n")
	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			p("### %s\n\n", titleCaser.String(currentGroup))
		}

		p("- **[%s]** %s: %s", statusLabel(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			p(" (%d issues)", check.IssueCount)
		}
		p("\n")
		for _, detail := range check.Details {
			p("  - %s\n", detail)
		}
	}

	p("\n## Health Score\n\n**%d/100**\n\n", out.Score)

	if len(out.Recommendations) > 0 {
		p("## Recommendations\n\n")
		for i, rec := range out.Recommendations {
			p("%d. %s\n", i+1, rec)
		}
		p("\n")
	}

	return nil
}
