package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/spf13/cobra"
)

// EntitySummary is one row of the entity listing.
type EntitySummary struct {
	Name       string `json:"name" yaml:"name"`
	Table      string `json:"table" yaml:"table"`
	Identity   string `json:"identity" yaml:"identity"`
	Attributes int    `json:"attributes" yaml:"attributes"`
	Relations  int    `json:"relations" yaml:"relations"`
}

// AttributeInfo describes one attribute of an entity.
type AttributeInfo struct {
	Name      string `json:"name" yaml:"name"`
	Column    string `json:"column" yaml:"column"`
	Kind      string `json:"kind" yaml:"kind"`
	Identity  bool   `json:"identity" yaml:"identity"`
	Generated bool   `json:"generated" yaml:"generated"`
	Ref       string `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// RelationInfo describes one declared relation.
type RelationInfo struct {
	ID          string `json:"id" yaml:"id"`
	Target      string `json:"target" yaml:"target"`
	Kind        string `json:"kind" yaml:"kind"`
	Association string `json:"association,omitempty" yaml:"association,omitempty"`
	Via         string `json:"via" yaml:"via"`
}

// EntityDetail is the full description of one entity.
type EntityDetail struct {
	Name       string          `json:"name" yaml:"name"`
	Table      string          `json:"table" yaml:"table"`
	Attributes []AttributeInfo `json:"attributes" yaml:"attributes"`
	Relations  []RelationInfo  `json:"relations" yaml:"relations"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema [entity]",
		Short: "Show the resolved entity schema",
		Long: `Show the entities as resolved against the target database.

Without an argument every entity is listed. With an entity name its
attributes and relations are shown. Attributes that are not declared in
leapdata.yaml are introspected from the table.`,
		Example: `  leapdata schema
  leapdata schema Order --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(_ context.Context, cmdCtx *CommandContext, ws *Workspace) error {
				format = cmdCtx.Format(format)
				if len(args) == 0 {
					return renderEntityList(cmd.OutOrStdout(), ws, format)
				}
				e, err := ws.Registry.Entity(args[0])
				if err != nil {
					return err
				}
				detail, err := describeEntity(ws, e)
				if err != nil {
					return err
				}
				return renderEntityDetail(cmd.OutOrStdout(), detail, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, yaml, csv, md")

	return cmd
}

func renderEntityList(w io.Writer, ws *Workspace, format string) error {
	entities := ws.Registry.Entities()
	list := make([]EntitySummary, len(entities))
	for i, e := range entities {
		ids := make([]string, 0, 1)
		for _, id := range e.Identity() {
			ids = append(ids, id.Name)
		}
		list[i] = EntitySummary{
			Name:       e.Name,
			Table:      e.Table,
			Identity:   strings.Join(ids, ", "),
			Attributes: len(e.Attributes),
			Relations:  len(e.Relations),
		}
	}

	switch strings.ToLower(format) {
	case "json":
		return renderJSON(w, list)
	case "yaml":
		return renderYAML(w, list)
	}

	rows := make([]map[string]any, len(list))
	for i, s := range list {
		rows[i] = map[string]any{
			"entity": s.Name, "table": s.Table, "identity": s.Identity,
			"attributes": s.Attributes, "relations": s.Relations,
		}
	}
	return renderResults(w, []string{"entity", "table", "identity", "attributes", "relations"}, rows, format)
}

func describeEntity(ws *Workspace, e *core.Entity) (EntityDetail, error) {
	detail := EntityDetail{
		Name:       e.Name,
		Table:      e.Table,
		Attributes: make([]AttributeInfo, len(e.Attributes)),
		Relations:  []RelationInfo{},
	}
	for i, attr := range e.Attributes {
		detail.Attributes[i] = AttributeInfo{
			Name:      attr.Name,
			Column:    strings.Join(attr.ForeignColumns(), ", "),
			Kind:      attr.Kind.String(),
			Identity:  attr.Identity,
			Generated: attr.Generated,
			Ref:       attr.Ref,
		}
	}

	ids := make([]string, 0, len(e.Relations))
	for id := range e.Relations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rel, err := ws.Registry.Relation(e, id)
		if err != nil {
			return detail, err
		}
		info := RelationInfo{ID: rel.ID, Target: rel.Target.Name, Kind: "direct"}
		if rel.IsAssociative() {
			info.Kind = "associative"
			info.Association = rel.Association.Name
			info.Via = fmt.Sprintf("%s.%s, %s.%s", rel.Association.Name, rel.OwnerAttr.Name, rel.Association.Name, rel.TargetAttr.Name)
		} else {
			info.Via = fmt.Sprintf("%s.%s", rel.Target.Name, rel.OwnerAttr.Name)
		}
		detail.Relations = append(detail.Relations, info)
	}
	return detail, nil
}

func renderEntityDetail(w io.Writer, d EntityDetail, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return renderJSON(w, d)
	case "yaml":
		return renderYAML(w, d)
	}

	_, _ = fmt.Fprintf(w, "%s (table %s)\n\n", d.Name, d.Table)
	attrs := make([]map[string]any, len(d.Attributes))
	for i, a := range d.Attributes {
		attrs[i] = map[string]any{
			"attribute": a.Name, "column": a.Column, "kind": a.Kind,
			"identity": a.Identity, "generated": a.Generated, "ref": a.Ref,
		}
	}
	if err := renderResults(w, []string{"attribute", "column", "kind", "identity", "generated", "ref"}, attrs, format); err != nil {
		return err
	}
	if len(d.Relations) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(w)
	rels := make([]map[string]any, len(d.Relations))
	for i, r := range d.Relations {
		rels[i] = map[string]any{"relation": r.ID, "target": r.Target, "kind": r.Kind, "via": r.Via}
	}
	return renderResults(w, []string{"relation", "target", "kind", "via"}, rels, format)
}
