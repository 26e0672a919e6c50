package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapdata/pkg/core"
)

// parseAssignments turns name=value pairs into a field map. An empty value
// assigns nil.
func parseAssignments(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected name=value)", pair)
		}
		if value == "" {
			fields[name] = nil
			continue
		}
		fields[name] = value
	}
	return fields, nil
}

// parseParams turns arguments into statement parameters. name=value
// arguments become named values, anything else a positional value.
func parseParams(args []string) []core.Value {
	params := make([]core.Value, 0, len(args))
	for _, arg := range args {
		if name, value, ok := strings.Cut(arg, "="); ok && isIdentifier(name) {
			params = append(params, core.Named(name, value))
			continue
		}
		params = append(params, core.V(arg))
	}
	return params
}

// parseKeys turns identity arguments into positional values.
func parseKeys(args []string) []core.Value {
	keys := make([]core.Value, len(args))
	for i, arg := range args {
		keys[i] = core.V(arg)
	}
	return keys
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// sortValues orders named values by name so generated text is stable.
func sortValues(values []core.Value) {
	sort.SliceStable(values, func(i, j int) bool { return values[i].Name < values[j].Name })
}
