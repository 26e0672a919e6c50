package query

import (
	"github.com/leapstack-labs/leapdata/pkg/core"
	"github.com/leapstack-labs/leapdata/pkg/dialect"
)

// Bind matches values to the declared parameters of q and coerces each to
// the parameter's kind.
//
// A named value binds the declared parameter of that name. An unnamed value
// at position i binds the i-th declared parameter; unnamed values past the
// end of the declared list are ignored. Every declared parameter must end
// up bound.
func Bind(q *Query, values []core.Value) (map[string]any, error) {
	args := make(map[string]any, len(q.Params))
	for i, v := range values {
		var p Param
		if v.Name != "" {
			declared, ok := q.Param(v.Name)
			if !ok {
				return nil, core.NewQueryError(q.Text, "parameter %q is not declared in query", v.Name)
			}
			p = declared
		} else {
			if i >= len(q.Params) {
				continue
			}
			p = q.Params[i]
		}
		coerced, err := v.As(p.Kind)
		if err != nil {
			return nil, &core.QueryError{Query: q.Text, Msg: "cannot bind parameter :" + p.Name, Cause: err}
		}
		args[p.Name] = coerced
	}
	for _, p := range q.Params {
		if _, ok := args[p.Name]; !ok {
			return nil, core.NewQueryError(q.Text, "parameter :%s is not bound", p.Name)
		}
	}
	return args, nil
}

// Render rewrites named placeholders into the dialect's positional style and
// returns the arguments in placeholder order.
func Render(q *Query, args map[string]any, d *dialect.Dialect) (string, []any) {
	if len(q.occurrences) == 0 {
		return q.Text, nil
	}
	var (
		out  = make([]byte, 0, len(q.Text))
		list = make([]any, 0, len(q.occurrences))
		last int
	)
	for n, occ := range q.occurrences {
		out = append(out, q.Text[last:occ.start]...)
		out = append(out, d.FormatPlaceholder(n+1)...)
		list = append(list, args[occ.name])
		last = occ.end
	}
	out = append(out, q.Text[last:]...)
	return string(out), list
}

// Prepare parses, binds and renders a statement for execution.
func Prepare(stmt core.Statement, d *dialect.Dialect) (string, []any, error) {
	q, err := Parse(stmt.Text, stmt.Entity)
	if err != nil {
		return "", nil, err
	}
	args, err := Bind(q, stmt.Params)
	if err != nil {
		return "", nil, err
	}
	text, list := Render(q, args, d)
	return text, list, nil
}
