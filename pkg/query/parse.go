// Package query scans, binds and renders statement text with named
// `:param` placeholders, and builds the identity and relation statements
// used by the data source.
package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/leapdata/pkg/core"
)

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// Param is a declared named parameter. Kind is inferred from the
// comparison it appears in, KindAny when unknown.
type Param struct {
	Name string
	Kind core.Kind
}

type occurrence struct {
	start, end int
	name       string
}

// Query is parsed statement text.
type Query struct {
	Text   string
	Params []Param

	occurrences []occurrence
}

// Param returns the declared parameter with the given name.
func (q *Query) Param(name string) (Param, bool) {
	for _, p := range q.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Parse scans text for named parameters. Parameters are declared in order
// of first appearance; quoted text, comments and `::` casts are skipped.
// entity, when non-nil, is used to infer parameter kinds.
func Parse(text string, entity *core.Entity) (*Query, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.NewQueryError(text, "empty query text")
	}

	q := &Query{Text: text}
	seen := make(map[string]int)
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := skipQuoted(text, i, c)
			if end < 0 {
				return nil, core.NewQueryError(text, "unterminated %c literal at offset %d", c, i)
			}
			i = end
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
				i += nl + 1
			} else {
				i = len(text)
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return nil, core.NewQueryError(text, "unterminated comment at offset %d", i)
			}
			i += end + 4
		case c == ':' && i+1 < len(text) && text[i+1] == ':':
			i += 2
		case c == ':' && i+1 < len(text) && isIdentStart(firstRune(text[i+1:])):
			j := i + 1
			for j < len(text) {
				r, size := utf8.DecodeRuneInString(text[j:])
				if !isIdentPart(r) {
					break
				}
				j += size
			}
			name := text[i+1 : j]
			q.occurrences = append(q.occurrences, occurrence{start: i, end: j, name: name})
			kind := inferKind(text[:i], entity)
			if idx, ok := seen[name]; ok {
				if q.Params[idx].Kind == core.KindAny {
					q.Params[idx].Kind = kind
				}
			} else {
				seen[name] = len(q.Params)
				q.Params = append(q.Params, Param{Name: name, Kind: kind})
			}
			i = j
		default:
			i++
		}
	}
	return q, nil
}

// skipQuoted returns the offset just past the closing quote, or -1.
// A doubled quote inside the literal is an escape.
func skipQuoted(text string, start int, quote byte) int {
	i := start + 1
	for i < len(text) {
		if text[i] == quote {
			if i+1 < len(text) && text[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return -1
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

var comparisonOps = []string{"<>", "!=", "<=", ">=", "=", "<", ">"}

// inferKind looks at the text before a placeholder for `<column> <op>` and
// maps the column to an attribute kind of entity.
func inferKind(before string, entity *core.Entity) core.Kind {
	if entity == nil {
		return core.KindAny
	}
	s := strings.TrimRightFunc(before, unicode.IsSpace)
	matched := false
	for _, op := range comparisonOps {
		if strings.HasSuffix(s, op) {
			s = strings.TrimRightFunc(s[:len(s)-len(op)], unicode.IsSpace)
			matched = true
			break
		}
	}
	if !matched {
		return core.KindAny
	}
	j := len(s)
	for j > 0 && (isIdentPart(rune(s[j-1])) || s[j-1] == '.') {
		j--
	}
	path := s[j:]
	if dot := strings.LastIndexByte(path, '.'); dot >= 0 {
		path = path[dot+1:]
	}
	if path == "" {
		return core.KindAny
	}
	return ColumnKind(entity, path)
}

// ColumnKind returns the kind stored in column (or attribute name) of entity.
// Foreign key columns take the kind of the referenced identity attribute.
func ColumnKind(entity *core.Entity, column string) core.Kind {
	if a, ok := entity.AttributeByColumn(column); ok {
		return a.Kind
	}
	if a, ok := entity.Attribute(column); ok && !a.IsReference() {
		return a.Kind
	}
	key := core.FoldName(column)
	for _, a := range entity.Attributes {
		if !a.IsReference() || a.Target() == nil {
			continue
		}
		ids := a.Target().Identity()
		for i, col := range a.ForeignColumns() {
			if core.FoldName(col) == key && i < len(ids) {
				return ids[i].Kind
			}
		}
	}
	return core.KindAny
}
