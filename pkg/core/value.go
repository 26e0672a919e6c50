package core

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Kind is the native type of an entity attribute.
type Kind int

// Attribute kinds.
const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
	KindReference
)

var kindNames = map[Kind]string{
	KindAny:       "any",
	KindString:    "string",
	KindInt:       "int",
	KindFloat:     "float",
	KindBool:      "bool",
	KindTime:      "time",
	KindBytes:     "bytes",
	KindReference: "reference",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a declared type name (or a database column type) to a Kind.
// Unknown names map to KindAny.
func ParseKind(name string) Kind {
	n := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(n, '('); i >= 0 {
		n = n[:i]
	}
	switch n {
	case "string", "text", "varchar", "char", "character varying", "character", "uuid", "clob":
		return KindString
	case "int", "integer", "int2", "int4", "int8", "bigint", "smallint", "tinyint", "hugeint", "serial", "bigserial", "long":
		return KindInt
	case "float", "double", "real", "numeric", "decimal", "double precision", "float4", "float8":
		return KindFloat
	case "bool", "boolean":
		return KindBool
	case "time", "timestamp", "timestamptz", "date", "datetime",
		"timestamp with time zone", "timestamp without time zone":
		return KindTime
	case "bytes", "blob", "bytea", "binary", "varbinary":
		return KindBytes
	case "reference", "ref":
		return KindReference
	}
	return KindAny
}

// Value is a boxed dynamic value with an optional binding name.
// It is used for query parameters, field values and returned scalars.
type Value struct {
	Name string
	Raw  any
}

// V boxes an unnamed value.
func V(raw any) Value {
	return Value{Raw: raw}
}

// Named boxes a value bound by name.
func Named(name string, raw any) Value {
	return Value{Name: name, Raw: raw}
}

// Values boxes a list of unnamed values.
func Values(raws ...any) []Value {
	out := make([]Value, len(raws))
	for i, r := range raws {
		out[i] = V(r)
	}
	return out
}

// Identifier returns the binding name, empty when the value is positional.
func (v Value) Identifier() string { return v.Name }

// RawValue returns the unboxed value.
func (v Value) RawValue() any { return v.Raw }

// As coerces the value to the given kind. Conversion is weak: numeric
// strings become numbers, 0/1 become booleans, RFC3339 strings become times.
func (v Value) As(k Kind) (any, error) {
	return Coerce(v.Raw, k)
}

func (v Value) String() string {
	if v.Name != "" {
		return fmt.Sprintf("%s=%v", v.Name, v.Raw)
	}
	return fmt.Sprintf("%v", v.Raw)
}

// Coerce converts raw to the Go representation of kind k.
func Coerce(raw any, k Kind) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if v, ok := raw.(Value); ok {
		return Coerce(v.Raw, k)
	}
	switch k {
	case KindAny, KindReference:
		return raw, nil
	case KindString:
		if b, ok := raw.([]byte); ok {
			return string(b), nil
		}
		var s string
		return s, weakDecode(raw, &s)
	case KindInt:
		var i int64
		return i, weakDecode(raw, &i)
	case KindFloat:
		var f float64
		return f, weakDecode(raw, &f)
	case KindBool:
		var b bool
		return b, weakDecode(raw, &b)
	case KindTime:
		return coerceTime(raw)
	case KindBytes:
		switch b := raw.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("cannot convert %T to bytes", raw)
	}
	return nil, fmt.Errorf("unsupported kind %s", k)
}

func weakDecode(raw any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("cannot convert %v (%T) to %s: %w", raw, raw, reflect.TypeOf(out).Elem(), err)
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTime(raw any) (any, error) {
	switch t := raw.(type) {
	case time.Time:
		return t, nil
	case []byte:
		return coerceTime(string(t))
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case string:
		for _, layout := range timeLayouts {
			var out time.Time
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				DecodeHook: mapstructure.StringToTimeHookFunc(layout),
				Result:     &out,
			})
			if err != nil {
				return nil, err
			}
			if err := dec.Decode(t); err == nil {
				return out, nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as time", t)
	}
	return nil, fmt.Errorf("cannot convert %T to time", raw)
}
