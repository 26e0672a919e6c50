package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"string", KindString},
		{"VARCHAR(255)", KindString},
		{"character varying", KindString},
		{"INTEGER", KindInt},
		{"bigint", KindInt},
		{"numeric(10,2)", KindFloat},
		{"double precision", KindFloat},
		{"boolean", KindBool},
		{"TIMESTAMP WITH TIME ZONE", KindTime},
		{"date", KindTime},
		{"bytea", KindBytes},
		{"ref", KindReference},
		{"jsonb", KindAny},
		{"", KindAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKind(tt.name))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "int", KindInt.String())
	assert.Equal(t, "reference", KindReference.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		kind Kind
		want any
	}{
		{"nil stays nil", nil, KindInt, nil},
		{"numeric string to int", "42", KindInt, int64(42)},
		{"int to int64", 7, KindInt, int64(7)},
		{"string to float", "2.5", KindFloat, 2.5},
		{"int to string", 12, KindString, "12"},
		{"bytes to string", []byte("abc"), KindString, "abc"},
		{"one to bool", 1, KindBool, true},
		{"string to bool", "false", KindBool, false},
		{"string to bytes", "xy", KindBytes, []byte("xy")},
		{"any passes through", struct{}{}, KindAny, struct{}{}},
		{"boxed value unwraps", Named("n", "3"), KindInt, int64(3)},
		{"date string", "2024-03-01", KindTime, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", "2024-03-01T10:30:00Z", KindTime, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"unix seconds", int64(0), KindTime, time.Unix(0, 0).UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, tt.kind)
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				gotTime, ok := got.(time.Time)
				require.True(t, ok)
				assert.True(t, want.Equal(gotTime), "got %v", gotTime)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		kind Kind
	}{
		{"word to int", "seven", KindInt},
		{"word to float", "pi", KindFloat},
		{"bad time", "yesterday", KindTime},
		{"bool to time", true, KindTime},
		{"int to bytes", 3, KindBytes},
		{"unknown kind", "x", Kind(99)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(tt.raw, tt.kind)
			assert.Error(t, err)
		})
	}
}

func TestValue(t *testing.T) {
	v := Named("status", "open")
	assert.Equal(t, "status", v.Identifier())
	assert.Equal(t, "open", v.RawValue())
	assert.Equal(t, "status=open", v.String())
	assert.Equal(t, "5", V(5).String())

	got, err := V("5").As(KindInt)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	assert.Equal(t, []Value{{Raw: 1}, {Raw: "a"}}, Values(1, "a"))
	assert.Empty(t, Values())
}
