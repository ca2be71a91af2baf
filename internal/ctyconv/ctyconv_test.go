package ctyconv

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type materialized map[string]any

func (m materialized) Materialize() map[string]any { return m }

func TestToCty(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want cty.Value
	}{
		{"nil", nil, cty.NullVal(cty.DynamicPseudoType)},
		{"string", "a", cty.StringVal("a")},
		{"bool", true, cty.True},
		{"int", 3, cty.NumberIntVal(3)},
		{"int8", int8(-2), cty.NumberIntVal(-2)},
		{"float", 0.5, cty.NumberFloatVal(0.5)},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), cty.StringVal("2024-01-02T03:04:05Z")},
		{"empty map", map[string]any{}, cty.EmptyObjectVal},
		{"empty list", []any{}, cty.EmptyTupleVal},
		{
			"nested",
			map[string]any{"a": []any{1, "x"}, "b": map[string]any{"c": false}},
			cty.ObjectVal(map[string]cty.Value{
				"a": cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.StringVal("x")}),
				"b": cty.ObjectVal(map[string]cty.Value{"c": cty.False}),
			}),
		},
		{
			"rows",
			[]map[string]any{{"id": 1}},
			cty.TupleVal([]cty.Value{cty.ObjectVal(map[string]cty.Value{"id": cty.NumberIntVal(1)})}),
		},
		{"materializer", materialized{"k": "v"}, cty.ObjectVal(map[string]cty.Value{"k": cty.StringVal("v")})},
		{"typed slice", []int{1, 2}, cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToCty(tc.in)
			require.NoError(t, err)
			assert.True(t, tc.want.RawEquals(got), "want %#v, got %#v", tc.want, got)
		})
	}
}

func TestFromCty(t *testing.T) {
	in := cty.ObjectVal(map[string]cty.Value{
		"name":  cty.StringVal("a"),
		"count": cty.NumberIntVal(2),
		"ratio": cty.NumberFloatVal(0.25),
		"ok":    cty.True,
		"tags":  cty.ListVal([]cty.Value{cty.StringVal("x"), cty.StringVal("y")}),
		"set":   cty.SetVal([]cty.Value{cty.StringVal("z")}),
		"none":  cty.NullVal(cty.String),
		"later": cty.UnknownVal(cty.String),
		"attrs": cty.MapVal(map[string]cty.Value{"k": cty.StringVal("v")}),
	})

	got, err := FromCty(in)
	require.NoError(t, err)

	want := map[string]any{
		"name":  "a",
		"count": 2,
		"ratio": 0.25,
		"ok":    true,
		"tags":  []any{"x", "y"},
		"set":   []any{"z"},
		"none":  nil,
		"later": nil,
		"attrs": map[string]any{"k": "v"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromCty() mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripKeepsWholeNumbersIntegral(t *testing.T) {
	cv, err := ToCty(map[string]any{"n": 10.0, "f": 1.5})
	require.NoError(t, err)
	got, err := FromCty(cv)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 10, "f": 1.5}, got)
}
