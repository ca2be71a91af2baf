// Package ctyconv converts between plain Go values and cty values.
//
// Grid rows and configuration values are loosely typed (map[string]any,
// []any, numbers of any width), so the conversion is structural: maps become
// objects, slices become tuples and every number becomes a cty.Number.
package ctyconv

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Materializer is implemented by lazily resolved configuration nodes that can
// flatten themselves into a plain map.
type Materializer interface {
	Materialize() map[string]any
}

// ToCty converts a native Go value into a cty.Value. nil becomes a dynamic
// null.
func ToCty(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return x, nil
	case string:
		return cty.StringVal(x), nil
	case bool:
		return cty.BoolVal(x), nil
	case int:
		return cty.NumberIntVal(int64(x)), nil
	case int64:
		return cty.NumberIntVal(x), nil
	case int32:
		return cty.NumberIntVal(int64(x)), nil
	case uint:
		return cty.NumberUIntVal(uint64(x)), nil
	case uint64:
		return cty.NumberUIntVal(x), nil
	case float64:
		return cty.NumberFloatVal(x), nil
	case float32:
		return cty.NumberFloatVal(float64(x)), nil
	case time.Time:
		return cty.StringVal(x.Format(time.RFC3339)), nil
	case Materializer:
		return ToCty(x.Materialize())
	case map[string]any:
		if len(x) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(x))
		for k, e := range x {
			cv, err := ToCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in key %q: %w", k, err)
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		return tuple(len(x), func(i int) any { return x[i] })
	case []map[string]any:
		return tuple(len(x), func(i int) any { return x[i] })
	case []string:
		return tuple(len(x), func(i int) any { return x[i] })
	case fmt.Stringer:
		return cty.StringVal(x.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16:
		return cty.NumberIntVal(rv.Int()), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return cty.NumberUIntVal(rv.Uint()), nil
	case reflect.Slice, reflect.Array:
		return tuple(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Pointer:
		if rv.IsNil() {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return ToCty(rv.Elem().Interface())
	}

	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type for %T: %w", v, err)
	}
	return gocty.ToCtyValue(v, ty)
}

func tuple(n int, at func(i int) any) (cty.Value, error) {
	if n == 0 {
		return cty.EmptyTupleVal, nil
	}
	elems := make([]cty.Value, n)
	for i := range elems {
		cv, err := ToCty(at(i))
		if err != nil {
			return cty.NilVal, fmt.Errorf("in element %d: %w", i, err)
		}
		elems[i] = cv
	}
	return cty.TupleVal(elems), nil
}

// FromCty converts a cty.Value into plain Go values: string, bool, int or
// float64, []any and map[string]any. Null and unknown values become nil.
// Whole numbers that fit an int become int.
func FromCty(v cty.Value) (any, error) {
	v, _ = v.Unmark()
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		return number(v.AsBigFloat()), nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, ev := it.Element()
			native, err := FromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			key, ev := it.Element()
			native, err := FromCty(ev)
			if err != nil {
				return nil, fmt.Errorf("in key %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	case ty == cty.DynamicPseudoType:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
}

func number(f *big.Float) any {
	if f.IsInt() {
		if i, acc := f.Int64(); acc == big.Exact && int64(int(i)) == i {
			return int(i)
		}
	}
	out, _ := f.Float64()
	return out
}
