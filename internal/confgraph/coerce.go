package confgraph

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Get resolves key on n and asserts it to T. The zero value is returned when
// the key is absent or holds another type.
func Get[T any](n *Node, key string) T {
	v, _ := n.Resolve(key).(T)
	return v
}

// String resolves key as a string.
func (n *Node) String(key string) string {
	return AsString(n.Resolve(key))
}

// Bool resolves key with loose truthiness.
func (n *Node) Bool(key string) bool {
	return AsBool(n.Resolve(key))
}

// Float resolves key as a number. ok is false when it is not numeric.
func (n *Node) Float(key string) (float64, bool) {
	return AsFloat(n.Resolve(key))
}

// Int resolves key as an integer, truncating fractions.
func (n *Node) Int(key string) (int, bool) {
	f, ok := n.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Child resolves key and returns it as a node. Plain maps are nested under n.
func (n *Node) Child(key string) *Node {
	switch x := n.Resolve(key).(type) {
	case *Node:
		return x
	case map[string]any:
		return n.Nest(key, x)
	}
	return nil
}

// List resolves key as a slice.
func (n *Node) List(key string) []any {
	return AsList(n.Resolve(key))
}

// Materialize resolves every origin key, flattening nested nodes into plain
// maps. Provider values are not included.
func (n *Node) Materialize() map[string]any {
	out := make(map[string]any, len(n.origin))
	for _, k := range n.Keys() {
		out[k] = materialize(n.Resolve(k))
	}
	return out
}

func materialize(v any) any {
	switch x := v.(type) {
	case *Node:
		return x.Materialize()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = materialize(e)
		}
		return out
	}
	return v
}

// AsString renders v as text. nil becomes the empty string.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// AsBool applies loose truthiness: nil, false, zero, NaN and "" are false;
// everything else is true.
func AsBool(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := AsFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return !isEmpty(v) || reflect.ValueOf(v).Kind() == reflect.Struct
}

// AsFloat converts numeric values and numeric strings.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// AsList converts v to a slice of any. Maps yield their values ordered by key.
func AsList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = x[k]
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}
