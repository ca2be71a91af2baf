package celledit

import (
	"fmt"
	"sort"
	"strings"
)

// MaxMessageDepth caps how deep Message descends into nested error payloads.
const MaxMessageDepth = 10

// Message extracts human readable text from a failure payload: errors (joined
// errors are split), strings, maps and slices of those. Parts are joined with
// "; ".
func Message(v any) string {
	return strings.Join(messages(v, MaxMessageDepth), "; ")
}

func messages(v any, depth int) []string {
	if depth <= 0 || v == nil {
		return nil
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case error:
		if j, ok := x.(interface{ Unwrap() []error }); ok {
			var out []string
			for _, e := range j.Unwrap() {
				out = append(out, messages(e, depth-1)...)
			}
			if len(out) > 0 {
				return out
			}
		}
		return messages(x.Error(), depth)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			out = append(out, messages(x[k], depth-1)...)
		}
		return out
	case []any:
		var out []string
		for _, e := range x {
			out = append(out, messages(e, depth-1)...)
		}
		return out
	case []string:
		var out []string
		for _, e := range x {
			out = append(out, messages(e, depth-1)...)
		}
		return out
	}
	return messages(fmt.Sprint(v), depth)
}
