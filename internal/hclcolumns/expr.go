package hclcolumns

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/cellgrid/internal/confgraph"
	"github.com/specialistvlad/cellgrid/internal/ctyconv"
)

func (l *Loader) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{Functions: l.functions}
}

// compile turns an attribute expression into a configuration entry. An
// expression without variables is evaluated now; any other expression is
// evaluated on resolution, with each root variable read from the scope.
func (l *Loader) compile(expr hcl.Expression, src []byte) (any, analysis, error) {
	a := analyze(expr)
	if unknown := a.unknownFunctions(func(name string) bool {
		_, ok := l.functions[name]
		return ok
	}); len(unknown) > 0 {
		return nil, a, fmt.Errorf("%s: call to unknown function %s", expr.Range(), strings.Join(unknown, ", "))
	}

	if len(a.roots) == 0 {
		val, diags := expr.Value(l.evalContext())
		if diags.HasErrors() {
			return nil, a, diags
		}
		v, err := ctyconv.FromCty(val)
		return v, a, err
	}

	roots := a.roots
	functions := l.functions
	text := strings.TrimSpace(string(expr.Range().SliceBytes(src)))
	return confgraph.Derived(func(s *confgraph.Scope) (any, error) {
		vars := make(map[string]cty.Value, len(roots))
		for _, name := range roots {
			cv, err := ctyconv.ToCty(s.Get(name))
			if err != nil {
				return nil, fmt.Errorf("variable %s: %w", name, err)
			}
			vars[name] = cv
		}
		val, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: functions})
		if diags.HasErrors() {
			return nil, diags
		}
		return ctyconv.FromCty(val)
	}).WithKey("hcl:" + text), a, nil
}
