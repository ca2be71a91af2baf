// Package tree projects a flat row list into a parent/child hierarchy.
//
// Rows live in an arena; parent and child links are indices into it, so the
// projection holds no pointer cycles and is rebuilt from scratch whenever the
// rows change.
package tree

import (
	"slices"
	"strconv"

	"github.com/specialistvlad/cellgrid/internal/confgraph"
)

// Options names the row fields the deriver reads.
type Options struct {
	KeyField       string
	ParentField    string
	ExpandField    string
	CanExpandField string
	// CollapseDuplicates keeps only the last row of each key, preserving the
	// relative order of the survivors. Used for graph-shaped inputs.
	CollapseDuplicates bool
}

// DefaultOptions returns the stock field names.
func DefaultOptions() Options {
	return Options{
		KeyField:       "id",
		ParentField:    "parent_name",
		ExpandField:    "is_expand",
		CanExpandField: "can_expand",
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.KeyField == "" {
		o.KeyField = def.KeyField
	}
	if o.ParentField == "" {
		o.ParentField = def.ParentField
	}
	if o.ExpandField == "" {
		o.ExpandField = def.ExpandField
	}
	if o.CanExpandField == "" {
		o.CanExpandField = def.CanExpandField
	}
	return o
}

// Node is the tree facts of one row. Parent, RootParent and Children index
// into Result.Nodes; -1 means none.
type Node struct {
	Source      int
	Key         any
	ParentName  any
	Parent      int
	RootParent  int
	Children    []int
	ChildrenNum int
	Indent      int
	IsRoot      bool
	IsShow      bool
	IsExpand    bool
	CanExpand   bool
	ShowExpand  bool
	HasChildren bool
	HasParent   bool
}

// Result is a derived tree. Rows and Nodes share indexing; Order lists node
// indices in display (pre-order) order.
type Result struct {
	Rows  []map[string]any
	Nodes []Node
	Order []int
}

// Derive builds the tree projection of rows. Unknown parents, parent chains
// that loop back on themselves and repeated children of one parent demote the
// row to a root; none of them is an error.
func Derive(rows []map[string]any, opts Options) Result {
	opts = opts.normalize()
	if opts.CollapseDuplicates {
		rows = collapse(rows, opts.KeyField)
	}

	res := Result{Rows: rows, Nodes: make([]Node, len(rows))}
	index := make(map[string][]int, len(rows))
	for i, row := range rows {
		key := row[opts.KeyField]
		res.Nodes[i] = Node{
			Source:     i,
			Key:        key,
			ParentName: row[opts.ParentField],
			Parent:     -1,
			RootParent: -1,
			IsExpand:   confgraph.AsBool(row[opts.ExpandField]),
			CanExpand:  confgraph.AsBool(row[opts.CanExpandField]),
		}
		if k, ok := KeyString(key); ok {
			index[k] = append(index[k], i)
		}
	}

	for i := range res.Nodes {
		n := &res.Nodes[i]
		pk, ok := KeyString(n.ParentName)
		self, _ := KeyString(n.Key)
		if !ok || pk == self {
			n.IsRoot = true
			continue
		}
		parent := -1
		for _, j := range index[pk] {
			if k, _ := KeyString(res.Nodes[j].Key); j != i && k != self {
				parent = j
				break
			}
		}
		if parent < 0 {
			n.IsRoot = true
			continue
		}
		p := &res.Nodes[parent]
		if slices.ContainsFunc(p.Children, func(c int) bool { return sameKey(res.Nodes[c].Key, n.Key) }) {
			n.IsRoot = true
			continue
		}
		p.Children = append(p.Children, i)
		n.Parent = parent
	}

	res.breakCycles()

	for i := range res.Nodes {
		n := &res.Nodes[i]
		n.ChildrenNum = len(n.Children)
		n.HasChildren = n.ChildrenNum > 0
		n.HasParent = n.Parent >= 0
		for p := n.Parent; p >= 0; p = res.Nodes[p].Parent {
			n.Indent++
			if res.Nodes[p].Parent < 0 {
				n.RootParent = p
			}
		}
	}

	for i := range res.Nodes {
		if res.Nodes[i].IsRoot {
			res.preorder(i, &res.Order)
		}
	}

	for _, i := range res.Order {
		n := &res.Nodes[i]
		if n.IsRoot {
			n.IsShow = true
		} else {
			p := res.Nodes[n.Parent]
			n.IsShow = p.IsShow && p.IsExpand
		}
		n.ShowExpand = n.HasChildren || n.CanExpand
	}
	return res
}

// breakCycles demotes to root the first row found on each parent loop.
func (r *Result) breakCycles() {
	state := make([]uint8, len(r.Nodes)) // 0 unseen, 1 on stack, 2 done
	for i := range r.Nodes {
		var path []int
		j := i
		for j >= 0 && state[j] == 0 {
			state[j] = 1
			path = append(path, j)
			j = r.Nodes[j].Parent
		}
		if j >= 0 && state[j] == 1 {
			r.detach(j)
		}
		for _, k := range path {
			state[k] = 2
		}
	}
}

func (r *Result) detach(i int) {
	n := &r.Nodes[i]
	p := &r.Nodes[n.Parent]
	p.Children = slices.DeleteFunc(p.Children, func(c int) bool { return c == i })
	n.Parent = -1
	n.IsRoot = true
}

func (r *Result) preorder(i int, out *[]int) {
	*out = append(*out, i)
	for _, c := range r.Nodes[i].Children {
		r.preorder(c, out)
	}
}

// collapse keeps the last row of every key in their input order. Rows
// without a key are all kept.
func collapse(rows []map[string]any, keyField string) []map[string]any {
	seen := make(map[string]bool, len(rows))
	kept := make([]map[string]any, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		k, ok := KeyString(rows[i][keyField])
		if ok {
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		kept = append(kept, rows[i])
	}
	slices.Reverse(kept)
	return kept
}

// KeyString renders a row key for comparison. Numbers compare by value and
// never equal strings. ok is false for missing and empty keys.
func KeyString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		if x == "" {
			return "", false
		}
		return "s:" + x, true
	case bool:
		return "b:" + strconv.FormatBool(x), true
	}
	if f, ok := confgraph.AsFloat(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return "", false
}

func sameKey(a, b any) bool {
	ka, okA := KeyString(a)
	kb, okB := KeyString(b)
	return okA && okB && ka == kb
}
