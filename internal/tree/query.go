package tree

// Visible returns the display order restricted to shown rows.
func (r Result) Visible() []int {
	out := make([]int, 0, len(r.Order))
	for _, i := range r.Order {
		if r.Nodes[i].IsShow {
			out = append(out, i)
		}
	}
	return out
}

// Roots returns root indices in encounter order.
func (r Result) Roots() []int {
	var out []int
	for i, n := range r.Nodes {
		if n.IsRoot {
			out = append(out, i)
		}
	}
	return out
}

// Find returns the index of the first row whose key equals key.
func (r Result) Find(key any) (int, bool) {
	for i, n := range r.Nodes {
		if sameKey(n.Key, key) {
			return i, true
		}
	}
	return -1, false
}

// HasDescendant reports whether node sits anywhere below parent.
func (r Result) HasDescendant(parent, node int) bool {
	if parent < 0 || node < 0 || parent >= len(r.Nodes) || node >= len(r.Nodes) {
		return false
	}
	for p := r.Nodes[node].Parent; p >= 0; p = r.Nodes[p].Parent {
		if p == parent {
			return true
		}
	}
	return false
}

// Walk visits rows in display order. Returning false from fn skips the
// row's subtree.
func (r Result) Walk(fn func(i int, n Node) bool) {
	var visit func(i int)
	visit = func(i int) {
		if !fn(i, r.Nodes[i]) {
			return
		}
		for _, c := range r.Nodes[i].Children {
			visit(c)
		}
	}
	for _, i := range r.Roots() {
		visit(i)
	}
}

// Fields returns the tree facts of row i under snake_case keys, as exposed to
// cell configuration.
func (r Result) Fields(i int) map[string]any {
	n := r.Nodes[i]
	return map[string]any{
		"parent_name":  n.ParentName,
		"is_root":      n.IsRoot,
		"is_show":      n.IsShow,
		"is_expand":    n.IsExpand,
		"can_expand":   n.CanExpand,
		"show_expand":  n.ShowExpand,
		"indent":       n.Indent,
		"children_num": n.ChildrenNum,
		"has_children": n.HasChildren,
		"has_parent":   n.HasParent,
	}
}
