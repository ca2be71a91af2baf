package confgraph

// Scope is the tracking evaluation context handed to derive functions. Every
// key read through Get becomes a dependency of the value being resolved.
type Scope struct {
	node     *Node
	property string
	reads    []string
	seen     map[string]bool
	nodes    []*Node
}

func newScope(n *Node, property string) *Scope {
	return &Scope{node: n, property: property, seen: map[string]bool{}}
}

// Get resolves key on the node being evaluated and records it as a dependency.
func (s *Scope) Get(key string) any {
	if !s.seen[key] {
		s.seen[key] = true
		s.reads = append(s.reads, key)
	}
	return s.node.Resolve(key)
}

// Lookup resolves key without recording a dependency.
func (s *Scope) Lookup(key string) any {
	return s.node.Resolve(key)
}

// Path reads a chain of keys. The first key is recorded as a dependency;
// the rest walk through nested nodes and plain maps.
func (s *Scope) Path(keys ...string) any {
	if len(keys) == 0 {
		return nil
	}
	cur := s.Get(keys[0])
	for _, k := range keys[1:] {
		switch x := cur.(type) {
		case *Node:
			cur = x.Resolve(k)
		case map[string]any:
			cur = x[k]
		default:
			return nil
		}
	}
	return cur
}

// Node returns the node being evaluated.
func (s *Scope) Node() *Node {
	return s.node
}

// Property returns the name of the property being resolved.
func (s *Scope) Property() string {
	return s.property
}

// Parent returns the parent node, or nil for the root. Any change on the
// parent invalidates the value being resolved.
func (s *Scope) Parent() *Node {
	p := s.node.parent
	if p != nil {
		s.depend(p)
	}
	return p
}

// Root returns the chain's root. Any change on the root invalidates the value
// being resolved.
func (s *Scope) Root() *Node {
	r := s.node.root
	if r != s.node {
		s.depend(r)
	}
	return r
}

func (s *Scope) depend(n *Node) {
	for _, x := range s.nodes {
		if x == n {
			return
		}
	}
	s.nodes = append(s.nodes, n)
}
