package confgraph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
)

var (
	// ErrCircular is recorded when a property is read while it is being resolved.
	ErrCircular = errors.New("circular configuration reference")
	// ErrPanic is recorded when a derive function panics.
	ErrPanic = errors.New("derive function panicked")
)

// Diagnostic records a property that failed to resolve. The property resolved
// to nil and processing continued.
type Diagnostic struct {
	Property string
	Err      error
}

// watcher is an invalidation callback keyed by the properties it depends on.
// An empty key set matches every trigger.
type watcher struct {
	keys  []string
	fn    func()
	once  bool
	fired bool
}

// Node wraps a raw configuration object and resolves its properties lazily.
type Node struct {
	origin    map[string]any
	provider  map[string]any
	local     map[string]any
	cache     map[string]any
	resolving map[string]bool

	parent   *Node
	root     *Node
	property string

	watchers  []*watcher
	cacheable bool
	logger    *slog.Logger
	diags     []Diagnostic
}

// Option configures a root Node.
type Option func(*Node)

// WithLogger sets the logger used for resolution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithoutCache disables caching for the whole chain.
func WithoutCache() Option {
	return func(n *Node) {
		n.cacheable = false
	}
}

// WithLocal seeds the local override bag.
func WithLocal(local map[string]any) Option {
	return func(n *Node) {
		for k, v := range local {
			n.local[k] = v
		}
	}
}

// New creates a root node over origin. The provider is the contextual bag
// (row, index, field ...) shared by every node derived from this root.
func New(origin, provider map[string]any, opts ...Option) *Node {
	if origin == nil {
		origin = map[string]any{}
	}
	if provider == nil {
		provider = map[string]any{}
	}
	n := &Node{
		origin:    origin,
		provider:  provider,
		local:     map[string]any{},
		cache:     map[string]any{},
		resolving: map[string]bool{},
		cacheable: true,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	n.root = n
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Nest creates a child node over origin, derived from n under property.
func (n *Node) Nest(property string, origin map[string]any) *Node {
	if origin == nil {
		origin = map[string]any{}
	}
	return &Node{
		origin:    origin,
		local:     map[string]any{},
		cache:     map[string]any{},
		resolving: map[string]bool{},
		parent:    n,
		root:      n.root,
		property:  property,
		cacheable: n.cacheable,
		logger:    n.logger,
	}
}

// IsRoot reports whether n is the top of its chain.
func (n *Node) IsRoot() bool {
	return n.root == n
}

// Root returns the topmost node of the chain.
func (n *Node) Root() *Node {
	return n.root
}

// Parent returns the node n was derived from, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Property returns the property name n was derived under.
func (n *Node) Property() string {
	return n.property
}

// Origin returns the raw configuration object. Mutating it bypasses
// invalidation; use Assign instead.
func (n *Node) Origin() map[string]any {
	return n.origin
}

// Keys returns the origin keys in sorted order.
func (n *Node) Keys() []string {
	keys := make([]string, 0, len(n.origin))
	for k := range n.origin {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is known to the provider or the origin.
func (n *Node) Has(key string) bool {
	if _, ok := n.root.provider[key]; ok {
		return true
	}
	_, ok := n.origin[key]
	return ok
}

// SetLocal binds key in the local override bag. Non-empty local values win
// over everything else and are never cached.
func (n *Node) SetLocal(key string, value any) {
	n.local[key] = value
}

// ClearLocal empties the local override bag.
func (n *Node) ClearLocal() {
	n.local = map[string]any{}
}

// Diagnostics returns the resolution failures recorded anywhere in the chain.
func (n *Node) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(n.root.diags))
	copy(out, n.root.diags)
	return out
}

// Cached reports whether key currently holds a cached value.
func (n *Node) Cached(key string) bool {
	_, ok := n.cache[key]
	return ok
}

// Resolve returns the resolved value of key. It never fails: unknown keys and
// failing derive functions resolve to nil.
func (n *Node) Resolve(key string) any {
	if v, ok := n.local[key]; ok && !isEmpty(v) {
		return v
	}
	if n.cacheable {
		if v, ok := n.cache[key]; ok {
			return v
		}
	}

	var raw any
	fromProvider := false
	if _, ok := n.root.provider[key]; ok {
		if !n.IsRoot() {
			return n.root.Resolve(key)
		}
		raw = n.provider[key]
		fromProvider = true
	} else if v, ok := n.origin[key]; ok {
		raw = v
	} else {
		return nil
	}

	if n.resolving[key] {
		n.diagnose(key, ErrCircular)
		return nil
	}
	n.resolving[key] = true
	defer delete(n.resolving, key)

	scope := newScope(n, key)
	result, err := n.execute(valueOf(raw), scope)
	if err != nil {
		n.diagnose(key, err)
		result = nil
	}
	if !fromProvider {
		result = n.wrap(key, result)
	}

	evict := func() { n.evict(key) }
	if len(scope.reads) > 0 {
		n.watch(scope.reads, evict, true)
	}
	for _, dep := range scope.nodes {
		dep.watch(nil, evict, true)
	}

	if n.cacheable {
		n.cache[key] = result
	}
	return result
}

// Assign writes value under key. Provider-backed keys are written through the
// root's provider; anything else goes to the origin. Nothing happens when the
// value is unchanged.
func (n *Node) Assign(key string, value any) {
	if old, ok := n.root.provider[key]; ok {
		if reflect.DeepEqual(old, value) {
			return
		}
		n.root.provider[key] = value
		if !n.IsRoot() {
			n.root.trigger([]string{key})
		}
		n.trigger([]string{key})
		return
	}

	if old, ok := n.origin[key]; ok && reflect.DeepEqual(old, value) {
		return
	}
	n.origin[key] = value
	n.trigger([]string{key})
}

// Invalidate treats keys as changed without writing anything.
func (n *Node) Invalidate(keys ...string) {
	n.trigger(keys)
}

// Reset drops every cached value on n.
func (n *Node) Reset() {
	n.cache = map[string]any{}
}

// Watch registers fn to run whenever one of keys changes on n. With no keys,
// fn runs on every change. The returned function removes the watcher.
func (n *Node) Watch(fn func(), keys ...string) func() {
	w := n.watch(keys, fn, false)
	return func() {
		w.fired = true
		w.once = true
		n.prune()
		n.root.prune()
	}
}

func (n *Node) execute(v Value, s *Scope) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return v.eval(s)
}

// wrap turns nested configuration maps into child nodes so they resolve
// lazily as well.
func (n *Node) wrap(key string, v any) any {
	if m, ok := v.(map[string]any); ok {
		return n.Nest(key, m)
	}
	return v
}

func (n *Node) diagnose(key string, err error) {
	n.root.diags = append(n.root.diags, Diagnostic{Property: key, Err: err})
	n.logger.Debug("Config property failed to resolve.", "property", key, "parent_property", n.property, "error", err)
}

func (n *Node) watch(keys []string, fn func(), once bool) *watcher {
	w := &watcher{keys: keys, fn: fn, once: once}
	n.watchers = append(n.watchers, w)
	if !n.IsRoot() && n.anyProviderKey(keys) {
		n.root.watchers = append(n.root.watchers, w)
	}
	return w
}

func (n *Node) anyProviderKey(keys []string) bool {
	for _, k := range keys {
		if _, ok := n.root.provider[k]; ok {
			return true
		}
	}
	return false
}

// trigger invalidates keys on n and then climbs one level: the parent is
// triggered under the property n was derived from.
func (n *Node) trigger(keys []string) {
	if len(keys) == 0 {
		return
	}
	n.cascade(keys)
	if n.parent != nil {
		n.parent.trigger([]string{n.property})
	}
}

// evict drops key and everything on n that depended on it.
func (n *Node) evict(key string) {
	n.cascade([]string{key})
}

func (n *Node) cascade(keys []string) {
	for _, k := range keys {
		delete(n.cache, k)
	}
	for _, w := range n.matching(keys) {
		if w.fired {
			continue
		}
		if w.once {
			w.fired = true
		}
		w.fn()
	}
	n.prune()
}

func (n *Node) matching(keys []string) []*watcher {
	var out []*watcher
	for _, w := range n.watchers {
		if len(w.keys) == 0 {
			out = append(out, w)
			continue
		}
		if intersects(w.keys, keys) {
			out = append(out, w)
		}
	}
	return out
}

func (n *Node) prune() {
	kept := n.watchers[:0]
	for _, w := range n.watchers {
		if w.once && w.fired {
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(n.watchers); i++ {
		n.watchers[i] = nil
	}
	n.watchers = kept
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return rv.IsNil()
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return rv.IsZero()
}
