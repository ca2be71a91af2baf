// Package confgraph resolves declarative grid configuration lazily.
//
// A configuration object is a map whose values are either constants or
// functions of an evaluation Scope. Wrapping it in a Node turns every read
// into an explicit Resolve call that:
//
//   - consults a transient local override bag,
//   - serves a cached value if one exists,
//   - routes provider-backed keys (row, index, field ...) through the root node,
//   - evaluates the value with a tracking Scope that records every key read,
//   - wraps nested configuration maps into child nodes, and
//   - registers a one-shot watcher that evicts the cached value when any of the
//     recorded keys change.
//
// Writes go through Assign. Invalidation happens synchronously inside Assign,
// so any Resolve that starts after Assign returns observes the new value.
// Invalidation climbs exactly one level per node: a changed child triggers its
// parent under the property name the child was derived from.
//
// # Thread-Safety
//
// A Node chain is not safe for concurrent use. The grid builds one chain per
// cell derivation and confines it to the goroutine doing that work.
package confgraph
