// Package remote wraps asynchronous lookups with execution de-duplication and
// stale-result suppression. It knows nothing about transport: any function of
// (ctx, args) can be wrapped.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/specialistvlad/cellgrid/internal/memo"
	"github.com/specialistvlad/cellgrid/internal/metrics"
)

// ErrSuperseded is returned when a newer call with the same signature was
// issued before this one completed. It is not a failure and callers should
// drop the result silently.
var ErrSuperseded = errors.New("superseded by a newer call")

// IsSuperseded reports whether err carries ErrSuperseded.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

// Func is a remote lookup.
type Func[A, R any] func(ctx context.Context, args A) (R, error)

// Coordinator owns the pending-call and token registries of one grid.
type Coordinator struct {
	flight singleflight.Group

	mu       sync.Mutex
	tokens   map[string]string
	inFlight int
	onActive []func()
	onIdle   []func()

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics reports call outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// OnActive registers fn to run when the number of executing lookups goes from
// zero to one.
func OnActive(fn func()) Option {
	return func(c *Coordinator) {
		c.onActive = append(c.onActive, fn)
	}
}

// OnIdle registers fn to run when the last executing lookup finishes.
func OnIdle(fn func()) Option {
	return func(c *Coordinator) {
		c.onIdle = append(c.onIdle, fn)
	}
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		tokens: map[string]string{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InFlight returns the number of executing lookups.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Close forgets every identity token. Calls still running when Close returns
// complete as superseded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.tokens = map[string]string{}
	c.mu.Unlock()
}

func (c *Coordinator) mint(sig string) string {
	token := uuid.NewString()
	c.mu.Lock()
	c.tokens[sig] = token
	c.mu.Unlock()
	return token
}

// settle reports whether token is still the newest for sig and, if so,
// retires it.
func (c *Coordinator) settle(sig, token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens[sig] != token {
		return false
	}
	delete(c.tokens, sig)
	return true
}

func (c *Coordinator) begin() {
	c.mu.Lock()
	c.inFlight++
	n := c.inFlight
	hooks := c.onActive
	c.mu.Unlock()

	c.metrics.InFlight(n)
	if n == 1 {
		for _, fn := range hooks {
			fn()
		}
	}
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.inFlight--
	n := c.inFlight
	hooks := c.onIdle
	c.mu.Unlock()

	c.metrics.InFlight(n)
	if n == 0 {
		for _, fn := range hooks {
			fn()
		}
	}
}

// volatileKeys match argument keys that do not change what a lookup returns.
var volatileKeys = regexp.MustCompile(`(?i)refresh|_cacheid`)

// Normalize drops cache-busting keys from map arguments. Other values are
// returned unchanged.
func Normalize(args any) any {
	switch m := args.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			if !volatileKeys.MatchString(k) {
				out[k] = v
			}
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, v := range m {
			if !volatileKeys.MatchString(k) {
				out[k] = v
			}
		}
		return out
	}
	return args
}

// Signature identifies a call by method and normalized arguments.
func Signature(method string, args any) string {
	return method + ":" + strconv.FormatUint(memo.Hash(Normalize(args), memo.DefaultDepth), 16)
}

// Dedupe makes concurrent calls with the same signature share one execution.
// Every waiter receives the same result. A waiter whose ctx ends stops
// waiting without aborting the shared execution.
func Dedupe[A, R any](c *Coordinator, method string, fn Func[A, R]) Func[A, R] {
	return func(ctx context.Context, args A) (R, error) {
		key := Signature(method, args)
		ch := c.flight.DoChan(key, func() (v any, err error) {
			c.begin()
			defer c.end()
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("remote %s panicked: %v", method, r)
				}
			}()
			c.metrics.Remote("executed")
			return fn(context.WithoutCancel(ctx), args)
		})

		var zero R
		select {
		case res := <-ch:
			if res.Shared {
				c.metrics.Remote("shared")
			}
			if res.Err != nil {
				c.metrics.Remote("failed")
				return zero, res.Err
			}
			r, _ := res.Val.(R)
			return r, nil
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// IdentityOption shapes the signature used by WithIdentity.
type IdentityOption func(*identity)

type identity struct {
	scope  string
	byArgs bool
}

// WithScope narrows the signature to scope, typically the identity of the
// cell issuing the call.
func WithScope(scope string) IdentityOption {
	return func(i *identity) {
		i.scope = scope
	}
}

// WithArgs makes the signature depend on the normalized arguments, so calls
// with different arguments never supersede each other.
func WithArgs() IdentityOption {
	return func(i *identity) {
		i.byArgs = true
	}
}

// WithIdentity makes only the most recently issued call of a signature able to
// succeed. By default the signature is the method name alone, so any newer
// call supersedes every older one still in flight.
func WithIdentity[A, R any](c *Coordinator, method string, fn Func[A, R], opts ...IdentityOption) Func[A, R] {
	var id identity
	for _, opt := range opts {
		opt(&id)
	}
	return func(ctx context.Context, args A) (R, error) {
		sig := method + "|" + id.scope
		if id.byArgs {
			sig += "|" + Signature(method, args)
		}
		token := c.mint(sig)

		r, err := fn(ctx, args)
		if !c.settle(sig, token) {
			c.metrics.Remote("superseded")
			c.logger.Debug("Discarding superseded remote result.", "method", method, "scope", id.scope)
			var zero R
			return zero, ErrSuperseded
		}
		return r, err
	}
}

// Wrap applies de-duplication and identity suppression to fn.
func Wrap[A, R any](c *Coordinator, method string, fn Func[A, R], opts ...IdentityOption) Func[A, R] {
	return WithIdentity(c, method, Dedupe(c, method, fn), opts...)
}
