package confgraph

// DeriveFunc computes a configuration value from the evaluation scope. Every
// key read through the scope becomes a dependency of the derived value.
type DeriveFunc func(s *Scope) (any, error)

// Value is a tagged configuration value: either a constant or derived from the
// scope it is resolved in.
type Value struct {
	constant any
	derive   DeriveFunc
	key      any
}

// Constant returns a Value that always resolves to v.
func Constant(v any) Value {
	return Value{constant: v}
}

// Derived returns a Value computed by fn on every uncached resolution.
func Derived(fn DeriveFunc) Value {
	return Value{derive: fn}
}

// DerivedFunc adapts an infallible function into a derived Value.
func DerivedFunc(fn func(s *Scope) any) Value {
	return Derived(func(s *Scope) (any, error) {
		return fn(s), nil
	})
}

// IsDerived reports whether the value depends on its scope.
func (v Value) IsDerived() bool {
	return v.derive != nil
}

// Raw returns the constant payload. It is nil for derived values.
func (v Value) Raw() any {
	return v.constant
}

// WithKey returns a copy of v identified by key for content hashing. Derived
// values built from one closure literal share a code pointer, so sources such
// as expression loaders attach the expression text here.
func (v Value) WithKey(key any) Value {
	v.key = key
	return v
}

// MemoKey identifies the value for content hashing: the explicit key when one
// is set, then the derive function, then the payload.
func (v Value) MemoKey() any {
	if v.key != nil {
		return v.key
	}
	if v.derive != nil {
		return v.derive
	}
	return v.constant
}

func (v Value) eval(s *Scope) (any, error) {
	if v.derive == nil {
		return v.constant, nil
	}
	return v.derive(s)
}

// valueOf normalises a raw configuration entry into a Value. Anything that is
// not already a resolver function becomes a constant.
func valueOf(raw any) Value {
	switch x := raw.(type) {
	case Value:
		return x
	case *Value:
		if x == nil {
			return Constant(nil)
		}
		return *x
	case DeriveFunc:
		if x == nil {
			return Constant(nil)
		}
		return Derived(x)
	case func(*Scope) (any, error):
		if x == nil {
			return Constant(nil)
		}
		return Derived(x)
	case func(*Scope) any:
		if x == nil {
			return Constant(nil)
		}
		return DerivedFunc(x)
	default:
		return Constant(raw)
	}
}
