// Package ref provides non-owning references to long-lived managers.
package ref

import (
	"weak"

	"github.com/starford/folio/internal/apperr"
)

// Closable is implemented by referents that can be torn down explicitly
// (shutdown, sign-out) while still reachable.
type Closable interface {
	Closed() bool
}

// Weak holds a reference to a *T without keeping it alive. The zero value
// never resolves.
type Weak[T any] struct {
	p weak.Pointer[T]
}

// Make returns a weak reference to v.
func Make[T any](v *T) Weak[T] {
	return Weak[T]{p: weak.Make(v)}
}

// Resolve returns a strong handle to the referent, or ErrManagerUnavailable
// when it has been collected or torn down. The caller should drop the
// handle when the current operation completes.
func (w Weak[T]) Resolve() (*T, error) {
	v := w.p.Value()
	if v == nil {
		return nil, apperr.ErrManagerUnavailable
	}
	if c, ok := any(v).(Closable); ok && c.Closed() {
		return nil, apperr.ErrManagerUnavailable
	}
	return v, nil
}
