package environ

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrDefined = errors.New("undefined identifier")

type Environ[T any] interface {
	Resolve(string) (T, error)
	Define(string, T)
	Names() []string
	Len() int
}

// Env is a map of names chained to an optional parent. Lookups walk the
// chain from the innermost scope outward.
type Env[T any] struct {
	values map[string]T
	parent Environ[T]
}

func Empty[T any]() Environ[T] {
	return Enclosed[T](nil)
}

func Enclosed[T any](parent Environ[T]) Environ[T] {
	return &Env[T]{
		values: make(map[string]T),
		parent: parent,
	}
}

// Len and Names only report the names defined in this scope.
func (e *Env[T]) Len() int {
	return len(e.values)
}

func (e *Env[T]) Names() []string {
	return slices.Sorted(maps.Keys(e.values))
}

func (e *Env[T]) Define(ident string, value T) {
	e.values[ident] = value
}

// Bind defines ident in this scope and returns the function that undoes it,
// restoring the shadowed value if any.
func (e *Env[T]) Bind(ident string, value T) func() {
	prev, shadowed := e.values[ident]
	e.values[ident] = value
	if shadowed {
		return func() { e.values[ident] = prev }
	}
	return func() { delete(e.values, ident) }
}

func (e *Env[T]) Has(ident string) bool {
	_, err := e.Resolve(ident)
	return err == nil
}

func (e *Env[T]) Resolve(ident string) (T, error) {
	for env := Environ[T](e); env != nil; {
		x, ok := env.(*Env[T])
		if !ok {
			return env.Resolve(ident)
		}
		if v, ok := x.values[ident]; ok {
			return v, nil
		}
		env = x.parent
	}
	var zero T
	return zero, fmt.Errorf("%s: %w", ident, ErrDefined)
}

// Snapshot returns a single scope holding every name visible from e, inner
// definitions shadowing outer ones. Later bindings in e or its parents are
// not seen by the snapshot.
func (e *Env[T]) Snapshot() *Env[T] {
	var chain []*Env[T]
	for env := e; env != nil; {
		chain = append(chain, env)
		next, ok := env.parent.(*Env[T])
		if !ok {
			break
		}
		env = next
	}
	snap := Empty[T]().(*Env[T])
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(snap.values, chain[i].values)
	}
	return snap
}
