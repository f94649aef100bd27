package environ

import (
	"errors"
	"testing"

	"github.com/go-quicktest/qt"
)

func TestBindRestoresPrevious(t *testing.T) {
	env := Empty[int]().(*Env[int])
	env.Define("x", 1)

	restore := env.Bind("x", 2)
	got, err := env.Resolve("x")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(got, 2))

	restore()
	got, err = env.Resolve("x")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(got, 1))
}

func TestBindRemovesUnbound(t *testing.T) {
	env := Empty[string]().(*Env[string])
	restore := env.Bind("y", "value")
	qt.Assert(t, qt.IsTrue(env.Has("y")))
	restore()
	qt.Assert(t, qt.IsFalse(env.Has("y")))

	_, err := env.Resolve("y")
	qt.Assert(t, qt.IsTrue(errors.Is(err, ErrDefined)))
}

func TestEnclosedResolveParent(t *testing.T) {
	parent := Empty[int]()
	parent.Define("a", 10)
	child := Enclosed(parent)
	child.Define("b", 20)

	a, err := child.Resolve("a")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(a, 10))
	qt.Assert(t, qt.DeepEquals(child.Names(), []string{"b"}))
	qt.Assert(t, qt.IsTrue(child.(*Env[int]).Has("a")))
}

func TestSnapshot(t *testing.T) {
	parent := Empty[int]()
	parent.Define("a", 1)
	parent.Define("b", 2)
	child := Enclosed(parent).(*Env[int])
	child.Define("b", 3)

	snap := child.Snapshot()
	qt.Assert(t, qt.DeepEquals(snap.Names(), []string{"a", "b"}))

	b, err := snap.Resolve("b")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(b, 3))

	child.Define("c", 4)
	parent.Define("a", 10)
	qt.Assert(t, qt.IsFalse(snap.Has("c")))
	a, _ := snap.Resolve("a")
	qt.Assert(t, qt.Equals(a, 1))
}
