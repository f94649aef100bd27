package xquery

import (
	"fmt"
	"strings"

	"github.com/midbel/xquery/xml"
)

type mapEntry struct {
	key   AtomicItem
	value Sequence
}

// MapItem is an immutable map. Keys are compared by the string form of
// their atomized value and entries keep their insertion order.
type MapItem struct {
	entries []mapEntry
	index   map[string]int
}

func NewMap() *MapItem {
	return &MapItem{
		index: make(map[string]int),
	}
}

func mapKey(a AtomicItem) string {
	return a.String()
}

func (m *MapItem) Node() xml.Node {
	return nil
}

func (m *MapItem) Value() any {
	return m
}

func (m *MapItem) Atomic() bool {
	return false
}

func (m *MapItem) Len() int {
	return len(m.entries)
}

func (m *MapItem) Get(key AtomicItem) (Sequence, bool) {
	ix, ok := m.index[mapKey(key)]
	if !ok {
		return nil, false
	}
	return m.entries[ix].value, true
}

func (m *MapItem) Contains(key AtomicItem) bool {
	_, ok := m.index[mapKey(key)]
	return ok
}

func (m *MapItem) Keys() Sequence {
	var list Sequence
	for _, e := range m.entries {
		list = append(list, e.key)
	}
	return list
}

// Put returns a copy of m where key is bound to value. An existing entry
// keeps its position.
func (m *MapItem) Put(key AtomicItem, value Sequence) *MapItem {
	x := m.clone()
	x.set(key, value)
	return x
}

func (m *MapItem) Remove(key AtomicItem) *MapItem {
	if !m.Contains(key) {
		return m
	}
	x := NewMap()
	k := mapKey(key)
	for _, e := range m.entries {
		if mapKey(e.key) == k {
			continue
		}
		x.set(e.key, e.value)
	}
	return x
}

func (m *MapItem) set(key AtomicItem, value Sequence) {
	k := mapKey(key)
	if ix, ok := m.index[k]; ok {
		m.entries[ix].value = value
		return
	}
	m.index[k] = len(m.entries)
	m.entries = append(m.entries, mapEntry{
		key:   key,
		value: value,
	})
}

func (m *MapItem) clone() *MapItem {
	x := NewMap()
	x.entries = make([]mapEntry, len(m.entries), len(m.entries)+1)
	copy(x.entries, m.entries)
	for k, v := range m.index {
		x.index[k] = v
	}
	return x
}

func (m *MapItem) String() string {
	var parts []string
	for _, e := range m.entries {
		parts = append(parts, fmt.Sprintf("%s: %s", quoteKey(e.key), nestedString(e.value)))
	}
	return "map{" + strings.Join(parts, ", ") + "}"
}

func quoteKey(a AtomicItem) string {
	if a.typ.IsStringLike() {
		return fmt.Sprintf("%q", a.String())
	}
	return a.String()
}

func nestedString(seq Sequence) string {
	if len(seq) == 1 {
		return itemString(seq[0])
	}
	var parts []string
	for i := range seq {
		parts = append(parts, itemString(seq[i]))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ArrayItem is an immutable array whose members are sequences.
type ArrayItem struct {
	members []Sequence
}

func NewArray(members ...Sequence) *ArrayItem {
	return &ArrayItem{
		members: members,
	}
}

func (a *ArrayItem) Node() xml.Node {
	return nil
}

func (a *ArrayItem) Value() any {
	return a
}

func (a *ArrayItem) Atomic() bool {
	return false
}

func (a *ArrayItem) Len() int {
	return len(a.members)
}

func (a *ArrayItem) Members() []Sequence {
	return a.members
}

// Get returns the member at the 1-based position ix.
func (a *ArrayItem) Get(ix int64) (Sequence, error) {
	if ix < 1 || ix > int64(len(a.members)) {
		return nil, errorf(CodeArrayIndex, "array index %d out of bounds (1..%d)", ix, len(a.members))
	}
	return a.members[ix-1], nil
}

func (a *ArrayItem) Append(member Sequence) *ArrayItem {
	list := make([]Sequence, len(a.members), len(a.members)+1)
	copy(list, a.members)
	return NewArray(append(list, member)...)
}

func (a *ArrayItem) String() string {
	var parts []string
	for _, m := range a.members {
		parts = append(parts, nestedString(m))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

type callFunc func(*Evaluator, []Sequence) (Sequence, error)

// FunctionItem is a function value: a named function reference, an inline
// function or a builtin.
type FunctionItem struct {
	Name  xml.QName
	Arity int
	call  callFunc
}

func (f *FunctionItem) Node() xml.Node {
	return nil
}

func (f *FunctionItem) Value() any {
	return f
}

func (f *FunctionItem) Atomic() bool {
	return false
}

func (f *FunctionItem) String() string {
	name := f.Name.QualifiedName()
	if name == "" {
		name = "function"
	}
	return fmt.Sprintf("%s#%d", name, f.Arity)
}

// Flatten replaces arrays by their members, recursively. It walks nested
// arrays with an explicit stack so that deeply nested values do not grow
// the call stack.
func Flatten(seq Sequence) Sequence {
	type frame struct {
		items Sequence
		pos   int
	}
	var (
		list  Sequence
		stack = []frame{{items: seq}}
	)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.pos >= len(top.items) {
			stack = stack[:len(stack)-1]
			continue
		}
		item := top.items[top.pos]
		top.pos++
		arr, ok := item.(*ArrayItem)
		if !ok {
			list = append(list, item)
			continue
		}
		for i := len(arr.members) - 1; i >= 0; i-- {
			stack = append(stack, frame{items: arr.members[i]})
		}
	}
	return list
}
