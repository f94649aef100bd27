package xquery

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/midbel/xquery/schema"
	"github.com/midbel/xquery/xml"
)

type Item interface {
	Node() xml.Node
	Value() any
	Atomic() bool
}

// Sequence is an ordered list of items. Nested sequences are always
// flattened. Maps and arrays are kept as single items.
type Sequence []Item

func Empty() Sequence {
	return nil
}

func Singleton(value any) Sequence {
	return Sequence{createItem(value)}
}

func NewSequence(items ...Item) Sequence {
	return Sequence(items)
}

func (s Sequence) Len() int {
	return len(s)
}

func (s Sequence) Empty() bool {
	return len(s) == 0
}

func (s Sequence) Singleton() bool {
	return len(s) == 1
}

func (s *Sequence) Append(others ...Item) {
	*s = append(*s, others...)
}

func (s *Sequence) Concat(other Sequence) {
	*s = append(*s, other...)
}

func (s Sequence) Nodes() bool {
	return len(s) > 0 && !slices.ContainsFunc(s, func(i Item) bool {
		_, ok := i.(nodeItem)
		return !ok
	})
}

func (s Sequence) String() string {
	var parts []string
	for i := range s {
		parts = append(parts, itemString(s[i]))
	}
	return strings.Join(parts, " ")
}

func itemString(i Item) string {
	switch x := i.(type) {
	case nodeItem:
		return xml.WriteNode(x.node)
	case AtomicItem:
		return schema.Format(x.value, x.typ)
	case *MapItem:
		return x.String()
	case *ArrayItem:
		return x.String()
	case *FunctionItem:
		return x.String()
	default:
		return fmt.Sprint(i.Value())
	}
}

// AtomicItem is an atomic value annotated with its type.
type AtomicItem struct {
	value any
	typ   *schema.Type
}

func NewAtomic(value any, typ *schema.Type) AtomicItem {
	return AtomicItem{
		value: value,
		typ:   typ,
	}
}

func createItem(value any) Item {
	switch v := value.(type) {
	case Item:
		return v
	case xml.Node:
		return createNode(v)
	case string:
		return NewAtomic(v, schema.String)
	case bool:
		return NewAtomic(v, schema.Boolean)
	case int:
		return NewAtomic(int64(v), schema.Integer)
	case int64:
		return NewAtomic(v, schema.Integer)
	case float64:
		return NewAtomic(v, schema.Double)
	case *apd.Decimal:
		return NewAtomic(v, schema.Decimal)
	default:
		return NewAtomic(fmt.Sprint(v), schema.Untyped)
	}
}

func untyped(str string) AtomicItem {
	return NewAtomic(str, schema.Untyped)
}

func integerItem(n int64) AtomicItem {
	return NewAtomic(n, schema.Integer)
}

func booleanItem(b bool) AtomicItem {
	return NewAtomic(b, schema.Boolean)
}

func stringItem(str string) AtomicItem {
	return NewAtomic(str, schema.String)
}

func doubleItem(f float64) AtomicItem {
	return NewAtomic(f, schema.Double)
}

func (i AtomicItem) Node() xml.Node {
	return xml.NewText(i.String())
}

func (i AtomicItem) Value() any {
	return i.value
}

func (i AtomicItem) Atomic() bool {
	return true
}

func (i AtomicItem) Type() *schema.Type {
	return i.typ
}

func (i AtomicItem) String() string {
	return schema.Format(i.value, i.typ)
}

func (i AtomicItem) isNaN() bool {
	f, ok := i.value.(float64)
	return ok && math.IsNaN(f)
}

type nodeItem struct {
	node xml.Node
}

func createNode(node xml.Node) Item {
	return nodeItem{
		node: node,
	}
}

func (i nodeItem) Node() xml.Node {
	return i.node
}

func (i nodeItem) Value() any {
	return i.node.Value()
}

func (i nodeItem) Atomic() bool {
	return false
}

// EffectiveBooleanValue computes the boolean value of a sequence. Only
// sequences starting with a node or singletons of boolean, string or
// numeric values have one.
func EffectiveBooleanValue(seq Sequence) (bool, error) {
	if len(seq) == 0 {
		return false, nil
	}
	if _, ok := seq[0].(nodeItem); ok {
		return true, nil
	}
	if len(seq) > 1 {
		return false, errorf(CodeBoolean, "effective boolean value of a sequence of %d atomic values", len(seq))
	}
	a, ok := seq[0].(AtomicItem)
	if !ok {
		return false, errorf(CodeBoolean, "no effective boolean value for %s", itemKind(seq[0]))
	}
	switch v := a.value.(type) {
	case bool:
		return v, nil
	case string:
		return v != "", nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0 && !math.IsNaN(v), nil
	case *apd.Decimal:
		return !v.IsZero(), nil
	default:
		return false, errorf(CodeBoolean, "no effective boolean value for %s", a.typ)
	}
}

// Atomize replaces every node by its string value as xs:untypedAtomic and
// every array by the atomized values of its members.
func Atomize(seq Sequence) (Sequence, error) {
	var list Sequence
	for i := range seq {
		switch x := seq[i].(type) {
		case AtomicItem:
			list = append(list, x)
		case nodeItem:
			list = append(list, untyped(x.node.Value()))
		case *ArrayItem:
			for _, m := range x.members {
				vs, err := Atomize(m)
				if err != nil {
					return nil, err
				}
				list = append(list, vs...)
			}
		default:
			return nil, errorf(CodeAtomize, "%s can not be atomized", itemKind(x))
		}
	}
	return list, nil
}

func atomizeOne(seq Sequence) (AtomicItem, bool, error) {
	vs, err := Atomize(seq)
	if err != nil {
		return AtomicItem{}, false, err
	}
	switch len(vs) {
	case 0:
		return AtomicItem{}, false, nil
	case 1:
		return vs[0].(AtomicItem), true, nil
	default:
		return AtomicItem{}, false, errorf(CodeType, "expected at most one atomic value, got %d", len(vs))
	}
}

// stringValue returns the string value of an optional singleton.
func stringValue(seq Sequence) (string, error) {
	a, ok, err := atomizeOne(seq)
	if err != nil || !ok {
		return "", err
	}
	return a.String(), nil
}

func itemKind(i Item) string {
	switch x := i.(type) {
	case nodeItem:
		return x.node.Type().String() + "()"
	case AtomicItem:
		return x.typ.String()
	case *MapItem:
		return "map(*)"
	case *ArrayItem:
		return "array(*)"
	case *FunctionItem:
		return "function(*)"
	default:
		return "item()"
	}
}

// nodeOrder sorts the nodes of seq in document order and drops duplicates.
func nodeOrder(seq Sequence, sorted bool) Sequence {
	seen := make(map[int64]struct{}, len(seq))
	list := make(Sequence, 0, len(seq))
	for _, i := range seq {
		n, ok := i.(nodeItem)
		if !ok {
			list = append(list, i)
			continue
		}
		id := n.node.Identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		list = append(list, i)
	}
	if sorted {
		slices.SortStableFunc(list, func(a, b Item) int {
			x, ok1 := a.(nodeItem)
			y, ok2 := b.(nodeItem)
			if !ok1 || !ok2 {
				return 0
			}
			switch {
			case x.node.Identity() < y.node.Identity():
				return -1
			case x.node.Identity() > y.node.Identity():
				return 1
			default:
				return 0
			}
		})
	}
	return list
}
