package xquery

import (
	"slices"

	"github.com/midbel/xquery/xml"
)

func (e *Evaluator) evalPath(expr Expr) (Sequence, error) {
	x, ok := expr.(*Path)
	if !ok {
		return nil, unsupported("%T: not a path", expr)
	}
	var curr Sequence
	if x.Root {
		node, err := e.contextNode()
		if err != nil {
			return nil, err
		}
		root := xml.Root(node)
		if root.Type() != xml.TypeDocument {
			return nil, errorf(CodeDynamicContext, "root of the context node is not a document")
		}
		curr = Sequence{createNode(root)}
	}
	for i, step := range x.Steps {
		if i == 0 && !x.Root {
			seq, err := e.eval(step)
			if err != nil {
				return nil, err
			}
			curr = seq
			if _, ok := step.(*Step); ok {
				curr = e.documentOrder(curr)
			}
			continue
		}
		if s, ok := step.(*Step); ok && i == len(x.Steps)-1 && s.Axis == AxisAttribute && len(s.Predicates) == 0 {
			return e.selectAttributes(curr, s)
		}
		seq, err := e.applyStep(curr, step)
		if err != nil {
			return nil, err
		}
		curr = seq
	}
	return curr, nil
}

// applyStep evaluates step once for each node of curr with the node as
// context item.
func (e *Evaluator) applyStep(curr Sequence, step Expr) (Sequence, error) {
	var (
		list  Sequence
		nodes int
	)
	for i := range curr {
		if _, ok := curr[i].(nodeItem); !ok {
			return nil, errorf(CodeNotNode, "path step applied on %s", itemKind(curr[i]))
		}
		e.pushFocus(curr[i], i+1, len(curr))
		seq, err := e.eval(step)
		e.popFocus()
		if err != nil {
			return nil, err
		}
		for j := range seq {
			if _, ok := seq[j].(nodeItem); ok {
				nodes++
			}
		}
		list = append(list, seq...)
	}
	switch nodes {
	case len(list):
		return e.documentOrder(list), nil
	case 0:
		return list, nil
	default:
		return nil, errorf(CodeType, "path step returns a mix of nodes and atomic values")
	}
}

func (e *Evaluator) documentOrder(seq Sequence) Sequence {
	return nodeOrder(seq, !e.unordered)
}

// selectAttributes is the fast path of a path ending with an attribute step:
// the attributes are collected from the elements directly. The elements are
// put in document order first, their attributes then follow the same order.
func (e *Evaluator) selectAttributes(curr Sequence, step *Step) (Sequence, error) {
	test, err := e.resolveTest(step)
	if err != nil {
		return nil, err
	}
	curr = e.documentOrder(curr)
	var list Sequence
	for i := range curr {
		n, ok := curr[i].(nodeItem)
		if !ok {
			return nil, errorf(CodeNotNode, "path step applied on %s", itemKind(curr[i]))
		}
		el, ok := n.node.(*xml.Element)
		if !ok {
			continue
		}
		for _, a := range el.Attrs {
			if test.match(a, AxisAttribute) {
				list = append(list, createNode(a))
			}
		}
	}
	return list, nil
}

func (e *Evaluator) evalStep(expr Expr) (Sequence, error) {
	x, ok := expr.(*Step)
	if !ok {
		return nil, unsupported("%T: not an axis step", expr)
	}
	node, err := e.contextNode()
	if err != nil {
		return nil, err
	}
	test, err := e.resolveTest(x)
	if err != nil {
		return nil, err
	}
	var list Sequence
	for n := range axisNodes(node, x.Axis) {
		if test.match(n, x.Axis) {
			list = append(list, createNode(n))
		}
	}
	list, err = e.applyPredicates(list, x.Predicates)
	if err != nil {
		return nil, err
	}
	if x.Axis.reverse() {
		slices.Reverse(list)
	}
	return list, nil
}

func (e *Evaluator) evalFilter(expr Expr) (Sequence, error) {
	x, ok := expr.(*Filter)
	if !ok {
		return nil, unsupported("%T: not a filter", expr)
	}
	seq, err := e.eval(x.Expr)
	if err != nil {
		return nil, err
	}
	return e.applyPredicates(seq, x.Predicates)
}

// applyPredicates filters seq with each predicate in turn. A predicate
// returning a single number selects the item at that position, any other
// value is converted to its effective boolean value.
func (e *Evaluator) applyPredicates(seq Sequence, predicates []Expr) (Sequence, error) {
	for _, pred := range predicates {
		if len(seq) == 0 {
			break
		}
		var list Sequence
		for i := range seq {
			e.pushFocus(seq[i], i+1, len(seq))
			res, err := e.eval(pred)
			e.popFocus()
			if err != nil {
				return nil, err
			}
			keep, err := predicateTruth(res, i+1)
			if err != nil {
				return nil, err
			}
			if keep {
				list = append(list, seq[i])
			}
		}
		seq = list
	}
	return seq, nil
}

func predicateTruth(res Sequence, pos int) (bool, error) {
	if len(res) == 1 {
		if a, ok := res[0].(AtomicItem); ok && a.typ.IsNumeric() {
			cmp, ordered, _ := compareNumbers(a, integerItem(int64(pos)))
			return ordered && cmp == 0, nil
		}
	}
	return EffectiveBooleanValue(res)
}

type nodeMatcher struct {
	NodeTest
}

func (e *Evaluator) resolveTest(step *Step) (nodeMatcher, error) {
	test := step.Test
	if test.Wildcard && test.AnyNS {
		return nodeMatcher{test}, nil
	}
	var (
		name xml.QName
		err  error
	)
	if step.Axis == AxisAttribute || test.Type == xml.TypeAttribute {
		name, err = e.resolveName(test.Name)
	} else {
		name, err = e.resolveElementName(test.Name)
	}
	if err != nil {
		return nodeMatcher{}, err
	}
	test.Name = name
	return nodeMatcher{test}, nil
}

func (t nodeMatcher) match(n xml.Node, axis Axis) bool {
	kind := t.Type
	if kind == 0 {
		kind = xml.TypeElement
		if axis == AxisAttribute {
			kind = xml.TypeAttribute
		}
	}
	if n.Type()&kind == 0 {
		return false
	}
	if t.Type == xml.TypeNode || (t.Type != 0 && t.Name.Name == "") {
		return true
	}
	if !t.AnyNS && n.Namespace() != t.Name.Uri {
		return false
	}
	return t.Wildcard || n.LocalName() == t.Name.Name
}

// axisNodes yields the nodes of an axis in axis order: document order for
// the forward axes, reverse document order for the others.
func axisNodes(node xml.Node, axis Axis) func(func(xml.Node) bool) {
	return func(yield func(xml.Node) bool) {
		switch axis {
		case AxisSelf:
			yield(node)
		case AxisChild:
			for _, c := range children(node) {
				if !yield(c) {
					return
				}
			}
		case AxisAttribute:
			if el, ok := node.(*xml.Element); ok {
				for _, a := range el.Attrs {
					if !yield(a) {
						return
					}
				}
			}
		case AxisDescendant:
			descendants(node, yield)
		case AxisDescendantOrSelf:
			if yield(node) {
				descendants(node, yield)
			}
		case AxisParent:
			if p := node.Parent(); p != nil {
				yield(p)
			}
		case AxisAncestor:
			for p := node.Parent(); p != nil; p = p.Parent() {
				if !yield(p) {
					return
				}
			}
		case AxisAncestorOrSelf:
			for p := node; p != nil; p = p.Parent() {
				if !yield(p) {
					return
				}
			}
		case AxisFollowingSibling, AxisPrecedingSibling:
			if node.Type() == xml.TypeAttribute {
				return
			}
			parent := node.Parent()
			if parent == nil {
				return
			}
			siblings := children(parent)
			pos := node.Position()
			if axis == AxisFollowingSibling {
				for _, s := range siblings[pos+1:] {
					if !yield(s) {
						return
					}
				}
				return
			}
			for i := pos - 1; i >= 0; i-- {
				if !yield(siblings[i]) {
					return
				}
			}
		case AxisFollowing:
			following(node, yield)
		case AxisPreceding:
			preceding(node, yield)
		}
	}
}

func children(node xml.Node) []xml.Node {
	switch n := node.(type) {
	case *xml.Document:
		return n.Nodes
	case *xml.Element:
		return n.Nodes
	default:
		return nil
	}
}

// descendants walks the subtree of node in document order with an explicit
// stack.
func descendants(node xml.Node, yield func(xml.Node) bool) bool {
	stack := slices.Clone(children(node))
	slices.Reverse(stack)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !yield(n) {
			return false
		}
		cs := children(n)
		for i := len(cs) - 1; i >= 0; i-- {
			stack = append(stack, cs[i])
		}
	}
	return true
}

func following(node xml.Node, yield func(xml.Node) bool) {
	if node.Type() == xml.TypeAttribute {
		node = node.Parent()
		if node == nil {
			return
		}
		if !descendants(node, yield) {
			return
		}
	}
	for curr := node; curr != nil; curr = curr.Parent() {
		parent := curr.Parent()
		if parent == nil {
			return
		}
		for _, s := range children(parent)[curr.Position()+1:] {
			if !yield(s) || !descendants(s, yield) {
				return
			}
		}
	}
}

func preceding(node xml.Node, yield func(xml.Node) bool) {
	if node.Type() == xml.TypeAttribute {
		node = node.Parent()
		if node == nil {
			return
		}
	}
	for curr := node; curr != nil; curr = curr.Parent() {
		parent := curr.Parent()
		if parent == nil {
			return
		}
		siblings := children(parent)
		for i := curr.Position() - 1; i >= 0; i-- {
			var list []xml.Node
			descendants(siblings[i], func(n xml.Node) bool {
				list = append(list, n)
				return true
			})
			for j := len(list) - 1; j >= 0; j-- {
				if !yield(list[j]) {
					return
				}
			}
			if !yield(siblings[i]) {
				return
			}
		}
	}
}
