package xquery

import (
	"github.com/midbel/xquery/schema"
	"github.com/midbel/xquery/xml"
)

// evalMap builds a map from its entries in order. A key given twice keeps
// the position of its first entry and the value of the last one.
func (e *Evaluator) evalMap(expr Expr) (Sequence, error) {
	x, ok := expr.(*MapConstructor)
	if !ok {
		return nil, unsupported("%T: not a map constructor", expr)
	}
	m := NewMap()
	for _, entry := range x.Entries {
		seq, err := e.eval(entry.Key)
		if err != nil {
			return nil, err
		}
		key, err := singleKey(seq)
		if err != nil {
			return nil, err
		}
		value, err := e.eval(entry.Value)
		if err != nil {
			return nil, err
		}
		m.set(key, value)
	}
	return Sequence{m}, nil
}

// evalArray builds an array. With square brackets each member expression
// gives one member; with curly braces every item of the content is a
// member.
func (e *Evaluator) evalArray(expr Expr) (Sequence, error) {
	x, ok := expr.(*ArrayConstructor)
	if !ok {
		return nil, unsupported("%T: not an array constructor", expr)
	}
	var members []Sequence
	for _, m := range x.Members {
		seq, err := e.eval(m)
		if err != nil {
			return nil, err
		}
		if !x.Curly {
			members = append(members, seq)
			continue
		}
		for i := range seq {
			members = append(members, seq[i:i+1])
		}
	}
	return Sequence{NewArray(members...)}, nil
}

func (e *Evaluator) evalLookup(expr Expr) (Sequence, error) {
	x, ok := expr.(*Lookup)
	if !ok {
		return nil, unsupported("%T: not a lookup", expr)
	}
	var base Sequence
	if x.Expr == nil {
		f, err := e.currentFocus()
		if err != nil {
			return nil, err
		}
		base = Sequence{f.item}
	} else {
		seq, err := e.eval(x.Expr)
		if err != nil {
			return nil, err
		}
		base = seq
	}
	var keys Sequence
	if x.Key != nil {
		seq, err := e.eval(x.Key)
		if err != nil {
			return nil, err
		}
		if keys, err = Atomize(seq); err != nil {
			return nil, err
		}
	}
	if base.Nodes() {
		return lookupNodes(base, keys, x.Key == nil)
	}
	var list Sequence
	for _, item := range base {
		seq, err := lookupItem(item, keys, x.Key == nil)
		if err != nil {
			return nil, err
		}
		list = append(list, seq...)
	}
	return list, nil
}

func lookupItem(item Item, keys Sequence, wildcard bool) (Sequence, error) {
	var list Sequence
	switch x := item.(type) {
	case *MapItem:
		if wildcard {
			for _, e := range x.entries {
				list = append(list, e.value...)
			}
			return list, nil
		}
		for _, k := range keys {
			v, _ := x.Get(k.(AtomicItem))
			list = append(list, v...)
		}
	case *ArrayItem:
		if wildcard {
			for _, m := range x.members {
				list = append(list, m...)
			}
			return list, nil
		}
		for _, k := range keys {
			ix, err := integerArg(Sequence{k})
			if err != nil {
				return nil, err
			}
			v, err := x.Get(ix)
			if err != nil {
				return nil, err
			}
			list = append(list, v...)
		}
	default:
		return nil, errorf(CodeType, "lookup on %s", itemKind(item))
	}
	return list, nil
}

// lookupNodes selects the attributes and the child elements of the nodes
// whose name is one of the keys.
func lookupNodes(nodes Sequence, keys Sequence, wildcard bool) (Sequence, error) {
	var names []string
	for _, k := range keys {
		names = append(names, k.(AtomicItem).String())
	}
	match := func(n xml.Node) bool {
		if wildcard {
			return true
		}
		for _, str := range names {
			if n.LocalName() == str || n.QualifiedName() == str {
				return true
			}
		}
		return false
	}
	var list Sequence
	for _, item := range nodes {
		el, ok := item.Node().(*xml.Element)
		if !ok {
			continue
		}
		for _, a := range el.Attrs {
			if match(a) {
				list = append(list, createNode(a))
			}
		}
		for _, c := range el.Nodes {
			if c.Type() == xml.TypeElement && match(c) {
				list = append(list, createNode(c))
			}
		}
	}
	return list, nil
}

// singleKey atomizes seq to the single value used as a map key.
func singleKey(seq Sequence) (AtomicItem, error) {
	a, ok, err := atomizeOne(seq)
	if err != nil {
		return a, err
	}
	if !ok {
		return a, errorf(CodeType, "map key is the empty sequence")
	}
	return a, nil
}

// integerArg atomizes seq to a single integer. Untyped values are cast.
func integerArg(seq Sequence) (int64, error) {
	a, err := singleKey(seq)
	if err != nil {
		return 0, err
	}
	if a.typ == schema.Untyped {
		v, err := schema.Parse(a.String(), schema.Integer)
		if err != nil {
			return 0, errorf(CodeCast, "%s: not an integer", a)
		}
		return v.(int64), nil
	}
	if !a.typ.IsNumeric() {
		return 0, errorf(CodeType, "%s: expected an integer, got %s", a, a.typ)
	}
	n, ok := asInteger(a)
	if !ok {
		return 0, errorf(CodeType, "%s: not an integer", a)
	}
	return n, nil
}
