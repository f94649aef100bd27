package xquery

import (
	"slices"

	"github.com/midbel/xquery/xml"
)

type tuple struct {
	names  []xml.QName
	values []Sequence
	keys   []Sequence
}

func (e *Evaluator) evalFLWOR(expr Expr) (Sequence, error) {
	x, ok := expr.(*FLWOR)
	if !ok {
		return nil, unsupported("%T: not a flwor expression", expr)
	}
	var (
		list  Sequence
		order *OrderClause
	)
	if n := len(x.Clauses); n > 0 {
		if o, ok := x.Clauses[n-1].(*OrderClause); ok {
			order = o
		}
	}
	if order == nil {
		err := e.iterate(x.Clauses, nil, func(_ []xml.QName) error {
			seq, err := e.eval(x.Return)
			if err == nil {
				list = append(list, seq...)
			}
			return err
		})
		return list, err
	}
	var tuples []tuple
	err := e.iterate(x.Clauses[:len(x.Clauses)-1], nil, func(names []xml.QName) error {
		t := tuple{
			names: slices.Clone(names),
		}
		for _, n := range names {
			v, _ := e.locals.Resolve(e.varKey(n))
			t.values = append(t.values, v)
		}
		for _, s := range order.Specs {
			key, err := e.eval(s.Expr)
			if err != nil {
				return err
			}
			if key, err = Atomize(key); err != nil {
				return err
			}
			if len(key) > 1 {
				return errorf(CodeType, "order by key with %d items", len(key))
			}
			t.keys = append(t.keys, key)
		}
		tuples = append(tuples, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.sortTuples(tuples, order); err != nil {
		return nil, err
	}
	for _, t := range tuples {
		var restore []func()
		for i := range t.names {
			restore = append(restore, e.bind(t.names[i], t.values[i]))
		}
		seq, err := e.eval(x.Return)
		for i := len(restore) - 1; i >= 0; i-- {
			restore[i]()
		}
		if err != nil {
			return nil, err
		}
		list = append(list, seq...)
	}
	return list, nil
}

// iterate produces the tuples of the clauses depth first. The names of the
// variables bound so far are passed to emit.
func (e *Evaluator) iterate(clauses []Clause, names []xml.QName, emit func([]xml.QName) error) error {
	if len(clauses) == 0 {
		return emit(names)
	}
	switch c := clauses[0].(type) {
	case *ForClause:
		return e.iterateFor(c.Bindings, clauses[1:], names, emit)
	case *LetClause:
		var restore []func()
		defer func() {
			for i := len(restore) - 1; i >= 0; i-- {
				restore[i]()
			}
		}()
		for _, b := range c.Bindings {
			seq, err := e.eval(b.Expr)
			if err != nil {
				return err
			}
			if b.Type != "" {
				if err := e.conform(seq, b.Type, CodeType, "let $"+b.Name.QualifiedName()); err != nil {
					return err
				}
			}
			restore = append(restore, e.bind(b.Name, seq))
			names = append(names, b.Name)
		}
		return e.iterate(clauses[1:], names, emit)
	case *WhereClause:
		seq, err := e.eval(c.Cond)
		if err != nil {
			return err
		}
		ok, err := EffectiveBooleanValue(seq)
		if err != nil || !ok {
			return err
		}
		return e.iterate(clauses[1:], names, emit)
	default:
		return unsupported("%T: clause not supported", c)
	}
}

// iterateFor binds each variable of a for clause to the items of its
// sequence, nesting from the first binding to the last. Each iteration
// exposes the position of the item and the length of its sequence.
func (e *Evaluator) iterateFor(bindings []Binding, rest []Clause, names []xml.QName, emit func([]xml.QName) error) error {
	if len(bindings) == 0 {
		return e.iterate(rest, names, emit)
	}
	b := bindings[0]
	seq, err := e.eval(b.Expr)
	if err != nil {
		return err
	}
	var item Item
	if f, err := e.currentFocus(); err == nil {
		item = f.item
	}
	names = append(names, b.Name)
	if !b.Pos.Zero() {
		names = append(names, b.Pos)
	}
	for i := range seq {
		if b.Type != "" {
			if err := e.conform(seq[i:i+1], b.Type, CodeType, "for $"+b.Name.QualifiedName()); err != nil {
				return err
			}
		}
		restore := e.bind(b.Name, seq[i:i+1])
		var restorePos func()
		if !b.Pos.Zero() {
			restorePos = e.bind(b.Pos, Singleton(int64(i+1)))
		}
		e.pushFocus(item, i+1, len(seq))
		err := e.iterateFor(bindings[1:], rest, names, emit)
		e.popFocus()
		if restorePos != nil {
			restorePos()
		}
		restore()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) sortTuples(tuples []tuple, order *OrderClause) error {
	var failure error
	cmp := func(a, b tuple) int {
		for i, s := range order.Specs {
			c, err := e.compareKeys(a.keys[i], b.keys[i], s)
			if err != nil {
				if failure == nil {
					failure = err
				}
				return 0
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
	slices.SortStableFunc(tuples, cmp)
	return failure
}

func (e *Evaluator) compareKeys(a, b Sequence, spec OrderSpec) (int, error) {
	var c int
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0, nil
	case len(a) == 0:
		c = 1
		if spec.EmptyLeast {
			c = -1
		}
	case len(b) == 0:
		c = -1
		if spec.EmptyLeast {
			c = 1
		}
	default:
		x, y := a[0].(AtomicItem), b[0].(AtomicItem)
		x, y, err := promoteUntyped(x, y)
		if err != nil {
			return 0, err
		}
		coll := e.defaultCollation()
		if spec.Collation != "" {
			if coll, err = e.getCollation(spec.Collation); err != nil {
				return 0, err
			}
		}
		cmp, ordered, err := compareAtomic(x, y, coll)
		if err != nil {
			return 0, err
		}
		if !ordered {
			cmp = -1
			if x.isNaN() && y.isNaN() {
				cmp = 0
			} else if !x.isNaN() {
				cmp = 1
			}
			if !spec.EmptyLeast {
				cmp = -cmp
			}
		}
		c = cmp
	}
	if spec.Descending {
		c = -c
	}
	return c, nil
}

func (e *Evaluator) evalQuantified(expr Expr) (Sequence, error) {
	x, ok := expr.(*Quantified)
	if !ok {
		return nil, unsupported("%T: not a quantified expression", expr)
	}
	var (
		found bool
		stop  = errorf(CodeUser, "stop")
	)
	clause := &ForClause{Bindings: x.Bindings}
	err := e.iterate([]Clause{clause}, nil, func(_ []xml.QName) error {
		seq, err := e.eval(x.Satisfies)
		if err != nil {
			return err
		}
		ok, err := EffectiveBooleanValue(seq)
		if err != nil {
			return err
		}
		if ok != x.Every {
			found = true
			return stop
		}
		return nil
	})
	if err != nil && err != stop {
		return nil, err
	}
	if x.Every {
		return Singleton(!found), nil
	}
	return Singleton(found), nil
}

func (e *Evaluator) evalTypeswitch(expr Expr) (Sequence, error) {
	x, ok := expr.(*Typeswitch)
	if !ok {
		return nil, unsupported("%T: not a typeswitch", expr)
	}
	seq, err := e.eval(x.Operand)
	if err != nil {
		return nil, err
	}
	for _, c := range x.Cases {
		for _, str := range c.Types {
			t, err := e.sequenceType(str)
			if err != nil {
				return nil, err
			}
			if t.Matches(seq) {
				return e.evalCase(c, seq)
			}
		}
	}
	return e.evalCase(x.Default, seq)
}

func (e *Evaluator) evalCase(c TypeCase, seq Sequence) (Sequence, error) {
	if !c.Var.Zero() {
		defer e.bind(c.Var, seq)()
	}
	return e.eval(c.Return)
}
