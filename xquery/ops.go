package xquery

import (
	"slices"
	"strings"

	"github.com/midbel/xquery/schema"
)

// chain returns the operands of a left-deep chain of the same operator in
// evaluation order.
func chain(x *Binary) []Expr {
	var (
		rights []Expr
		curr   Expr = x
	)
	for {
		b, ok := curr.(*Binary)
		if !ok || b.Op != x.Op {
			break
		}
		rights = append(rights, b.Right)
		curr = b.Left
	}
	list := make([]Expr, 0, len(rights)+1)
	list = append(list, curr)
	for i := len(rights) - 1; i >= 0; i-- {
		list = append(list, rights[i])
	}
	return list
}

func (e *Evaluator) evalBinary(x *Binary) (Sequence, error) {
	switch x.Op {
	case OpAnd, OpOr:
		return e.evalLogical(x)
	case OpAdd, OpMul:
		return e.evalChain(x)
	case OpSub, OpDiv, OpIdiv, OpMod:
		return e.evalArithmetic(x)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return e.evalGeneralComparison(x)
	case OpValEq, OpValNe, OpValLt, OpValLe, OpValGt, OpValGe:
		return e.evalValueComparison(x)
	case OpIs, OpBefore, OpAfter:
		return e.evalNodeComparison(x)
	case OpRange:
		return e.evalRange(x)
	case OpConcat:
		return e.evalConcat(x)
	case OpUnion, OpIntersect, OpExcept:
		return e.evalSetOperation(x)
	default:
		return nil, unsupported("%s: binary operator not supported", x.Op)
	}
}

func (e *Evaluator) evalLogical(x *Binary) (Sequence, error) {
	want := x.Op == OpOr
	for _, expr := range chain(x) {
		seq, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		ok, err := EffectiveBooleanValue(seq)
		if err != nil {
			return nil, err
		}
		if ok == want {
			return Singleton(want), nil
		}
	}
	return Singleton(!want), nil
}

// evalChain accumulates the operands of a chain of + or * from left to
// right instead of recursing into the nested binary expressions.
func (e *Evaluator) evalChain(x *Binary) (Sequence, error) {
	var acc AtomicItem
	for i, expr := range chain(x) {
		seq, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		a, ok, err := atomizeOne(seq)
		if err != nil || !ok {
			return nil, err
		}
		if i == 0 {
			acc, err = numericOperand(a, x.Op)
		} else {
			acc, err = arithmetic(x.Op, acc, a)
		}
		if err != nil {
			return nil, err
		}
	}
	return Sequence{acc}, nil
}

func (e *Evaluator) evalArithmetic(x *Binary) (Sequence, error) {
	left, ok, err := e.evalAtomic(x.Left)
	if err != nil || !ok {
		return nil, err
	}
	right, ok, err := e.evalAtomic(x.Right)
	if err != nil || !ok {
		return nil, err
	}
	res, err := arithmetic(x.Op, left, right)
	if err != nil {
		return nil, err
	}
	return Sequence{res}, nil
}

func (e *Evaluator) evalAtomic(expr Expr) (AtomicItem, bool, error) {
	seq, err := e.eval(expr)
	if err != nil {
		return AtomicItem{}, false, err
	}
	return atomizeOne(seq)
}

func (e *Evaluator) evalUnary(x *Unary) (Sequence, error) {
	seq, err := e.eval(x.Operand)
	if err != nil {
		return nil, err
	}
	a, ok, err := atomizeOne(seq)
	if err != nil || !ok {
		return nil, err
	}
	switch x.Op {
	case OpNeg:
		a, err = negate(a)
	case OpPlus:
		a, err = numericOperand(a, x.Op)
	default:
		return nil, unsupported("%s: unary operator not supported", x.Op)
	}
	if err != nil {
		return nil, err
	}
	return Sequence{a}, nil
}

func (e *Evaluator) evalValueComparison(x *Binary) (Sequence, error) {
	operand := func(expr Expr) (AtomicItem, error) {
		seq, err := e.eval(expr)
		if err != nil {
			return AtomicItem{}, err
		}
		vs, err := Atomize(seq)
		if err != nil {
			return AtomicItem{}, err
		}
		if len(vs) != 1 {
			return AtomicItem{}, errorf(CodeType, "%s: expected exactly one atomic value, got %d", x.Op, len(vs))
		}
		a := vs[0].(AtomicItem)
		if a.typ.Primitive == schema.PrimitiveUntyped {
			a = stringItem(a.value.(string))
		}
		return a, nil
	}
	left, err := operand(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := operand(x.Right)
	if err != nil {
		return nil, err
	}
	cmp, ordered, err := compareAtomic(left, right, e.defaultCollation())
	if err != nil {
		return nil, err
	}
	return Singleton(compareResult(x.Op, cmp, ordered)), nil
}

func (e *Evaluator) evalGeneralComparison(x *Binary) (Sequence, error) {
	atoms := func(expr Expr) (Sequence, error) {
		seq, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		return Atomize(seq)
	}
	left, err := atoms(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := atoms(x.Right)
	if err != nil {
		return nil, err
	}
	coll := e.defaultCollation()
	for i := range left {
		for j := range right {
			ok, err := generalCompare(x.Op, left[i].(AtomicItem), right[j].(AtomicItem), coll)
			if err != nil {
				return nil, err
			}
			if ok {
				return Singleton(true), nil
			}
		}
	}
	return Singleton(false), nil
}

func generalCompare(op Op, left, right AtomicItem, coll Collation) (bool, error) {
	var err error
	left, right, err = promoteUntyped(left, right)
	if err != nil {
		return false, err
	}
	cmp, ordered, err := compareAtomic(left, right, coll)
	if err != nil {
		return false, err
	}
	return compareResult(op, cmp, ordered), nil
}

// promoteUntyped converts untyped operands of a general comparison to the
// type of the other operand: xs:double for numbers, xs:string when both
// are untyped.
func promoteUntyped(left, right AtomicItem) (AtomicItem, AtomicItem, error) {
	lu := left.typ.Primitive == schema.PrimitiveUntyped
	ru := right.typ.Primitive == schema.PrimitiveUntyped
	switch {
	case lu && ru:
		return stringItem(left.value.(string)), stringItem(right.value.(string)), nil
	case lu:
		a, err := castUntyped(left, right.typ)
		return a, right, err
	case ru:
		a, err := castUntyped(right, left.typ)
		return left, a, err
	default:
		return left, right, nil
	}
}

func castUntyped(a AtomicItem, target *schema.Type) (AtomicItem, error) {
	if target.IsNumeric() {
		target = schema.Double
	} else if target.IsStringLike() {
		return stringItem(a.value.(string)), nil
	}
	v, err := schema.Parse(a.value.(string), target)
	if err != nil {
		return a, errorf(CodeCast, "%q can not be cast to %s", a.value, target)
	}
	return NewAtomic(v, target), nil
}

func (e *Evaluator) evalNodeComparison(x *Binary) (Sequence, error) {
	operand := func(expr Expr) (nodeItem, bool, error) {
		seq, err := e.eval(expr)
		if err != nil || len(seq) == 0 {
			return nodeItem{}, false, err
		}
		if len(seq) > 1 {
			return nodeItem{}, false, errorf(CodeType, "%s: expected at most one node, got %d items", x.Op, len(seq))
		}
		n, ok := seq[0].(nodeItem)
		if !ok {
			return nodeItem{}, false, errorf(CodeType, "%s: %s is not a node", x.Op, itemKind(seq[0]))
		}
		return n, true, nil
	}
	left, ok, err := operand(x.Left)
	if err != nil || !ok {
		return nil, err
	}
	right, ok, err := operand(x.Right)
	if err != nil || !ok {
		return nil, err
	}
	var res bool
	switch x.Op {
	case OpIs:
		res = left.node.Identity() == right.node.Identity()
	case OpBefore:
		res = left.node.Identity() < right.node.Identity()
	case OpAfter:
		res = left.node.Identity() > right.node.Identity()
	}
	return Singleton(res), nil
}

func (e *Evaluator) evalRange(x *Binary) (Sequence, error) {
	bound := func(expr Expr) (int64, bool, error) {
		a, ok, err := e.evalAtomic(expr)
		if err != nil || !ok {
			return 0, ok, err
		}
		if a.typ.Primitive == schema.PrimitiveUntyped {
			v, err := schema.Parse(a.value.(string), schema.Integer)
			if err != nil {
				return 0, false, errorf(CodeCast, "%q can not be cast to xs:integer", a.value)
			}
			return v.(int64), true, nil
		}
		if !a.typ.IsNumeric() {
			return 0, false, errorf(CodeType, "range bound %s is not numeric", a.typ)
		}
		n, ok := asInteger(a)
		if !ok {
			return 0, false, errorf(CodeType, "range bound %s is not an integer", a)
		}
		return n, true, nil
	}
	lo, ok, err := bound(x.Left)
	if err != nil || !ok {
		return nil, err
	}
	hi, ok, err := bound(x.Right)
	if err != nil || !ok {
		return nil, err
	}
	if lo > hi {
		return nil, nil
	}
	if size := uint64(hi - lo); size >= uint64(e.rangeLimit) {
		return nil, errorf(CodeOverflow, "range %d to %d exceeds the limit of %d items", lo, hi, e.rangeLimit)
	}
	list := make(Sequence, 0, hi-lo+1)
	for i := lo; ; i++ {
		list = append(list, integerItem(i))
		if i == hi {
			break
		}
	}
	return list, nil
}

func (e *Evaluator) evalConcat(x *Binary) (Sequence, error) {
	var str strings.Builder
	for _, expr := range chain(x) {
		seq, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		s, err := stringValue(seq)
		if err != nil {
			return nil, err
		}
		str.WriteString(s)
	}
	return Singleton(str.String()), nil
}

func (e *Evaluator) evalSetOperation(x *Binary) (Sequence, error) {
	nodes := func(expr Expr) (Sequence, error) {
		seq, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		for i := range seq {
			if _, ok := seq[i].(nodeItem); !ok {
				return nil, errorf(CodeType, "%s: %s is not a node", x.Op, itemKind(seq[i]))
			}
		}
		return seq, nil
	}
	left, err := nodes(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := nodes(x.Right)
	if err != nil {
		return nil, err
	}
	var list Sequence
	switch x.Op {
	case OpUnion:
		list = append(slices.Clone(left), right...)
	case OpIntersect, OpExcept:
		ids := make(map[int64]struct{}, len(right))
		for _, i := range right {
			ids[i.(nodeItem).node.Identity()] = struct{}{}
		}
		keep := x.Op == OpIntersect
		for _, i := range left {
			_, ok := ids[i.(nodeItem).node.Identity()]
			if ok == keep {
				list = append(list, i)
			}
		}
	}
	return nodeOrder(list, true), nil
}
