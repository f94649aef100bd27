package xquery

import (
	"errors"

	"github.com/midbel/xquery/schema"
)

func (e *Evaluator) evalInstanceOf(expr Expr) (Sequence, error) {
	x, ok := expr.(*InstanceOf)
	if !ok {
		return nil, unsupported("%T: not an instance of expression", expr)
	}
	seq, err := e.eval(x.Expr)
	if err != nil {
		return nil, err
	}
	t, err := e.sequenceType(x.Type)
	if err != nil {
		return nil, err
	}
	return Singleton(t.Matches(seq)), nil
}

func (e *Evaluator) evalTreatAs(expr Expr) (Sequence, error) {
	x, ok := expr.(*TreatAs)
	if !ok {
		return nil, unsupported("%T: not a treat as expression", expr)
	}
	seq, err := e.eval(x.Expr)
	if err != nil {
		return nil, err
	}
	if err := e.conform(seq, x.Type, CodeTreat, "treat as"); err != nil {
		return nil, err
	}
	return seq, nil
}

func (e *Evaluator) evalCastAs(expr Expr) (Sequence, error) {
	x, ok := expr.(*CastAs)
	if !ok {
		return nil, unsupported("%T: not a cast expression", expr)
	}
	seq, err := e.eval(x.Expr)
	if err != nil {
		return nil, err
	}
	return e.cast(seq, x.Type)
}

func (e *Evaluator) evalCastableAs(expr Expr) (Sequence, error) {
	x, ok := expr.(*CastableAs)
	if !ok {
		return nil, unsupported("%T: not a castable expression", expr)
	}
	seq, err := e.eval(x.Expr)
	if err != nil {
		return nil, err
	}
	if _, err := e.castTarget(x.Type); err != nil {
		return nil, err
	}
	_, err = e.cast(seq, x.Type)
	if err != nil && !errors.Is(err, ErrCast) && !errors.Is(err, ErrType) {
		return nil, err
	}
	return Singleton(err == nil), nil
}

func (e *Evaluator) castTarget(str string) (*SequenceType, error) {
	t, err := e.sequenceType(str)
	if err != nil {
		return nil, err
	}
	if t.Item != KindAtomic || (t.Occurrence != ExactlyOne && t.Occurrence != ZeroOrOne) {
		return nil, errorf(CodeGenericError, "%s: invalid target type for a cast", str)
	}
	if t.Atomic.Abstract {
		return nil, errorf(CodeAbstractType, "%s: can not cast to an abstract type", t.Atomic)
	}
	return t, nil
}

func (e *Evaluator) cast(seq Sequence, str string) (Sequence, error) {
	t, err := e.castTarget(str)
	if err != nil {
		return nil, err
	}
	vs, err := Atomize(seq)
	if err != nil {
		return nil, err
	}
	switch len(vs) {
	case 0:
		if t.Occurrence == ZeroOrOne {
			return nil, nil
		}
		return nil, errorf(CodeType, "cast as %s: empty sequence", t.Atomic)
	case 1:
	default:
		return nil, errorf(CodeType, "cast as %s: expected one atomic value, got %d", t.Atomic, len(vs))
	}
	a, err := e.castAtomic(vs[0].(AtomicItem), t.Atomic)
	if err != nil {
		return nil, err
	}
	return Sequence{a}, nil
}

func (e *Evaluator) castAtomic(a AtomicItem, target *schema.Type) (AtomicItem, error) {
	if a.typ == target {
		return a, nil
	}
	v, err := e.registry.Coerce(a.value, a.typ, target)
	if err != nil {
		return a, castError(err, a, target)
	}
	return NewAtomic(v, target), nil
}

func castError(err error, a AtomicItem, target *schema.Type) error {
	switch {
	case errors.Is(err, schema.ErrInvalid), errors.Is(err, schema.ErrRange):
		return errorf(CodeCast, "%q can not be cast to %s: %s", a.String(), target, err)
	default:
		return errorf(CodeType, "%s can not be cast to %s", a.typ, target)
	}
}
