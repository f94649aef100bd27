package xquery

import (
	"github.com/cockroachdb/apd/v3"
)

type handlerFunc func(*Evaluator, Expr) (Sequence, error)

var handlers map[Kind]handlerFunc

func init() {
	handlers = map[Kind]handlerFunc{
		KindLiteral:        (*Evaluator).evalLiteral,
		KindSequence:       (*Evaluator).evalSequence,
		KindContext:        (*Evaluator).evalContext,
		KindDynamicCall:    (*Evaluator).evalDynamicCall,
		KindFunctionRef:    (*Evaluator).evalFunctionRef,
		KindInlineFunction: (*Evaluator).evalInlineFunction,
		KindPath:           (*Evaluator).evalPath,
		KindStep:           (*Evaluator).evalStep,
		KindFilter:         (*Evaluator).evalFilter,
		KindSimpleMap:      (*Evaluator).evalSimpleMap,
		KindFLWOR:          (*Evaluator).evalFLWOR,
		KindQuantified:     (*Evaluator).evalQuantified,
		KindIf:             (*Evaluator).evalIf,
		KindTypeswitch:     (*Evaluator).evalTypeswitch,
		KindInstanceOf:     (*Evaluator).evalInstanceOf,
		KindTreatAs:        (*Evaluator).evalTreatAs,
		KindCastAs:         (*Evaluator).evalCastAs,
		KindCastableAs:     (*Evaluator).evalCastableAs,
		KindMap:            (*Evaluator).evalMap,
		KindArray:          (*Evaluator).evalArray,
		KindLookup:         (*Evaluator).evalLookup,
		KindOrdered:        (*Evaluator).evalOrdered,
	}
}

// eval dispatches expr to its handler. The most frequent kinds are tested
// first, the others go through the handler table.
func (e *Evaluator) eval(expr Expr) (Sequence, error) {
	if expr == nil {
		return nil, e.fail(unsupported("missing expression"), nil)
	}
	countKind(expr.Kind())

	var (
		seq Sequence
		err error
	)
	switch x := expr.(type) {
	case *Binary:
		seq, err = e.evalBinary(x)
	case *Unary:
		seq, err = e.evalUnary(x)
	case *VarRef:
		seq, err = e.evalVariable(x)
	case *Call:
		seq, err = e.evalCall(x)
	default:
		fn, ok := handlers[expr.Kind()]
		if !ok {
			return nil, e.fail(unsupported("%T: expression can not be evaluated", expr), expr)
		}
		seq, err = fn(e, expr)
	}
	if err != nil {
		return nil, e.fail(err, expr)
	}
	return seq, nil
}

func (e *Evaluator) evalLiteral(expr Expr) (Sequence, error) {
	x, ok := expr.(*LiteralExpr)
	if !ok {
		return nil, unsupported("%T: not a literal", expr)
	}
	switch v := x.Value.(type) {
	case string, int64, float64, bool:
		return Singleton(v), nil
	case int:
		return Singleton(int64(v)), nil
	case *apd.Decimal:
		return Singleton(v), nil
	default:
		return nil, unsupported("%T: literal value not supported", x.Value)
	}
}

func (e *Evaluator) evalSequence(expr Expr) (Sequence, error) {
	x, ok := expr.(*SequenceExpr)
	if !ok {
		return nil, unsupported("%T: not a sequence", expr)
	}
	var list Sequence
	for i := range x.Items {
		seq, err := e.eval(x.Items[i])
		if err != nil {
			return nil, err
		}
		list = append(list, seq...)
	}
	return list, nil
}

func (e *Evaluator) evalContext(_ Expr) (Sequence, error) {
	f, err := e.currentFocus()
	if err != nil {
		return nil, err
	}
	return Sequence{f.item}, nil
}

func (e *Evaluator) evalIf(expr Expr) (Sequence, error) {
	x, ok := expr.(*If)
	if !ok {
		return nil, unsupported("%T: not a conditional", expr)
	}
	test, err := e.eval(x.Test)
	if err != nil {
		return nil, err
	}
	ok, err = EffectiveBooleanValue(test)
	if err != nil {
		return nil, err
	}
	if ok {
		return e.eval(x.Then)
	}
	if x.Else == nil {
		return nil, nil
	}
	return e.eval(x.Else)
}

func (e *Evaluator) evalSimpleMap(expr Expr) (Sequence, error) {
	x, ok := expr.(*SimpleMap)
	if !ok {
		return nil, unsupported("%T: not a simple map", expr)
	}
	left, err := e.eval(x.Left)
	if err != nil {
		return nil, err
	}
	var list Sequence
	for i := range left {
		e.pushFocus(left[i], i+1, len(left))
		seq, err := e.eval(x.Right)
		e.popFocus()
		if err != nil {
			return nil, err
		}
		list = append(list, seq...)
	}
	return list, nil
}

func (e *Evaluator) evalOrdered(expr Expr) (Sequence, error) {
	x, ok := expr.(*Ordered)
	if !ok {
		return nil, unsupported("%T: not an ordered expression", expr)
	}
	prev := e.unordered
	e.unordered = !x.Ordered
	defer func() {
		e.unordered = prev
	}()
	return e.eval(x.Expr)
}
