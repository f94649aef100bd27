package xquery

import (
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/midbel/xquery/schema"
)

var decimalContext = apd.BaseContext.WithPrecision(34)

type numericLevel int8

const (
	levelInteger numericLevel = iota
	levelDecimal
	levelFloat
	levelDouble
)

func levelOf(t *schema.Type) numericLevel {
	switch t.Primitive {
	case schema.PrimitiveInteger:
		return levelInteger
	case schema.PrimitiveDecimal:
		return levelDecimal
	case schema.PrimitiveFloat:
		return levelFloat
	default:
		return levelDouble
	}
}

// numericOperand converts an untyped operand to xs:double and rejects the
// values that are not numeric.
func numericOperand(a AtomicItem, op Op) (AtomicItem, error) {
	if a.typ.Primitive == schema.PrimitiveUntyped {
		v, err := schema.Parse(a.value.(string), schema.Double)
		if err != nil {
			return a, errorf(CodeCast, "%q can not be used as a number", a.value)
		}
		return doubleItem(v.(float64)), nil
	}
	if !a.typ.IsNumeric() {
		return a, errorf(CodeType, "%s: operand of %s is not numeric", a.typ, op)
	}
	return a, nil
}

func asDecimal(a AtomicItem) *apd.Decimal {
	switch v := a.value.(type) {
	case int64:
		return apd.New(v, 0)
	case *apd.Decimal:
		return v
	default:
		var d apd.Decimal
		d.SetFloat64(asFloat(a))
		return &d
	}
}

func asFloat(a AtomicItem) float64 {
	switch v := a.value.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case *apd.Decimal:
		f, _ := v.Float64()
		return f
	default:
		return math.NaN()
	}
}

func asInteger(a AtomicItem) (int64, bool) {
	switch v := a.value.(type) {
	case int64:
		return v, true
	case *apd.Decimal:
		var x apd.Decimal
		x.Reduce(v)
		if x.Exponent < 0 {
			return 0, false
		}
		n, err := x.Int64()
		return n, err == nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}

func arithmetic(op Op, left, right AtomicItem) (AtomicItem, error) {
	left, err := numericOperand(left, op)
	if err != nil {
		return left, err
	}
	right, err = numericOperand(right, op)
	if err != nil {
		return right, err
	}
	level := max(levelOf(left.typ), levelOf(right.typ))
	if op == OpDiv && level == levelInteger {
		level = levelDecimal
	}
	if op == OpIdiv {
		return integerDivide(left, right, level)
	}
	switch level {
	case levelInteger:
		return integerArithmetic(op, left.value.(int64), right.value.(int64))
	case levelDecimal:
		return decimalArithmetic(op, asDecimal(left), asDecimal(right))
	default:
		res, err := doubleArithmetic(op, asFloat(left), asFloat(right))
		if err != nil {
			return res, err
		}
		if level == levelFloat {
			res = NewAtomic(float64(float32(res.value.(float64))), schema.Float)
		}
		return res, nil
	}
}

func integerArithmetic(op Op, x, y int64) (AtomicItem, error) {
	var (
		res      int64
		overflow bool
	)
	switch op {
	case OpAdd:
		res = x + y
		overflow = (x > 0 && y > 0 && res < 0) || (x < 0 && y < 0 && res >= 0)
	case OpSub:
		res = x - y
		overflow = (x >= 0 && y < 0 && res < 0) || (x < 0 && y > 0 && res >= 0)
	case OpMul:
		res = x * y
		overflow = x != 0 && (res/x != y || (x == -1 && y == math.MinInt64))
	case OpMod:
		if y == 0 {
			return AtomicItem{}, errorf(CodeDivZero, "modulo by zero")
		}
		if y == -1 {
			return integerItem(0), nil
		}
		res = x % y
	default:
		return AtomicItem{}, errorf(CodeType, "%s: unsupported integer operator", op)
	}
	if overflow {
		return AtomicItem{}, errorf(CodeOverflow, "integer overflow: %d %s %d", x, op, y)
	}
	return integerItem(res), nil
}

func decimalArithmetic(op Op, x, y *apd.Decimal) (AtomicItem, error) {
	var (
		res apd.Decimal
		err error
	)
	switch op {
	case OpAdd:
		_, err = decimalContext.Add(&res, x, y)
	case OpSub:
		_, err = decimalContext.Sub(&res, x, y)
	case OpMul:
		_, err = decimalContext.Mul(&res, x, y)
	case OpDiv:
		if y.IsZero() {
			return AtomicItem{}, errorf(CodeDivZero, "division by zero")
		}
		_, err = decimalContext.Quo(&res, x, y)
	case OpMod:
		if y.IsZero() {
			return AtomicItem{}, errorf(CodeDivZero, "modulo by zero")
		}
		_, err = decimalContext.Rem(&res, x, y)
	default:
		return AtomicItem{}, errorf(CodeType, "%s: unsupported decimal operator", op)
	}
	if err != nil {
		return AtomicItem{}, errorf(CodeOverflow, "%s", err)
	}
	return NewAtomic(&res, schema.Decimal), nil
}

func doubleArithmetic(op Op, x, y float64) (AtomicItem, error) {
	var res float64
	switch op {
	case OpAdd:
		res = x + y
	case OpSub:
		res = x - y
	case OpMul:
		res = x * y
	case OpDiv:
		res = x / y
	case OpMod:
		res = math.Mod(x, y)
	default:
		return AtomicItem{}, errorf(CodeType, "%s: unsupported double operator", op)
	}
	return doubleItem(res), nil
}

func integerDivide(left, right AtomicItem, level numericLevel) (AtomicItem, error) {
	switch level {
	case levelInteger:
		x, y := left.value.(int64), right.value.(int64)
		if y == 0 {
			return AtomicItem{}, errorf(CodeDivZero, "integer division by zero")
		}
		if x == math.MinInt64 && y == -1 {
			return AtomicItem{}, errorf(CodeOverflow, "integer overflow: %d idiv %d", x, y)
		}
		return integerItem(x / y), nil
	case levelDecimal:
		y := asDecimal(right)
		if y.IsZero() {
			return AtomicItem{}, errorf(CodeDivZero, "integer division by zero")
		}
		var res apd.Decimal
		if _, err := decimalContext.QuoInteger(&res, asDecimal(left), y); err != nil {
			return AtomicItem{}, errorf(CodeOverflow, "%s", err)
		}
		n, err := res.Int64()
		if err != nil {
			return AtomicItem{}, errorf(CodeOverflow, "%s", err)
		}
		return integerItem(n), nil
	default:
		x, y := asFloat(left), asFloat(right)
		if y == 0 {
			return AtomicItem{}, errorf(CodeDivZero, "integer division by zero")
		}
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) {
			return AtomicItem{}, errorf(CodeOverflow, "integer division of %s", schema.Format(x, nil))
		}
		q := math.Trunc(x / y)
		if q < math.MinInt64 || q >= math.MaxInt64 {
			return AtomicItem{}, errorf(CodeOverflow, "integer division overflow")
		}
		return integerItem(int64(q)), nil
	}
}

func negate(a AtomicItem) (AtomicItem, error) {
	a, err := numericOperand(a, OpNeg)
	if err != nil {
		return a, err
	}
	switch v := a.value.(type) {
	case int64:
		if v == math.MinInt64 {
			return a, errorf(CodeOverflow, "integer overflow: -(%d)", v)
		}
		return NewAtomic(-v, a.typ), nil
	case float64:
		return NewAtomic(-v, a.typ), nil
	case *apd.Decimal:
		var d apd.Decimal
		d.Neg(v)
		return NewAtomic(&d, a.typ), nil
	default:
		return a, errorf(CodeType, "%s: operand of - is not numeric", a.typ)
	}
}

// compareAtomic orders two atomic values. The boolean is false when the
// values are unordered (NaN).
func compareAtomic(left, right AtomicItem, coll Collation) (int, bool, error) {
	switch {
	case left.typ.IsNumeric() && right.typ.IsNumeric():
		return compareNumbers(left, right)
	case left.typ.IsStringLike() && right.typ.IsStringLike():
		return coll.Compare(left.value.(string), right.value.(string)), true, nil
	case left.typ.Primitive == schema.PrimitiveBoolean && right.typ.Primitive == schema.PrimitiveBoolean:
		x, y := left.value.(bool), right.value.(bool)
		switch {
		case x == y:
			return 0, true, nil
		case !x:
			return -1, true, nil
		default:
			return 1, true, nil
		}
	case left.typ.IsTemporal() && left.typ.Primitive == right.typ.Primitive:
		x, y := left.value.(time.Time), right.value.(time.Time)
		return x.Compare(y), true, nil
	default:
		return 0, false, errorf(CodeType, "%s and %s can not be compared", left.typ, right.typ)
	}
}

func compareNumbers(left, right AtomicItem) (int, bool, error) {
	level := max(levelOf(left.typ), levelOf(right.typ))
	switch level {
	case levelInteger:
		x, y := left.value.(int64), right.value.(int64)
		switch {
		case x < y:
			return -1, true, nil
		case x > y:
			return 1, true, nil
		default:
			return 0, true, nil
		}
	case levelDecimal:
		return asDecimal(left).Cmp(asDecimal(right)), true, nil
	default:
		x, y := asFloat(left), asFloat(right)
		if math.IsNaN(x) || math.IsNaN(y) {
			return 0, false, nil
		}
		switch {
		case x < y:
			return -1, true, nil
		case x > y:
			return 1, true, nil
		default:
			return 0, true, nil
		}
	}
}

func compareResult(op Op, cmp int, ordered bool) bool {
	if !ordered {
		return op == OpNe || op == OpValNe
	}
	switch op {
	case OpEq, OpValEq:
		return cmp == 0
	case OpNe, OpValNe:
		return cmp != 0
	case OpLt, OpValLt:
		return cmp < 0
	case OpLe, OpValLe:
		return cmp <= 0
	case OpGt, OpValGt:
		return cmp > 0
	case OpGe, OpValGe:
		return cmp >= 0
	default:
		return false
	}
}
