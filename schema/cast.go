package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Parse validates str against t and returns its value in the representation
// of the primitive of t.
func Parse(str string, t *Type) (any, error) {
	if err := Validate(str, t); err != nil {
		return nil, err
	}
	str = normalizeSpace(str, t.space)
	switch t.Primitive {
	case PrimitiveString, PrimitiveUntyped:
		return str, nil
	case PrimitiveBoolean:
		return str == "true" || str == "1", nil
	case PrimitiveInteger:
		n, err := strconv.ParseInt(strings.TrimPrefix(str, "+"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", str, ErrRange)
		}
		return n, nil
	case PrimitiveDecimal:
		d, _, err := apd.NewFromString(str)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", str, ErrInvalid)
		}
		return d, nil
	case PrimitiveDouble, PrimitiveFloat:
		return parseDouble(str, t)
	case PrimitiveDate:
		return ParseDate(str)
	case PrimitiveDateTime:
		return ParseDateTime(str)
	case PrimitiveTime:
		return ParseTime(str)
	default:
		return nil, fmt.Errorf("%s: %w", t, ErrCast)
	}
}

func parseDouble(str string, t *Type) (float64, error) {
	switch str {
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	size := 64
	if t.Primitive == PrimitiveFloat {
		size = 32
	}
	f, err := strconv.ParseFloat(str, size)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", str, ErrInvalid)
	}
	return f, nil
}

// Coerce converts a value of type from to the type to following the casting
// rules between primitive types.
func Coerce(value any, from, to *Type) (any, error) {
	if to.Abstract {
		return nil, fmt.Errorf("%s: abstract type: %w", to, ErrCast)
	}
	if from.IsStringLike() {
		str, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s: %w", from, ErrCast)
		}
		return Parse(str, to)
	}
	switch to.Primitive {
	case PrimitiveString, PrimitiveUntyped:
		return Parse(Format(value, from), to)
	case PrimitiveBoolean:
		return toBoolean(value)
	case PrimitiveInteger:
		n, err := toInteger(value)
		if err != nil {
			return nil, err
		}
		if err := checkBounds(apd.New(n, 0), to); err != nil {
			return nil, err
		}
		return n, nil
	case PrimitiveDecimal:
		return toDecimal(value)
	case PrimitiveDouble, PrimitiveFloat:
		f, err := toDouble(value)
		if err == nil && to.Primitive == PrimitiveFloat {
			f = float64(float32(f))
		}
		return f, err
	case PrimitiveDate, PrimitiveDateTime, PrimitiveTime:
		return toTemporal(value, from, to)
	default:
		return nil, fmt.Errorf("%s to %s: %w", from, to, ErrCast)
	}
}

func toBoolean(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0 && !math.IsNaN(v), nil
	case *apd.Decimal:
		return !v.IsZero(), nil
	default:
		return false, ErrCast
	}
}

func toInteger(value any) (int64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int64:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s: %w", formatDouble(v), ErrInvalid)
		}
		v = math.Trunc(v)
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("%s: %w", formatDouble(v), ErrRange)
		}
		return int64(v), nil
	case *apd.Decimal:
		n, err := truncate(v).Int64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", v.Text('f'), ErrRange)
		}
		return n, nil
	default:
		return 0, ErrCast
	}
}

func truncate(d *apd.Decimal) *apd.Decimal {
	var (
		res apd.Decimal
		ctx = apd.BaseContext.WithPrecision(40)
	)
	ctx.Rounding = apd.RoundDown
	ctx.RoundToIntegralValue(&res, d)
	return &res
}

func toDecimal(value any) (*apd.Decimal, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return apd.New(1, 0), nil
		}
		return apd.New(0, 0), nil
	case int64:
		return apd.New(v, 0), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: %w", formatDouble(v), ErrInvalid)
		}
		var d apd.Decimal
		if _, err := d.SetFloat64(v); err != nil {
			return nil, err
		}
		return &d, nil
	case *apd.Decimal:
		return v, nil
	default:
		return nil, ErrCast
	}
}

func toDouble(value any) (float64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case *apd.Decimal:
		return v.Float64()
	default:
		return 0, ErrCast
	}
}

func toTemporal(value any, from, to *Type) (time.Time, error) {
	t, ok := value.(time.Time)
	if !ok || !from.IsTemporal() {
		return t, fmt.Errorf("%s to %s: %w", from, to, ErrCast)
	}
	switch {
	case from.Primitive == to.Primitive:
		return t, nil
	case to.Primitive == PrimitiveDate && from.Primitive == PrimitiveDateTime:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
	case to.Primitive == PrimitiveTime && from.Primitive == PrimitiveDateTime:
		return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()), nil
	case to.Primitive == PrimitiveDateTime && from.Primitive == PrimitiveDate:
		return t, nil
	default:
		return t, fmt.Errorf("%s to %s: %w", from, to, ErrCast)
	}
}

// Format returns the canonical lexical form of a value of type t. A nil
// type formats temporal values as xs:dateTime.
func Format(value any, t *Type) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case *apd.Decimal:
		return formatDecimal(v)
	case float64:
		return formatDouble(v)
	case time.Time:
		if t == nil {
			return FormatTemporal(v, PrimitiveDateTime)
		}
		return FormatTemporal(v, t.Primitive)
	default:
		return fmt.Sprint(v)
	}
}

func formatDecimal(d *apd.Decimal) string {
	var x apd.Decimal
	x.Reduce(d)
	str := x.Text('f')
	if str == "-0" {
		return "0"
	}
	return str
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case f == 0:
		if math.Signbit(f) {
			return "-0"
		}
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e6 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	str := strconv.FormatFloat(f, 'E', -1, 64)
	mant, exp, _ := strings.Cut(str, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-0")
	if exp == "" {
		exp = "0"
	}
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}

func FormatTemporal(t time.Time, prim Primitive) string {
	var str string
	switch prim {
	case PrimitiveDate:
		str = t.Format(layoutDate)
	case PrimitiveTime:
		str = t.Format(layoutTime)
	default:
		str = t.Format(layoutDateTime)
	}
	if t.Location() == NoZone {
		return str
	}
	_, off := t.Zone()
	if off == 0 {
		return str + "Z"
	}
	return str + t.Format("-07:00")
}
