package schema

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

const Namespace = "http://www.w3.org/2001/XMLSchema"

var (
	ErrUnknown = errors.New("unknown type")
	ErrInvalid = errors.New("invalid value")
	ErrRange   = errors.New("value out of range")
	ErrCast    = errors.New("value can not be cast to target type")
)

// Primitive identifies the Go representation of values of a type:
//
//	PrimitiveString, PrimitiveUntyped: string
//	PrimitiveBoolean: bool
//	PrimitiveInteger: int64
//	PrimitiveDecimal: *apd.Decimal
//	PrimitiveDouble, PrimitiveFloat: float64
//	PrimitiveDate, PrimitiveDateTime, PrimitiveTime: time.Time
type Primitive int8

const (
	PrimitiveAny Primitive = iota
	PrimitiveUntyped
	PrimitiveString
	PrimitiveBoolean
	PrimitiveDecimal
	PrimitiveInteger
	PrimitiveDouble
	PrimitiveFloat
	PrimitiveDate
	PrimitiveDateTime
	PrimitiveTime
)

type whitespace int8

const (
	wsPreserve whitespace = iota
	wsReplace
	wsCollapse
)

type Type struct {
	Name      string
	Base      *Type
	Primitive Primitive
	Abstract  bool

	space   whitespace
	lexical func(string) error
	min     *apd.Decimal
	max     *apd.Decimal
}

func (t *Type) String() string {
	return "xs:" + t.Name
}

func (t *Type) ExpandedName() string {
	return fmt.Sprintf("Q{%s}%s", Namespace, t.Name)
}

// DerivesFrom reports whether t is other or one of its restrictions. The
// xs:numeric union accepts every numeric type.
func (t *Type) DerivesFrom(other *Type) bool {
	if other == nil {
		return false
	}
	if other == Numeric {
		return t.IsNumeric()
	}
	for x := t; x != nil; x = x.Base {
		if x == other {
			return true
		}
	}
	return false
}

func (t *Type) IsNumeric() bool {
	switch t.Primitive {
	case PrimitiveDecimal, PrimitiveInteger, PrimitiveDouble, PrimitiveFloat:
		return true
	default:
		return t == Numeric
	}
}

func (t *Type) IsStringLike() bool {
	return t.Primitive == PrimitiveString || t.Primitive == PrimitiveUntyped
}

func (t *Type) IsTemporal() bool {
	switch t.Primitive {
	case PrimitiveDate, PrimitiveDateTime, PrimitiveTime:
		return true
	default:
		return false
	}
}

var (
	AnyAtomic = &Type{
		Name:      "anyAtomicType",
		Primitive: PrimitiveAny,
		Abstract:  true,
	}
	Numeric = &Type{
		Name:      "numeric",
		Base:      AnyAtomic,
		Primitive: PrimitiveAny,
		Abstract:  true,
	}
	Untyped = &Type{
		Name:      "untypedAtomic",
		Base:      AnyAtomic,
		Primitive: PrimitiveUntyped,
	}
	String = &Type{
		Name:      "string",
		Base:      AnyAtomic,
		Primitive: PrimitiveString,
	}
	Boolean = &Type{
		Name:      "boolean",
		Base:      AnyAtomic,
		Primitive: PrimitiveBoolean,
		space:     wsCollapse,
		lexical:   checkBoolean,
	}
	Decimal = &Type{
		Name:      "decimal",
		Base:      AnyAtomic,
		Primitive: PrimitiveDecimal,
		space:     wsCollapse,
		lexical:   checkDecimal,
	}
	Integer = &Type{
		Name:      "integer",
		Base:      Decimal,
		Primitive: PrimitiveInteger,
		space:     wsCollapse,
		lexical:   checkInteger,
	}
	Double = &Type{
		Name:      "double",
		Base:      AnyAtomic,
		Primitive: PrimitiveDouble,
		space:     wsCollapse,
		lexical:   checkDouble,
	}
	Float = &Type{
		Name:      "float",
		Base:      AnyAtomic,
		Primitive: PrimitiveFloat,
		space:     wsCollapse,
		lexical:   checkDouble,
	}
	DateTime = &Type{
		Name:      "dateTime",
		Base:      AnyAtomic,
		Primitive: PrimitiveDateTime,
		space:     wsCollapse,
		lexical:   checkDateTime,
	}
	Date = &Type{
		Name:      "date",
		Base:      AnyAtomic,
		Primitive: PrimitiveDate,
		space:     wsCollapse,
		lexical:   checkDate,
	}
	Time = &Type{
		Name:      "time",
		Base:      AnyAtomic,
		Primitive: PrimitiveTime,
		space:     wsCollapse,
		lexical:   checkTime,
	}
	AnyURI = &Type{
		Name:      "anyURI",
		Base:      AnyAtomic,
		Primitive: PrimitiveString,
		space:     wsCollapse,
	}
)

var builtins = make(map[string]*Type)

func init() {
	register := func(list ...*Type) {
		for _, t := range list {
			builtins[t.Name] = t
		}
	}
	register(AnyAtomic, Numeric, Untyped, String, Boolean, Decimal, Integer, Double, Float)
	register(DateTime, Date, Time, AnyURI)

	normalized := restrictString("normalizedString", String, wsReplace, nil)
	token := restrictString("token", normalized, wsCollapse, nil)
	name := restrictString("Name", token, wsCollapse, checkName(false))
	ncname := restrictString("NCName", name, wsCollapse, checkName(true))
	register(
		normalized,
		token,
		restrictString("language", token, wsCollapse, checkLanguage),
		restrictString("NMTOKEN", token, wsCollapse, checkNmtoken),
		name,
		ncname,
		restrictString("ID", ncname, wsCollapse, nil),
		restrictString("IDREF", ncname, wsCollapse, nil),
		restrictString("ENTITY", ncname, wsCollapse, nil),
	)

	nonPositive := restrictInteger("nonPositiveInteger", Integer, "", "0")
	nonNegative := restrictInteger("nonNegativeInteger", Integer, "0", "")
	long := restrictInteger("long", Integer, "-9223372036854775808", "9223372036854775807")
	unsignedLong := restrictInteger("unsignedLong", nonNegative, "0", "18446744073709551615")
	unsignedInt := restrictInteger("unsignedInt", unsignedLong, "0", "4294967295")
	unsignedShort := restrictInteger("unsignedShort", unsignedInt, "0", "65535")
	intType := restrictInteger("int", long, "-2147483648", "2147483647")
	short := restrictInteger("short", intType, "-32768", "32767")
	register(
		nonPositive,
		restrictInteger("negativeInteger", nonPositive, "", "-1"),
		long,
		intType,
		short,
		restrictInteger("byte", short, "-128", "127"),
		nonNegative,
		unsignedLong,
		unsignedInt,
		unsignedShort,
		restrictInteger("unsignedByte", unsignedShort, "0", "255"),
		restrictInteger("positiveInteger", nonNegative, "1", ""),
	)
}

func restrictString(name string, base *Type, space whitespace, check func(string) error) *Type {
	return &Type{
		Name:      name,
		Base:      base,
		Primitive: PrimitiveString,
		space:     space,
		lexical:   check,
	}
}

func restrictInteger(name string, base *Type, lo, hi string) *Type {
	t := Type{
		Name:      name,
		Base:      base,
		Primitive: PrimitiveInteger,
		space:     wsCollapse,
		lexical:   checkInteger,
	}
	if lo != "" {
		t.min, _, _ = apd.NewFromString(lo)
	}
	if hi != "" {
		t.max, _, _ = apd.NewFromString(hi)
	}
	return &t
}

// Lookup returns the builtin type with the given name. The name can be a
// local name, a name prefixed with xs or an expanded name in the schema
// namespace.
func Lookup(name string) (*Type, error) {
	local := name
	if rest, ok := strings.CutPrefix(name, "Q{"); ok {
		uri, part, ok := strings.Cut(rest, "}")
		if !ok || uri != Namespace {
			return nil, fmt.Errorf("%s: %w", name, ErrUnknown)
		}
		local = part
	} else if prefix, part, ok := strings.Cut(name, ":"); ok {
		if prefix != "xs" && prefix != "xsd" {
			return nil, fmt.Errorf("%s: %w", name, ErrUnknown)
		}
		local = part
	}
	t, ok := builtins[local]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknown)
	}
	return t, nil
}

func Names() []string {
	names := slices.Collect(maps.Keys(builtins))
	slices.Sort(names)
	return names
}

// Registry is the view of the type catalog consumed by the evaluator.
type Registry interface {
	Lookup(string) (*Type, error)
	Validate(string, *Type) error
	Coerce(any, *Type, *Type) (any, error)
}

type builtinRegistry struct{}

// Builtins returns the registry of the builtin atomic types.
func Builtins() Registry {
	return builtinRegistry{}
}

func (builtinRegistry) Lookup(name string) (*Type, error) {
	return Lookup(name)
}

func (builtinRegistry) Validate(str string, t *Type) error {
	return Validate(str, t)
}

func (builtinRegistry) Coerce(value any, from, to *Type) (any, error) {
	return Coerce(value, from, to)
}
