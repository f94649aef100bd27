package xquery

import (
	"github.com/midbel/xquery/xml"
)

// Kind identifies the type of an expression node. It is used to dispatch
// evaluation and to label the evaluation counters.
type Kind int8

const (
	KindUnknown Kind = iota
	KindLiteral
	KindSequence
	KindContext
	KindVariable
	KindCall
	KindDynamicCall
	KindFunctionRef
	KindInlineFunction
	KindBinary
	KindUnary
	KindPath
	KindStep
	KindFilter
	KindSimpleMap
	KindFLWOR
	KindQuantified
	KindIf
	KindTypeswitch
	KindInstanceOf
	KindTreatAs
	KindCastAs
	KindCastableAs
	KindMap
	KindArray
	KindLookup
	KindOrdered
	kindCount
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindLiteral:        "literal",
	KindSequence:       "sequence",
	KindContext:        "context",
	KindVariable:       "variable",
	KindCall:           "call",
	KindDynamicCall:    "dynamic-call",
	KindFunctionRef:    "function-ref",
	KindInlineFunction: "inline-function",
	KindBinary:         "binary",
	KindUnary:          "unary",
	KindPath:           "path",
	KindStep:           "step",
	KindFilter:         "filter",
	KindSimpleMap:      "simple-map",
	KindFLWOR:          "flwor",
	KindQuantified:     "quantified",
	KindIf:             "if",
	KindTypeswitch:     "typeswitch",
	KindInstanceOf:     "instance-of",
	KindTreatAs:        "treat-as",
	KindCastAs:         "cast-as",
	KindCastableAs:     "castable-as",
	KindMap:            "map",
	KindArray:          "array",
	KindLookup:         "lookup",
	KindOrdered:        "ordered",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

type Expr interface {
	Kind() Kind
}

type Op int8

const (
	OpInvalid Op = iota
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIdiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpValEq
	OpValNe
	OpValLt
	OpValLe
	OpValGt
	OpValGe
	OpIs
	OpBefore
	OpAfter
	OpRange
	OpConcat
	OpUnion
	OpIntersect
	OpExcept
	OpNeg
	OpPlus
)

var opNames = map[Op]string{
	OpAnd:       "and",
	OpOr:        "or",
	OpAdd:       "+",
	OpSub:       "-",
	OpMul:       "*",
	OpDiv:       "div",
	OpIdiv:      "idiv",
	OpMod:       "mod",
	OpEq:        "=",
	OpNe:        "!=",
	OpLt:        "<",
	OpLe:        "<=",
	OpGt:        ">",
	OpGe:        ">=",
	OpValEq:     "eq",
	OpValNe:     "ne",
	OpValLt:     "lt",
	OpValLe:     "le",
	OpValGt:     "gt",
	OpValGe:     "ge",
	OpIs:        "is",
	OpBefore:    "<<",
	OpAfter:     ">>",
	OpRange:     "to",
	OpConcat:    "||",
	OpUnion:     "union",
	OpIntersect: "intersect",
	OpExcept:    "except",
	OpNeg:       "-",
	OpPlus:      "+",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "?"
}

// LiteralExpr is an atomic constant. Value is a string, an int64, a float64 or
// an *apd.Decimal.
type LiteralExpr struct {
	Value any
}

func (LiteralExpr) Kind() Kind { return KindLiteral }

// SequenceExpr is the comma operator.
type SequenceExpr struct {
	Items []Expr
}

func (SequenceExpr) Kind() Kind { return KindSequence }

type ContextItem struct{}

func (ContextItem) Kind() Kind { return KindContext }

type VarRef struct {
	Name xml.QName
}

func (VarRef) Kind() Kind { return KindVariable }

type Call struct {
	Name xml.QName
	Args []Expr
}

func (Call) Kind() Kind { return KindCall }

type DynamicCall struct {
	Func Expr
	Args []Expr
}

func (DynamicCall) Kind() Kind { return KindDynamicCall }

type FunctionRef struct {
	Name  xml.QName
	Arity int
}

func (FunctionRef) Kind() Kind { return KindFunctionRef }

type Param struct {
	Name xml.QName
	Type string
}

type InlineFunction struct {
	Params []Param
	Return string
	Body   Expr
}

func (InlineFunction) Kind() Kind { return KindInlineFunction }

type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (Binary) Kind() Kind { return KindBinary }

type Unary struct {
	Op      Op
	Operand Expr
}

func (Unary) Kind() Kind { return KindUnary }

type Axis int8

const (
	AxisChild Axis = iota
	AxisDescendant
	AxisDescendantOrSelf
	AxisSelf
	AxisParent
	AxisAncestor
	AxisAncestorOrSelf
	AxisFollowingSibling
	AxisPrecedingSibling
	AxisFollowing
	AxisPreceding
	AxisAttribute
)

var axisNames = map[string]Axis{
	"child":              AxisChild,
	"descendant":         AxisDescendant,
	"descendant-or-self": AxisDescendantOrSelf,
	"self":               AxisSelf,
	"parent":             AxisParent,
	"ancestor":           AxisAncestor,
	"ancestor-or-self":   AxisAncestorOrSelf,
	"following-sibling":  AxisFollowingSibling,
	"preceding-sibling":  AxisPrecedingSibling,
	"following":          AxisFollowing,
	"preceding":          AxisPreceding,
	"attribute":          AxisAttribute,
}

func (a Axis) String() string {
	for n, x := range axisNames {
		if x == a {
			return n
		}
	}
	return "child"
}

func (a Axis) reverse() bool {
	switch a {
	case AxisParent, AxisAncestor, AxisAncestorOrSelf, AxisPrecedingSibling, AxisPreceding:
		return true
	default:
		return false
	}
}

// NodeTest selects nodes on an axis. A NameTest with an empty Type matches
// the principal node kind of the axis.
type NodeTest struct {
	Type     xml.NodeType
	Name     xml.QName
	Wildcard bool
	AnyNS    bool
}

// Step is an axis step with its predicates.
type Step struct {
	Axis       Axis
	Test       NodeTest
	Predicates []Expr
}

func (Step) Kind() Kind { return KindStep }

type Path struct {
	Root  bool
	Steps []Expr
}

func (Path) Kind() Kind { return KindPath }

type Filter struct {
	Expr       Expr
	Predicates []Expr
}

func (Filter) Kind() Kind { return KindFilter }

type SimpleMap struct {
	Left  Expr
	Right Expr
}

func (SimpleMap) Kind() Kind { return KindSimpleMap }

type Binding struct {
	Name xml.QName
	Type string
	Pos  xml.QName
	Expr Expr
}

type Clause interface {
	clause()
}

type ForClause struct {
	Bindings []Binding
}

type LetClause struct {
	Bindings []Binding
}

type WhereClause struct {
	Cond Expr
}

type OrderSpec struct {
	Expr       Expr
	Descending bool
	EmptyLeast bool
	Collation  string
}

type OrderClause struct {
	Stable bool
	Specs  []OrderSpec
}

func (ForClause) clause()   {}
func (LetClause) clause()   {}
func (WhereClause) clause() {}
func (OrderClause) clause() {}

type FLWOR struct {
	Clauses []Clause
	Return  Expr
}

func (FLWOR) Kind() Kind { return KindFLWOR }

type Quantified struct {
	Every     bool
	Bindings  []Binding
	Satisfies Expr
}

func (Quantified) Kind() Kind { return KindQuantified }

type If struct {
	Test Expr
	Then Expr
	Else Expr
}

func (If) Kind() Kind { return KindIf }

type TypeCase struct {
	Var    xml.QName
	Types  []string
	Return Expr
}

type Typeswitch struct {
	Operand Expr
	Cases   []TypeCase
	Default TypeCase
}

func (Typeswitch) Kind() Kind { return KindTypeswitch }

// InstanceOf, TreatAs, CastAs and CastableAs keep the source text of their
// target type. It is parsed and cached when the expression is evaluated.
type InstanceOf struct {
	Expr Expr
	Type string
}

func (InstanceOf) Kind() Kind { return KindInstanceOf }

type TreatAs struct {
	Expr Expr
	Type string
}

func (TreatAs) Kind() Kind { return KindTreatAs }

type CastAs struct {
	Expr Expr
	Type string
}

func (CastAs) Kind() Kind { return KindCastAs }

type CastableAs struct {
	Expr Expr
	Type string
}

func (CastableAs) Kind() Kind { return KindCastableAs }

type MapEntry struct {
	Key   Expr
	Value Expr
}

type MapConstructor struct {
	Entries []MapEntry
}

func (MapConstructor) Kind() Kind { return KindMap }

// ArrayConstructor builds an array. With Curly set, every item of the
// single member expression becomes a member.
type ArrayConstructor struct {
	Members []Expr
	Curly   bool
}

func (ArrayConstructor) Kind() Kind { return KindArray }

// Lookup is the ? operator. A nil Expr makes it a unary lookup on the
// context item. A nil Key is the wildcard.
type Lookup struct {
	Expr Expr
	Key  Expr
}

func (Lookup) Kind() Kind { return KindLookup }

type Ordered struct {
	Expr    Expr
	Ordered bool
}

func (Ordered) Kind() Kind { return KindOrdered }
