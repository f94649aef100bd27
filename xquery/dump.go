package xquery

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/midbel/xquery/xml"
)

// Debug returns the tree of expr written as nested calls, one call per node.
func Debug(expr Expr) string {
	var str strings.Builder
	debugExpr(&str, expr)
	return str.String()
}

func debugExpr(w io.Writer, expr Expr) {
	switch v := expr.(type) {
	case nil:
		io.WriteString(w, "nil")
	case *LiteralExpr:
		debugLiteral(w, v.Value)
	case *ContextItem:
		io.WriteString(w, "current")
	case *VarRef:
		io.WriteString(w, "var(")
		debugName(w, v.Name)
		io.WriteString(w, ")")
	case *SequenceExpr:
		debugList(w, "sequence", v.Items)
	case *Call:
		io.WriteString(w, "call(")
		debugName(w, v.Name)
		for _, a := range v.Args {
			io.WriteString(w, ", ")
			debugExpr(w, a)
		}
		io.WriteString(w, ")")
	case *DynamicCall:
		io.WriteString(w, "dynamic-call(")
		debugExpr(w, v.Func)
		for _, a := range v.Args {
			io.WriteString(w, ", ")
			debugExpr(w, a)
		}
		io.WriteString(w, ")")
	case *FunctionRef:
		io.WriteString(w, "function-ref(")
		debugName(w, v.Name)
		io.WriteString(w, "#")
		io.WriteString(w, strconv.Itoa(v.Arity))
		io.WriteString(w, ")")
	case *InlineFunction:
		io.WriteString(w, "function(")
		for _, p := range v.Params {
			debugName(w, p.Name)
			io.WriteString(w, ", ")
		}
		debugExpr(w, v.Body)
		io.WriteString(w, ")")
	case *Binary:
		io.WriteString(w, "binary(")
		io.WriteString(w, strconv.Quote(v.Op.String()))
		io.WriteString(w, ", ")
		debugExpr(w, v.Left)
		io.WriteString(w, ", ")
		debugExpr(w, v.Right)
		io.WriteString(w, ")")
	case *Unary:
		io.WriteString(w, "unary(")
		io.WriteString(w, strconv.Quote(v.Op.String()))
		io.WriteString(w, ", ")
		debugExpr(w, v.Operand)
		io.WriteString(w, ")")
	case *Path:
		name := "path"
		if v.Root {
			name = "root-path"
		}
		debugList(w, name, v.Steps)
	case *Step:
		io.WriteString(w, "step(")
		io.WriteString(w, v.Axis.String())
		io.WriteString(w, ", ")
		debugTest(w, v.Test)
		for _, p := range v.Predicates {
			io.WriteString(w, ", ")
			debugExpr(w, p)
		}
		io.WriteString(w, ")")
	case *Filter:
		io.WriteString(w, "filter(")
		debugExpr(w, v.Expr)
		for _, p := range v.Predicates {
			io.WriteString(w, ", ")
			debugExpr(w, p)
		}
		io.WriteString(w, ")")
	case *SimpleMap:
		io.WriteString(w, "map-op(")
		debugExpr(w, v.Left)
		io.WriteString(w, ", ")
		debugExpr(w, v.Right)
		io.WriteString(w, ")")
	case *FLWOR:
		io.WriteString(w, "flwor(")
		for _, c := range v.Clauses {
			debugClause(w, c)
			io.WriteString(w, ", ")
		}
		io.WriteString(w, "return(")
		debugExpr(w, v.Return)
		io.WriteString(w, "))")
	case *Quantified:
		if v.Every {
			io.WriteString(w, "every(")
		} else {
			io.WriteString(w, "some(")
		}
		debugBindings(w, v.Bindings)
		io.WriteString(w, ", ")
		debugExpr(w, v.Satisfies)
		io.WriteString(w, ")")
	case *If:
		io.WriteString(w, "if(")
		debugExpr(w, v.Test)
		io.WriteString(w, ", ")
		debugExpr(w, v.Then)
		io.WriteString(w, ", ")
		debugExpr(w, v.Else)
		io.WriteString(w, ")")
	case *Typeswitch:
		io.WriteString(w, "typeswitch(")
		debugExpr(w, v.Operand)
		for _, c := range v.Cases {
			io.WriteString(w, ", case(")
			io.WriteString(w, strings.Join(c.Types, " | "))
			io.WriteString(w, ", ")
			debugExpr(w, c.Return)
			io.WriteString(w, ")")
		}
		io.WriteString(w, ", default(")
		debugExpr(w, v.Default.Return)
		io.WriteString(w, "))")
	case *InstanceOf:
		debugTyped(w, "instance-of", v.Expr, v.Type)
	case *TreatAs:
		debugTyped(w, "treat-as", v.Expr, v.Type)
	case *CastAs:
		debugTyped(w, "cast-as", v.Expr, v.Type)
	case *CastableAs:
		debugTyped(w, "castable-as", v.Expr, v.Type)
	case *MapConstructor:
		io.WriteString(w, "map(")
		for i, e := range v.Entries {
			if i > 0 {
				io.WriteString(w, ", ")
			}
			debugExpr(w, e.Key)
			io.WriteString(w, ": ")
			debugExpr(w, e.Value)
		}
		io.WriteString(w, ")")
	case *ArrayConstructor:
		name := "array"
		if v.Curly {
			name = "curly-array"
		}
		debugList(w, name, v.Members)
	case *Lookup:
		io.WriteString(w, "lookup(")
		if v.Expr == nil {
			io.WriteString(w, "current")
		} else {
			debugExpr(w, v.Expr)
		}
		io.WriteString(w, ", ")
		if v.Key == nil {
			io.WriteString(w, "*")
		} else {
			debugExpr(w, v.Key)
		}
		io.WriteString(w, ")")
	case *Ordered:
		name := "unordered"
		if v.Ordered {
			name = "ordered"
		}
		io.WriteString(w, name)
		io.WriteString(w, "(")
		debugExpr(w, v.Expr)
		io.WriteString(w, ")")
	default:
		fmt.Fprintf(w, "unknown(%s)", expr.Kind())
	}
}

func debugLiteral(w io.Writer, value any) {
	switch v := value.(type) {
	case string:
		io.WriteString(w, strconv.Quote(v))
	case int64:
		io.WriteString(w, strconv.FormatInt(v, 10))
	case float64:
		io.WriteString(w, strconv.FormatFloat(v, 'g', -1, 64))
	case *apd.Decimal:
		io.WriteString(w, v.Text('f'))
	default:
		fmt.Fprint(w, v)
	}
}

func debugName(w io.Writer, name xml.QName) {
	if uri := name.Namespace(); uri != "" {
		io.WriteString(w, "Q{")
		io.WriteString(w, uri)
		io.WriteString(w, "}")
	}
	io.WriteString(w, name.LocalName())
}

func debugTest(w io.Writer, test NodeTest) {
	switch {
	case test.Wildcard && test.AnyNS:
		io.WriteString(w, "*")
	case test.Wildcard:
		io.WriteString(w, "Q{")
		io.WriteString(w, test.Name.Namespace())
		io.WriteString(w, "}*")
	case test.AnyNS:
		io.WriteString(w, "*:")
		io.WriteString(w, test.Name.LocalName())
	case !test.Name.Zero():
		debugName(w, test.Name)
	default:
		io.WriteString(w, "kind(")
		io.WriteString(w, test.Type.String())
		io.WriteString(w, ")")
	}
}

func debugList(w io.Writer, name string, list []Expr) {
	io.WriteString(w, name)
	io.WriteString(w, "(")
	for i, e := range list {
		if i > 0 {
			io.WriteString(w, ", ")
		}
		debugExpr(w, e)
	}
	io.WriteString(w, ")")
}

func debugTyped(w io.Writer, name string, expr Expr, typ string) {
	io.WriteString(w, name)
	io.WriteString(w, "(")
	debugExpr(w, expr)
	io.WriteString(w, ", ")
	io.WriteString(w, strconv.Quote(typ))
	io.WriteString(w, ")")
}

func debugBindings(w io.Writer, list []Binding) {
	for i, b := range list {
		if i > 0 {
			io.WriteString(w, ", ")
		}
		io.WriteString(w, "$")
		debugName(w, b.Name)
		io.WriteString(w, " := ")
		debugExpr(w, b.Expr)
	}
}

func debugClause(w io.Writer, clause Clause) {
	switch c := clause.(type) {
	case *ForClause:
		io.WriteString(w, "for(")
		debugBindings(w, c.Bindings)
		io.WriteString(w, ")")
	case *LetClause:
		io.WriteString(w, "let(")
		debugBindings(w, c.Bindings)
		io.WriteString(w, ")")
	case *WhereClause:
		io.WriteString(w, "where(")
		debugExpr(w, c.Cond)
		io.WriteString(w, ")")
	case *OrderClause:
		io.WriteString(w, "order(")
		for i, s := range c.Specs {
			if i > 0 {
				io.WriteString(w, ", ")
			}
			debugExpr(w, s.Expr)
			if s.Descending {
				io.WriteString(w, " descending")
			}
		}
		io.WriteString(w, ")")
	}
}
