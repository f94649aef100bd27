package xquery

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
	"github.com/midbel/xquery/environ"
	"github.com/midbel/xquery/schema"
	"github.com/midbel/xquery/xml"
)

type builtin struct {
	call callFunc
	min  int
	max  int
}

func (b builtin) accept(arity int) bool {
	return arity >= b.min && (b.max < 0 || arity <= b.max)
}

var builtinEnv environ.Environ[builtin]

func registerBuiltin(uri, name string, min, max int, call callFunc) {
	b := builtin{
		call: call,
		min:  min,
		max:  max,
	}
	builtinEnv.Define(xml.ExpandedName(name, "", uri).ExpandedName(), b)
}

func lookupBuiltin(name xml.QName, arity int) (builtin, bool) {
	b, err := builtinEnv.Resolve(name.ExpandedName())
	if err != nil || !b.accept(arity) {
		return b, false
	}
	return b, true
}

// Builtins returns the expanded names of the functions of the builtin
// library.
func Builtins() []string {
	return builtinEnv.Names()
}

func init() {
	builtinEnv = environ.Empty[builtin]()

	fn := func(name string, min, max int, call callFunc) {
		registerBuiltin(NamespaceFunctions, name, min, max, call)
	}
	fn("true", 0, 0, fnTrue)
	fn("false", 0, 0, fnFalse)
	fn("not", 1, 1, fnNot)
	fn("boolean", 1, 1, fnBoolean)
	fn("count", 1, 1, fnCount)
	fn("empty", 1, 1, fnEmpty)
	fn("exists", 1, 1, fnExists)
	fn("position", 0, 0, fnPosition)
	fn("last", 0, 0, fnLast)
	fn("string", 0, 1, fnString)
	fn("number", 0, 1, fnNumber)
	fn("data", 0, 1, fnData)
	fn("concat", 2, -1, fnConcat)
	fn("string-join", 1, 2, fnStringJoin)
	fn("string-length", 0, 1, fnStringLength)
	fn("substring", 2, 3, fnSubstring)
	fn("contains", 2, 3, fnContains)
	fn("starts-with", 2, 3, fnStartsWith)
	fn("ends-with", 2, 3, fnEndsWith)
	fn("upper-case", 1, 1, fnUpperCase)
	fn("lower-case", 1, 1, fnLowerCase)
	fn("normalize-space", 0, 1, fnNormalizeSpace)
	fn("translate", 3, 3, fnTranslate)
	fn("string-to-codepoints", 1, 1, fnStringToCodepoints)
	fn("codepoints-to-string", 1, 1, fnCodepointsToString)
	fn("matches", 2, 3, fnMatches)
	fn("replace", 3, 4, fnReplace)
	fn("tokenize", 1, 3, fnTokenize)
	fn("sum", 1, 2, fnSum)
	fn("avg", 1, 1, fnAvg)
	fn("min", 1, 2, fnMin)
	fn("max", 1, 2, fnMax)
	fn("abs", 1, 1, fnAbs)
	fn("floor", 1, 1, fnFloor)
	fn("ceiling", 1, 1, fnCeiling)
	fn("round", 1, 1, fnRound)
	fn("distinct-values", 1, 2, fnDistinctValues)
	fn("reverse", 1, 1, fnReverse)
	fn("subsequence", 2, 3, fnSubsequence)
	fn("head", 1, 1, fnHead)
	fn("tail", 1, 1, fnTail)
	fn("insert-before", 3, 3, fnInsertBefore)
	fn("remove", 2, 2, fnRemove)
	fn("index-of", 2, 3, fnIndexOf)
	fn("exactly-one", 1, 1, fnExactlyOne)
	fn("zero-or-one", 1, 1, fnZeroOrOne)
	fn("one-or-more", 1, 1, fnOneOrMore)
	fn("compare", 2, 3, fnCompare)
	fn("name", 0, 1, fnName)
	fn("local-name", 0, 1, fnLocalName)
	fn("namespace-uri", 0, 1, fnNamespaceURI)
	fn("root", 0, 1, fnRoot)
	fn("error", 0, 3, fnError)
	fn("format-integer", 2, 3, fnFormatInteger)
	fn("format-number", 2, 3, fnFormatNumber)
	fn("for-each", 2, 2, fnForEach)
	fn("filter", 2, 2, fnFilter)
	fn("fold-left", 3, 3, fnFoldLeft)

	mapfn := func(name string, min, max int, call callFunc) {
		registerBuiltin(NamespaceMap, name, min, max, call)
	}
	mapfn("size", 1, 1, mapSize)
	mapfn("keys", 1, 1, mapKeys)
	mapfn("get", 2, 2, mapGet)
	mapfn("contains", 2, 2, mapContains)
	mapfn("put", 3, 3, mapPut)
	mapfn("remove", 2, 2, mapRemove)
	mapfn("entry", 2, 2, mapEntryOf)
	mapfn("merge", 1, 2, mapMerge)
	mapfn("for-each", 2, 2, mapForEach)

	arrfn := func(name string, min, max int, call callFunc) {
		registerBuiltin(NamespaceArray, name, min, max, call)
	}
	arrfn("size", 1, 1, arraySize)
	arrfn("get", 2, 2, arrayGet)
	arrfn("append", 2, 2, arrayAppend)
	arrfn("head", 1, 1, arrayHead)
	arrfn("tail", 1, 1, arrayTail)
	arrfn("reverse", 1, 1, arrayReverse)
	arrfn("join", 1, 1, arrayJoin)
	arrfn("flatten", 1, 1, arrayFlatten)
	arrfn("subarray", 2, 3, arraySubarray)
	arrfn("for-each", 2, 2, arrayForEach)

	mathfn := func(name string, min, max int, call callFunc) {
		registerBuiltin(NamespaceMath, name, min, max, call)
	}
	mathfn("pi", 0, 0, mathPi)
	mathfn("sqrt", 1, 1, mathUnary(math.Sqrt))
	mathfn("exp", 1, 1, mathUnary(math.Exp))
	mathfn("log", 1, 1, mathUnary(math.Log))
	mathfn("pow", 2, 2, mathPow)
}

func contextArg(e *Evaluator, args []Sequence) (Sequence, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	f, err := e.currentFocus()
	if err != nil {
		return nil, err
	}
	return Sequence{f.item}, nil
}

func collationArg(e *Evaluator, args []Sequence, ix int) (Collation, error) {
	if len(args) <= ix {
		return e.defaultCollation(), nil
	}
	uri, err := stringValue(args[ix])
	if err != nil {
		return nil, err
	}
	return e.getCollation(uri)
}

// numericArg atomizes an optional numeric argument. Untyped values are
// cast to xs:double.
func numericArg(seq Sequence) (AtomicItem, bool, error) {
	a, ok, err := atomizeOne(seq)
	if err != nil || !ok {
		return a, ok, err
	}
	a, err = numericOperand(a, OpAdd)
	return a, err == nil, err
}

func functionArg(seq Sequence) (*FunctionItem, error) {
	if len(seq) != 1 {
		return nil, errorf(CodeType, "expected a function, got %d items", len(seq))
	}
	return asFunction(seq[0])
}

func mapArg(seq Sequence) (*MapItem, error) {
	if len(seq) == 1 {
		if m, ok := seq[0].(*MapItem); ok {
			return m, nil
		}
	}
	return nil, errorf(CodeType, "expected a single map")
}

func arrayArg(seq Sequence) (*ArrayItem, error) {
	if len(seq) == 1 {
		if a, ok := seq[0].(*ArrayItem); ok {
			return a, nil
		}
	}
	return nil, errorf(CodeType, "expected a single array")
}

func nodeArg(seq Sequence) (xml.Node, error) {
	switch len(seq) {
	case 0:
		return nil, nil
	case 1:
		n, ok := seq[0].(nodeItem)
		if !ok {
			return nil, errorf(CodeType, "expected a node, got %s", itemKind(seq[0]))
		}
		return n.node, nil
	default:
		return nil, errorf(CodeType, "expected a single node, got %d items", len(seq))
	}
}

func fnTrue(_ *Evaluator, _ []Sequence) (Sequence, error) {
	return Singleton(true), nil
}

func fnFalse(_ *Evaluator, _ []Sequence) (Sequence, error) {
	return Singleton(false), nil
}

func fnNot(_ *Evaluator, args []Sequence) (Sequence, error) {
	ok, err := EffectiveBooleanValue(args[0])
	return Singleton(!ok), err
}

func fnBoolean(_ *Evaluator, args []Sequence) (Sequence, error) {
	ok, err := EffectiveBooleanValue(args[0])
	return Singleton(ok), err
}

func fnCount(_ *Evaluator, args []Sequence) (Sequence, error) {
	return Singleton(len(args[0])), nil
}

func fnEmpty(_ *Evaluator, args []Sequence) (Sequence, error) {
	return Singleton(len(args[0]) == 0), nil
}

func fnExists(_ *Evaluator, args []Sequence) (Sequence, error) {
	return Singleton(len(args[0]) > 0), nil
}

func fnPosition(e *Evaluator, _ []Sequence) (Sequence, error) {
	f, err := e.currentFocus()
	if err != nil {
		return nil, err
	}
	return Singleton(f.pos), nil
}

func fnLast(e *Evaluator, _ []Sequence) (Sequence, error) {
	f, err := e.currentFocus()
	if err != nil {
		return nil, err
	}
	return Singleton(f.size), nil
}

func fnString(e *Evaluator, args []Sequence) (Sequence, error) {
	seq, err := contextArg(e, args)
	if err != nil {
		return nil, err
	}
	switch len(seq) {
	case 0:
		return Singleton(""), nil
	case 1:
	default:
		return nil, errorf(CodeType, "fn:string called on %d items", len(seq))
	}
	switch x := seq[0].(type) {
	case nodeItem:
		return Singleton(x.node.Value()), nil
	case AtomicItem:
		return Singleton(x.String()), nil
	default:
		return nil, errorf(CodeStringValue, "%s has no string value", itemKind(x))
	}
}

func fnNumber(e *Evaluator, args []Sequence) (Sequence, error) {
	seq, err := contextArg(e, args)
	if err != nil {
		return nil, err
	}
	a, ok, err := atomizeOne(seq)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Singleton(math.NaN()), nil
	}
	v, err := schema.Coerce(a.value, a.typ, schema.Double)
	if err != nil {
		return Singleton(math.NaN()), nil
	}
	return Singleton(v.(float64)), nil
}

func fnData(e *Evaluator, args []Sequence) (Sequence, error) {
	seq, err := contextArg(e, args)
	if err != nil {
		return nil, err
	}
	return Atomize(seq)
}

func fnConcat(_ *Evaluator, args []Sequence) (Sequence, error) {
	var str strings.Builder
	for _, a := range args {
		s, err := stringValue(a)
		if err != nil {
			return nil, err
		}
		str.WriteString(s)
	}
	return Singleton(str.String()), nil
}

func fnStringJoin(_ *Evaluator, args []Sequence) (Sequence, error) {
	vs, err := Atomize(args[0])
	if err != nil {
		return nil, err
	}
	var sep string
	if len(args) > 1 {
		if sep, err = stringValue(args[1]); err != nil {
			return nil, err
		}
	}
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.(AtomicItem).String())
	}
	return Singleton(strings.Join(parts, sep)), nil
}

func fnStringLength(e *Evaluator, args []Sequence) (Sequence, error) {
	seq, err := contextArg(e, args)
	if err != nil {
		return nil, err
	}
	str, err := stringValue(seq)
	if err != nil {
		return nil, err
	}
	return Singleton(utf8.RuneCountInString(str)), nil
}

// xpathRound rounds half toward positive infinity.
func xpathRound(f float64) float64 {
	return math.Floor(f + 0.5)
}

func fnSubstring(_ *Evaluator, args []Sequence) (Sequence, error) {
	str, err := stringValue(args[0])
	if err != nil {
		return nil, err
	}
	start, _, err := numericArg(args[1])
	if err != nil {
		return nil, err
	}
	var (
		chars = []rune(str)
		beg   = xpathRound(asFloat(start))
		end   = math.Inf(1)
	)
	if len(args) > 2 {
		size, _, err := numericArg(args[2])
		if err != nil {
			return nil, err
		}
		end = beg + xpathRound(asFloat(size))
	}
	var out []rune
	for i := range chars {
		p := float64(i + 1)
		if p >= beg && p < end {
			out = append(out, chars[i])
		}
	}
	return Singleton(string(out)), nil
}

func stringPair(e *Evaluator, args []Sequence) (string, string, Collation, error) {
	str, err := stringValue(args[0])
	if err != nil {
		return "", "", nil, err
	}
	sub, err := stringValue(args[1])
	if err != nil {
		return "", "", nil, err
	}
	coll, err := collationArg(e, args, 2)
	return str, sub, coll, err
}

func fnContains(e *Evaluator, args []Sequence) (Sequence, error) {
	str, sub, coll, err := stringPair(e, args)
	if err != nil {
		return nil, err
	}
	if _, ok := coll.(codepointCollation); !ok {
		return nil, errorf(CodeCollation, "%s: collation does not support substring matching", coll.URI())
	}
	return Singleton(strings.Contains(str, sub)), nil
}

func fnStartsWith(e *Evaluator, args []Sequence) (Sequence, error) {
	str, sub, coll, err := stringPair(e, args)
	if err != nil {
		return nil, err
	}
	if _, ok := coll.(codepointCollation); !ok {
		n := min(len(str), len(sub))
		return Singleton(coll.Compare(str[:n], sub) == 0), nil
	}
	return Singleton(strings.HasPrefix(str, sub)), nil
}

func fnEndsWith(e *Evaluator, args []Sequence) (Sequence, error) {
	str, sub, coll, err := stringPair(e, args)
	if err != nil {
		return nil, err
	}
	if _, ok := coll.(codepointCollation); !ok {
		n := min(len(str), len(sub))
		return Singleton(coll.Compare(str[len(str)-n:], sub) == 0), nil
	}
	return Singleton(strings.HasSuffix(str, sub)), nil
}

func fnUpperCase(_ *Evaluator, args []Sequence) (Sequence, error) {
	str, err := stringValue(args[0])
	return Singleton(strings.ToUpper(str)), err
}

func fnLowerCase(_ *Evaluator, args []Sequence) (Sequence, error) {
	str, err := stringValue(args[0])
	return Singleton(strings.ToLower(str)), err
}

func fnNormalizeSpace(e *Evaluator, args []Sequence) (Sequence, error) {
	seq, err := contextArg(e, args)
	if err != nil {
		return nil, err
	}
	str, err := stringValue(seq)
	if err != nil {
		return nil, err
	}
	return Singleton(strings.Join(strings.Fields(str), " ")), nil
}

func fnTranslate(_ *Evaluator, args []Sequence) (Sequence, error) {
	var parts [3][]rune
	for i := range parts {
		str, err := stringValue(args[i])
		if err != nil {
			return nil, err
		}
		parts[i] = []rune(str)
	}
	var out []rune
	for _, r := range parts[0] {
		ix := slices.Index(parts[1], r)
		switch {
		case ix < 0:
			out = append(out, r)
		case ix < len(parts[2]):
			out = append(out, parts[2][ix])
		}
	}
	return Singleton(string(out)), nil
}

func fnStringToCodepoints(_ *Evaluator, args []Sequence) (Sequence, error) {
	str, err := stringValue(args[0])
	if err != nil {
		return nil, err
	}
	var list Sequence
	for _, r := range str {
		list = append(list, integerItem(int64(r)))
	}
	return list, nil
}

func fnCodepointsToString(_ *Evaluator, args []Sequence) (Sequence, error) {
	var str strings.Builder
	for i := range args[0] {
		n, err := integerArg(args[0][i : i+1])
		if err != nil {
			return nil, err
		}
		if n <= 0 || n > utf8.MaxRune || !utf8.ValidRune(rune(n)) {
			return nil, errorf(CodeCast, "%d: invalid codepoint", n)
		}
		str.WriteRune(rune(n))
	}
	return Singleton(str.String()), nil
}

// compileRegex translates the pattern and the flags of the regular
// expression functions to a Go regexp.
func compileRegex(args []Sequence, ix int) (*regexp.Regexp, error) {
	pattern, err := stringValue(args[ix])
	if err != nil {
		return nil, err
	}
	var flags string
	if len(args) > ix+1 {
		if flags, err = stringValue(args[ix+1]); err != nil {
			return nil, err
		}
	}
	var prefix string
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			prefix += string(f)
		case 'q':
			pattern = regexp.QuoteMeta(pattern)
		case 'x':
			pattern = strings.Join(strings.Fields(pattern), "")
		default:
			return nil, errorf(CodeRegex, "%c: invalid regular expression flag", f)
		}
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errorf(CodeRegex, "%s", err)
	}
	return re, nil
}

func fnMatches(_ *Evaluator, args []Sequence) (Sequence, error) {
	str, err := stringValue(args[0])
	if err != nil {
		return nil, err
	}
	re, err := compileRegex(args, 1)
	if err != nil {
		return nil, err
	}
	return Singleton(re.MatchString(str)), nil
}

func fnReplace(_ *Evaluator, args []Sequence) (Sequence, error) {
	str, err := stringValue(args[0])
	if err != nil {
		return nil, err
	}
	re, err := compileRegex(slices.Delete(slices.Clone(args), 2, 3), 1)
	if err != nil {
		return nil, err
	}
	if re.MatchString("") {
		return nil, errorf(CodeRegexEmpty, "%s: pattern matches the empty string", re)
	}
	repl, err := stringValue(args[2])
	if err != nil {
		return nil, err
	}
	return Singleton(re.ReplaceAllString(str, replacement(repl))), nil
}

// replacement rewrites $n group references and escaped characters to the
// syntax of regexp.Expand.
func replacement(str string) string {
	var out strings.Builder
	for i := 0; i < len(str); i++ {
		switch c := str[i]; {
		case c == '\\' && i+1 < len(str):
			i++
			if str[i] == '$' {
				out.WriteString("$$")
			} else {
				out.WriteByte(str[i])
			}
		case c == '$':
			j := i + 1
			for j < len(str) && str[j] >= '0' && str[j] <= '9' {
				j++
			}
			out.WriteString("${" + str[i+1:j] + "}")
			i = j - 1
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

func fnTokenize(_ *Evaluator, args []Sequence) (Sequence, error) {
	str, err := stringValue(args[0])
	if err != nil {
		return nil, err
	}
	var parts []string
	if len(args) == 1 {
		parts = strings.Fields(str)
	} else {
		re, err := compileRegex(args, 1)
		if err != nil {
			return nil, err
		}
		if re.MatchString("") {
			return nil, errorf(CodeRegexEmpty, "%s: pattern matches the empty string", re)
		}
		if str != "" {
			parts = re.Split(str, -1)
		}
	}
	var list Sequence
	for _, p := range parts {
		list = append(list, stringItem(p))
	}
	return list, nil
}

func fnSum(_ *Evaluator, args []Sequence) (Sequence, error) {
	vs, err := Atomize(args[0])
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		if len(args) > 1 {
			return args[1], nil
		}
		return Singleton(0), nil
	}
	acc, err := numericOperand(vs[0].(AtomicItem), OpAdd)
	if err != nil {
		return nil, err
	}
	for _, v := range vs[1:] {
		if acc, err = arithmetic(OpAdd, acc, v.(AtomicItem)); err != nil {
			return nil, err
		}
	}
	return Sequence{acc}, nil
}

func fnAvg(e *Evaluator, args []Sequence) (Sequence, error) {
	if len(args[0]) == 0 {
		return nil, nil
	}
	sum, err := fnSum(e, args[:1])
	if err != nil {
		return nil, err
	}
	res, err := arithmetic(OpDiv, sum[0].(AtomicItem), integerItem(int64(len(args[0]))))
	if err != nil {
		return nil, err
	}
	return Sequence{res}, nil
}

func extremum(e *Evaluator, args []Sequence, keep func(int) bool) (Sequence, error) {
	vs, err := Atomize(args[0])
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	coll, err := collationArg(e, args, 1)
	if err != nil {
		return nil, err
	}
	var res AtomicItem
	for i, v := range vs {
		a := v.(AtomicItem)
		if a.typ == schema.Untyped {
			if a, err = numericOperand(a, OpAdd); err != nil {
				return nil, err
			}
		}
		if a.isNaN() {
			return Sequence{a}, nil
		}
		if i == 0 {
			res = a
			continue
		}
		cmp, _, err := compareAtomic(a, res, coll)
		if err != nil {
			return nil, err
		}
		if keep(cmp) {
			res = a
		}
	}
	return Sequence{res}, nil
}

func fnMin(e *Evaluator, args []Sequence) (Sequence, error) {
	return extremum(e, args, func(cmp int) bool { return cmp < 0 })
}

func fnMax(e *Evaluator, args []Sequence) (Sequence, error) {
	return extremum(e, args, func(cmp int) bool { return cmp > 0 })
}

func fnAbs(_ *Evaluator, args []Sequence) (Sequence, error) {
	a, ok, err := numericArg(args[0])
	if err != nil || !ok {
		return nil, err
	}
	switch v := a.value.(type) {
	case int64:
		if v < 0 {
			if a, err = negate(a); err != nil {
				return nil, err
			}
		}
	case *apd.Decimal:
		var d apd.Decimal
		d.Abs(v)
		a = NewAtomic(&d, a.typ)
	case float64:
		a = NewAtomic(math.Abs(v), a.typ)
	}
	return Sequence{a}, nil
}

func rounding(args []Sequence, dec func(*apd.Decimal, *apd.Decimal) error, dbl func(float64) float64) (Sequence, error) {
	a, ok, err := numericArg(args[0])
	if err != nil || !ok {
		return nil, err
	}
	switch v := a.value.(type) {
	case *apd.Decimal:
		var d apd.Decimal
		if err := dec(&d, v); err != nil {
			return nil, errorf(CodeOverflow, "%s", err)
		}
		a = NewAtomic(&d, a.typ)
	case float64:
		a = NewAtomic(dbl(v), a.typ)
	}
	return Sequence{a}, nil
}

func fnFloor(_ *Evaluator, args []Sequence) (Sequence, error) {
	floor := func(d, x *apd.Decimal) error {
		_, err := decimalContext.Floor(d, x)
		return err
	}
	return rounding(args, floor, math.Floor)
}

func fnCeiling(_ *Evaluator, args []Sequence) (Sequence, error) {
	ceil := func(d, x *apd.Decimal) error {
		_, err := decimalContext.Ceil(d, x)
		return err
	}
	return rounding(args, ceil, math.Ceil)
}

func fnRound(_ *Evaluator, args []Sequence) (Sequence, error) {
	round := func(d, x *apd.Decimal) error {
		if _, err := decimalContext.Add(d, x, apd.New(5, -1)); err != nil {
			return err
		}
		_, err := decimalContext.Floor(d, d)
		return err
	}
	dbl := func(f float64) float64 {
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return f
		}
		return xpathRound(f)
	}
	return rounding(args, round, dbl)
}

func distinctKey(a AtomicItem) string {
	switch {
	case a.isNaN():
		return "n:NaN"
	case a.typ.IsNumeric():
		var d apd.Decimal
		d.Reduce(asDecimal(a))
		return "n:" + d.Text('f')
	case a.typ.IsStringLike():
		return "s:" + a.value.(string)
	default:
		return fmt.Sprintf("%d:%s", a.typ.Primitive, a.String())
	}
}

func fnDistinctValues(_ *Evaluator, args []Sequence) (Sequence, error) {
	vs, err := Atomize(args[0])
	if err != nil {
		return nil, err
	}
	var (
		list Sequence
		seen = make(map[string]struct{})
	)
	for _, v := range vs {
		k := distinctKey(v.(AtomicItem))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		list = append(list, v)
	}
	return list, nil
}

func fnReverse(_ *Evaluator, args []Sequence) (Sequence, error) {
	list := slices.Clone(args[0])
	slices.Reverse(list)
	return list, nil
}

func fnSubsequence(_ *Evaluator, args []Sequence) (Sequence, error) {
	start, _, err := numericArg(args[1])
	if err != nil {
		return nil, err
	}
	var (
		beg = xpathRound(asFloat(start))
		end = math.Inf(1)
	)
	if len(args) > 2 {
		size, _, err := numericArg(args[2])
		if err != nil {
			return nil, err
		}
		end = beg + xpathRound(asFloat(size))
	}
	var list Sequence
	for i := range args[0] {
		p := float64(i + 1)
		if p >= beg && p < end {
			list = append(list, args[0][i])
		}
	}
	return list, nil
}

func fnHead(_ *Evaluator, args []Sequence) (Sequence, error) {
	if len(args[0]) == 0 {
		return nil, nil
	}
	return args[0][:1], nil
}

func fnTail(_ *Evaluator, args []Sequence) (Sequence, error) {
	if len(args[0]) == 0 {
		return nil, nil
	}
	return args[0][1:], nil
}

func fnInsertBefore(_ *Evaluator, args []Sequence) (Sequence, error) {
	pos, err := integerArg(args[1])
	if err != nil {
		return nil, err
	}
	pos = min(max(pos, 1), int64(len(args[0]))+1)
	list := slices.Clone(args[0])
	return slices.Insert(list, int(pos-1), args[2]...), nil
}

func fnRemove(_ *Evaluator, args []Sequence) (Sequence, error) {
	pos, err := integerArg(args[1])
	if err != nil {
		return nil, err
	}
	if pos < 1 || pos > int64(len(args[0])) {
		return args[0], nil
	}
	list := slices.Clone(args[0])
	return slices.Delete(list, int(pos-1), int(pos)), nil
}

func fnIndexOf(e *Evaluator, args []Sequence) (Sequence, error) {
	vs, err := Atomize(args[0])
	if err != nil {
		return nil, err
	}
	search, ok, err := atomizeOne(args[1])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorf(CodeType, "fn:index-of: search value is empty")
	}
	coll, err := collationArg(e, args, 2)
	if err != nil {
		return nil, err
	}
	var list Sequence
	for i, v := range vs {
		cmp, ordered, err := compareAtomic(v.(AtomicItem), search, coll)
		if err == nil && ordered && cmp == 0 {
			list = append(list, integerItem(int64(i+1)))
		}
	}
	return list, nil
}

func fnExactlyOne(_ *Evaluator, args []Sequence) (Sequence, error) {
	if len(args[0]) != 1 {
		return nil, errorf(CodeExactlyOne, "fn:exactly-one called with %d items", len(args[0]))
	}
	return args[0], nil
}

func fnZeroOrOne(_ *Evaluator, args []Sequence) (Sequence, error) {
	if len(args[0]) > 1 {
		return nil, errorf(CodeZeroOrOne, "fn:zero-or-one called with %d items", len(args[0]))
	}
	return args[0], nil
}

func fnOneOrMore(_ *Evaluator, args []Sequence) (Sequence, error) {
	if len(args[0]) == 0 {
		return nil, errorf(CodeOneOrMore, "fn:one-or-more called with an empty sequence")
	}
	return args[0], nil
}

func fnCompare(e *Evaluator, args []Sequence) (Sequence, error) {
	if len(args[0]) == 0 || len(args[1]) == 0 {
		return nil, nil
	}
	str, other, coll, err := stringPair(e, args)
	if err != nil {
		return nil, err
	}
	return Singleton(coll.Compare(str, other)), nil
}

func nodeName(e *Evaluator, args []Sequence, get func(xml.Node) string) (Sequence, error) {
	seq, err := contextArg(e, args)
	if err != nil {
		return nil, err
	}
	node, err := nodeArg(seq)
	if err != nil || node == nil {
		return Singleton(""), err
	}
	return Singleton(get(node)), nil
}

func fnName(e *Evaluator, args []Sequence) (Sequence, error) {
	return nodeName(e, args, xml.Node.QualifiedName)
}

func fnLocalName(e *Evaluator, args []Sequence) (Sequence, error) {
	return nodeName(e, args, xml.Node.LocalName)
}

func fnNamespaceURI(e *Evaluator, args []Sequence) (Sequence, error) {
	return nodeName(e, args, xml.Node.Namespace)
}

func fnRoot(e *Evaluator, args []Sequence) (Sequence, error) {
	seq, err := contextArg(e, args)
	if err != nil {
		return nil, err
	}
	node, err := nodeArg(seq)
	if err != nil || node == nil {
		return nil, err
	}
	return Sequence{createNode(xml.Root(node))}, nil
}

// fnError raises the error identified by its first argument, FOER0000 by
// default.
func fnError(_ *Evaluator, args []Sequence) (Sequence, error) {
	x := Error{
		Code:    CodeUser,
		Message: "error raised by fn:error",
		cause:   ErrUser,
	}
	if len(args) > 0 && len(args[0]) > 0 {
		code, err := stringValue(args[0])
		if err != nil {
			return nil, err
		}
		if ix := strings.LastIndexAny(code, ":}"); ix >= 0 {
			code = code[ix+1:]
		}
		x.Code = code
	}
	if len(args) > 1 {
		msg, err := stringValue(args[1])
		if err != nil {
			return nil, err
		}
		x.Message = msg
	}
	return nil, &x
}

func fnFormatInteger(_ *Evaluator, args []Sequence) (Sequence, error) {
	if len(args[0]) == 0 {
		return Singleton(""), nil
	}
	value, err := integerArg(args[0])
	if err != nil {
		return nil, err
	}
	picture, err := stringValue(args[1])
	if err != nil {
		return nil, err
	}
	str, err := formatInteger(value, picture)
	if err != nil {
		return nil, err
	}
	return Singleton(str), nil
}

func fnFormatNumber(e *Evaluator, args []Sequence) (Sequence, error) {
	picture, err := stringValue(args[1])
	if err != nil {
		return nil, err
	}
	var name string
	if len(args) > 2 {
		if name, err = stringValue(args[2]); err != nil {
			return nil, err
		}
	}
	format := e.module.Prolog.Format(name)
	if format == nil {
		return nil, errorf(CodeFormat, "%s: decimal format not declared", name)
	}
	a, ok, err := numericArg(args[0])
	if err != nil {
		return nil, err
	}
	var str string
	switch {
	case !ok:
		str, err = format.FormatNumber(math.NaN(), picture)
	case levelOf(a.typ) <= levelDecimal:
		d := asDecimal(a)
		str, err = format.formatDecimal(d, d.Negative && !d.IsZero(), false, false, picture)
	default:
		str, err = format.FormatNumber(asFloat(a), picture)
	}
	if err != nil {
		return nil, err
	}
	return Singleton(str), nil
}

func fnForEach(e *Evaluator, args []Sequence) (Sequence, error) {
	fn, err := functionArg(args[1])
	if err != nil {
		return nil, err
	}
	var list Sequence
	for i := range args[0] {
		seq, err := e.callFunction(fn, []Sequence{args[0][i : i+1]})
		if err != nil {
			return nil, err
		}
		list = append(list, seq...)
	}
	return list, nil
}

func fnFilter(e *Evaluator, args []Sequence) (Sequence, error) {
	fn, err := functionArg(args[1])
	if err != nil {
		return nil, err
	}
	var list Sequence
	for i := range args[0] {
		seq, err := e.callFunction(fn, []Sequence{args[0][i : i+1]})
		if err != nil {
			return nil, err
		}
		a, ok := singleBoolean(seq)
		if !ok {
			return nil, errorf(CodeType, "fn:filter: predicate must return a single boolean")
		}
		if a {
			list = append(list, args[0][i])
		}
	}
	return list, nil
}

func singleBoolean(seq Sequence) (bool, bool) {
	if len(seq) != 1 {
		return false, false
	}
	a, ok := seq[0].(AtomicItem)
	if !ok {
		return false, false
	}
	b, ok := a.value.(bool)
	return b, ok
}

func fnFoldLeft(e *Evaluator, args []Sequence) (Sequence, error) {
	fn, err := functionArg(args[2])
	if err != nil {
		return nil, err
	}
	acc := args[1]
	for i := range args[0] {
		if acc, err = e.callFunction(fn, []Sequence{acc, args[0][i : i+1]}); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func mapSize(_ *Evaluator, args []Sequence) (Sequence, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	return Singleton(m.Len()), nil
}

func mapKeys(_ *Evaluator, args []Sequence) (Sequence, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	return m.Keys(), nil
}

func mapGet(_ *Evaluator, args []Sequence) (Sequence, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	key, err := singleKey(args[1])
	if err != nil {
		return nil, err
	}
	v, _ := m.Get(key)
	return v, nil
}

func mapContains(_ *Evaluator, args []Sequence) (Sequence, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	key, err := singleKey(args[1])
	if err != nil {
		return nil, err
	}
	return Singleton(m.Contains(key)), nil
}

func mapPut(_ *Evaluator, args []Sequence) (Sequence, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	key, err := singleKey(args[1])
	if err != nil {
		return nil, err
	}
	return Sequence{m.Put(key, args[2])}, nil
}

func mapRemove(_ *Evaluator, args []Sequence) (Sequence, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	keys, err := Atomize(args[1])
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		m = m.Remove(k.(AtomicItem))
	}
	return Sequence{m}, nil
}

func mapEntryOf(_ *Evaluator, args []Sequence) (Sequence, error) {
	key, err := singleKey(args[0])
	if err != nil {
		return nil, err
	}
	return Sequence{NewMap().Put(key, args[1])}, nil
}

// mapMerge merges maps in order. The duplicates option selects the value
// kept for a key found in more than one map: use-first (default), use-last,
// combine or reject.
func mapMerge(_ *Evaluator, args []Sequence) (Sequence, error) {
	policy := "use-first"
	if len(args) > 1 {
		opts, err := mapArg(args[1])
		if err != nil {
			return nil, err
		}
		if v, ok := opts.Get(stringItem("duplicates")); ok {
			if policy, err = stringValue(v); err != nil {
				return nil, err
			}
		}
	}
	res := NewMap()
	for _, i := range args[0] {
		m, ok := i.(*MapItem)
		if !ok {
			return nil, errorf(CodeType, "map:merge: %s is not a map", itemKind(i))
		}
		for _, e := range m.entries {
			prev, exists := res.Get(e.key)
			if !exists {
				res.set(e.key, e.value)
				continue
			}
			switch policy {
			case "use-first":
			case "use-last":
				res.set(e.key, e.value)
			case "combine":
				res.set(e.key, append(slices.Clone(prev), e.value...))
			case "reject":
				return nil, errorf(CodeDuplicateKey, "map:merge: duplicate key %s", e.key)
			default:
				return nil, errorf(CodeType, "%s: invalid duplicates option", policy)
			}
		}
	}
	return Sequence{res}, nil
}

func mapForEach(e *Evaluator, args []Sequence) (Sequence, error) {
	m, err := mapArg(args[0])
	if err != nil {
		return nil, err
	}
	fn, err := functionArg(args[1])
	if err != nil {
		return nil, err
	}
	var list Sequence
	for _, x := range m.entries {
		seq, err := e.callFunction(fn, []Sequence{{x.key}, x.value})
		if err != nil {
			return nil, err
		}
		list = append(list, seq...)
	}
	return list, nil
}

func arraySize(_ *Evaluator, args []Sequence) (Sequence, error) {
	a, err := arrayArg(args[0])
	if err != nil {
		return nil, err
	}
	return Singleton(a.Len()), nil
}

func arrayGet(_ *Evaluator, args []Sequence) (Sequence, error) {
	a, err := arrayArg(args[0])
	if err != nil {
		return nil, err
	}
	ix, err := integerArg(args[1])
	if err != nil {
		return nil, err
	}
	return a.Get(ix)
}

func arrayAppend(_ *Evaluator, args []Sequence) (Sequence, error) {
	a, err := arrayArg(args[0])
	if err != nil {
		return nil, err
	}
	return Sequence{a.Append(args[1])}, nil
}

func arrayHead(_ *Evaluator, args []Sequence) (Sequence, error) {
	a, err := arrayArg(args[0])
	if err != nil {
		return nil, err
	}
	return a.Get(1)
}

func arrayTail(_ *Evaluator, args []Sequence) (Sequence, error) {
	a, err := arrayArg(args[0])
	if err != nil {
		return nil, err
	}
	if a.Len() == 0 {
		return nil, errorf(CodeArrayIndex, "array:tail of an empty array")
	}
	return Sequence{NewArray(a.members[1:]...)}, nil
}

func arrayReverse(_ *Evaluator, args []Sequence) (Sequence, error) {
	a, err := arrayArg(args[0])
	if err != nil {
		return nil, err
	}
	list := slices.Clone(a.members)
	slices.Reverse(list)
	return Sequence{NewArray(list...)}, nil
}

func arrayJoin(_ *Evaluator, args []Sequence) (Sequence, error) {
	var list []Sequence
	for _, i := range args[0] {
		a, ok := i.(*ArrayItem)
		if !ok {
			return nil, errorf(CodeType, "array:join: %s is not an array", itemKind(i))
		}
		list = append(list, a.members...)
	}
	return Sequence{NewArray(list...)}, nil
}

func arrayFlatten(_ *Evaluator, args []Sequence) (Sequence, error) {
	return Flatten(args[0]), nil
}

func arraySubarray(_ *Evaluator, args []Sequence) (Sequence, error) {
	a, err := arrayArg(args[0])
	if err != nil {
		return nil, err
	}
	start, err := integerArg(args[1])
	if err != nil {
		return nil, err
	}
	size := int64(a.Len()) - start + 1
	if len(args) > 2 {
		if size, err = integerArg(args[2]); err != nil {
			return nil, err
		}
	}
	if start < 1 || size < 0 || start+size-1 > int64(a.Len()) {
		return nil, errorf(CodeArrayIndex, "array:subarray(%d, %d) out of bounds (1..%d)", start, size, a.Len())
	}
	return Sequence{NewArray(a.members[start-1 : start-1+size]...)}, nil
}

func arrayForEach(e *Evaluator, args []Sequence) (Sequence, error) {
	a, err := arrayArg(args[0])
	if err != nil {
		return nil, err
	}
	fn, err := functionArg(args[1])
	if err != nil {
		return nil, err
	}
	list := make([]Sequence, 0, a.Len())
	for _, m := range a.members {
		seq, err := e.callFunction(fn, []Sequence{m})
		if err != nil {
			return nil, err
		}
		list = append(list, seq)
	}
	return Sequence{NewArray(list...)}, nil
}

func mathPi(_ *Evaluator, _ []Sequence) (Sequence, error) {
	return Singleton(math.Pi), nil
}

func mathUnary(fn func(float64) float64) callFunc {
	return func(_ *Evaluator, args []Sequence) (Sequence, error) {
		a, ok, err := numericArg(args[0])
		if err != nil || !ok {
			return nil, err
		}
		return Singleton(fn(asFloat(a))), nil
	}
}

func mathPow(_ *Evaluator, args []Sequence) (Sequence, error) {
	x, ok, err := numericArg(args[0])
	if err != nil || !ok {
		return nil, err
	}
	y, _, err := numericArg(args[1])
	if err != nil {
		return nil, err
	}
	return Singleton(math.Pow(asFloat(x), asFloat(y))), nil
}
