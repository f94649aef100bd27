package xquery

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/midbel/xquery/xml"
)

const testDocument = `<root><item id="first">element-1</item><item id="second">element-2</item><group><item lang="en">sub-element-1</item><item lang="fr">sub-element-2</item></group></root>`

func parseDocument(t *testing.T) xml.Node {
	t.Helper()
	doc, err := xml.ParseString(testDocument)
	qt.Assert(t, qt.IsNil(err))
	return doc
}

func run(t *testing.T, query string, node xml.Node, options ...Option) Sequence {
	t.Helper()
	seq, err := New(options...).Find(query, node)
	qt.Assert(t, qt.IsNil(err), qt.Commentf("query: %s", query))
	return seq
}

type evalCase struct {
	Query string
	Want  string
}

func runCases(t *testing.T, tests []evalCase, node xml.Node) {
	t.Helper()
	for _, tt := range tests {
		seq := run(t, tt.Query, node)
		qt.Check(t, qt.Equals(seq.String(), tt.Want), qt.Commentf("query: %s", tt.Query))
	}
}

func TestEvalOperators(t *testing.T) {
	tests := []evalCase{
		{Query: "1 + 2 * 3", Want: "7"},
		{Query: "(1 + 2) * 3", Want: "9"},
		{Query: "10 - 2 - 3", Want: "5"},
		{Query: "7 div 2", Want: "3.5"},
		{Query: "7 idiv 2", Want: "3"},
		{Query: "7 mod 2", Want: "1"},
		{Query: "-7 mod 2", Want: "-1"},
		{Query: "1.5 + 1", Want: "2.5"},
		{Query: "1e0 + 1", Want: "2"},
		{Query: "-(3)", Want: "-3"},
		{Query: "1 to 5", Want: "1 2 3 4 5"},
		{Query: "5 to 1", Want: ""},
		{Query: "'a' || 'b' || 1", Want: "ab1"},
		{Query: "1 = (2, 1)", Want: "true"},
		{Query: "1 != 1", Want: "false"},
		{Query: "1 eq 1", Want: "true"},
		{Query: "'a' lt 'b'", Want: "true"},
		{Query: "true() and false()", Want: "false"},
		{Query: "false() or 1", Want: "true"},
		{Query: "false() and error()", Want: "false"},
		{Query: "true() or error()", Want: "true"},
		{Query: "1 = 2 and (1 div 0)", Want: "false"},
		{Query: "(1, 2, 3) ! (. * 2)", Want: "2 4 6"},
		{Query: "(1 to 10)[. mod 2 = 0]", Want: "2 4 6 8 10"},
		{Query: "(1 to 10)[last()]", Want: "10"},
		{Query: "(1 to 10)[position() < 3]", Want: "1 2"},
		{Query: "'abc' => upper-case() => string-length()", Want: "3"},
		{Query: "if (()) then 'yes' else 'no'", Want: "no"},
		{Query: "if (1) then 'yes' else 'no'", Want: "yes"},
		{Query: "1 instance of xs:integer", Want: "true"},
		{Query: "1 instance of xs:decimal", Want: "true"},
		{Query: "(1, 2) instance of xs:integer", Want: "false"},
		{Query: "() instance of empty-sequence()", Want: "true"},
		{Query: "'12' cast as xs:integer", Want: "12"},
		{Query: "'x' castable as xs:integer", Want: "false"},
		{Query: "() cast as xs:integer?", Want: ""},
		{Query: "(1, 2) treat as xs:integer+", Want: "1 2"},
	}
	runCases(t, tests, nil)
}

func TestEvalFLWOR(t *testing.T) {
	tests := []evalCase{
		{Query: "for $x in 1 to 3 return $x * 10", Want: "10 20 30"},
		{Query: "for $x at $i in ('a', 'b') return $i || $x", Want: "1a 2b"},
		{Query: "for $x in (1, 2), $y in ('a', 'b') return $x || $y", Want: "1a 1b 2a 2b"},
		{Query: "let $x := 2 let $y := $x * 2 return ($x, $y)", Want: "2 4"},
		{Query: "for $x in 1 to 10 where $x mod 3 = 0 return $x", Want: "3 6 9"},
		{Query: "for $x in (3, 1, 2) order by $x return $x", Want: "1 2 3"},
		{Query: "for $x in (3, 1, 2) order by $x descending return $x", Want: "3 2 1"},
		{Query: "for $x in ('b', 'a', 'c') order by $x return $x", Want: "a b c"},
		{Query: "for $x in ((), 2, 1) return $x", Want: "2 1"},
		{Query: "for $p in ((1, 'b'), (1, 'a'), (0, 'c')) return $p", Want: "1 b 1 a 0 c"},
		{Query: "some $x in (1, 2, 3) satisfies $x > 2", Want: "true"},
		{Query: "every $x in (1, 2, 3) satisfies $x > 2", Want: "false"},
		{Query: "every $x in () satisfies false()", Want: "true"},
		{Query: "some $x in () satisfies true()", Want: "false"},
		{Query: "some $x in (1, 2), $y in (2, 3) satisfies $x = $y", Want: "true"},
		{
			Query: "typeswitch (1) case xs:string return 'string' case xs:integer return 'integer' default return 'other'",
			Want:  "integer",
		},
		{
			Query: "typeswitch ('a') case $s as xs:string return $s || '!' default return 'other'",
			Want:  "a!",
		},
		{
			Query: "typeswitch ((1, 2)) case xs:integer return 'one' default $d return count($d)",
			Want:  "2",
		},
		{
			Query: "typeswitch (map{}) case xs:integer | xs:string return 'atomic' case map(*) return 'map' default return 'other'",
			Want:  "map",
		},
	}
	runCases(t, tests, nil)
}

func TestEvalMapsAndArrays(t *testing.T) {
	tests := []evalCase{
		{Query: "map{'a': 1, 'b': 2}", Want: `map{"a": 1, "b": 2}`},
		{Query: "map{'a': 1, 'a': 2}", Want: `map{"a": 2}`},
		{Query: "map{'a': 1, 'b': (2, 3)}?b", Want: "2 3"},
		{Query: "map{'a': 1, 'b': 2}?*", Want: "1 2"},
		{Query: "let $m := map{'a': 1} return ($m, 1)[1]?a", Want: "1"},
		{Query: "let $a := [1, 2] return (0, $a)[2]?2", Want: "2"},
		{Query: "count((map{'a': 1}, map{'b': 2}, 3))", Want: "3"},
		{Query: "map{1: 'one'}?1", Want: "one"},
		{Query: "map{'a': 1}('a')", Want: "1"},
		{Query: "map{'a': 1}?missing", Want: ""},
		{Query: "[1, (2, 3)]", Want: "[1, (2, 3)]"},
		{Query: "[1, (2, 3)]?*", Want: "1 2 3"},
		{Query: "[1, (2, 3)]?2", Want: "2 3"},
		{Query: "[1, 2, 3](3)", Want: "3"},
		{Query: "array{1, 2, 3}?2", Want: "2"},
		{Query: "array{}", Want: "[]"},
		{Query: "([1, 2], [3])?1", Want: "1 3"},
		{Query: "[[1, 2], [3]]?*?1", Want: "1 3"},
		{Query: "let $m := map{'k': [10, 20]} return $m?k?2", Want: "20"},
		{Query: "(map{'a': 1}, map{'a': 2}) ! ?a", Want: "1 2"},
		{Query: "array:flatten([1, [2, [3, [4]]]])", Want: "1 2 3 4"},
		{Query: "array:size([1, (2, 3)])", Want: "2"},
		{Query: "map:size(map{'a': 1, 'b': 2})", Want: "2"},
		{Query: "map:keys(map{'a': 1, 'b': 2})", Want: "a b"},
		{Query: "map:contains(map:put(map{}, 'x', 1), 'x')", Want: "true"},
		{Query: "array:append([1], 2)", Want: "[1, 2]"},
		{Query: "array:reverse([1, 2, 3])", Want: "[3, 2, 1]"},
	}
	runCases(t, tests, nil)
}

func TestEvalPaths(t *testing.T) {
	doc := parseDocument(t)
	tests := []evalCase{
		{Query: "count(/root/item)", Want: "2"},
		{Query: "count(//item)", Want: "4"},
		{Query: "//item[1] ! string()", Want: "element-1 sub-element-1"},
		{Query: "(//item)[1] ! string()", Want: "element-1"},
		{Query: "(//item)[last()] ! string()", Want: "sub-element-2"},
		{Query: "data(/root/item/@id)", Want: "first second"},
		{Query: "/root/item[@id = 'second'] ! string()", Want: "element-2"},
		{Query: "//item[@lang = 'fr'] ! string()", Want: "sub-element-2"},
		{Query: "string(//@lang[. = 'en']/..)", Want: "sub-element-1"},
		{Query: "name(/root/group/..)", Want: "root"},
		{Query: "name(/root/*[last()])", Want: "group"},
		{Query: "count(/root/group/item/ancestor::*)", Want: "2"},
		{Query: "/root/item[1]/following-sibling::*[1] ! name()", Want: "item"},
		{Query: "/root/group/preceding-sibling::item[1] ! string()", Want: "element-2"},
		{Query: "count(//item[@id] | //item[@lang])", Want: "4"},
		{Query: "count(//item intersect /root/group/item)", Want: "2"},
		{Query: "count(//item except /root/group/item)", Want: "2"},
		{Query: "/root/item[1] is (//item)[1]", Want: "true"},
		{Query: "/root/item[1] << /root/item[2]", Want: "true"},
		{Query: "//item/@id = 'first'", Want: "true"},
		{Query: "count(/root/item/attribute::id)", Want: "2"},
		{Query: "count(/root/item/attribute())", Want: "2"},
		{Query: "count(/root/child::element())", Want: "3"},
		{Query: "string-join(//item/@*, ',')", Want: "first,second,en,fr"},
		{Query: "for $i in //item order by string($i) descending return string($i/@*)", Want: "fr en second first"},
		{Query: "count(root())", Want: "1"},
		{Query: "local-name(/root)", Want: "root"},
		{Query: "count((/root/item, /root/item)/@id)", Want: "2"},
		{Query: "count((/root/item, /root/item)/@id[true()])", Want: "2"},
		{Query: "(/root/item[2], /root/item[1])/@id ! string()", Want: "first second"},
		{Query: "let $items := reverse(/root/item) return data($items/@id)", Want: "first second"},
	}
	runCases(t, tests, doc)
}

func TestEvalFunctions(t *testing.T) {
	tests := []evalCase{
		{Query: "concat('a', 1, ())", Want: "a1"},
		{Query: "string-join(('a', 'b', 'c'), '-')", Want: "a-b-c"},
		{Query: "substring('hello', 2, 3)", Want: "ell"},
		{Query: "contains('hello', 'ell')", Want: "true"},
		{Query: "starts-with('hello', 'he')", Want: "true"},
		{Query: "ends-with('hello', 'lo')", Want: "true"},
		{Query: "normalize-space('  a   b  ')", Want: "a b"},
		{Query: "translate('abc', 'ab', 'AB')", Want: "ABc"},
		{Query: "tokenize('a,b,c', ',')", Want: "a b c"},
		{Query: "replace('abc', 'b', 'x')", Want: "axc"},
		{Query: "matches('abc', '^a')", Want: "true"},
		{Query: "string-to-codepoints('AB')", Want: "65 66"},
		{Query: "codepoints-to-string((72, 105))", Want: "Hi"},
		{Query: "sum((1, 2, 3))", Want: "6"},
		{Query: "sum(())", Want: "0"},
		{Query: "avg((1, 2, 3, 4))", Want: "2.5"},
		{Query: "min((3, 1, 2))", Want: "1"},
		{Query: "max(('a', 'c', 'b'))", Want: "c"},
		{Query: "abs(-2)", Want: "2"},
		{Query: "floor(2.5)", Want: "2"},
		{Query: "ceiling(2.1)", Want: "3"},
		{Query: "round(2.5)", Want: "3"},
		{Query: "distinct-values((1, 2, 1, 3, 2))", Want: "1 2 3"},
		{Query: "reverse(1 to 3)", Want: "3 2 1"},
		{Query: "subsequence(1 to 10, 3, 2)", Want: "3 4"},
		{Query: "head((1, 2, 3)), tail((1, 2, 3))", Want: "1 2 3"},
		{Query: "insert-before((1, 3), 2, 2)", Want: "1 2 3"},
		{Query: "remove((1, 2, 3), 2)", Want: "1 3"},
		{Query: "index-of((1, 2, 1), 1)", Want: "1 3"},
		{Query: "empty(()), exists(())", Want: "true false"},
		{Query: "count((1, 2, 3))", Want: "3"},
		{Query: "not(())", Want: "true"},
		{Query: "boolean('')", Want: "false"},
		{Query: "number('12')", Want: "12"},
		{Query: "compare('a', 'b')", Want: "-1"},
		{Query: "for-each((1, 2), function($x) { $x * 2 })", Want: "2 4"},
		{Query: "filter(1 to 6, function($x) { $x mod 2 = 0 })", Want: "2 4 6"},
		{Query: "fold-left(1 to 4, 0, function($acc, $x) { $acc + $x })", Want: "10"},
		{Query: "let $f := upper-case#1 return $f('a')", Want: "A"},
		{Query: "math:pow(2, 10)", Want: "1024"},
		{Query: "math:sqrt(16)", Want: "4"},
		{Query: "format-integer(4, 'I')", Want: "IV"},
		{Query: "format-integer(3, 'a')", Want: "c"},
		{Query: "format-integer(1234, '#,##0')", Want: "1,234"},
		{Query: "format-number(1234.5, '#,##0.00')", Want: "1,234.50"},
		{Query: "format-number(0.25, '0%')", Want: "25%"},
	}
	runCases(t, tests, nil)
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		Query string
		Code  string
	}{
		{Query: "(1, 2) eq 1", Code: CodeType},
		{Query: "() eq 1", Code: CodeType},
		{Query: "true() and error()", Code: CodeUser},
		{Query: "false() or error()", Code: CodeUser},
		{Query: "1 div 0", Code: CodeDivZero},
		{Query: "1 idiv 0", Code: CodeDivZero},
		{Query: "$undefined", Code: CodeUndefinedName},
		{Query: "undefined-function(1)", Code: CodeUndefinedFunc},
		{Query: "count(1, 2)", Code: CodeUndefinedFunc},
		{Query: "[1, 2]?5", Code: CodeArrayIndex},
		{Query: "[1, 2](0)", Code: CodeArrayIndex},
		{Query: "'abc' cast as xs:integer", Code: CodeCast},
		{Query: "'a' treat as xs:integer", Code: CodeTreat},
		{Query: "() treat as xs:integer", Code: CodeTreat},
		{Query: "1.5 to 3", Code: CodeType},
		{Query: "'a' + 1", Code: CodeType},
		{Query: "1 to 1000000", Code: CodeOverflow},
		{Query: "9223372036854775807 + 1", Code: CodeOverflow},
		{Query: "exactly-one((1, 2))", Code: CodeExactlyOne},
		{Query: "one-or-more(())", Code: CodeOneOrMore},
		{Query: "error()", Code: CodeUser},
		{Query: "foo:bar()", Code: CodeUnknownPrefix},
		{Query: ".", Code: CodeDynamicContext},
		{Query: "map{'a': 1}?*?x", Code: CodeType},
	}
	for _, tt := range tests {
		_, err := New().Find(tt.Query, nil)
		var x *Error
		if !errors.As(err, &x) {
			t.Errorf("%s: expected xquery error, got %v", tt.Query, err)
			continue
		}
		qt.Check(t, qt.Equals(x.Code, tt.Code), qt.Commentf("query: %s", tt.Query))
	}
}

func TestEvalRangeLimit(t *testing.T) {
	seq := run(t, "1 to 10", nil, WithRangeLimit(10))
	qt.Assert(t, qt.HasLen(seq, 10))

	_, err := New(WithRangeLimit(10)).Find("1 to 11", nil)
	qt.Assert(t, qt.ErrorIs(err, ErrRange))

	seq = run(t, "count(1 to 100000)", nil)
	qt.Assert(t, qt.Equals(seq.String(), "100000"))

	_, err = New().Find("1 to 100001", nil)
	qt.Assert(t, qt.ErrorIs(err, ErrRange))
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeOverflow))
}

func TestEvalLongChains(t *testing.T) {
	const size = 10000

	query := strings.Repeat("1 + ", size) + "1"
	seq := run(t, query, nil)
	qt.Assert(t, qt.Equals(seq.String(), "10001"))

	query = strings.Repeat("false() or ", size) + "true()"
	seq = run(t, query, nil)
	qt.Assert(t, qt.Equals(seq.String(), "true"))

	query = strings.Repeat("true() and ", size) + "false()"
	seq = run(t, query, nil)
	qt.Assert(t, qt.Equals(seq.String(), "false"))

	query = strings.Repeat("'a' || ", size) + "'a'"
	seq = run(t, query, nil)
	qt.Assert(t, qt.Equals(len(seq.String()), size+1))
}

func TestFlattenDeepArray(t *testing.T) {
	const depth = 10000

	arr := NewArray(Singleton(int64(depth)))
	for i := depth - 1; i > 0; i-- {
		arr = NewArray(Singleton(int64(i)), Sequence{arr})
	}
	list := Flatten(Sequence{arr})
	qt.Assert(t, qt.HasLen(list, depth))
	qt.Assert(t, qt.Equals(list[0].Value(), any(int64(1))))
	qt.Assert(t, qt.Equals(list[depth-1].Value(), any(int64(depth))))
}

func TestEvalExternalVariables(t *testing.T) {
	seq := run(t, "$x + $y", nil, WithVariable("x", int64(1)), WithVariable("y", 2))
	qt.Assert(t, qt.Equals(seq.String(), "3"))

	seq = run(t, "declare variable $name external; 'hello ' || $name", nil, WithVariable("name", "world"))
	qt.Assert(t, qt.Equals(seq.String(), "hello world"))

	seq = run(t, "declare variable $name external := 'nobody'; $name", nil)
	qt.Assert(t, qt.Equals(seq.String(), "nobody"))

	_, err := New().Find("declare variable $name external; $name", nil)
	var x *Error
	qt.Assert(t, qt.ErrorAs(err, &x))
	qt.Assert(t, qt.Equals(x.Code, CodeDynamicContext))
}

func TestEvalDeclaredFunctions(t *testing.T) {
	const query = `
declare function local:fact($n as xs:integer) as xs:integer {
	if ($n le 1) then 1 else $n * local:fact($n - 1)
};
declare function local:twice($f, $x) { $f($f($x)) };
local:fact(10), local:twice(function($v) { $v + 3 }, 1)
`
	seq := run(t, query, nil)
	qt.Assert(t, qt.Equals(seq.String(), "3628800 7"))

	_, err := New().Find(`declare function local:f($x as xs:string) { $x }; local:f(1)`, nil)
	qt.Assert(t, qt.ErrorIs(err, ErrType))
}

func TestEvalNamespaces(t *testing.T) {
	doc, err := xml.ParseString(`<r xmlns:a="urn:a"><a:item>one</a:item><item>two</item></r>`)
	qt.Assert(t, qt.IsNil(err))

	seq := run(t, "/r/p:item ! string()", doc, WithNamespace("p", "urn:a"))
	qt.Assert(t, qt.Equals(seq.String(), "one"))

	seq = run(t, "declare namespace q = 'urn:a'; /r/q:item ! string()", doc)
	qt.Assert(t, qt.Equals(seq.String(), "one"))

	seq = run(t, "/r/*:item ! string()", doc)
	qt.Assert(t, qt.Equals(seq.String(), "one two"))
}
