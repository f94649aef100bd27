package xquery

import (
	"slices"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/midbel/xquery/xml"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		Value   float64
		Picture string
		Want    string
	}{
		{Value: 1234.5, Picture: "#,##0.00", Want: "1,234.50"},
		{Value: 0.25, Picture: "0%", Want: "25%"},
		{Value: 0.5, Picture: "0.###", Want: "0.5"},
		{Value: -3, Picture: "0", Want: "-3"},
		{Value: -3, Picture: "0;(0)", Want: "(3)"},
		{Value: 1234567, Picture: "#,###", Want: "1,234,567"},
		{Value: 12, Picture: "000", Want: "012"},
	}
	format := defaultFormat()
	for _, tt := range tests {
		got, err := format.FormatNumber(tt.Value, tt.Picture)
		qt.Assert(t, qt.IsNil(err), qt.Commentf("picture: %s", tt.Picture))
		qt.Check(t, qt.Equals(got, tt.Want), qt.Commentf("picture: %s", tt.Picture))
	}
}

func TestFormatNumberPictureErrors(t *testing.T) {
	format := defaultFormat()
	for _, str := range []string{"", "abc", "#.#.#", "0%‰", "#,,##0", "0;0;0"} {
		_, err := format.FormatNumber(1, str)
		qt.Check(t, qt.Equals(errorCode(t, err), CodePicture), qt.Commentf("picture: %q", str))
	}
}

func TestFormatNumberDeclaredFormat(t *testing.T) {
	const query = `
declare decimal-format eu decimal-separator = "," grouping-separator = ".";
format-number(1234.5, '#.##0,00', 'eu')
`
	seq := run(t, query, nil)
	qt.Assert(t, qt.Equals(seq.String(), "1.234,50"))

	_, err := New().Find("format-number(1, '0', 'missing')", nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeFormat))

	seq = run(t, `declare default decimal-format NaN = "nothing"; format-number(number('x'), '0')`, nil)
	qt.Assert(t, qt.Equals(seq.String(), "nothing"))
}

func TestFormatInteger(t *testing.T) {
	tests := []struct {
		Value   int64
		Picture string
		Want    string
	}{
		{Value: 4, Picture: "I", Want: "IV"},
		{Value: 1994, Picture: "i", Want: "mcmxciv"},
		{Value: 3, Picture: "a", Want: "c"},
		{Value: 28, Picture: "A", Want: "AB"},
		{Value: 1234, Picture: "#,##0", Want: "1,234"},
		{Value: 7, Picture: "001", Want: "007"},
		{Value: -42, Picture: "1", Want: "-42"},
		{Value: 1234567, Picture: "#,##0", Want: "1,234,567"},
		{Value: 5, Picture: "w", Want: "5"},
	}
	for _, tt := range tests {
		got, err := formatInteger(tt.Value, tt.Picture)
		qt.Assert(t, qt.IsNil(err), qt.Commentf("picture: %s", tt.Picture))
		qt.Check(t, qt.Equals(got, tt.Want), qt.Commentf("value: %d, picture: %s", tt.Value, tt.Picture))
	}
}

func TestDecimalFormatSet(t *testing.T) {
	format := defaultFormat()
	qt.Assert(t, qt.IsNil(format.Set("zero-digit", "٠")))
	got, err := format.FormatNumber(12, "٠٠")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(got, "١٢"))

	qt.Assert(t, qt.Equals(errorCode(t, format.Set("zero-digit", "1")), CodeFormat))
	qt.Assert(t, qt.Equals(errorCode(t, format.Set("percent", "")), CodeFormat))
}

func TestCollations(t *testing.T) {
	c, err := ParseCollation("")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(c.URI(), CodepointCollation))
	qt.Assert(t, qt.Equals(c.Compare("a", "B"), 1))

	c, err = ParseCollation(UCACollation + "?lang=en&strength=primary")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(c.Compare("a", "A"), 0))
	qt.Assert(t, qt.Equals(c.Compare("a", "B"), -1))

	_, err = ParseCollation("http://example.com/collation")
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeCollation))

	_, err = ParseCollation(UCACollation + "?lang=@@")
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeCollation))
}

func TestCollationInQueries(t *testing.T) {
	const uca = "http://www.w3.org/2013/collation/UCA?strength=primary"

	seq := run(t, "compare('a', 'A', '"+uca+"')", nil)
	qt.Assert(t, qt.Equals(seq.String(), "0"))

	seq = run(t, "'a' eq 'A'", nil, WithCollation(uca))
	qt.Assert(t, qt.Equals(seq.String(), "true"))

	seq = run(t, "declare default collation '"+uca+"'; 'a' = 'A'", nil)
	qt.Assert(t, qt.Equals(seq.String(), "true"))

	seq = run(t, "'a' = 'A'", nil)
	qt.Assert(t, qt.Equals(seq.String(), "false"))

	seq = run(t, "for $s in ('b', 'A', 'a') order by $s collation '"+uca+"' return $s", nil)
	qt.Assert(t, qt.Equals(seq.String(), "A a b"))

	_, err := New().Find("declare default collation 'http://example.com/unknown'; 'a' = 'A'", nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeDefaultColl))

	_, err = New(WithCollation("http://example.com/unknown")).Find("'a' = 'A'", nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeDefaultColl))
	qt.Assert(t, qt.ErrorIs(err, ErrUndefined))
}

func TestBuiltins(t *testing.T) {
	names := Builtins()
	for _, n := range []string{
		"Q{" + NamespaceFunctions + "}count",
		"Q{" + NamespaceMap + "}merge",
		"Q{" + NamespaceArray + "}flatten",
		"Q{" + NamespaceMath + "}pi",
	} {
		qt.Check(t, qt.IsTrue(slices.Contains(names, n)), qt.Commentf("builtin: %s", n))
	}

	_, ok := lookupBuiltin(xml.ExpandedName("concat", "", NamespaceFunctions), 5)
	qt.Assert(t, qt.IsTrue(ok))
	_, ok = lookupBuiltin(xml.ExpandedName("concat", "", NamespaceFunctions), 1)
	qt.Assert(t, qt.IsFalse(ok))
}

func TestErrorFunction(t *testing.T) {
	_, err := New().Find("error((), 'custom')", nil)
	var x *Error
	qt.Assert(t, qt.ErrorAs(err, &x))
	qt.Assert(t, qt.Equals(x.Code, CodeUser))
	qt.Assert(t, qt.Equals(x.Message, "custom"))
	qt.Assert(t, qt.ErrorIs(err, ErrUser))
}

func TestMapFunctions(t *testing.T) {
	tests := []evalCase{
		{Query: "map:merge((map{'a': 1}, map{'a': 2, 'b': 3}))", Want: `map{"a": 1, "b": 3}`},
		{Query: "map:merge((map{'a': 1}, map{'a': 2}), map{'duplicates': 'use-last'})", Want: `map{"a": 2}`},
		{Query: "map:merge((map{'a': 1}, map{'a': 2}), map{'duplicates': 'combine'})?a", Want: "1 2"},
		{Query: "map:get(map{'a': 1}, 'a')", Want: "1"},
		{Query: "map:remove(map{'a': 1, 'b': 2}, 'a')", Want: `map{"b": 2}`},
		{Query: "map:entry('k', 'v')", Want: `map{"k": v}`},
		{Query: "map:for-each(map{'a': 1, 'b': 2}, function($k, $v) { $k || $v })", Want: "a1 b2"},
		{Query: "array:get([1, 2], 2)", Want: "2"},
		{Query: "array:head([1, 2])", Want: "1"},
		{Query: "array:tail([1, 2, 3])", Want: "[2, 3]"},
		{Query: "array:join(([1], [2, 3]))", Want: "[1, 2, 3]"},
		{Query: "array:subarray([1, 2, 3, 4], 2, 2)", Want: "[2, 3]"},
		{Query: "array:for-each([1, 2], function($x) { $x + 1 })", Want: "[2, 3]"},
	}
	runCases(t, tests, nil)

	_, err := New().Find("map:merge((map{'a': 1}, map{'a': 2}), map{'duplicates': 'reject'})", nil)
	qt.Assert(t, qt.Equals(errorCode(t, err), CodeDuplicateKey))
}
