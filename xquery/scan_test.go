package xquery

import (
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
)

func scanAll(str string) []Token {
	var (
		scan = Scan(strings.NewReader(str))
		list []Token
	)
	for {
		tok := scan.Scan()
		if tok.Type == EOF {
			break
		}
		tok.Position = Position{}
		list = append(list, tok)
		if tok.Type == Invalid {
			break
		}
	}
	return list
}

func TestScanner(t *testing.T) {
	tests := []struct {
		Input string
		Want  []Token
	}{
		{
			Input: "for $x in 1 to 10 return $x",
			Want: []Token{
				{Type: Name, Literal: "for"},
				{Type: Variable, Literal: "x"},
				{Type: Name, Literal: "in"},
				{Type: Integer, Literal: "1"},
				{Type: Name, Literal: "to"},
				{Type: Integer, Literal: "10"},
				{Type: Name, Literal: "return"},
				{Type: Variable, Literal: "x"},
			},
		},
		{
			Input: "1.5 .5 1e3 2.5E-2",
			Want: []Token{
				{Type: Decimal, Literal: "1.5"},
				{Type: Decimal, Literal: ".5"},
				{Type: Double, Literal: "1e3"},
				{Type: Double, Literal: "2.5E-2"},
			},
		},
		{
			Input: `'it''s' "a&amp;b"`,
			Want: []Token{
				{Type: Literal, Literal: "it's"},
				{Type: Literal, Literal: "a&b"},
			},
		},
		{
			Input: "//item[@id != 'x']/..",
			Want: []Token{
				{Type: anyLevel},
				{Type: Name, Literal: "item"},
				{Type: begPred},
				{Type: attrNode},
				{Type: Name, Literal: "id"},
				{Type: opNe},
				{Type: Literal, Literal: "x"},
				{Type: endPred},
				{Type: currLevel},
				{Type: parentNode},
			},
		},
		{
			Input: "a || b => f() ! c << d >= e := g",
			Want: []Token{
				{Type: Name, Literal: "a"},
				{Type: opConcat},
				{Type: Name, Literal: "b"},
				{Type: opArrow},
				{Type: Name, Literal: "f"},
				{Type: begGrp},
				{Type: endGrp},
				{Type: opBang},
				{Type: Name, Literal: "c"},
				{Type: opBefore},
				{Type: Name, Literal: "d"},
				{Type: opGe},
				{Type: Name, Literal: "e"},
				{Type: opAssign},
				{Type: Name, Literal: "g"},
			},
		},
		{
			Input: "fn:count(child::*:item) (: comment (: nested :) :) $Q{urn:x}v",
			Want: []Token{
				{Type: Name, Literal: "fn:count"},
				{Type: begGrp},
				{Type: Name, Literal: "child"},
				{Type: opAxis},
				{Type: Name, Literal: "*:item"},
				{Type: endGrp},
				{Type: Variable, Literal: "Q{urn:x}v"},
			},
		},
		{
			Input: "Q{urn:x}local ns:* map{}",
			Want: []Token{
				{Type: Name, Literal: "Q{urn:x}local"},
				{Type: Name, Literal: "ns:*"},
				{Type: Name, Literal: "map"},
				{Type: begCurl},
				{Type: endCurl},
			},
		},
		{
			Input: "1 % 2",
			Want: []Token{
				{Type: Integer, Literal: "1"},
				{Type: Invalid, Literal: "%"},
			},
		},
		{
			Input: "'unterminated",
			Want: []Token{
				{Type: Invalid, Literal: "unterminated"},
			},
		},
	}
	for _, tt := range tests {
		got := scanAll(tt.Input)
		qt.Check(t, qt.DeepEquals(got, tt.Want), qt.Commentf("input: %s", tt.Input))
	}
}

func TestScannerPosition(t *testing.T) {
	scan := Scan(strings.NewReader("1 +\n  $x"))
	var list []Position
	for tok := scan.Scan(); tok.Type != EOF; tok = scan.Scan() {
		list = append(list, tok.Position)
	}
	want := []Position{
		{Line: 1, Column: 1},
		{Line: 1, Column: 3},
		{Line: 2, Column: 3},
	}
	qt.Assert(t, qt.DeepEquals(list, want))
}
