package xquery

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Position struct {
	Line   int
	Column int
}

const (
	kwLet        = "let"
	kwIf         = "if"
	kwElse       = "else"
	kwThen       = "then"
	kwFor        = "for"
	kwIn         = "in"
	kwAt         = "at"
	kwTo         = "to"
	kwWhere      = "where"
	kwOrder      = "order"
	kwStable     = "stable"
	kwBy         = "by"
	kwAscending  = "ascending"
	kwDescending = "descending"
	kwEmpty      = "empty"
	kwGreatest   = "greatest"
	kwLeast      = "least"
	kwCollation  = "collation"
	kwUnion      = "union"
	kwIntersect  = "intersect"
	kwExcept     = "except"
	kwReturn     = "return"
	kwSome       = "some"
	kwEvery      = "every"
	kwSatisfies  = "satisfies"
	kwAnd        = "and"
	kwOr         = "or"
	kwDiv        = "div"
	kwIdiv       = "idiv"
	kwMod        = "mod"
	kwAs         = "as"
	kwIs         = "is"
	kwCast       = "cast"
	kwCastable   = "castable"
	kwTreat      = "treat"
	kwInstance   = "instance"
	kwOf         = "of"
	kwMap        = "map"
	kwArray      = "array"
	kwFunction   = "function"
	kwTypeswitch = "typeswitch"
	kwCase       = "case"
	kwDefault    = "default"
	kwOrdered    = "ordered"
	kwUnordered  = "unordered"
	kwEq         = "eq"
	kwNe         = "ne"
	kwLt         = "lt"
	kwLe         = "le"
	kwGt         = "gt"
	kwGe         = "ge"

	kwXquery    = "xquery"
	kwVersion   = "version"
	kwEncoding  = "encoding"
	kwModule    = "module"
	kwNamespace = "namespace"
	kwDeclare   = "declare"
	kwImport    = "import"
	kwVariable  = "variable"
	kwExternal  = "external"
	kwElement   = "element"
	kwBaseURI   = "base-uri"
	kwOrdering  = "ordering"
	kwOption    = "option"
	kwFormat    = "decimal-format"
	kwSchema    = "schema"
)

// isReserved reports whether a name followed by an open parenthesis starts
// an expression instead of a function call.
func isReserved(str string) bool {
	switch str {
	case kwIf, kwTypeswitch, kwFunction, kwMap, kwArray:
	case "item", "node", "text", "comment", "element", "attribute", "document-node",
		"processing-instruction", "empty-sequence", "namespace-node", "schema-element",
		"schema-attribute", "switch":
	default:
		return false
	}
	return true
}

const (
	EOF rune = -(1 + iota)
	Name
	Variable
	Literal
	Integer
	Decimal
	Double
	Invalid
)

const (
	currNode = -(iota + 1000)
	parentNode
	attrNode
	currLevel
	anyLevel
	begPred
	endPred
	begGrp
	endGrp
	begCurl
	endCurl
	opAssign
	opArrow
	opConcat
	opBefore
	opAfter
	opQuestion
	opAdd
	opSub
	opMul
	opEq
	opNe
	opGt
	opGe
	opLt
	opLe
	opUnion
	opSeq
	opAxis
	opBang
	opHash
	opColon
	opSemi
)

type symbol struct {
	text string
	kind rune
}

// symbols lists the punctuation of the grammar. Two characters symbols come
// first so that the scanner always takes the longest match.
var symbols = []symbol{
	{"::", opAxis},
	{":=", opAssign},
	{"..", parentNode},
	{"||", opConcat},
	{"//", anyLevel},
	{"=>", opArrow},
	{"!=", opNe},
	{"<=", opLe},
	{"<<", opBefore},
	{">=", opGe},
	{">>", opAfter},
	{":", opColon},
	{".", currNode},
	{",", opSeq},
	{";", opSemi},
	{"|", opUnion},
	{"{", begCurl},
	{"}", endCurl},
	{"[", begPred},
	{"]", endPred},
	{"(", begGrp},
	{")", endGrp},
	{"/", currLevel},
	{"?", opQuestion},
	{"+", opAdd},
	{"-", opSub},
	{"*", opMul},
	{"=", opEq},
	{"!", opBang},
	{"<", opLt},
	{">", opGt},
	{"#", opHash},
	{"@", attrNode},
}

var symbolText = make(map[rune]string)

func init() {
	for _, s := range symbols {
		symbolText[s.kind] = s.text
	}
}

type Token struct {
	Literal string
	Type    rune
	Position
}

func (t Token) String() string {
	if str, ok := symbolText[t.Type]; ok {
		return fmt.Sprintf("'%s'", str)
	}
	var kind string
	switch t.Type {
	case EOF:
		return "end of input"
	case Invalid:
		return fmt.Sprintf("invalid(%s)", t.Literal)
	case Name:
		kind = "name"
	case Variable:
		kind = "variable"
	case Literal:
		kind = "literal"
	case Integer, Decimal, Double:
		kind = "number"
	default:
		return "unknown"
	}
	return fmt.Sprintf("%s(%s)", kind, t.Literal)
}

// text returns the source form of the token.
func (t Token) text() string {
	if str, ok := symbolText[t.Type]; ok {
		return str
	}
	return t.Literal
}

type Scanner struct {
	input *bufio.Reader
	char  rune
	str   strings.Builder

	Position
}

func Scan(r io.Reader) *Scanner {
	s := Scanner{
		input: bufio.NewReader(r),
	}
	s.Line = 1
	s.read()
	return &s
}

func (s *Scanner) Scan() Token {
	s.str.Reset()
	s.skipBlank()

	tok := Token{Position: s.Position}
	switch next := s.peek(); {
	case s.done():
		tok.Type = EOF
	case s.char == '$':
		s.read()
		s.scanVariable(&tok)
	case s.char == '\'' || s.char == '"':
		s.scanString(&tok)
	case isDigit(s.char), s.char == '.' && isDigit(next):
		s.scanNumber(&tok)
	case s.char == 'Q' && next == '{', isNameStart(s.char):
		s.scanName(&tok)
	case s.char == '*' && next == ':' && s.peekNameAt(1):
		s.accept()
		s.accept()
		s.scanNCName()
		tok.Type = Name
		tok.Literal = s.str.String()
	default:
		s.scanSymbol(&tok)
	}
	return tok
}

func (s *Scanner) scanSymbol(tok *Token) {
	next := s.peek()
	for _, sym := range symbols {
		first, second := rune(sym.text[0]), rune(0)
		if len(sym.text) > 1 {
			second = rune(sym.text[1])
		}
		if first != s.char || (second != 0 && second != next) {
			continue
		}
		for range sym.text {
			s.read()
		}
		tok.Type = sym.kind
		return
	}
	tok.Type = Invalid
	tok.Literal = string(s.char)
	s.read()
}

// scanString reads a string literal. A doubled delimiter stands for itself
// and character references are expanded.
func (s *Scanner) scanString(tok *Token) {
	delim := s.char
	s.read()
	tok.Type = Invalid
	for !s.done() {
		if s.char == delim {
			s.read()
			if s.char != delim {
				tok.Type = Literal
				break
			}
		}
		s.accept()
	}
	tok.Literal = s.str.String()
	if tok.Type == Literal && strings.ContainsRune(tok.Literal, '&') {
		tok.Literal = html.UnescapeString(tok.Literal)
	}
}

func (s *Scanner) scanNumber(tok *Token) {
	tok.Type = Integer
	s.digits()
	if s.char == '.' && s.peek() != '.' {
		tok.Type = Decimal
		s.accept()
		s.digits()
	}
	if s.char == 'e' || s.char == 'E' {
		tok.Type = Double
		s.accept()
		if s.char == '-' || s.char == '+' {
			s.accept()
		}
		if !isDigit(s.char) {
			tok.Type = Invalid
		}
		s.digits()
	}
	tok.Literal = s.str.String()
}

func (s *Scanner) scanVariable(tok *Token) {
	if s.char != 'Q' && !isNameStart(s.char) {
		tok.Type = Invalid
		return
	}
	s.scanName(tok)
	if tok.Type == Name {
		tok.Type = Variable
	}
}

// scanName reads a lexical QName, a wildcard with a prefix (ns:*) or an URI
// qualified name (Q{uri}local).
func (s *Scanner) scanName(tok *Token) {
	tok.Type = Name
	if s.char == 'Q' && s.peek() == '{' {
		for !s.done() && s.char != '}' {
			s.accept()
		}
		if s.done() {
			tok.Type = Invalid
			return
		}
		s.accept()
		if s.char == '*' {
			s.accept()
		} else {
			s.scanNCName()
		}
		tok.Literal = s.str.String()
		return
	}
	s.scanNCName()
	if next := s.peek(); s.char == ':' && (next == '*' || isNameStart(next)) {
		s.accept()
		if s.char == '*' {
			s.accept()
		} else {
			s.scanNCName()
		}
	}
	tok.Literal = s.str.String()
}

func (s *Scanner) scanNCName() {
	for !s.done() && isNameChar(s.char) {
		s.accept()
	}
}

func (s *Scanner) digits() {
	for isDigit(s.char) {
		s.accept()
	}
}

// skipBlank moves past spaces and comments. Comments nest.
func (s *Scanner) skipBlank() {
	for {
		for unicode.IsSpace(s.char) {
			s.read()
		}
		if s.char != '(' || s.peek() != ':' {
			return
		}
		s.read()
		s.read()
		for depth := 1; depth > 0 && !s.done(); s.read() {
			if next := s.peek(); s.char == '(' && next == ':' {
				depth++
				s.read()
			} else if s.char == ':' && next == ')' {
				depth--
				s.read()
			}
		}
	}
}

// accept appends the current character to the token and moves to the next.
func (s *Scanner) accept() {
	s.str.WriteRune(s.char)
	s.read()
}

func (s *Scanner) read() {
	if s.char == '\n' {
		s.Line++
		s.Column = 0
	}
	s.Column++
	c, _, err := s.input.ReadRune()
	if err != nil {
		c = utf8.RuneError
	}
	s.char = c
}

func (s *Scanner) peek() rune {
	c, _, err := s.input.ReadRune()
	if err != nil {
		return utf8.RuneError
	}
	s.input.UnreadRune()
	return c
}

// peekNameAt reports whether the character n positions after the next one
// starts a name.
func (s *Scanner) peekNameAt(n int) bool {
	buf, _ := s.input.Peek(n + utf8.UTFMax)
	if len(buf) <= n {
		return false
	}
	r, _ := utf8.DecodeRune(buf[n:])
	return isNameStart(r)
}

func (s *Scanner) done() bool {
	return s.char == utf8.RuneError
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isNameStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func isNameChar(c rune) bool {
	return isNameStart(c) || unicode.IsDigit(c) || c == '-' || c == '.' || c == 0xB7
}
