package xml

import (
	"bufio"
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode"
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type eventKind int8

const (
	eventEOF eventKind = iota
	eventStart
	eventEnd
	eventText
	eventCharData
	eventComment
	eventInstruction
)

type rawAttr struct {
	name  string
	value string
	pos   Position
}

// event is one markup construct read from the input. For start tags, empty
// reports the self-closing form.
type event struct {
	kind  eventKind
	name  string
	data  string
	attrs []rawAttr
	empty bool
	pos   Position
}

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

type lexer struct {
	in  *bufio.Reader
	pos Position
	buf strings.Builder
}

func newLexer(r io.Reader) *lexer {
	in := bufio.NewReader(r)
	if pk, _ := in.Peek(len(byteOrderMark)); bytes.Equal(pk, byteOrderMark) {
		in.Discard(len(byteOrderMark))
	}
	return &lexer{
		in:  in,
		pos: Position{Line: 1, Column: 1},
	}
}

func (x *lexer) next() (event, error) {
	ev := event{pos: x.pos}
	c, ok := x.peek()
	if !ok {
		ev.kind = eventEOF
		return ev, nil
	}
	if c != langle {
		return x.text(ev)
	}
	x.read()
	switch {
	case x.accept("!--"):
		return x.comment(ev)
	case x.accept("![CDATA["):
		return x.charData(ev)
	case x.accept("?"):
		return x.instruction(ev)
	case x.accept("/"):
		return x.endTag(ev)
	case x.accept("!"):
		return ev, x.fail("document", "declarations are not supported")
	default:
		return x.startTag(ev)
	}
}

func (x *lexer) text(ev event) (event, error) {
	ev.kind = eventText
	x.buf.Reset()
	for {
		c, ok := x.peek()
		if !ok || c == langle {
			break
		}
		x.read()
		if c != ampersand {
			x.buf.WriteRune(c)
			continue
		}
		str, err := x.entity()
		if err != nil {
			return ev, err
		}
		x.buf.WriteString(str)
	}
	ev.data = x.buf.String()
	return ev, nil
}

func (x *lexer) comment(ev event) (event, error) {
	ev.kind = eventComment
	str, ok := x.until("-->")
	if !ok {
		return ev, x.fail("comment", "comment not terminated")
	}
	ev.data = str
	return ev, nil
}

func (x *lexer) charData(ev event) (event, error) {
	ev.kind = eventCharData
	str, ok := x.until("]]>")
	if !ok {
		return ev, x.fail("cdata", "character data not terminated")
	}
	ev.data = str
	return ev, nil
}

func (x *lexer) instruction(ev event) (event, error) {
	ev.kind = eventInstruction
	name, err := x.name()
	if err != nil {
		return ev, err
	}
	ev.name = name
	str, ok := x.until("?>")
	if !ok {
		return ev, x.fail("processing instruction", "end of instruction expected")
	}
	ev.data = strings.TrimSpace(str)
	return ev, nil
}

func (x *lexer) startTag(ev event) (event, error) {
	ev.kind = eventStart
	name, err := x.name()
	if err != nil {
		return ev, err
	}
	ev.name = name
	for {
		x.skipSpace()
		if x.accept("/>") {
			ev.empty = true
			return ev, nil
		}
		if x.accept(">") {
			return ev, nil
		}
		a, err := x.attribute()
		if err != nil {
			return ev, err
		}
		ev.attrs = append(ev.attrs, a)
	}
}

func (x *lexer) endTag(ev event) (event, error) {
	ev.kind = eventEnd
	name, err := x.name()
	if err != nil {
		return ev, err
	}
	ev.name = name
	x.skipSpace()
	if !x.accept(">") {
		return ev, x.fail("element", "end of element expected")
	}
	return ev, nil
}

// attributes reads pseudo attributes until the end of input. It is used for
// the content of the xml declaration.
func (x *lexer) attributes() ([]rawAttr, error) {
	var list []rawAttr
	for {
		x.skipSpace()
		if _, ok := x.peek(); !ok {
			return list, nil
		}
		a, err := x.attribute()
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
}

func (x *lexer) attribute() (rawAttr, error) {
	a := rawAttr{pos: x.pos}
	name, err := x.name()
	if err != nil {
		return a, err
	}
	a.name = name
	x.skipSpace()
	if !x.accept("=") {
		return a, x.fail("attribute", fmt.Sprintf("%s: value is missing", name))
	}
	x.skipSpace()
	delim, ok := x.read()
	if !ok || (delim != quote && delim != apos) {
		return a, x.fail("attribute", fmt.Sprintf("%s: quoted value expected", name))
	}
	x.buf.Reset()
	for {
		c, ok := x.read()
		switch {
		case !ok:
			return a, x.fail("attribute", fmt.Sprintf("%s: value not terminated", name))
		case c == delim:
			a.value = x.buf.String()
			return a, nil
		case c == langle:
			return a, x.fail("attribute", fmt.Sprintf("%s: '<' not allowed in value", name))
		case c == ampersand:
			str, err := x.entity()
			if err != nil {
				return a, err
			}
			x.buf.WriteString(str)
		default:
			x.buf.WriteRune(c)
		}
	}
}

func (x *lexer) entity() (string, error) {
	var ref strings.Builder
	ref.WriteRune(ampersand)
	for {
		c, ok := x.read()
		if !ok || c == langle || unicode.IsSpace(c) {
			return "", x.fail("entity", "reference not terminated")
		}
		ref.WriteRune(c)
		if c == semicolon {
			break
		}
	}
	return html.UnescapeString(ref.String()), nil
}

func (x *lexer) name() (string, error) {
	var str strings.Builder
	for {
		c, ok := x.peek()
		if !ok || !isNameChar(c, str.Len() == 0) {
			break
		}
		x.read()
		str.WriteRune(c)
	}
	if str.Len() == 0 {
		return "", x.fail("name", "name expected")
	}
	return str.String(), nil
}

func isNameChar(c rune, first bool) bool {
	if unicode.IsLetter(c) || c == underscore {
		return true
	}
	if first {
		return false
	}
	return unicode.IsDigit(c) || c == dash || c == dot || c == colon
}

func (x *lexer) until(delim string) (string, bool) {
	x.buf.Reset()
	for {
		if x.accept(delim) {
			return x.buf.String(), true
		}
		c, ok := x.read()
		if !ok {
			return x.buf.String(), false
		}
		x.buf.WriteRune(c)
	}
}

// accept consumes str when the input starts with it. str is ascii.
func (x *lexer) accept(str string) bool {
	pk, err := x.in.Peek(len(str))
	if err != nil || string(pk) != str {
		return false
	}
	for range str {
		x.read()
	}
	return true
}

func (x *lexer) skipSpace() {
	for {
		c, ok := x.peek()
		if !ok || !unicode.IsSpace(c) {
			return
		}
		x.read()
	}
}

func (x *lexer) peek() (rune, bool) {
	c, _, err := x.in.ReadRune()
	if err != nil {
		return 0, false
	}
	x.in.UnreadRune()
	return c, true
}

func (x *lexer) read() (rune, bool) {
	c, _, err := x.in.ReadRune()
	if err != nil {
		return 0, false
	}
	if c == '\n' {
		x.pos.Line++
		x.pos.Column = 1
	} else {
		x.pos.Column++
	}
	return c, true
}

func (x *lexer) fail(elem, msg string) error {
	return createParseError(elem, msg, x.pos)
}

const (
	langle     = '<'
	colon      = ':'
	quote      = '"'
	apos       = '\''
	ampersand  = '&'
	semicolon  = ';'
	dash       = '-'
	underscore = '_'
	dot        = '.'
)
