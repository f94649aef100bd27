package xml

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/midbel/xquery/environ"
)

const MaxDepth = 512

const (
	SupportedVersion  = "1.0"
	SupportedEncoding = "UTF-8"
)

const (
	AttrXmlNS = "xmlns"
	PrefixXml = "xml"
	UriXml    = "http://www.w3.org/XML/1998/namespace"
)

type ParseError struct {
	Position
	Element string
	Message string
}

func createParseError(elem, msg string, pos Position) error {
	return ParseError{
		Position: pos,
		Element:  elem,
		Message:  msg,
	}
}

func (p ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", p.Position, p.Element, p.Message)
}

// Parser builds a Document from a stream of markup. Whitespace only text is
// dropped unless KeepEmpty is set. With StrictNS, an undeclared prefix is an
// error instead of an empty namespace.
type Parser struct {
	lex *lexer

	TrimSpace bool
	KeepEmpty bool
	StrictNS  bool
	MaxDepth  int
}

func NewParser(r io.Reader) *Parser {
	return &Parser{
		lex:      newLexer(r),
		MaxDepth: MaxDepth,
	}
}

func ParseFile(file string) (*Document, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc, err := ParseReader(r)
	if err == nil {
		doc.BaseURI = file
	}
	return doc, err
}

func ParseString(xml string) (*Document, error) {
	return ParseReader(strings.NewReader(xml))
}

func ParseReader(r io.Reader) (*Document, error) {
	return NewParser(r).Parse()
}

func (p *Parser) Parse() (*Document, error) {
	b := builder{
		Parser: p,
		doc:    EmptyDocument(),
		global: environ.Empty[string](),
	}
	b.global.Define(PrefixXml, UriXml)
	for {
		ev, err := p.lex.next()
		if err != nil {
			return nil, err
		}
		if ev.kind == eventEOF {
			break
		}
		if err := b.handle(ev); err != nil {
			return nil, err
		}
	}
	if n := len(b.stack); n > 0 {
		name := b.stack[n-1].elem.QualifiedName()
		return nil, p.lex.fail("element", fmt.Sprintf("%s: closing element is missing", name))
	}
	if b.doc.Root() == nil {
		return nil, p.lex.fail("document", "missing root element")
	}
	b.doc.Reindex()
	return b.doc, nil
}

type frame struct {
	elem  *Element
	scope environ.Environ[string]
}

// builder keeps the chain of open elements. Each one carries the namespace
// scope of its declarations, enclosing the scope of its parent.
type builder struct {
	*Parser
	doc    *Document
	global environ.Environ[string]
	stack  []frame
}

func (b *builder) handle(ev event) error {
	switch ev.kind {
	case eventStart:
		return b.open(ev)
	case eventEnd:
		return b.close(ev)
	case eventText:
		str := ev.data
		if b.TrimSpace {
			str = strings.TrimSpace(str)
		}
		if strings.TrimSpace(str) == "" && (!b.KeepEmpty || len(b.stack) == 0) {
			return nil
		}
		return b.attach(NewText(str), ev.pos)
	case eventCharData:
		return b.attach(NewText(ev.data), ev.pos)
	case eventComment:
		return b.attach(NewComment(ev.data), ev.pos)
	case eventInstruction:
		if ev.name == PrefixXml {
			return b.declaration(ev)
		}
		return b.attach(NewInstruction(LocalName(ev.name), ev.data), ev.pos)
	default:
		return createParseError("document", "unexpected markup", ev.pos)
	}
}

func (b *builder) open(ev event) error {
	if b.MaxDepth > 0 && len(b.stack) >= b.MaxDepth {
		return createParseError("document", "maximum depth reached", ev.pos)
	}
	var (
		scope = environ.Enclosed(b.current())
		attrs []*Attribute
		where []Position
	)
	for _, a := range ev.attrs {
		qn, err := ParseName(a.name)
		if err != nil {
			return createParseError("attribute", err.Error(), a.pos)
		}
		if qn.Space == "" && qn.Name == AttrXmlNS {
			scope.Define("", a.value)
			continue
		}
		if qn.Space == AttrXmlNS {
			scope.Define(qn.Name, a.value)
			continue
		}
		attrs = append(attrs, NewAttribute(qn, a.value))
		where = append(where, a.pos)
	}

	qn, err := ParseName(ev.name)
	if err != nil {
		return createParseError("element", err.Error(), ev.pos)
	}
	if qn.Uri, err = b.resolve(scope, qn.Space, true, ev.pos); err != nil {
		return err
	}
	elem := NewElement(qn)
	for i, a := range attrs {
		if a.Uri, err = b.resolve(scope, a.Space, false, where[i]); err != nil {
			return err
		}
		for _, prev := range attrs[:i] {
			if prev.QualifiedName() == a.QualifiedName() || prev.QName.Equal(a.QName) {
				return createParseError("attribute", fmt.Sprintf("%s: attribute is already defined", a.QualifiedName()), where[i])
			}
		}
		elem.SetAttribute(a)
	}
	if err := b.attach(elem, ev.pos); err != nil {
		return err
	}
	if !ev.empty {
		b.stack = append(b.stack, frame{
			elem:  elem,
			scope: scope,
		})
	}
	return nil
}

func (b *builder) close(ev event) error {
	n := len(b.stack)
	if n == 0 {
		return createParseError("element", fmt.Sprintf("%s: no element to close", ev.name), ev.pos)
	}
	if name := b.stack[n-1].elem.QualifiedName(); name != ev.name {
		return createParseError("element", fmt.Sprintf("%s: name mismatched with opening element %s", ev.name, name), ev.pos)
	}
	b.stack = b.stack[:n-1]
	return nil
}

func (b *builder) declaration(ev event) error {
	if len(b.doc.Nodes) > 0 || len(b.stack) > 0 {
		return createParseError("document", "xml declaration must start the document", ev.pos)
	}
	attrs, err := newLexer(strings.NewReader(ev.data)).attributes()
	if err != nil {
		return createParseError("document", "invalid xml declaration", ev.pos)
	}
	for _, a := range attrs {
		switch a.name {
		case "version":
			if a.value != SupportedVersion {
				return createParseError("document", a.value+": xml version not supported", ev.pos)
			}
		case "encoding":
			if !strings.EqualFold(a.value, SupportedEncoding) {
				return createParseError("document", a.value+": xml encoding not supported", ev.pos)
			}
		default:
		}
	}
	return nil
}

func (b *builder) attach(node Node, pos Position) error {
	if n := len(b.stack); n > 0 {
		b.stack[n-1].elem.Append(node)
		return nil
	}
	switch node.Type() {
	case TypeComment, TypeInstruction:
	case TypeElement:
		if b.doc.Root() != nil {
			return createParseError("document", "only one root element allowed", pos)
		}
	default:
		return createParseError("document", "content outside of root element", pos)
	}
	b.doc.Append(node)
	return nil
}

func (b *builder) current() environ.Environ[string] {
	if n := len(b.stack); n > 0 {
		return b.stack[n-1].scope
	}
	return b.global
}

func (b *builder) resolve(scope environ.Environ[string], prefix string, elem bool, pos Position) (string, error) {
	if prefix == "" && !elem {
		return "", nil
	}
	uri, err := scope.Resolve(prefix)
	if err == nil {
		return uri, nil
	}
	if prefix != "" && b.StrictNS {
		return "", createParseError("namespace", fmt.Sprintf("%s: prefix is not defined", prefix), pos)
	}
	return "", nil
}
