package xquery

import (
	"fmt"
	"strings"

	"github.com/midbel/xquery/schema"
	"github.com/midbel/xquery/xml"
)

type Occurrence int8

const (
	ExactlyOne Occurrence = iota
	ZeroOrOne
	ZeroOrMore
	OneOrMore
)

func (o Occurrence) String() string {
	switch o {
	case ZeroOrOne:
		return "?"
	case ZeroOrMore:
		return "*"
	case OneOrMore:
		return "+"
	default:
		return ""
	}
}

func (o Occurrence) accept(n int) bool {
	switch o {
	case ExactlyOne:
		return n == 1
	case ZeroOrOne:
		return n <= 1
	case OneOrMore:
		return n >= 1
	default:
		return true
	}
}

type ItemKind int8

const (
	KindAnyItem ItemKind = iota
	KindEmptySequence
	KindAtomic
	KindNodeTest
	KindMapTest
	KindArrayTest
	KindFunctionTest
)

// SequenceType describes the type of a sequence: the type of its items and
// their number.
type SequenceType struct {
	Item       ItemKind
	Occurrence Occurrence

	Atomic *schema.Type
	Node   xml.NodeType
	Name   string

	Key    *schema.Type
	Value  *SequenceType
	Member *SequenceType
}

func (t *SequenceType) String() string {
	var str string
	switch t.Item {
	case KindEmptySequence:
		return "empty-sequence()"
	case KindAtomic:
		str = t.Atomic.String()
	case KindNodeTest:
		str = t.Node.String() + "(" + t.Name + ")"
	case KindMapTest:
		if t.Key == nil {
			str = "map(*)"
		} else {
			str = fmt.Sprintf("map(%s, %s)", t.Key, t.Value)
		}
	case KindArrayTest:
		if t.Member == nil {
			str = "array(*)"
		} else {
			str = fmt.Sprintf("array(%s)", t.Member)
		}
	case KindFunctionTest:
		str = "function(*)"
	default:
		str = "item()"
	}
	return str + t.Occurrence.String()
}

// Matches reports whether every item of seq matches the item type and the
// length of seq is accepted by the occurrence indicator.
func (t *SequenceType) Matches(seq Sequence) bool {
	return t.mismatch(seq) < 0 && t.cardinality(len(seq))
}

func (t *SequenceType) cardinality(n int) bool {
	if t.Item == KindEmptySequence {
		return n == 0
	}
	return t.Occurrence.accept(n)
}

// mismatch returns the index of the first item not matching the item type
// or -1.
func (t *SequenceType) mismatch(seq Sequence) int {
	for i := range seq {
		if !t.MatchItem(seq[i]) {
			return i
		}
	}
	return -1
}

func (t *SequenceType) MatchItem(item Item) bool {
	switch t.Item {
	case KindAnyItem:
		return true
	case KindEmptySequence:
		return false
	case KindAtomic:
		a, ok := item.(AtomicItem)
		return ok && a.typ.DerivesFrom(t.Atomic)
	case KindNodeTest:
		n, ok := item.(nodeItem)
		if !ok || n.node.Type()&t.Node == 0 {
			return false
		}
		return t.Name == "" || t.Name == "*" || t.Name == n.node.QualifiedName() || t.Name == n.node.LocalName()
	case KindMapTest:
		m, ok := item.(*MapItem)
		if !ok {
			return false
		}
		if t.Key == nil {
			return true
		}
		for _, e := range m.entries {
			if !e.key.typ.DerivesFrom(t.Key) || !t.Value.Matches(e.value) {
				return false
			}
		}
		return true
	case KindArrayTest:
		a, ok := item.(*ArrayItem)
		if !ok {
			return false
		}
		if t.Member == nil {
			return true
		}
		for _, m := range a.members {
			if !t.Member.Matches(m) {
				return false
			}
		}
		return true
	case KindFunctionTest:
		switch item.(type) {
		case *FunctionItem, *MapItem, *ArrayItem:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// ParseSequenceType parses the textual form of a sequence type. Atomic type
// names are resolved through registry.
func ParseSequenceType(str string, registry schema.Registry) (*SequenceType, error) {
	p := typeParser{
		input:    strings.TrimSpace(str),
		registry: registry,
	}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skip()
	if p.pos < len(p.input) {
		return nil, errorf(CodeGenericError, "%s: unexpected %q in sequence type", str, p.input[p.pos:])
	}
	return t, nil
}

type typeParser struct {
	input    string
	pos      int
	registry schema.Registry
}

func (p *typeParser) parse() (*SequenceType, error) {
	t, err := p.parseItem()
	if err != nil {
		return nil, err
	}
	if t.Item == KindEmptySequence {
		return t, nil
	}
	p.skip()
	if p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '?':
			t.Occurrence = ZeroOrOne
			p.pos++
		case '*':
			t.Occurrence = ZeroOrMore
			p.pos++
		case '+':
			t.Occurrence = OneOrMore
			p.pos++
		}
	}
	return t, nil
}

func (p *typeParser) parseItem() (*SequenceType, error) {
	p.skip()
	if p.accept('(') {
		t, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		if !p.accept(')') {
			return nil, p.errorf("missing closing parenthesis")
		}
		return t, nil
	}
	name := p.name()
	if name == "" {
		return nil, p.errorf("type name expected")
	}
	p.skip()
	if !p.accept('(') {
		typ, err := p.registry.Lookup(name)
		if err != nil {
			return nil, errorf(CodeUnknownType, "%s: unknown atomic type", name)
		}
		return &SequenceType{Item: KindAtomic, Atomic: typ}, nil
	}
	var t SequenceType
	switch name {
	case "item":
		t.Item = KindAnyItem
	case "empty-sequence":
		t.Item = KindEmptySequence
	case "node":
		t.Item, t.Node = KindNodeTest, xml.TypeNode
	case "element":
		t.Item, t.Node = KindNodeTest, xml.TypeElement
	case "attribute":
		t.Item, t.Node = KindNodeTest, xml.TypeAttribute
	case "text":
		t.Item, t.Node = KindNodeTest, xml.TypeText
	case "comment":
		t.Item, t.Node = KindNodeTest, xml.TypeComment
	case "document-node":
		t.Item, t.Node = KindNodeTest, xml.TypeDocument
	case "processing-instruction":
		t.Item, t.Node = KindNodeTest, xml.TypeInstruction
	case "map":
		return p.parseMap()
	case "array":
		return p.parseArray()
	case "function":
		t.Item = KindFunctionTest
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
		p.skip()
		if strings.HasPrefix(p.input[p.pos:], "as") {
			p.pos += 2
			if _, err := p.parse(); err != nil {
				return nil, err
			}
		}
		return &t, nil
	default:
		return nil, errorf(CodeUnknownType, "%s(): unknown item type", name)
	}
	p.skip()
	if t.Item == KindNodeTest {
		if p.accept('*') {
			t.Name = "*"
		} else {
			t.Name = p.name()
		}
		p.skip()
		if p.accept(',') {
			p.skip()
			p.name()
			p.skip()
			p.accept('?')
			p.skip()
		}
	}
	if !p.accept(')') {
		return nil, p.errorf("missing closing parenthesis")
	}
	return &t, nil
}

func (p *typeParser) parseMap() (*SequenceType, error) {
	t := SequenceType{
		Item: KindMapTest,
	}
	p.skip()
	if p.accept('*') {
		p.skip()
		if !p.accept(')') {
			return nil, p.errorf("missing closing parenthesis")
		}
		return &t, nil
	}
	name := p.name()
	key, err := p.registry.Lookup(name)
	if err != nil {
		return nil, errorf(CodeUnknownType, "%s: unknown atomic type", name)
	}
	t.Key = key
	p.skip()
	if !p.accept(',') {
		return nil, p.errorf("missing comma in map type")
	}
	if t.Value, err = p.parse(); err != nil {
		return nil, err
	}
	p.skip()
	if !p.accept(')') {
		return nil, p.errorf("missing closing parenthesis")
	}
	return &t, nil
}

func (p *typeParser) parseArray() (*SequenceType, error) {
	t := SequenceType{
		Item: KindArrayTest,
	}
	p.skip()
	if p.accept('*') {
		p.skip()
		if !p.accept(')') {
			return nil, p.errorf("missing closing parenthesis")
		}
		return &t, nil
	}
	member, err := p.parse()
	if err != nil {
		return nil, err
	}
	t.Member = member
	p.skip()
	if !p.accept(')') {
		return nil, p.errorf("missing closing parenthesis")
	}
	return &t, nil
}

func (p *typeParser) skipBalanced() error {
	for depth := 1; depth > 0; p.pos++ {
		if p.pos >= len(p.input) {
			return p.errorf("missing closing parenthesis")
		}
		switch p.input[p.pos] {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return nil
}

func (p *typeParser) name() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == ' ' || c == '(' || c == ')' || c == ',' || c == '?' || c == '*' || c == '+' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *typeParser) accept(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *typeParser) skip() {
	for p.pos < len(p.input) && strings.IndexByte(" \t\r\n", p.input[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *typeParser) errorf(msg string) error {
	return errorf(CodeGenericError, "%s: %s", p.input, msg)
}

// sequenceType returns the parsed form of str. Parsed types are memoized by
// the evaluator.
func (e *Evaluator) sequenceType(str string) (*SequenceType, error) {
	if v, ok := e.types.Get(str); ok {
		typeCacheHit.Inc(1)
		return v.(*SequenceType), nil
	}
	typeCacheMiss.Inc(1)
	t, err := ParseSequenceType(str, e.registry)
	if err != nil {
		return nil, err
	}
	e.types.Add(str, t)
	return t, nil
}

// conform checks seq against the type named str and reports the first
// offending item with the given error code.
func (e *Evaluator) conform(seq Sequence, str, code, context string) error {
	t, err := e.sequenceType(str)
	if err != nil {
		return err
	}
	if !t.cardinality(len(seq)) {
		return errorf(code, "%s: %s expects %s, got %d item(s)", context, str, occurrenceText(t), len(seq))
	}
	if ix := t.mismatch(seq); ix >= 0 {
		return errorf(code, "%s: item %d (%s) does not match %s", context, ix+1, itemKind(seq[ix]), str)
	}
	return nil
}

func occurrenceText(t *SequenceType) string {
	if t.Item == KindEmptySequence {
		return "an empty sequence"
	}
	switch t.Occurrence {
	case ZeroOrOne:
		return "at most one item"
	case OneOrMore:
		return "at least one item"
	case ZeroOrMore:
		return "any number of items"
	default:
		return "exactly one item"
	}
}
