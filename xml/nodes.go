package xml

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

type NodeType int8

const (
	TypeDocument NodeType = 1 << iota
	TypeElement
	TypeComment
	TypeAttribute
	TypeInstruction
	TypeText
)

const TypeNode = TypeDocument | TypeElement | TypeComment | TypeAttribute | TypeInstruction | TypeText

var nodeTypeNames = map[NodeType]string{
	TypeDocument:    "document-node",
	TypeElement:     "element",
	TypeComment:     "comment",
	TypeAttribute:   "attribute",
	TypeInstruction: "processing-instruction",
	TypeText:        "text",
	TypeNode:        "node",
}

func (n NodeType) String() string {
	if str, ok := nodeTypeNames[n]; ok {
		return str
	}
	return "<>"
}

// Node is the read-only view of the document tree. Identity is unique for
// every node ever created in the process and grows in document order inside
// a document built by Parse.
type Node interface {
	Type() NodeType
	LocalName() string
	QualifiedName() string
	Namespace() string
	Leaf() bool
	Position() int
	Parent() Node
	Value() string
	Identity() int64

	setParent(Node)
	setPosition(int)
	setIdentity(int64)
}

var identities atomic.Int64

// reserve returns the first identity of a block of n consecutive ones.
func reserve(n int) int64 {
	return identities.Add(int64(n)) - int64(n) + 1
}

func Before(left, right Node) bool {
	return left.Identity() < right.Identity()
}

func Root(node Node) Node {
	for p := node.Parent(); p != nil; p = node.Parent() {
		node = p
	}
	return node
}

// QName is an expanded name. Space holds the prefix used in the source and
// only Uri and Name take part in comparisons.
type QName struct {
	Uri   string
	Space string
	Name  string
}

func ParseName(name string) (QName, error) {
	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return LocalName(name), nil
	}
	if prefix == "" || local == "" {
		return QName{}, fmt.Errorf("%s: invalid qualified name", name)
	}
	return QualifiedName(local, prefix), nil
}

func ExpandedName(name, space, uri string) QName {
	return QName{
		Name:  name,
		Space: space,
		Uri:   uri,
	}
}

func LocalName(name string) QName {
	return QName{Name: name}
}

func QualifiedName(name, space string) QName {
	return QName{Name: name, Space: space}
}

func (q QName) Zero() bool {
	return q.Space == "" && q.Name == ""
}

func (q QName) Equal(other QName) bool {
	return q.Uri == other.Uri && q.Name == other.Name
}

func (q QName) LocalName() string {
	return q.Name
}

func (q QName) Namespace() string {
	return q.Uri
}

func (q QName) ExpandedName() string {
	return "Q{" + q.Uri + "}" + q.Name
}

func (q QName) QualifiedName() string {
	if q.Space == "" {
		return q.Name
	}
	return q.Space + ":" + q.Name
}

type baseNode struct {
	parent   Node
	position int
	id       int64
}

func newBase() baseNode {
	return baseNode{id: reserve(1)}
}

func (n *baseNode) Parent() Node { return n.parent }
func (n *baseNode) Position() int { return n.position }
func (n *baseNode) Identity() int64 { return n.id }
func (n *baseNode) setParent(node Node) { n.parent = node }
func (n *baseNode) setPosition(pos int) { n.position = pos }
func (n *baseNode) setIdentity(id int64) { n.id = id }

// unnamed provides the name accessors of the nodes without a name.
type unnamed struct{}

func (unnamed) LocalName() string { return "" }
func (unnamed) QualifiedName() string { return "" }
func (unnamed) Namespace() string { return "" }

type Document struct {
	baseNode
	unnamed
	BaseURI string
	Nodes   []Node
}

func EmptyDocument() *Document {
	return &Document{baseNode: newBase()}
}

func (d *Document) Type() NodeType { return TypeDocument }
func (d *Document) Leaf() bool { return false }

func (d *Document) Value() string {
	return textContent(d.Nodes)
}

func (d *Document) Append(node Node) {
	node.setParent(d)
	node.setPosition(len(d.Nodes))
	d.Nodes = append(d.Nodes, node)
}

func (d *Document) Root() Node {
	ix := slices.IndexFunc(d.Nodes, func(n Node) bool {
		return n.Type() == TypeElement
	})
	if ix < 0 {
		return nil
	}
	return d.Nodes[ix]
}

// Reindex assigns identities to every node of the document in document
// order: the document, then each element followed by its attributes and
// its children.
func (d *Document) Reindex() {
	var list []Node
	walk(d, func(n Node) {
		list = append(list, n)
	})
	next := reserve(len(list))
	for i, n := range list {
		n.setIdentity(next + int64(i))
	}
}

// walk visits node and its descendants in document order, attributes of an
// element coming before its children.
func walk(node Node, visit func(Node)) {
	visit(node)
	switch n := node.(type) {
	case *Document:
		for _, c := range n.Nodes {
			walk(c, visit)
		}
	case *Element:
		for _, a := range n.Attrs {
			visit(a)
		}
		for _, c := range n.Nodes {
			walk(c, visit)
		}
	}
}

func textContent(nodes []Node) string {
	var str strings.Builder
	for _, n := range nodes {
		walk(n, func(n Node) {
			if t, ok := n.(*Text); ok {
				str.WriteString(t.Content)
			}
		})
	}
	return str.String()
}

type Attribute struct {
	baseNode
	QName
	Datum string
}

func NewAttribute(name QName, value string) *Attribute {
	return &Attribute{
		baseNode: newBase(),
		QName:    name,
		Datum:    value,
	}
}

func (*Attribute) Type() NodeType { return TypeAttribute }
func (*Attribute) Leaf() bool { return true }

func (a *Attribute) Value() string {
	return a.Datum
}

type Element struct {
	baseNode
	QName
	Attrs []*Attribute
	Nodes []Node
}

func NewElement(name QName) *Element {
	return &Element{
		baseNode: newBase(),
		QName:    name,
	}
}

func (*Element) Type() NodeType { return TypeElement }

// Leaf reports whether the element has no child other than a single text.
func (e *Element) Leaf() bool {
	switch len(e.Nodes) {
	case 0:
		return true
	case 1:
		return e.Nodes[0].Type() == TypeText
	default:
		return false
	}
}

func (e *Element) Value() string {
	return textContent(e.Nodes)
}

// Append adds node as the last child of e. Adjacent texts are merged.
func (e *Element) Append(node Node) {
	if t, ok := node.(*Text); ok && len(e.Nodes) > 0 {
		if last, ok := e.Nodes[len(e.Nodes)-1].(*Text); ok {
			last.Content += t.Content
			return
		}
	}
	node.setParent(e)
	node.setPosition(len(e.Nodes))
	e.Nodes = append(e.Nodes, node)
}

// SetAttribute adds attr to e or replaces the attribute with the same
// expanded name.
func (e *Element) SetAttribute(attr *Attribute) {
	attr.setParent(e)
	ix := slices.IndexFunc(e.Attrs, func(a *Attribute) bool {
		return a.QName.Equal(attr.QName)
	})
	if ix < 0 {
		ix = len(e.Attrs)
		e.Attrs = append(e.Attrs, attr)
	} else {
		e.Attrs[ix] = attr
	}
	attr.setPosition(ix)
}

// Find returns the first child element matching name, by qualified or local
// name.
func (e *Element) Find(name string) Node {
	for _, n := range e.Nodes {
		if n.Type() == TypeElement && (n.QualifiedName() == name || n.LocalName() == name) {
			return n
		}
	}
	return nil
}

type Instruction struct {
	baseNode
	QName
	Data string
}

func NewInstruction(name QName, data string) *Instruction {
	return &Instruction{
		baseNode: newBase(),
		QName:    name,
		Data:     data,
	}
}

func (*Instruction) Type() NodeType { return TypeInstruction }
func (*Instruction) Leaf() bool { return true }

func (i *Instruction) Value() string {
	return i.Data
}

type Text struct {
	baseNode
	unnamed
	Content string
}

func NewText(text string) *Text {
	return &Text{
		baseNode: newBase(),
		Content:  text,
	}
}

func (*Text) Type() NodeType { return TypeText }
func (*Text) Leaf() bool { return true }

func (t *Text) Value() string {
	return t.Content
}

type Comment struct {
	baseNode
	unnamed
	Content string
}

func NewComment(comment string) *Comment {
	return &Comment{
		baseNode: newBase(),
		Content:  comment,
	}
}

func (*Comment) Type() NodeType { return TypeComment }
func (*Comment) Leaf() bool { return true }

func (c *Comment) Value() string {
	return c.Content
}
