package xml

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Serializer writes nodes as markup. An empty Indent gives the compact form.
// Elements deeper than MaxDepth that are not leaves are written as empty
// elements; zero means no limit.
type Serializer struct {
	Indent          string
	MaxDepth        int
	OmitDeclaration bool
	LocalNames      bool
	SkipComments    bool
}

// WriteNode returns the compact serialization of node. Attributes are
// written as name="value", text nodes as their escaped content.
func WriteNode(node Node) string {
	return WriteNodeDepth(node, 0)
}

func WriteNodeDepth(node Node, depth int) string {
	s := Serializer{
		MaxDepth:        depth,
		OmitDeclaration: true,
	}
	return s.String(node)
}

func (s Serializer) String(node Node) string {
	var str strings.Builder
	s.Serialize(&str, node)
	return str.String()
}

// Serialize writes node to w. The xml declaration is only written for
// documents.
func (s Serializer) Serialize(w io.Writer, node Node) error {
	out := output{
		Serializer: s,
		w:          bufio.NewWriter(w),
	}
	if doc, ok := node.(*Document); ok && !s.OmitDeclaration {
		fmt.Fprintf(out.w, `<?xml version="%s" encoding="%s"?>`, SupportedVersion, SupportedEncoding)
		if len(doc.Nodes) > 0 {
			out.newline(0)
		}
	}
	if err := out.write(node, 0); err != nil {
		return err
	}
	return out.w.Flush()
}

type output struct {
	Serializer
	w *bufio.Writer
}

func (o *output) write(node Node, depth int) error {
	switch n := node.(type) {
	case *Document:
		for i, c := range n.Nodes {
			if i > 0 {
				o.newline(0)
			}
			if err := o.write(c, 0); err != nil {
				return err
			}
		}
	case *Element:
		return o.element(n, depth)
	case *Attribute:
		o.attribute(n)
	case *Text:
		o.w.WriteString(textEscaper.Replace(n.Content))
	case *Comment:
		if !o.SkipComments {
			fmt.Fprintf(o.w, "<!--%s-->", n.Content)
		}
	case *Instruction:
		o.w.WriteString("<?" + n.Name)
		if n.Data != "" {
			o.w.WriteString(" " + n.Data)
		}
		o.w.WriteString("?>")
	default:
		return fmt.Errorf("%T: node type can not be serialized", node)
	}
	return nil
}

func (o *output) element(el *Element, depth int) error {
	name := o.name(el.QName)
	o.w.WriteString("<" + name)
	for _, a := range el.Attrs {
		o.w.WriteByte(' ')
		o.attribute(a)
	}
	truncate := o.MaxDepth > 0 && depth >= o.MaxDepth && !el.Leaf()
	if len(el.Nodes) == 0 || truncate {
		o.w.WriteString("/>")
		return nil
	}
	o.w.WriteByte('>')

	var mixed bool
	for _, c := range el.Nodes {
		if c.Type() == TypeText {
			mixed = true
			if err := o.write(c, depth+1); err != nil {
				return err
			}
			continue
		}
		if c.Type() == TypeComment && o.SkipComments {
			continue
		}
		o.newline(depth + 1)
		if err := o.write(c, depth+1); err != nil {
			return err
		}
		mixed = false
	}
	if !mixed {
		o.newline(depth)
	}
	o.w.WriteString("</" + name + ">")
	return nil
}

func (o *output) attribute(a *Attribute) {
	fmt.Fprintf(o.w, `%s="%s"`, o.name(a.QName), attrEscaper.Replace(a.Datum))
}

func (o *output) name(qn QName) string {
	if o.LocalNames {
		return qn.LocalName()
	}
	return qn.QualifiedName()
}

func (o *output) newline(depth int) {
	if o.Indent == "" {
		return
	}
	o.w.WriteByte('\n')
	o.w.WriteString(strings.Repeat(o.Indent, depth))
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)
