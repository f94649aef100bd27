package xml_test

import (
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/midbel/xquery/xml"
)

const prolog = `<?xml version="1.0" encoding="UTF-8"?>`

func TestParseInvalidDocument(t *testing.T) {
	data := []struct {
		Xml   string
		Cause string
	}{
		{
			Xml:   ``,
			Cause: "document without root element",
		},
		{
			Xml:   `<root empty-attr></root>`,
			Cause: "attribute without value",
		},
		{
			Xml:   `<root id="id-1" id="id-2"></root>`,
			Cause: "duplicate attribute",
		},
		{
			Xml:   `<root><item></root>`,
			Cause: "mismatched closing element",
		},
		{
			Xml:   `<root/><other/>`,
			Cause: "multiple root elements",
		},
	}
	for _, d := range data {
		_, err := xml.ParseString(prolog + d.Xml)
		if err == nil {
			t.Errorf("%s: invalid document parsed properly!", d.Cause)
		}
	}
}

func TestParseNamespaces(t *testing.T) {
	const str = `<r:root xmlns:r="urn:root" xmlns="urn:default" r:id="1" plain="2"><item>x</item></r:root>`

	doc, err := xml.ParseString(str)
	qt.Assert(t, qt.IsNil(err))

	root := doc.Root().(*xml.Element)
	qt.Assert(t, qt.Equals(root.Namespace(), "urn:root"))
	qt.Assert(t, qt.HasLen(root.Attrs, 2))
	qt.Check(t, qt.Equals(root.Attrs[0].Namespace(), "urn:root"))
	qt.Check(t, qt.Equals(root.Attrs[1].Namespace(), ""))

	item := root.Find("item")
	qt.Assert(t, qt.IsNotNil(item))
	qt.Check(t, qt.Equals(item.Namespace(), "urn:default"))
	qt.Check(t, qt.Equals(item.Value(), "x"))
}

func TestParseDocumentOrder(t *testing.T) {
	const str = `<root a="1" b="2"><one>1</one><two><three/></two></root>`

	doc, err := xml.ParseString(str)
	qt.Assert(t, qt.IsNil(err))

	var (
		nodes []xml.Node
		walk  func(xml.Node)
	)
	walk = func(n xml.Node) {
		nodes = append(nodes, n)
		if el, ok := n.(*xml.Element); ok {
			for _, a := range el.Attrs {
				nodes = append(nodes, a)
			}
			for _, c := range el.Nodes {
				walk(c)
			}
		}
	}
	walk(doc.Root())
	for i := 1; i < len(nodes); i++ {
		if !xml.Before(nodes[i-1], nodes[i]) {
			t.Errorf("node %d (%s) not before node %d (%s)", i-1, nodes[i-1].QualifiedName(), i, nodes[i].QualifiedName())
		}
	}
	qt.Check(t, qt.IsTrue(xml.Before(doc, doc.Root())))
}

func TestParseText(t *testing.T) {
	const str = "<root>\n  <a>x &amp; y</a>\n  <b><![CDATA[<raw>]]></b><!-- note -->text</root>"

	doc, err := xml.ParseString(str)
	qt.Assert(t, qt.IsNil(err))

	root := doc.Root().(*xml.Element)
	qt.Assert(t, qt.HasLen(root.Nodes, 4))
	qt.Check(t, qt.Equals(root.Nodes[0].Value(), "x & y"))
	qt.Check(t, qt.Equals(root.Nodes[1].Value(), "<raw>"))
	qt.Check(t, qt.Equals(root.Nodes[2].Type(), xml.TypeComment))
	qt.Check(t, qt.Equals(root.Nodes[3].Value(), "text"))
	qt.Check(t, qt.Equals(root.Value(), "x & y<raw>text"))
}

func TestParseOptions(t *testing.T) {
	p := xml.NewParser(strings.NewReader(`<a:root/>`))
	p.StrictNS = true
	_, err := p.Parse()
	var perr xml.ParseError
	qt.Assert(t, qt.ErrorAs(err, &perr))
	qt.Check(t, qt.Equals(perr.Element, "namespace"))

	p = xml.NewParser(strings.NewReader(`<a><b><c/></b></a>`))
	p.MaxDepth = 2
	_, err = p.Parse()
	qt.Assert(t, qt.ErrorAs(err, &perr))
	qt.Check(t, qt.Equals(perr.Message, "maximum depth reached"))

	p = xml.NewParser(strings.NewReader("<root>\n  <a>  x  </a>\n</root>"))
	p.TrimSpace = true
	doc, err := p.Parse()
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.Equals(doc.Root().Value(), "x"))

	p = xml.NewParser(strings.NewReader("<root> <a/> </root>"))
	p.KeepEmpty = true
	doc, err = p.Parse()
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.HasLen(doc.Root().(*xml.Element).Nodes, 3))
}

func TestParseErrorPosition(t *testing.T) {
	_, err := xml.ParseString("<root>\n  <item></other>\n</root>")
	var perr xml.ParseError
	qt.Assert(t, qt.ErrorAs(err, &perr))
	qt.Check(t, qt.Equals(perr.Line, 2))
	qt.Check(t, qt.StringContains(err.Error(), "other"))

	for _, str := range []string{
		`<?xml version="2.0"?><root/>`,
		`<root/><?xml version="1.0"?>`,
		`<root><!-- open</root>`,
		`<root a="<"/>`,
		`<root>&amp</root>`,
		`text<root/>`,
		`<!DOCTYPE root><root/>`,
	} {
		_, err := xml.ParseString(str)
		qt.Check(t, qt.IsNotNil(err), qt.Commentf("document: %s", str))
	}
}

func TestParseInstruction(t *testing.T) {
	doc, err := xml.ParseString(prolog + `<?style href="a.css"?><root/>`)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(doc.Nodes, 2))
	qt.Check(t, qt.Equals(doc.Nodes[0].Type(), xml.TypeInstruction))
	qt.Check(t, qt.Equals(doc.Nodes[0].LocalName(), "style"))
	qt.Check(t, qt.Equals(doc.Nodes[0].Value(), `href="a.css"`))
}
