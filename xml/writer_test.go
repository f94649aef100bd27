package xml_test

import (
	"strings"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/midbel/xquery/xml"
)

func TestSerialize(t *testing.T) {
	const str = `<?xml version="1.0" encoding="UTF-8"?><test:root id="1"><!-- c --><test:a attr="text">text</test:a><test:a attr="self"/></test:root>`

	doc, err := xml.ParseString(str)
	qt.Assert(t, qt.IsNil(err))

	tests := []struct {
		Name string
		Node xml.Node
		Want string
		xml.Serializer
	}{
		{
			Name:       "compact",
			Node:       doc.Root(),
			Want:       `<test:root id="1"><!-- c --><test:a attr="text">text</test:a><test:a attr="self"/></test:root>`,
			Serializer: xml.Serializer{OmitDeclaration: true},
		},
		{
			Name:       "declaration",
			Node:       doc,
			Want:       `<?xml version="1.0" encoding="UTF-8"?><test:root id="1"><test:a attr="text">text</test:a><test:a attr="self"/></test:root>`,
			Serializer: xml.Serializer{SkipComments: true},
		},
		{
			Name: "indent",
			Node: doc,
			Want: strings.Join([]string{
				`<?xml version="1.0" encoding="UTF-8"?>`,
				`<root id="1">`,
				`  <a attr="text">text</a>`,
				`  <a attr="self"/>`,
				`</root>`,
			}, "\n"),
			Serializer: xml.Serializer{Indent: "  ", LocalNames: true, SkipComments: true},
		},
	}
	for _, tt := range tests {
		var buf strings.Builder
		err := tt.Serialize(&buf, tt.Node)
		qt.Assert(t, qt.IsNil(err))
		qt.Check(t, qt.Equals(buf.String(), tt.Want), qt.Commentf("serializer: %s", tt.Name))
	}
}

func TestWriteNodeDepth(t *testing.T) {
	doc, err := xml.ParseString(`<a><b><c>x</c><d/></b><e>y</e></a>`)
	qt.Assert(t, qt.IsNil(err))
	qt.Check(t, qt.Equals(xml.WriteNodeDepth(doc.Root(), 1), `<a><b/><e>y</e></a>`))
	qt.Check(t, qt.Equals(xml.WriteNodeDepth(doc.Root(), 0), `<a><b><c>x</c><d/></b><e>y</e></a>`))
}

func TestWriteNode(t *testing.T) {
	el := xml.NewElement(xml.LocalName("item"))
	el.SetAttribute(xml.NewAttribute(xml.LocalName("id"), `a<"b"`))
	el.Append(xml.NewText("x & y"))

	qt.Check(t, qt.Equals(xml.WriteNode(el), `<item id="a&lt;&quot;b&quot;">x &amp; y</item>`))
	qt.Check(t, qt.Equals(xml.WriteNode(el.Attrs[0]), `id="a&lt;&quot;b&quot;"`))
	qt.Check(t, qt.Equals(xml.WriteNode(xml.NewComment(" note ")), "<!-- note -->"))
	qt.Check(t, qt.Equals(xml.WriteNode(xml.NewInstruction(xml.LocalName("pi"), "data")), "<?pi data?>"))
}
