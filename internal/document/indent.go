package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const indentUnit = "  "

type nodeKind int

const (
	elementNode nodeKind = iota
	textNode
	commentNode
	procInstNode
	directiveNode
)

type node struct {
	kind     nodeKind
	name     string // element name or processing-instruction target
	attrs    []xml.Attr
	children []*node
	data     string
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", "\"", "&quot;",
		"\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;",
	)
	declEncoding = regexp.MustCompile(`encoding\s*=\s*("[^"]*"|'[^']*')`)
)

// Indent pretty-prints the XML document s with two-space indentation.
//
// Whitespace-only text between elements is replaced by indentation; leaf text
// and mixed content are kept verbatim. The XML declaration is kept with its
// encoding rewritten to utf-8, since the result is always UTF-8. If s is not
// a well-formed document, it is returned unchanged with ok set to false.
func Indent(s string) (out string, ok bool) {
	nodes, err := parse(s)
	if err != nil {
		return s, false
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	first := true
	for _, n := range nodes {
		if n.kind == textNode {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		first = false
		n.write(&b, 0, true)
	}
	b.WriteByte('\n')
	return b.String(), true
}

func parse(s string) ([]*node, error) {
	d := xml.NewDecoder(strings.NewReader(s))
	d.Strict = true
	// Text has already been transcoded to UTF-8; whatever the declaration says
	// about the original encoding no longer applies.
	d.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	root := &node{kind: elementNode}
	stack := []*node{root}
	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{kind: elementNode, name: qname(t.Name), attrs: append([]xml.Attr(nil), t.Attr...)}
			top.children = append(top.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 1 || qname(t.Name) != top.name {
				return nil, fmt.Errorf("unexpected end element </%s>", qname(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			top.children = append(top.children, &node{kind: textNode, data: string(t)})
		case xml.Comment:
			top.children = append(top.children, &node{kind: commentNode, data: string(t)})
		case xml.ProcInst:
			top.children = append(top.children, &node{kind: procInstNode, name: t.Target, data: string(t.Inst)})
		case xml.Directive:
			top.children = append(top.children, &node{kind: directiveNode, data: string(t)})
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].name)
	}

	roots := 0
	for _, n := range root.children {
		switch {
		case n.kind == elementNode:
			roots++
		case n.kind == textNode && strings.TrimSpace(n.data) != "":
			return nil, errors.New("text outside the root element")
		}
	}
	if roots != 1 {
		return nil, fmt.Errorf("want exactly one root element, got %d", roots)
	}
	return root.children, nil
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// indentable reports whether the element's children can be laid out one per
// line without changing its text content.
func (n *node) indentable() bool {
	hasMarkup := false
	for _, c := range n.children {
		if c.kind == textNode {
			if strings.TrimSpace(c.data) != "" {
				return false
			}
			continue
		}
		hasMarkup = true
	}
	return hasMarkup
}

func (n *node) write(b *strings.Builder, level int, pretty bool) {
	switch n.kind {
	case textNode:
		b.WriteString(textEscaper.Replace(n.data))
	case commentNode:
		b.WriteString("<!--")
		b.WriteString(n.data)
		b.WriteString("-->")
	case procInstNode:
		inst := n.data
		if n.name == "xml" {
			inst = declEncoding.ReplaceAllString(inst, `encoding="utf-8"`)
		}
		b.WriteString("<?")
		b.WriteString(n.name)
		if inst != "" {
			b.WriteByte(' ')
			b.WriteString(inst)
		}
		b.WriteString("?>")
	case directiveNode:
		b.WriteString("<!")
		b.WriteString(n.data)
		b.WriteByte('>')
	case elementNode:
		n.writeElement(b, level, pretty)
	}
}

func (n *node) writeElement(b *strings.Builder, level int, pretty bool) {
	b.WriteByte('<')
	b.WriteString(n.name)
	for _, a := range n.attrs {
		b.WriteByte(' ')
		b.WriteString(qname(a.Name))
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(a.Value))
		b.WriteByte('"')
	}
	if len(n.children) == 0 {
		b.WriteString(" />")
		return
	}
	b.WriteByte('>')

	if pretty && n.indentable() {
		for _, c := range n.children {
			if c.kind == textNode {
				continue
			}
			newline(b, level+1)
			c.write(b, level+1, true)
		}
		newline(b, level)
	} else {
		for _, c := range n.children {
			c.write(b, level, false)
		}
	}

	b.WriteString("</")
	b.WriteString(n.name)
	b.WriteByte('>')
}

func newline(b *strings.Builder, level int) {
	b.WriteByte('\n')
	for i := 0; i < level; i++ {
		b.WriteString(indentUnit)
	}
}
