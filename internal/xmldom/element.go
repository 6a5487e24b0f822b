// Package xmldom provides a minimal, generic in-memory XML element tree:
// enough structure to locate-or-create nodes by tag and attribute the way
// the document binder needs to walk an RSpec's stitching/path/hop/link
// subtree, without pulling in a full DOM library. The rest of the
// retrieval corpus's XML handling (rahulrock213-switch/qn-netconf) reads
// fixed shapes with typed encoding/xml structs; this package covers the
// complementary case the binder needs — a tree whose shape varies per
// document and whose nodes must sometimes be synthesized on write.
package xmldom

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Element is a generic XML element: a tag name, attributes, character
// data, and ordered children. It intentionally drops namespace handling
// beyond what a raw xml.Name carries, matching the scope of the request/
// manifest fragments this engine reads and writes (see spec.md §6).
type Element struct {
	Name     string
	Attrs    map[string]string
	CharData string
	Children []*Element
}

// NewElement creates an empty element with the given tag name.
func NewElement(name string) *Element {
	return &Element{Name: name, Attrs: map[string]string{}}
}

// Attr returns the value of attribute key, or the empty string if absent.
func (e *Element) Attr(key string) string {
	if e == nil {
		return ""
	}
	return e.Attrs[key]
}

// SetAttr sets attribute key to value, creating the attribute map if
// necessary.
func (e *Element) SetAttr(key, value string) {
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	e.Attrs[key] = value
}

// Child returns the first direct child with the given tag name, or nil.
// A nil receiver (a missing ancestor further up a Child().Child() chain)
// reports no match rather than panicking.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildWithAttr returns the first direct child with the given tag name
// whose attrKey attribute equals attrVal, or nil.
func (e *Element) ChildWithAttr(name, attrKey, attrVal string) *Element {
	for _, c := range e.Children {
		if c.Name == name && c.Attr(attrKey) == attrVal {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every direct child with the given tag name.
func (e *Element) ChildrenNamed(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// EnsureChild returns the first direct child with the given tag name,
// creating and appending one if none exists.
func (e *Element) EnsureChild(name string) *Element {
	if c := e.Child(name); c != nil {
		return c
	}
	c := NewElement(name)
	e.Children = append(e.Children, c)
	return c
}

// EnsureChildWithAttr returns the first direct child with the given tag
// name and attribute value, creating one (and setting the attribute) if
// none exists.
func (e *Element) EnsureChildWithAttr(name, attrKey, attrVal string) *Element {
	if c := e.ChildWithAttr(name, attrKey, attrVal); c != nil {
		return c
	}
	c := NewElement(name)
	c.SetAttr(attrKey, attrVal)
	e.Children = append(e.Children, c)
	return c
}

// TextOrDefault returns the trimmed char data of a child element, or def
// if the child is missing or has empty text. This implements the
// "missing/empty defaults to X" rule the request documents rely on
// (spec.md §4.2, §6).
func (e *Element) TextOrDefault(childName, def string) string {
	c := e.Child(childName)
	if c == nil {
		return def
	}
	text := strings.TrimSpace(c.CharData)
	if text == "" {
		return def
	}
	return text
}

// SetText sets (creating if necessary) a child element's char data.
func (e *Element) SetText(childName, value string) {
	c := e.EnsureChild(childName)
	c.CharData = value
}

// Clone returns a deep copy of the element tree rooted at e.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	cp := &Element{
		Name:     e.Name,
		CharData: e.CharData,
		Attrs:    make(map[string]string, len(e.Attrs)),
		Children: make([]*Element, len(e.Children)),
	}
	for k, v := range e.Attrs {
		cp.Attrs[k] = v
	}
	for i, c := range e.Children {
		cp.Children[i] = c.Clone()
	}
	return cp
}

// Parse streams an XML document into an Element tree via xml.Decoder,
// token by token, rather than unmarshaling into a fixed struct — the
// binder needs to walk a shape it doesn't fully know ahead of time.
func Parse(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*Element
	var root *Element

	for {
		tok, err := dec.Token()
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, fmt.Errorf("xmldom: decode token: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := NewElement(t.Name.Local)
			for _, a := range t.Attr {
				el.SetAttr(a.Name.Local, a.Value)
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].CharData += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("xmldom: empty document")
	}
	return root, nil
}

// Render serializes the element tree back to XML via xml.Encoder,
// preserving attribute order is not guaranteed (Go maps don't order) but
// every consumer in this engine reads by attribute key, not position.
func Render(root *Element) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := renderElement(enc, root); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderElement(enc *xml.Encoder, e *Element) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Name}}
	for k, v := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: k}, Value: v})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.CharData != "" {
		if err := enc.EncodeToken(xml.CharData(e.CharData)); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := renderElement(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(xml.EndElement{Name: start.Name})
}
