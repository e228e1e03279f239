package main

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// The gateway's upload documents place well-known elements (DeviceMacId,
// MeterMacId, the telemetry sections) at varying depths depending on firmware
// and upload mode, so the decoder keeps the whole document as a small element
// tree supporting find-anywhere lookups instead of decoding into fixed
// structs.
type xmlElement struct {
	name     string
	text     string
	attrs    map[string]string
	children []*xmlElement
}

func parseXMLTree(raw []byte) (*xmlElement, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))

	var root *xmlElement
	var stack []*xmlElement
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlElement{name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("empty document")
	}
	return root, nil
}

func (e *xmlElement) attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// child returns the first direct child with the given name, or nil.
func (e *xmlElement) child(name string) *xmlElement {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// find returns the first element with the given name anywhere beneath e
// (depth-first, document order), or nil.
func (e *xmlElement) find(name string) *xmlElement {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
		if m := c.find(name); m != nil {
			return m
		}
	}
	return nil
}

// findText returns the trimmed text of the first matching descendant.
func (e *xmlElement) findText(name string) (string, bool) {
	if m := e.find(name); m != nil {
		return strings.TrimSpace(m.text), true
	}
	return "", false
}

// childText returns the trimmed text of the first matching direct child.
func (e *xmlElement) childText(name string) (string, bool) {
	if c := e.child(name); c != nil {
		return strings.TrimSpace(c.text), true
	}
	return "", false
}
