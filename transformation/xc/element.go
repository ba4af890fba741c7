package xc

import (
	"fmt"
	"sort"
	"strings"
)

// Attribute is an XML attribute on an XC element. A zero Namespace means the
// attribute is unqualified.
type Attribute struct {
	Namespace Namespace
	Name      string
	Value     string
}

// Attr builds an unqualified attribute.
func Attr(name, value string) Attribute {
	return Attribute{Name: name, Value: value}
}

// NSAttr builds a namespaced attribute.
func NSAttr(ns Namespace, name, value string) Attribute {
	return Attribute{Namespace: ns, Name: name, Value: value}
}

// Element is one XC element. Children are only used by holdings and entity
// containers.
type Element struct {
	Namespace  Namespace
	Name       string
	Value      string
	Attributes []Attribute
	Children   []Element
}

// NewElement builds a leaf element.
func NewElement(ns Namespace, name, value string, attrs ...Attribute) Element {
	return Element{Namespace: ns, Name: name, Value: value, Attributes: attrs}
}

// Attribute returns the value of the attribute name, ignoring namespaces.
func (e Element) Attribute(name string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Clone returns a deep copy of e.
func (e Element) Clone() Element {
	out := e
	if e.Attributes != nil {
		out.Attributes = append([]Attribute(nil), e.Attributes...)
	}
	if e.Children != nil {
		out.Children = make([]Element, len(e.Children))
		for i, c := range e.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// key is the canonical string identifying an element and its content.
// Attribute order does not change the key. Every component is length-prefixed
// so no two distinct elements share a key.
func (e Element) key() string {
	var b strings.Builder
	writeKeyPart(&b, e.Namespace.URI)
	writeKeyPart(&b, e.Name)
	writeKeyPart(&b, e.Value)

	attrs := make([]string, 0, len(e.Attributes))
	for _, a := range e.Attributes {
		var ab strings.Builder
		writeKeyPart(&ab, a.Namespace.URI)
		writeKeyPart(&ab, a.Name)
		writeKeyPart(&ab, a.Value)
		attrs = append(attrs, ab.String())
	}
	sort.Strings(attrs)
	fmt.Fprintf(&b, "a%d:", len(attrs))
	for _, a := range attrs {
		writeKeyPart(&b, a)
	}
	fmt.Fprintf(&b, "c%d:", len(e.Children))
	for _, c := range e.Children {
		writeKeyPart(&b, c.key())
	}
	return b.String()
}

func writeKeyPart(b *strings.Builder, s string) {
	fmt.Fprintf(b, "%d:%s", len(s), s)
}
