package xc

import (
	"bytes"
	"encoding/xml"

	"github.com/pkg/errors"
)

func (r *AggregateXCRecord) entity(level Level, id string, children []Element, links ...Element) Element {
	e := Element{Namespace: XC, Name: "entity", Attributes: []Attribute{Attr("type", level.String())}}
	if id != "" {
		e.Attributes = append(e.Attributes, Attr("id", id))
	}
	e.Children = append(e.Children, children...)
	if id != "" {
		e.Children = append(e.Children, links...)
	}
	return e
}

func link(name, id string) Element {
	return NewElement(XC, name, id)
}

// Entities returns the serialized entity tree in output order: the primary
// work, expression and manifestation, each linked work and expression, the
// item and finally the holdings.
func (r *AggregateXCRecord) Entities() []Element {
	var out []Element
	if r.HasBibInfo {
		out = append(out, r.entity(Work, r.ids.work, r.entities[Work]))
		out = append(out, r.entity(Expression, r.ids.expression, r.entities[Expression],
			link("workExpressed", r.ids.work)))

		manifestationLinks := []Element{link("expressionManifested", r.ids.expression)}
		for _, tag := range r.linkedOrder {
			if id := r.ids.linkedExpression[tag]; id != "" {
				manifestationLinks = append(manifestationLinks, link("expressionManifested", id))
			}
		}
		out = append(out, r.entity(Manifestation, r.ids.manifestation, r.entities[Manifestation], manifestationLinks...))

		for _, tag := range r.linkedOrder {
			lw := r.linked[tag]
			out = append(out, r.entity(Work, r.ids.linkedWork[tag], lw.Work))
			out = append(out, r.entity(Expression, r.ids.linkedExpression[tag], lw.Expression,
				link("workExpressed", r.ids.linkedWork[tag])))
		}
	}

	if len(r.entities[Item]) > 0 {
		out = append(out, r.entity(Item, r.ids.item, r.entities[Item],
			link("manifestationExemplified", r.ids.manifestation)))
	}

	var holdingsIDs []string
	holdingsIDs = append(holdingsIDs, r.ids.holdings...)
	nextID := func() string {
		if len(holdingsIDs) == 0 {
			return ""
		}
		id := holdingsIDs[0]
		holdingsIDs = holdingsIDs[1:]
		return id
	}
	var held []Element
	if r.ids.manifestation != "" {
		held = []Element{link("manifestationHeld", r.ids.manifestation)}
	}
	if len(r.entities[Holdings]) > 0 {
		out = append(out, r.entity(Holdings, nextID(), r.entities[Holdings], held...))
	}
	for _, h := range r.holdings {
		out = append(out, r.entity(Holdings, nextID(), h.Children, held...))
	}

	return out
}

// MarshalXML writes the record as an xc:frbr document.
func (r *AggregateXCRecord) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	root := xml.StartElement{Name: xml.Name{Local: XC.qualify("frbr")}}
	for _, ns := range Namespaces {
		root.Attr = append(root.Attr, xml.Attr{Name: xml.Name{Local: "xmlns:" + ns.Prefix}, Value: ns.URI})
	}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	for _, e := range r.Entities() {
		if err := encodeElement(enc, e); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	return enc.Flush()
}

func encodeElement(enc *xml.Encoder, e Element) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Namespace.qualify(e.Name)}}
	for _, a := range e.Attributes {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Namespace.qualify(a.Name)}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.Value != "" {
		if err := enc.EncodeToken(xml.CharData(e.Value)); err != nil {
			return err
		}
	}
	for _, c := range e.Children {
		if err := encodeElement(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// Bytes serializes the record, optionally indented.
func (r *AggregateXCRecord) Bytes(indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if indent {
		enc.Indent("", "  ")
	}
	if err := enc.Encode(r); err != nil {
		return nil, errors.Wrap(err, "failed to serialize XC record")
	}
	return buf.Bytes(), nil
}
