// Package marc holds the parsed MARCXML record consumed by the transformation
// and aggregation services.
package marc

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Namespace is the MARC21 slim XML namespace.
const Namespace = "http://www.loc.gov/MARC21/slim"

// Record is a MARC record. Data fields keep document order so rules that depend
// on field adjacency (852 and its 866-868 siblings) can see it.
type Record struct {
	XMLName       xml.Name       `xml:"record"`
	Leader        string         `xml:"leader"`
	ControlFields []ControlField `xml:"controlfield"`
	DataFields    []DataField    `xml:"datafield"`
}

// ControlField just contains a Tag and a Value.
type ControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

// DataField contains two indicators, a tag and the subfields in document
// order.
type DataField struct {
	Tag       string     `xml:"tag,attr"`
	Ind1      string     `xml:"ind1,attr"`
	Ind2      string     `xml:"ind2,attr"`
	Subfields []Subfield `xml:"subfield"`
}

// Subfield contains a Code and a Value.
type Subfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type collection struct {
	Records []Record `xml:"record"`
}

// Parse reads a single MARCXML record. The payload may be a bare <record> or a
// <collection> holding exactly one record.
func Parse(payload []byte) (*Record, error) {
	records, err := ParseCollection(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, errors.Errorf("expected one MARC record, found %d", len(records))
	}
	return records[0], nil
}

// ParseCollection reads every <record> element found in r, whether at the root
// or nested inside a <collection>.
func ParseCollection(r io.Reader) ([]*Record, error) {
	dec := xml.NewDecoder(r)
	var records []*Record
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read MARC XML")
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "record" {
			continue
		}
		var rec Record
		if err := dec.DecodeElement(&rec, &se); err != nil {
			return nil, errors.Wrap(err, "failed to decode MARC record")
		}
		records = append(records, &rec)
	}
	return records, nil
}

// LeaderAt returns the leader byte at pos, or 0 when the leader is too short.
func (r *Record) LeaderAt(pos int) byte {
	if pos < 0 || pos >= len(r.Leader) {
		return 0
	}
	return r.Leader[pos]
}

// IsHoldings reports whether the leader type marks a MARC holdings record.
func (r *Record) IsHoldings() bool {
	switch r.LeaderAt(6) {
	case 'u', 'v', 'x', 'y':
		return true
	}
	return false
}

// ControlField returns the trimmed value of the first control field with tag.
func (r *Record) ControlField(tag string) (string, bool) {
	for _, cf := range r.ControlFields {
		if cf.Tag == tag {
			return strings.TrimSpace(cf.Value), true
		}
	}
	return "", false
}

// Fields returns every data field whose tag is one of tags, in document order.
func (r *Record) Fields(tags ...string) []DataField {
	var out []DataField
	for _, df := range r.DataFields {
		for _, t := range tags {
			if df.Tag == t {
				out = append(out, df)
				break
			}
		}
	}
	return out
}

// Values returns every value of subfield code across fields with tag.
func (r *Record) Values(tag, code string) []string {
	var out []string
	for _, df := range r.Fields(tag) {
		out = append(out, df.Values(code)...)
	}
	return out
}

// Indicator returns the indicator value (1 or 2). A missing indicator is
// reported as the empty string.
func (f DataField) Indicator(n int) string {
	if n == 1 {
		return f.Ind1
	}
	return f.Ind2
}

// Values returns every value of the subfield code in document order.
func (f DataField) Values(code string) []string {
	var out []string
	for _, sf := range f.Subfields {
		if sf.Code == code {
			out = append(out, sf.Value)
		}
	}
	return out
}

// First returns the first value of the subfield code.
func (f DataField) First(code string) (string, bool) {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return sf.Value, true
		}
	}
	return "", false
}

// Has reports whether the field carries subfield code.
func (f DataField) Has(code string) bool {
	_, ok := f.First(code)
	return ok
}

// Join concatenates the values of the subfields whose code is in codes,
// separated by single spaces, in document order.
func (f DataField) Join(codes string) string {
	return f.JoinWith(codes, " ")
}

// JoinWith is Join with a custom separator.
func (f DataField) JoinWith(codes, sep string) string {
	var b strings.Builder
	for _, sf := range f.Subfields {
		if !strings.Contains(codes, sf.Code) || sf.Code == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(sf.Value)
	}
	return strings.TrimSpace(b.String())
}
