package mapper

import (
	"strings"

	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/CMSgov/xc-harvester/transformation/xc"
)

// Authority attribute names by the class of the source tag.
const (
	agentID = "agentID"
	workID  = "workID"
	subjID  = "subjID"
	chronID = "chronID"
	geoID   = "geoID"
)

const lcPrefix = "DLC"

// splitControlNumber splits "(prefix)value". ok is false when either
// parenthesis is missing.
func splitControlNumber(s string) (prefix, value string, ok bool) {
	start := strings.Index(s, "(")
	end := strings.Index(s, ")")
	if start < 0 || end < 0 || end < start {
		return "", "", false
	}
	return s[start+1 : end], s[end+1:], true
}

// authorityName returns the attribute name carried by an authority-linked
// field with tag. titled reports whether the field carries a $t.
func authorityName(tag string, titled bool) (string, bool) {
	switch tag {
	case "100", "110", "111", "959":
		return agentID, true
	case "700", "710", "711":
		if titled {
			return workID, true
		}
		return agentID, true
	case "440", "730", "800", "810", "811", "830":
		return workID, true
	case "600", "610", "611", "630", "650", "655", "965", "969":
		return subjID, true
	case "648", "963":
		return chronID, true
	case "651", "967":
		return geoID, true
	}
	return "", false
}

// authorityValue namespaces a control number value by its prefix: the Library
// of Congress becomes lcnaf, the configured organization becomes xcauth, and
// anything else is not recognized.
func (m *Mapper) authorityValue(prefix, value string) (string, bool) {
	switch {
	case prefix == lcPrefix:
		return "lcnaf:" + value, true
	case m.orgCode != "" && prefix == m.orgCode:
		return "xcauth:" + value, true
	}
	return "", false
}

// authorityAttribute builds the authority attribute from the first $0 of f
// that resolves to a recognized prefix.
func (m *Mapper) authorityAttribute(tag string, f marc.DataField) (xc.Attribute, bool) {
	name, ok := authorityName(tag, f.Has("t"))
	if !ok {
		return xc.Attribute{}, false
	}
	for _, v := range f.Values("0") {
		prefix, value, ok := splitControlNumber(v)
		if !ok {
			continue
		}
		if av, ok := m.authorityValue(prefix, value); ok {
			return xc.Attr(name, av), true
		}
	}
	return xc.Attribute{}, false
}

// workIdentifier converts one $0 into an rdvocab:identifierForTheWork element
// typed by the authority that issued it.
func (m *Mapper) workIdentifier(valueOf0 string) (xc.Element, bool) {
	prefix, value, ok := splitControlNumber(valueOf0)
	if !ok {
		return xc.Element{}, false
	}
	value = trim(value)
	switch {
	case prefix == lcPrefix:
		return xc.NewElement(xc.RDVocab, "identifierForTheWork", value, xc.NSAttr(xc.XSI, "type", "lcnaf")), true
	case m.orgCode != "" && prefix == m.orgCode:
		return xc.NewElement(xc.RDVocab, "identifierForTheWork", value, xc.Attr("type", "xcauth")), true
	}
	return xc.Element{}, false
}
