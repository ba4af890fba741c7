package mapper

import (
	"strconv"

	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/CMSgov/xc-harvester/transformation/xc"
)

// Target subfields for the added entries without a title.
var addedEntrySubfields = map[string]string{
	"700": "abcdegq",
	"710": "abcdegq",
	"711": "abcdegnq",
}

// Title subfields for added entries that introduce a linked work.
var linkedTitleSubfields = map[string]string{
	"700": "kmnoprst",
	"710": "kmnoprst",
	"711": "fkpst",
}

const relationSubfields = "abcdegklmnopqrst4"

// creators handles 100/110/111. Recognized $4 roles replace the creator
// element with an rdarole element at the role's level.
func (m *Mapper) creators(s *state) {
	targets := []struct{ tag, subfields string }{
		{"100", "abcdegq"},
		{"110", "abcdeg"},
		{"111", "acdegjnq"},
	}
	for _, t := range targets {
		for _, f := range s.rec.Fields(t.tag) {
			value := f.Join(t.subfields)
			if value == "" {
				continue
			}
			var attrs []xc.Attribute
			if a, ok := m.authorityAttribute(t.tag, f); ok {
				attrs = append(attrs, a)
			}
			m.addWithRoles(s, f, value, "creator", attrs)
		}
	}
}

// addWithRoles emits one rdarole element per recognized $4. When there is no
// $4, or none of them is recognized, an xc element named fallback is emitted
// at expression level instead.
func (m *Mapper) addWithRoles(s *state, f marc.DataField, value, fallback string, attrs []xc.Attribute) {
	added := false
	for _, code := range f.Values("4") {
		role, ok := roleFor(code)
		if !ok {
			continue
		}
		s.out.AddElement(xc.RDARole, role, value, roleLevel(role), attrs...)
		added = true
	}
	if !added {
		s.out.AddElement(xc.XC, fallback, value, xc.Expression, attrs...)
	}
}

// linkingTag returns the field's $8 or a synthesized tag unique within the
// record.
func (s *state) linkingTag(tag string, f marc.DataField) string {
	if v, ok := f.First("8"); ok {
		return v
	}
	return tag + strconv.Itoa(s.artificialLinkingID)
}

// cacheLinkedCreators reads 959 fields, which carry the creator of a linked
// work under its $8 linking tag. It must run before addedEntries and
// uniformTitleAddedEntries.
func (m *Mapper) cacheLinkedCreators(s *state) {
	fields := s.rec.Fields("959")
	if len(fields) == 0 {
		return
	}
	s.linkedCreators = make(map[string]xc.Element)
	for _, f := range fields {
		var values []string
		for _, sf := range f.Subfields {
			if sf.Code != "0" && sf.Code != "5" && sf.Code != "8" {
				values = append(values, sf.Value)
			}
		}
		value := joinValues(values)
		if value == "" {
			continue
		}
		var attrs []xc.Attribute
		if a, ok := m.authorityAttribute("959", f); ok {
			attrs = append(attrs, a)
		}
		creator := xc.NewElement(xc.XC, "creator", value, attrs...)
		for _, tag := range f.Values("8") {
			s.linkedCreators[tag] = creator
		}
	}
}

// addedEntries handles 700/710/711.
func (m *Mapper) addedEntries(s *state) {
	for _, tag := range []string{"700", "710", "711"} {
		for _, f := range s.rec.Fields(tag) {
			switch {
			case !f.Has("t"):
				value := f.Join(addedEntrySubfields[tag])
				if value == "" {
					continue
				}
				var attrs []xc.Attribute
				if a, ok := m.authorityAttribute(tag, f); ok {
					attrs = append(attrs, a)
				}
				m.addWithRoles(s, f, value, "contributor", attrs)

			case f.Ind2 == "2":
				linkingTag := s.linkingTag(tag, f)
				for _, v := range f.Values("0") {
					if id, ok := m.workIdentifier(v); ok {
						s.out.AddElementBasedOnLinkingField(linkingTag, id)
					}
				}
				if title := f.Join(linkedTitleSubfields[tag]); title != "" {
					work := []xc.Element{xc.NewElement(xc.RDVocab, "titleOfWork", title)}
					if creator, ok := s.linkedCreators[linkingTag]; ok {
						work = append(work, creator)
					}
					expression := []xc.Element{xc.NewElement(xc.RDVocab, "titleOfExpression", title)}
					s.out.AddLinkedWorkAndExpression(linkingTag, work, expression)
				}
				s.artificialLinkingID++

			default:
				var attrs []xc.Attribute
				if a, ok := m.authorityAttribute(tag, f); ok {
					attrs = append(attrs, a)
				}
				s.out.AddElement(xc.XC, "relation", f.Join(relationSubfields), xc.Work, attrs...)
			}
		}
	}
}

// uniformTitleAddedEntries handles 730.
func (m *Mapper) uniformTitleAddedEntries(s *state) {
	for _, f := range s.rec.Fields("730") {
		if f.Ind2 == "2" {
			linkingTag := s.linkingTag("730", f)
			for _, v := range f.Values("0") {
				if id, ok := m.workIdentifier(v); ok {
					s.out.AddElementBasedOnLinkingField(linkingTag, id)
				}
			}
			workTitle := f.Join("adgkmnoprst")
			expressionTitle := f.Join("adgklmnoprst")
			if workTitle != "" || expressionTitle != "" {
				var work, expression []xc.Element
				if workTitle != "" {
					work = append(work, xc.NewElement(xc.RDVocab, "titleOfWork", workTitle))
					if creator, ok := s.linkedCreators[linkingTag]; ok {
						work = append(work, creator)
					}
				}
				if expressionTitle != "" {
					expression = append(expression, xc.NewElement(xc.RDVocab, "titleOfExpression", expressionTitle))
				}
				s.out.AddLinkedWorkAndExpression(linkingTag, work, expression)
			}
			s.artificialLinkingID++
			continue
		}

		var attrs []xc.Attribute
		if a, ok := m.authorityAttribute("730", f); ok {
			attrs = append(attrs, a)
		}
		if v, ok := f.First("x"); ok {
			attrs = append(attrs, xc.NSAttr(xc.DCTerms, "ISSN", v))
		}
		s.out.AddElement(xc.XC, "relation", f.Join("adgklmnoprst"), xc.Work, attrs...)
	}
}

// uniformTitles handles 130/240/243: a title of the work, a title of the
// expression and work identifiers from $0.
func (m *Mapper) uniformTitles(s *state) {
	targets := []struct {
		tag, work, expression string
	}{
		{"130", "adghkmnoprst", "adfghklmnoprst"},
		{"240", "adghkmnoprs", "adfghklmnoprs"},
		{"243", "adghkmnoprs", "adfghklmnoprs"},
	}
	for _, t := range targets {
		for _, f := range s.rec.Fields(t.tag) {
			for _, v := range f.Values("0") {
				if id, ok := m.workIdentifier(v); ok && id.Value != "" {
					s.out.Add(xc.Work, id)
				}
			}
			s.out.AddElement(xc.RDVocab, "titleOfWork", f.Join(t.work), xc.Work)
			s.out.AddElement(xc.XC, "titleOfExpression", f.Join(t.expression), xc.Expression)
		}
	}
}

// controlNumbers handles 035: "(org)value" becomes a recordID typed by org.
func (m *Mapper) controlNumbers(s *state) {
	for _, v := range s.rec.Values("035", "a") {
		prefix, value, ok := splitControlNumber(v)
		if !ok {
			continue
		}
		s.out.AddElement(xc.XC, "recordID", trim(value), xc.Manifestation, xc.Attr("type", prefix))
	}
}
