package mapper

import (
	"unicode"

	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/CMSgov/xc-harvester/transformation/xc"
)

var textualHoldingsTypes = map[string]string{
	"866": "Basic Bibliographic Unit",
	"867": "Supplementary material",
	"868": "Indexes",
}

// holdingsGroup is one 852 with the 866-868 fields that follow it.
type holdingsGroup struct {
	location marc.DataField
	siblings []marc.DataField
}

// groupHoldings pairs every 852 with the 866/867/868 fields appearing after it
// and before the next 852. Siblings that precede the first 852 belong to it.
func groupHoldings(rec *marc.Record) []holdingsGroup {
	var groups []holdingsGroup
	var orphans []marc.DataField
	for _, f := range rec.DataFields {
		switch {
		case f.Tag == "852":
			groups = append(groups, holdingsGroup{location: f})
		case textualHoldingsTypes[f.Tag] != "":
			if len(groups) == 0 {
				orphans = append(orphans, f)
				continue
			}
			last := &groups[len(groups)-1]
			last.siblings = append(last.siblings, f)
		}
	}
	if len(groups) > 0 && len(orphans) > 0 {
		groups[0].siblings = append(orphans, groups[0].siblings...)
	}
	return groups
}

func textualHoldings(siblings []marc.DataField) []xc.Element {
	var out []xc.Element
	for _, sib := range siblings {
		if v := sib.Join("az"); v != "" {
			out = append(out, xc.NewElement(xc.XC, "textualHoldings", v, xc.Attr("type", textualHoldingsTypes[sib.Tag])))
		}
	}
	return out
}

// lccShaped reports whether only the first two characters of v may be letters.
func lccShaped(v string) bool {
	return classShaped(v, unicode.IsLetter)
}

// ddcShaped reports whether only the first two characters of v may be digits.
func ddcShaped(v string) bool {
	return classShaped(v, unicode.IsDigit)
}

func classShaped(v string, in func(rune) bool) bool {
	runes := []rune(v)
	if len(runes) == 0 {
		return false
	}
	for i, r := range runes {
		if i >= 2 && in(r) {
			return false
		}
	}
	return true
}

// bibHoldings handles 852 with its 866-868 siblings on a bibliographic
// record, and the 866-868 fields alone when there is no 852.
func (m *Mapper) bibHoldings(s *state) {
	groups := groupHoldings(s.rec)
	if len(groups) == 0 {
		for _, sib := range s.rec.Fields("866", "867", "868") {
			s.out.AddElement(xc.XC, "textualHoldings", sib.Join("az"), xc.Holdings,
				xc.Attr("type", textualHoldingsTypes[sib.Tag]))
		}
		return
	}

	for _, g := range groups {
		f := g.location
		var content []xc.Element
		for _, sf := range f.Subfields {
			if sf.Code == "b" || sf.Code == "c" {
				content = append(content, xc.NewElement(xc.XC, "location", sf.Value))
			}
		}
		if cn := f.Join("hijklm"); cn != "" {
			content = append(content, xc.NewElement(xc.XC, "callNumber", cn))
		}
		content = append(content, textualHoldings(g.siblings)...)
		s.out.AddHoldingsElement(content)

		for _, h := range f.Values("h") {
			switch {
			case f.Ind1 == "0" && lccShaped(h):
				s.out.AddElement(xc.DCTerms, "subject", h, xc.Work, xc.NSAttr(xc.XSI, "type", "dcterms:LCC"))
			case f.Ind1 == "1" && ddcShaped(h):
				s.out.AddElement(xc.DCTerms, "subject", h, xc.Work, xc.NSAttr(xc.XSI, "type", "dcterms:DDC"))
			}
		}
	}
}

// electronicLocations handles 856 on a bibliographic record. The second
// indicator picks the relationship; unknown indicators are skipped.
func (m *Mapper) electronicLocations(s *state) {
	for _, f := range s.rec.Fields("856") {
		value := f.Join("abcdfhijklmnopqrstuvyz23")
		switch f.Ind2 {
		case "", " ", "0", "8":
			s.out.AddElement(xc.DCTerms, "identifier", value, xc.Manifestation)
		case "1":
			s.out.AddElement(xc.DCTerms, "hasVersion", value, xc.Expression)
		case "2":
			s.out.AddElement(xc.DCTerms, "relation", value, xc.Expression)
		}
	}
}

// localHoldings handles 945. A 945 whose $5 is the organization code carries
// an audience note for the work; any other 945 describes a holding.
func (m *Mapper) localHoldings(s *state) {
	for _, f := range s.rec.Fields("945") {
		own := false
		for _, v := range f.Values("5") {
			if m.orgCode != "" && v == m.orgCode {
				own = true
			}
		}
		if own {
			for _, v := range f.Values("a") {
				s.out.AddElement(xc.DCTerms, "audience", trim(v), xc.Work)
			}
			continue
		}
		var content []xc.Element
		if cn := f.Join("ab"); cn != "" {
			content = append(content, xc.NewElement(xc.XC, "callNumber", cn))
		}
		if loc := f.Join("l"); loc != "" {
			content = append(content, xc.NewElement(xc.XC, "location", loc))
		}
		s.out.AddHoldingsElement(content)
	}
}

// ReferencedBibs returns the bibliographic record ids a holdings record points
// at: its 004 and every 014 $a with first indicator 1.
func ReferencedBibs(rec *marc.Record) []string {
	var out []string
	if v, ok := rec.ControlField("004"); ok && v != "" {
		out = append(out, v)
	}
	for _, f := range rec.Fields("014") {
		if f.Ind1 != "1" {
			continue
		}
		for _, v := range f.Values("a") {
			if v = trim(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// holdingsRecord maps a MARC holdings record. Everything lands on the single
// holdings entity.
func (m *Mapper) holdingsRecord(s *state) {
	if id, ok := s.rec.ControlField("001"); ok && id != "" {
		org, ok := s.rec.ControlField("003")
		if !ok || org == "" {
			org = m.orgCode
		}
		s.out.AddElement(xc.XC, "recordID", id, xc.Holdings, xc.Attr("type", org))
	}

	for _, r := range holdingsRules {
		m.apply(s, r)
	}

	for _, g := range groupHoldings(s.rec) {
		for _, v := range g.location.Values("b") {
			s.out.AddElement(xc.XC, "location", trim(v), xc.Holdings)
		}
		s.out.AddElement(xc.XC, "callNumber", g.location.Join("hijklm"), xc.Holdings)
		for _, th := range textualHoldings(g.siblings) {
			s.out.Add(xc.Holdings, th)
		}
	}

	for _, f := range s.rec.Fields("856") {
		switch f.Ind2 {
		case "", " ", "0", "8":
			s.out.AddElement(xc.DCTerms, "identifier", f.Join("abcdfhijklmnopqrstuvyz23"), xc.Holdings)
		}
	}
}
