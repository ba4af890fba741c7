package mapper

import (
	"regexp"
	"strings"

	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/CMSgov/xc-harvester/transformation/xc"
)

// Rule describes how one MARC field becomes an XC element. Rules are data; the
// only code that reads them is apply.
type Rule struct {
	Tag string
	// Subfields whose values make up the element value. With Each, Subfields
	// must name a single code and every occurrence becomes its own element.
	Subfields string
	Each      bool
	// Dash lists subfields appended to the value with "-" instead of a space.
	Dash string
	// DashAll joins every target subfield with "-".
	DashAll bool

	Element   string
	Namespace xc.Namespace
	Level     xc.Level

	// Attr is a fixed attribute. When AttrSubfield is set the attribute value
	// is the first value of that subfield, else AttrDefault; with neither the
	// attribute is omitted.
	Attr         *xc.Attribute
	AttrSubfield string
	AttrDefault  string

	// SubfieldAttrs adds one attribute per occurrence of the mapped subfields,
	// valued with the subfield text.
	SubfieldAttrs map[string]xc.Attribute

	// Indicator (1 or 2) selects the indicator read by IndicatorAttrs and
	// IndicatorEquals.
	Indicator int
	// IndicatorAttrs picks the attribute by indicator value. A value of the
	// form "$x" is replaced by the first $x of the field. Fields whose
	// indicator is unmapped are skipped unless IndicatorOptional.
	IndicatorAttrs    map[string]xc.Attribute
	IndicatorOptional bool
	// IndicatorEquals skips fields whose indicator differs.
	IndicatorEquals string

	// Authority adds the authority attribute derived from $0.
	Authority bool

	// When, if set, gates each field.
	When func(rec *marc.Record, f marc.DataField) bool
	// Match, if set, drops values it does not match.
	Match *regexp.Regexp
}

func attr(ns xc.Namespace, name, value string) *xc.Attribute {
	a := xc.NSAttr(ns, name, value)
	return &a
}

func typeAttr(value string) *xc.Attribute {
	return attr(xc.NoNamespace, "type", value)
}

func xsiType(value string) *xc.Attribute {
	return attr(xc.XSI, "type", value)
}

// apply evaluates r against every matching field of the record.
func (m *Mapper) apply(s *state, r Rule) {
	for _, f := range s.rec.Fields(r.Tag) {
		if r.When != nil && !r.When(s.rec, f) {
			continue
		}
		if r.IndicatorEquals != "" && f.Indicator(r.Indicator) != r.IndicatorEquals {
			continue
		}

		var attrs []xc.Attribute
		if r.IndicatorAttrs != nil {
			a, ok := indicatorAttribute(f, r.Indicator, r.IndicatorAttrs)
			if !ok && !r.IndicatorOptional {
				continue
			}
			if ok {
				attrs = append(attrs, a)
			}
		}
		if r.Attr != nil {
			if a, ok := fieldAttribute(f, *r.Attr, r.AttrSubfield, r.AttrDefault); ok {
				attrs = append(attrs, a)
			}
		}
		if r.Authority {
			if a, ok := m.authorityAttribute(r.Tag, f); ok {
				attrs = append(attrs, a)
			}
		}

		if r.Each {
			for _, v := range f.Values(r.Subfields) {
				if r.Match != nil && !r.Match.MatchString(v) {
					continue
				}
				s.out.AddElement(r.Namespace, r.Element, strings.TrimSpace(v), r.Level, attrs...)
			}
			continue
		}

		for _, sf := range f.Subfields {
			if a, ok := r.SubfieldAttrs[sf.Code]; ok {
				a.Value = sf.Value
				attrs = append(attrs, a)
			}
		}

		var value string
		switch {
		case r.DashAll:
			value = f.JoinWith(r.Subfields, "-")
		case r.Dash != "":
			value = joinDashed(f, r.Subfields, r.Dash)
		default:
			value = f.Join(r.Subfields)
		}
		if r.Match != nil && !r.Match.MatchString(value) {
			continue
		}
		s.out.AddElement(r.Namespace, r.Element, value, r.Level, attrs...)
	}
}

// fieldAttribute resolves a fixed attribute whose value may come from a
// subfield.
func fieldAttribute(f marc.DataField, a xc.Attribute, subfield, def string) (xc.Attribute, bool) {
	if subfield == "" {
		return a, true
	}
	if v, ok := f.First(subfield); ok {
		a.Value = v
		return a, true
	}
	if def != "" {
		a.Value = def
		return a, true
	}
	return xc.Attribute{}, false
}

func indicatorAttribute(f marc.DataField, indicator int, table map[string]xc.Attribute) (xc.Attribute, bool) {
	ind := f.Indicator(indicator)
	if ind == "" {
		return xc.Attribute{}, false
	}
	a, ok := table[ind]
	if !ok {
		return xc.Attribute{}, false
	}
	if strings.HasPrefix(a.Value, "$") && len(a.Value) > 1 {
		v, ok := f.First(a.Value[1:2])
		if !ok {
			return xc.Attribute{}, false
		}
		a.Value = v
	}
	return a, true
}

// joinDashed space-joins the target subfields, except that each subfield in
// dash replaces the preceding separator with "-".
func joinDashed(f marc.DataField, codes, dash string) string {
	var b strings.Builder
	for _, sf := range f.Subfields {
		if sf.Code == "" || !strings.Contains(codes, sf.Code) {
			continue
		}
		if b.Len() > 0 {
			if strings.Contains(dash, sf.Code) {
				b.WriteByte('-')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(sf.Value)
	}
	return strings.TrimSpace(b.String())
}
