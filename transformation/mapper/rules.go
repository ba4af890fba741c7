package mapper

import (
	"regexp"
	"strings"

	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/CMSgov/xc-harvester/transformation/xc"
)

var (
	dcterms = xc.DCTerms
	rdvocab = xc.RDVocab
	xcns    = xc.XC
)

// subjectTypes maps a subject field's second indicator to the thesaurus that
// supplied the heading.
var subjectTypes = map[string]xc.Attribute{
	"0": *xsiType("dcterms:LCSH"),
	"1": *typeAttr("lcac"),
	"2": *xsiType("dcterms:MESH"),
	"3": *typeAttr("nal"),
	"5": *typeAttr("cash"),
	"6": *typeAttr("rvm"),
	"7": *typeAttr("$2"),
}

var standardIdentifierTypes = map[string]xc.Attribute{
	"0": *typeAttr("ISRC"),
	"1": *typeAttr("UPC"),
	"2": *typeAttr("ISMN"),
	"3": *typeAttr("IAN"),
	"4": *typeAttr("SICI"),
	"7": *typeAttr("$2"),
}

var lccAnyIndicator = map[string]xc.Attribute{
	"0": *xsiType("dcterms:LCC"),
	"1": *xsiType("dcterms:LCC"),
	"2": *xsiType("dcterms:LCC"),
	"3": *xsiType("dcterms:LCC"),
	"4": *xsiType("dcterms:LCC"),
	"5": *xsiType("dcterms:LCC"),
}

var issn = map[string]xc.Attribute{
	"x": xc.NSAttr(xc.DCTerms, "ISSN", ""),
}

var issnIsbn = map[string]xc.Attribute{
	"x": xc.NSAttr(xc.DCTerms, "ISSN", ""),
	"z": xc.NSAttr(xc.DCTerms, "ISBN", ""),
}

var lccShape = regexp.MustCompile(`^..\d`)

func basic(tag, subfields, element string, ns xc.Namespace, level xc.Level) Rule {
	return Rule{Tag: tag, Subfields: subfields, Each: len(subfields) == 1, Element: element, Namespace: ns, Level: level}
}

func typed(tag, subfields, element string, ns xc.Namespace, a *xc.Attribute, level xc.Level) Rule {
	r := basic(tag, subfields, element, ns, level)
	r.Attr = a
	return r
}

func subject(tag, subfields, dash, element string) Rule {
	return Rule{
		Tag: tag, Subfields: subfields, Dash: dash,
		Element: element, Namespace: xcns, Level: xc.Work,
		Indicator: 2, IndicatorAttrs: subjectTypes, Authority: true,
	}
}

func linkingEntry(tag, subfields, element string, attrs map[string]xc.Attribute, level xc.Level) Rule {
	return Rule{Tag: tag, Subfields: subfields, Element: element, Namespace: dcterms, Level: level, SubfieldAttrs: attrs}
}

func seriesEntry(tag, subfields string) Rule {
	return Rule{
		Tag: tag, Subfields: subfields, Element: "isPartOf", Namespace: dcterms, Level: xc.Manifestation,
		Attr: attr(dcterms, "ISSN", ""), AttrSubfield: "x", Authority: true,
	}
}

func gpoSource(rec *marc.Record, f marc.DataField) bool {
	for _, v := range f.Values("b") {
		if v == "GPO" {
			return true
		}
	}
	for _, v := range rec.Values("040", "a") {
		if v == "GPO" {
			return true
		}
	}
	return false
}

func ndc8(_ *marc.Record, f marc.DataField) bool {
	for _, v := range f.Values("2") {
		if strings.EqualFold(v, "NDC8") {
			return true
		}
	}
	return false
}

func leaderAt(pos int, accepted string) func(*marc.Record, marc.DataField) bool {
	return func(rec *marc.Record, _ marc.DataField) bool {
		b := rec.LeaderAt(pos)
		return b != 0 && strings.IndexByte(accepted, b) >= 0
	}
}

func leaderNotIn(pos int, rejected string) func(*marc.Record, marc.DataField) bool {
	return func(rec *marc.Record, _ marc.DataField) bool {
		b := rec.LeaderAt(pos)
		return b == 0 || strings.IndexByte(rejected, b) < 0
	}
}

// bibRules is the declarative part of the bibliographic mapping. Fields whose
// handling needs state or cross-field context live in handlers instead.
var bibRules = []Rule{
	typed("010", "a", "recordID", xcns, typeAttr("LCCN"), xc.Manifestation),
	{Tag: "015", Subfields: "a", Each: true, Element: "identifier", Namespace: xcns, Level: xc.Manifestation,
		Attr: typeAttr(""), AttrSubfield: "2"},
	{Tag: "016", Subfields: "a", Each: true, Element: "identifier", Namespace: xcns, Level: xc.Manifestation,
		Attr: typeAttr(""), AttrSubfield: "2", AttrDefault: "LAC"},
	typed("022", "a", "identifier", xcns, typeAttr("ISSN"), xc.Manifestation),
	typed("022", "l", "identifier", xcns, typeAttr("ISSN-L"), xc.Manifestation),
	{Tag: "024", Subfields: "a", Each: true, Element: "identifier", Namespace: xcns, Level: xc.Manifestation,
		Indicator: 1, IndicatorAttrs: standardIdentifierTypes},
	typed("030", "a", "identifier", xcns, typeAttr("CODEN"), xc.Manifestation),
	{Tag: "037", Subfields: "a", Each: true, Element: "identifier", Namespace: xcns, Level: xc.Manifestation,
		Attr: typeAttr("GPO"), When: gpoSource},
	{Tag: "050", Subfields: "a", Each: true, Element: "subject", Namespace: dcterms, Level: xc.Work,
		Attr: xsiType("dcterms:LCC"), Match: lccShape},
	{Tag: "055", Subfields: "a", Each: true, Element: "subject", Namespace: dcterms, Level: xc.Work,
		Indicator: 2, IndicatorAttrs: lccAnyIndicator, IndicatorOptional: true},
	typed("060", "a", "subject", dcterms, xsiType("dcterms:NLM"), xc.Work),
	typed("074", "a", "identifier", xcns, typeAttr("GPOItem"), xc.Manifestation),
	typed("082", "a", "subject", dcterms, xsiType("dcterms:DDC"), xc.Work),
	{Tag: "084", Subfields: "a", Each: true, Element: "subject", Namespace: xcns, Level: xc.Work,
		Attr: typeAttr("NDC8"), When: ndc8},
	typed("086", "a", "identifier", xcns, typeAttr("SuDoc"), xc.Manifestation),
	typed("090", "a", "subject", dcterms, xsiType("dcterms:LCC"), xc.Work),
	typed("092", "a", "subject", dcterms, xsiType("dcterms:DDC"), xc.Work),

	basic("210", "ab", "alternative", dcterms, xc.Manifestation),
	basic("222", "ab", "alternative", dcterms, xc.Manifestation),
	basic("245", "c", "statementOfResponsibilityRelatingToTitle", rdvocab, xc.Manifestation),
	basic("245", "abfgknps", "title", dcterms, xc.Manifestation),
	{Tag: "246", Subfields: "abfnp", Element: "title", Namespace: dcterms, Level: xc.Manifestation,
		Indicator: 2, IndicatorEquals: "1"},
	{Tag: "246", Subfields: "abfnp", Element: "alternative", Namespace: dcterms, Level: xc.Manifestation,
		When: func(_ *marc.Record, f marc.DataField) bool { return f.Ind2 != "1" }},
	basic("247", "abfnp", "alternative", dcterms, xc.Manifestation),
	basic("250", "ab", "editionStatement", rdvocab, xc.Manifestation),
	basic("250", "a", "version", dcterms, xc.Expression),
	basic("254", "a", "editionStatement", rdvocab, xc.Manifestation),
	basic("254", "a", "version", dcterms, xc.Expression),
	basic("255", "abcdefg", "scale", rdvocab, xc.Expression),
	basic("260", "a", "placeOfProduction", rdvocab, xc.Manifestation),
	basic("260", "b", "publisher", dcterms, xc.Manifestation),
	basic("260", "c", "issued", dcterms, xc.Manifestation),
	basic("260", "e", "placeOfProduction", rdvocab, xc.Manifestation),
	basic("260", "f", "publisher", dcterms, xc.Manifestation),
	basic("260", "g", "issued", dcterms, xc.Manifestation),
	basic("300", "a", "extent", dcterms, xc.Manifestation),
	{Tag: "300", Subfields: "b", Each: true, Element: "soundCharacteristics", Namespace: rdvocab, Level: xc.Manifestation,
		When: leaderAt(6, "ij")},
	{Tag: "300", Subfields: "b", Each: true, Element: "illustrationContent", Namespace: rdvocab, Level: xc.Expression,
		When: leaderAt(6, "acdt")},
	{Tag: "300", Subfields: "b", Each: true, Element: "otherPhysicalDetails", Namespace: xcns, Level: xc.Manifestation,
		When: leaderNotIn(6, "ijacdt")},
	basic("300", "c", "dimensions", rdvocab, xc.Manifestation),
	basic("300", "e", "hasPart", dcterms, xc.Manifestation),
	basic("310", "ab", "frequency", rdvocab, xc.Manifestation),
	basic("321", "ab", "frequency", rdvocab, xc.Manifestation),
	basic("362", "az", "numberingOfSerials", rdvocab, xc.Manifestation),
	{Tag: "440", Subfields: "anpv", Element: "isPartOf", Namespace: xcns, Level: xc.Manifestation, Authority: true},
	{Tag: "490", Subfields: "av", Element: "isPartOf", Namespace: dcterms, Level: xc.Manifestation,
		Indicator: 1, IndicatorEquals: "0", SubfieldAttrs: issn},

	basic("500", "a3", "description", dcterms, xc.Manifestation),
	basic("501", "a", "relation", dcterms, xc.Expression),
	basic("502", "a", "dissertationOrThesisInformation", rdvocab, xc.Work),
	basic("504", "ab", "description", dcterms, xc.Manifestation),
	basic("505", "agrtu", "tableOfContents", dcterms, xc.Manifestation),
	basic("506", "abcdefu3", "rights", dcterms, xc.Manifestation),
	basic("507", "ab", "scale", rdvocab, xc.Expression),
	basic("508", "a", "artisticAndOrTechnicalCredits", rdvocab, xc.Expression),
	{Tag: "510", Subfields: "abc3", Element: "isReferencedBy", Namespace: dcterms, Level: xc.Expression,
		Attr: attr(dcterms, "ISSN", ""), AttrSubfield: "x"},
	basic("511", "a", "performerNarratorAndOrPresenter", rdvocab, xc.Expression),
	basic("513", "ab", "temporal", dcterms, xc.Work),
	basic("515", "a", "numberingOfSerials", rdvocab, xc.Manifestation),
	basic("518", "a3", "placeAndDateOfCapture", rdvocab, xc.Expression),
	basic("520", "abcu3", "abstract", dcterms, xc.Work),
	basic("521", "ab3", "audience", dcterms, xc.Work),
	basic("522", "a", "spatial", dcterms, xc.Work),
	basic("525", "a", "relation", xcns, xc.Work),
	basic("530", "abcdu3", "hasFormat", dcterms, xc.Expression),
	basic("533", "abcdefmn3", "hasFormat", dcterms, xc.Expression),
	{Tag: "534", Subfields: "abcefklmnptx3", Element: "isFormatOf", Namespace: dcterms, Level: xc.Expression,
		Attr: attr(dcterms, "ISSN", ""), AttrSubfield: "x"},
	basic("538", "aiu3", "requires", dcterms, xc.Expression),
	basic("540", "abcdu3", "rights", dcterms, xc.Manifestation),
	basic("544", "abcden3", "description", dcterms, xc.Manifestation),
	basic("546", "ab3", "description", dcterms, xc.Manifestation),
	basic("547", "a", "description", dcterms, xc.Manifestation),
	basic("550", "a", "description", dcterms, xc.Expression),
	{Tag: "555", Subfields: "abcdu3", Element: "description", Namespace: dcterms, Level: xc.Manifestation,
		When: leaderAt(8, "a")},
	basic("580", "a", "relation", dcterms, xc.Expression),
	basic("586", "a3", "awards", rdvocab, xc.Expression),
	basic("590", "a", "description", dcterms, xc.Manifestation),
	basic("591", "a", "description", dcterms, xc.Manifestation),
	basic("592", "a", "description", dcterms, xc.Manifestation),
	basic("593", "a", "description", dcterms, xc.Manifestation),
	basic("594", "a", "description", dcterms, xc.Manifestation),
	basic("595", "a", "description", dcterms, xc.Manifestation),
	basic("596", "a", "description", dcterms, xc.Manifestation),
	basic("597", "a", "description", dcterms, xc.Manifestation),
	basic("598", "a", "description", dcterms, xc.Manifestation),
	basic("599", "a", "description", dcterms, xc.Manifestation),

	subject("600", "abcdefgklmnopqrstuvwxyz23", "vxyz", "subject"),
	subject("610", "abcdefgklmnopqrstuvwxyz234", "vxyz", "subject"),
	subject("611", "acdefgklnpqstvwxyz234", "vxyz", "subject"),
	subject("630", "adefgklmnoprstvwxyz234", "vxyz", "subject"),
	subject("648", "avwxyz", "vxyz", "temporal"),
	subject("650", "abcdevxyz234", "vxyz", "subject"),
	subject("651", "aevxyz234", "vxyz", "spatial"),
	basic("653", "a", "subject", dcterms, xc.Work),
	{Tag: "654", Subfields: "abcevyz034", Dash: "bcevyz034", Element: "subject", Namespace: dcterms, Level: xc.Work,
		Attr: typeAttr(""), AttrSubfield: "2"},
	subject("655", "abcvwxyz3", "vxyz", "type"),

	basic("720", "ae4", "contributor", dcterms, xc.Expression),
	basic("740", "anpv", "alternative", dcterms, xc.Manifestation),
	{Tag: "752", Subfields: "abcdfgh0", DashAll: true, Element: "coverage", Namespace: xcns, Level: xc.Work},
	{Tag: "760", Subfields: "agit3", Element: "isPartOf", Namespace: dcterms, Level: xc.Manifestation,
		Attr: attr(dcterms, "ISSN", ""), AttrSubfield: "x"},
	linkingEntry("765", "agit3", "isVersionOf", issnIsbn, xc.Expression),
	linkingEntry("770", "agit", "relation", issnIsbn, xc.Work),
	linkingEntry("772", "agit", "relation", issnIsbn, xc.Work),
	linkingEntry("773", "agit3", "isPartOf", issnIsbn, xc.Manifestation),
	linkingEntry("775", "agit", "relation", issnIsbn, xc.Expression),
	linkingEntry("776", "agit", "HasFormat", issnIsbn, xc.Expression),
	linkingEntry("777", "agit", "relation", issn, xc.Expression),
	linkingEntry("780", "agit", "replaces", issnIsbn, xc.Work),
	linkingEntry("785", "agit", "isReplacedBy", issnIsbn, xc.Work),
	linkingEntry("786", "agit", "isVersionOf", issnIsbn, xc.Expression),
	linkingEntry("787", "agit", "relation", issnIsbn, xc.Expression),
	seriesEntry("800", "abcdefgq4klmnoprstv"),
	seriesEntry("810", "abcdefg4klmnoprstv"),
	seriesEntry("811", "acdefgjklnpqstv4"),
	seriesEntry("830", "adfgklmnoprstv"),

	typed("931", "a", "type", dcterms, xsiType("dcterms:DCMIType"), xc.Expression),
	basic("932", "a", "typeLeader06", xcns, xc.Manifestation),
	basic("933", "a", "type007", xcns, xc.Manifestation),
	basic("934", "a", "typeSMD", xcns, xc.Manifestation),
	basic("935", "a", "modeOfIssuance", rdvocab, xc.Manifestation),
	basic("937", "a", "natureOfContent", rdvocab, xc.Work),
	basic("939", "a", "issued", dcterms, xc.Manifestation),
	basic("943", "a", "language", dcterms, xc.Expression),
	typed("947", "a", "identifier", dcterms, typeAttr("ISBN"), xc.Manifestation),
	subject("963", "ay", "", "temporal"),
	subject("965", "ax", "", "subject"),
	subject("967", "az", "", "spatial"),
	subject("969", "av", "", "type"),
}

// holdingsRules apply to MARC holdings records.
var holdingsRules = []Rule{
	basic("506", "abcdefu3", "rights", dcterms, xc.Holdings),
}

// musicNumberRules split 028 by its first indicator; other values are skipped.
var musicNumberRules = []Rule{
	{Tag: "028", Subfields: "a", Each: true, Element: "identifier", Namespace: xcns, Level: xc.Manifestation,
		Attr: typeAttr("SoundNr"), Indicator: 1, IndicatorEquals: "0"},
	{Tag: "028", Subfields: "a", Each: true, Element: "plateNumber", Namespace: rdvocab, Level: xc.Manifestation,
		Indicator: 1, IndicatorEquals: "2"},
	{Tag: "028", Subfields: "a", Each: true, Element: "publisherNumber", Namespace: rdvocab, Level: xc.Manifestation,
		Indicator: 1, IndicatorEquals: "3"},
	{Tag: "028", Subfields: "a", Each: true, Element: "identifier", Namespace: xcns, Level: xc.Manifestation,
		Attr: typeAttr("VideoNr"), Indicator: 1, IndicatorEquals: "4"},
}
