package mapper

import (
	"testing"

	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/CMSgov/xc-harvester/transformation/xc"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const bookLeader = "00000nam a2200000 a 4500"

func df(tag, ind1, ind2 string, codeValues ...string) marc.DataField {
	f := marc.DataField{Tag: tag, Ind1: ind1, Ind2: ind2}
	for i := 0; i+1 < len(codeValues); i += 2 {
		f.Subfields = append(f.Subfields, marc.Subfield{Code: codeValues[i], Value: codeValues[i+1]})
	}
	return f
}

func bib(fields ...marc.DataField) *marc.Record {
	return &marc.Record{Leader: bookLeader, DataFields: fields}
}

func attrValue(e xc.Element, name string) string {
	v, _ := e.Attribute(name)
	return v
}

type MapperTestSuite struct {
	suite.Suite
	mapper *Mapper
}

func (s *MapperTestSuite) SetupTest() {
	logger, _ := test.NewNullLogger()
	s.mapper = New(Config{OrgCode: "NyRoU"}, logger)
}

func TestMapperTestSuite(t *testing.T) {
	suite.Run(t, new(MapperTestSuite))
}

func (s *MapperTestSuite) transform(rec *marc.Record) *xc.AggregateXCRecord {
	out, err := s.mapper.Transform(rec)
	s.Require().NoError(err)
	return out
}

func (s *MapperTestSuite) TestTransformRejectsBadInput() {
	_, err := s.mapper.Transform(nil)
	s.Error(err)

	_, err = s.mapper.Transform(&marc.Record{Leader: "short"})
	s.Error(err)
}

func (s *MapperTestSuite) TestCreatorWithLCAuthority() {
	out := s.transform(bib(df("100", "1", " ", "a", "Smith, John.", "0", "(DLC)n12345")))

	creators := out.Find(xc.Expression, "creator")
	s.Require().Len(creators, 1)
	s.Equal("Smith, John.", creators[0].Value)
	s.Equal(xc.XC, creators[0].Namespace)
	s.Equal("lcnaf:n12345", attrValue(creators[0], "agentID"))
	s.Empty(out.Find(xc.Work, "creator"))
}

func (s *MapperTestSuite) TestCreatorLocalAuthority() {
	out := s.transform(bib(df("110", "2", " ", "a", "Acme Corp.", "0", "(NyRoU)42")))

	creators := out.Find(xc.Expression, "creator")
	s.Require().Len(creators, 1)
	s.Equal("xcauth:42", attrValue(creators[0], "agentID"))
}

func (s *MapperTestSuite) TestCreatorUnknownAuthorityOmitted() {
	out := s.transform(bib(df("100", "1", " ", "a", "Doe, Jane.", "0", "(OCoLC)999")))

	creators := out.Find(xc.Expression, "creator")
	s.Require().Len(creators, 1)
	s.Empty(creators[0].Attributes)
}

func (s *MapperTestSuite) TestCreatorRoles() {
	out := s.transform(bib(df("100", "1", " ", "a", "Smith, John.", "4", "aut", "4", "trl", "4", "zzz")))

	authors := out.Find(xc.Work, "author")
	s.Require().Len(authors, 1)
	s.Equal(xc.RDARole, authors[0].Namespace)

	s.Len(out.Find(xc.Expression, "translator"), 1)
	s.Empty(out.Find(xc.Expression, "creator"), "recognized roles replace the creator element")
}

func (s *MapperTestSuite) TestAddedEntryWithoutTitle() {
	out := s.transform(bib(df("700", "1", " ", "a", "Roe, Richard.", "4", "ill")))

	s.Empty(out.Find(xc.Expression, "contributor"))
	ill := out.Find(xc.Expression, "illustrator")
	s.Require().Len(ill, 1)
	s.Equal("Roe, Richard.", ill[0].Value)
}

func (s *MapperTestSuite) TestAddedEntryRelation() {
	out := s.transform(bib(df("700", "1", " ", "a", "Roe, Richard.", "t", "Poems.", "0", "(DLC)n777")))

	rel := out.Find(xc.Work, "relation")
	s.Require().Len(rel, 1)
	s.Equal("Roe, Richard. Poems.", rel[0].Value)
	s.Equal("lcnaf:n777", attrValue(rel[0], "workID"))
	s.Empty(out.LinkedWorks())
}

func (s *MapperTestSuite) TestLinkedWorkUsesCachedCreator() {
	out := s.transform(bib(
		df("700", "1", "2", "a", "Roe, Richard.", "t", "Poems.", "8", "1.1", "0", "(DLC)n777"),
		df("959", " ", " ", "a", "Roe, Richard.", "8", "1.1", "0", "(NyRoU)5"),
	))

	linked := out.LinkedWorks()
	s.Require().Len(linked, 1)
	lw := linked[0]
	s.Equal("1.1", lw.LinkingTag)

	var names []string
	for _, e := range lw.Work {
		names = append(names, e.Name)
	}
	s.Contains(names, "identifierForTheWork")
	s.Contains(names, "titleOfWork")
	s.Contains(names, "creator")

	for _, e := range lw.Work {
		if e.Name == "creator" {
			s.Equal("xcauth:5", attrValue(e, "agentID"))
		}
	}
	s.Require().Len(lw.Expression, 1)
	s.Equal("Poems.", lw.Expression[0].Value)
}

func (s *MapperTestSuite) TestRepeatedLinkedWorkDeduplicated() {
	field := df("700", "1", "2", "a", "Bach", "t", "Fugue", "8", `1\c`)
	out := s.transform(bib(field, field))

	linked := out.LinkedWorks()
	s.Require().Len(linked, 1)
	s.Equal(`1\c`, linked[0].LinkingTag)
	s.Require().Len(linked[0].Work, 1)
	s.Equal("titleOfWork", linked[0].Work[0].Name)
	s.Require().Len(linked[0].Expression, 1)
	s.Equal("titleOfExpression", linked[0].Expression[0].Name)
}

func (s *MapperTestSuite) TestArtificialLinkingTags() {
	out := s.transform(bib(
		df("700", "1", "2", "a", "A.", "t", "First."),
		df("710", "2", "2", "a", "B.", "t", "Second."),
		df("730", "0", "2", "a", "Third."),
	))

	var tags []string
	for _, lw := range out.LinkedWorks() {
		tags = append(tags, lw.LinkingTag)
	}
	s.Equal([]string{"7001", "7102", "7303"}, tags)
}

func (s *MapperTestSuite) TestUniformTitle() {
	out := s.transform(bib(df("240", "1", "0", "a", "Hamlet.", "l", "French", "0", "(DLC)n1")))

	s.Equal("Hamlet.", out.Find(xc.Work, "titleOfWork")[0].Value)
	s.Equal("Hamlet. French", out.Find(xc.Expression, "titleOfExpression")[0].Value)

	ids := out.Find(xc.Work, "identifierForTheWork")
	s.Require().Len(ids, 1)
	s.Equal("n1", ids[0].Value)
	s.Equal("lcnaf", attrValue(ids[0], "type"))
}

func (s *MapperTestSuite) TestSubjectDashes() {
	out := s.transform(bib(df("650", " ", "0", "a", "Cats", "x", "Behavior", "z", "France")))

	subjects := out.Find(xc.Work, "subject")
	s.Require().Len(subjects, 1)
	s.Equal("Cats-Behavior-France", subjects[0].Value)
	s.Equal("dcterms:LCSH", attrValue(subjects[0], "type"))
}

func (s *MapperTestSuite) TestSubjectSourceFromSubfield2() {
	out := s.transform(bib(
		df("650", " ", "7", "a", "Cats", "2", "fast"),
		df("650", " ", "7", "a", "Dogs"),
	))

	subjects := out.Find(xc.Work, "subject")
	s.Require().Len(subjects, 1)
	s.Equal("Cats fast", subjects[0].Value)
	s.Equal("fast", attrValue(subjects[0], "type"))
}

func (s *MapperTestSuite) TestSubjectAuthorityAttributes() {
	tests := []struct {
		tag     string
		element string
		attr    string
	}{
		{"600", "subject", "subjID"},
		{"650", "subject", "subjID"},
		{"648", "temporal", "chronID"},
		{"963", "temporal", "chronID"},
		{"651", "spatial", "geoID"},
		{"967", "spatial", "geoID"},
	}
	authorities := []struct {
		control, expected string
	}{
		{"(DLC)n1", "lcnaf:n1"},
		{"(NyRoU)x", "xcauth:x"},
	}
	for _, tt := range tests {
		for _, a := range authorities {
			s.T().Run(tt.tag+" "+a.control, func(t *testing.T) {
				out, err := s.mapper.Transform(bib(df(tt.tag, " ", "0", "a", "Heading", "0", a.control)))
				require.NoError(t, err)

				elements := out.Find(xc.Work, tt.element)
				require.Len(t, elements, 1)
				assert.Equal(t, "Heading", elements[0].Value)
				assert.Equal(t, a.expected, attrValue(elements[0], tt.attr))
				assert.Equal(t, "dcterms:LCSH", attrValue(elements[0], "type"))
			})
		}
	}
}

func (s *MapperTestSuite) TestSubjectIndicators() {
	tests := []struct {
		name     string
		ind2     string
		expected int
		typ      string
	}{
		{"LCSH", "0", 1, "dcterms:LCSH"},
		{"MeSH", "2", 1, "dcterms:MESH"},
		{"source not specified", "4", 0, ""},
		{"blank", " ", 0, ""},
	}
	for _, tt := range tests {
		s.T().Run(tt.name, func(t *testing.T) {
			out, err := s.mapper.Transform(bib(df("650", " ", tt.ind2, "a", "Cats", "0", "(DLC)sh1")))
			require.NoError(t, err)

			subjects := out.Find(xc.Work, "subject")
			require.Len(t, subjects, tt.expected)
			if tt.expected > 0 {
				assert.Equal(t, tt.typ, attrValue(subjects[0], "type"))
			}
		})
	}
}

func (s *MapperTestSuite) TestCanadianClassificationOptionalIndicator() {
	tests := []struct {
		name string
		ind2 string
		typ  string
	}{
		{"assigned by LC", "0", "dcterms:LCC"},
		{"other source", "5", "dcterms:LCC"},
		{"unmapped indicator", "9", ""},
		{"blank", " ", ""},
	}
	for _, tt := range tests {
		s.T().Run(tt.name, func(t *testing.T) {
			out, err := s.mapper.Transform(bib(df("055", " ", tt.ind2, "a", "FC3095")))
			require.NoError(t, err)

			subjects := out.Find(xc.Work, "subject")
			require.Len(t, subjects, 1, "the field is mapped whatever its indicator")
			assert.Equal(t, "FC3095", subjects[0].Value)
			if tt.typ == "" {
				assert.Empty(t, subjects[0].Attributes)
			} else {
				assert.Equal(t, tt.typ, attrValue(subjects[0], "type"))
			}
		})
	}
}

func (s *MapperTestSuite) TestPhysicalDetailsByLeader() {
	tests := []struct {
		name    string
		leader  string
		level   xc.Level
		element string
	}{
		{"sound recording", "00000nim a2200000 a 4500", xc.Manifestation, "soundCharacteristics"},
		{"text", "00000nam a2200000 a 4500", xc.Expression, "illustrationContent"},
		{"other", "00000ngm a2200000 a 4500", xc.Manifestation, "otherPhysicalDetails"},
	}
	for _, tt := range tests {
		s.T().Run(tt.name, func(t *testing.T) {
			rec := &marc.Record{Leader: tt.leader, DataFields: []marc.DataField{df("300", " ", " ", "b", "ill.")}}
			out, err := s.mapper.Transform(rec)
			require.NoError(t, err)
			assert.Len(t, out.Find(tt.level, tt.element), 1)
		})
	}
}

func (s *MapperTestSuite) TestMusicNumbers() {
	out := s.transform(bib(
		df("028", "0", "0", "a", "SN1"),
		df("028", "2", "0", "a", "PL2"),
		df("028", "3", "0", "a", "PB3"),
		df("028", "5", "0", "a", "ignored"),
	))

	ids := out.Find(xc.Manifestation, "identifier")
	s.Require().Len(ids, 1)
	s.Equal("SoundNr", attrValue(ids[0], "type"))
	s.Len(out.Find(xc.Manifestation, "plateNumber"), 1)
	s.Len(out.Find(xc.Manifestation, "publisherNumber"), 1)
}

func (s *MapperTestSuite) TestControlNumbers() {
	out := s.transform(bib(df("035", " ", " ", "a", "(OCoLC)00012", "a", "no prefix")))

	ids := out.Find(xc.Manifestation, "recordID")
	s.Require().Len(ids, 1)
	s.Equal("00012", ids[0].Value)
	s.Equal("OCoLC", attrValue(ids[0], "type"))
}

func (s *MapperTestSuite) TestDuplicateFieldsDeduplicated() {
	out := s.transform(bib(
		df("650", " ", "0", "a", "Cats"),
		df("650", " ", "0", "a", "Cats"),
	))
	s.Len(out.Find(xc.Work, "subject"), 1)
}

func (s *MapperTestSuite) TestHoldingsGrouping() {
	out := s.transform(bib(
		df("866", " ", "0", "a", "v.0"),
		df("852", "0", " ", "b", "Main", "h", "QA76", "i", ".A1"),
		df("866", " ", "0", "a", "v.1-10"),
		df("852", "1", " ", "b", "Annex", "c", "Stacks", "h", "94"),
		df("868", " ", "0", "a", "Index"),
	))

	holdings := out.HoldingsElements()
	s.Require().Len(holdings, 2)

	var first []string
	for _, e := range holdings[0] {
		first = append(first, e.Name+"="+e.Value)
	}
	s.Equal([]string{"location=Main", "callNumber=QA76 .A1", "textualHoldings=v.0", "textualHoldings=v.1-10"}, first)
	s.Len(holdings[1], 4)

	subjects := out.Find(xc.Work, "subject")
	s.Require().Len(subjects, 2)
	s.Equal("dcterms:LCC", attrValue(subjects[0], "type"))
	s.Equal("dcterms:DDC", attrValue(subjects[1], "type"))
}

func (s *MapperTestSuite) TestTextualHoldingsWithout852() {
	out := s.transform(bib(df("866", " ", "0", "a", "v.1")))

	th := out.Find(xc.Holdings, "textualHoldings")
	s.Require().Len(th, 1)
	s.Equal("Basic Bibliographic Unit", attrValue(th[0], "type"))
}

func (s *MapperTestSuite) TestElectronicLocations() {
	out := s.transform(bib(
		df("856", "4", "0", "u", "http://a"),
		df("856", "4", "1", "u", "http://b"),
		df("856", "4", "2", "u", "http://c"),
		df("856", "4", "9", "u", "http://d"),
	))

	s.Len(out.Find(xc.Manifestation, "identifier"), 1)
	s.Len(out.Find(xc.Expression, "hasVersion"), 1)
	s.Len(out.Find(xc.Expression, "relation"), 1)
}

func (s *MapperTestSuite) TestLocalHoldings() {
	out := s.transform(bib(
		df("945", " ", " ", "a", "Children", "5", "NyRoU"),
		df("945", " ", " ", "a", "PZ7", "b", ".R6", "l", "juv"),
	))

	aud := out.Find(xc.Work, "audience")
	s.Require().Len(aud, 1)
	s.Equal("Children", aud[0].Value)
	s.Require().Len(out.HoldingsElements(), 1)
}

func (s *MapperTestSuite) TestHoldingsRecord() {
	rec := &marc.Record{
		Leader: "00000nx  a2200000 a 4500",
		ControlFields: []marc.ControlField{
			{Tag: "001", Value: "h1"},
			{Tag: "004", Value: "b1"},
		},
		DataFields: []marc.DataField{
			df("014", "1", " ", "a", "b2"),
			df("014", "0", " ", "a", "ignored"),
			df("852", "0", " ", "b", "Main", "h", "QA76"),
			df("866", " ", "0", "a", "v.1"),
			df("506", " ", " ", "a", "Restricted"),
		},
	}
	out := s.transform(rec)

	s.False(out.HasBibInfo)
	ids := out.Find(xc.Holdings, "recordID")
	s.Require().Len(ids, 1)
	s.Equal("NyRoU", attrValue(ids[0], "type"))
	s.Len(out.Find(xc.Holdings, "location"), 1)
	s.Len(out.Find(xc.Holdings, "callNumber"), 1)
	s.Len(out.Find(xc.Holdings, "textualHoldings"), 1)
	s.Len(out.Find(xc.Holdings, "rights"), 1)

	s.Equal([]string{"b1", "b2"}, ReferencedBibs(rec))
}

func TestClassShapes(t *testing.T) {
	assert.True(t, lccShaped("QA76"))
	assert.False(t, lccShaped("QAB76"))
	assert.False(t, lccShaped(""))
	assert.True(t, ddcShaped("02a"))
	assert.False(t, ddcShaped("025.1"))
	assert.True(t, ddcShaped("94"))
}

func TestSplitControlNumber(t *testing.T) {
	tests := []struct {
		in, prefix, value string
		ok                bool
	}{
		{"(DLC)n123", "DLC", "n123", true},
		{"n123", "", "", false},
		{")DLC(n", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, v, ok := splitControlNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.prefix, p)
			assert.Equal(t, tt.value, v)
		})
	}
}
