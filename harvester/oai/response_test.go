package oai

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listRecordsPage = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2020-03-05T00:00:00Z</responseDate>
  <request verb="ListRecords" metadataPrefix="marc21">http://oai.example.org/oai</request>
  <ListRecords>
    <record>
      <header>
        <identifier>oai:example.org:1</identifier>
        <datestamp>2020-03-01T10:11:12Z</datestamp>
        <setSpec>music:cds</setSpec>
        <setSpec>music</setSpec>
      </header>
      <metadata>
        <record xmlns="http://www.loc.gov/MARC21/slim"><leader>00000nam a2200000 a 4500</leader></record>
      </metadata>
    </record>
    <record>
      <header status="deleted">
        <identifier>oai:example.org:2</identifier>
        <datestamp>not a date</datestamp>
      </header>
    </record>
    <resumptionToken completeListSize="50000" cursor="0">token/1</resumptionToken>
  </ListRecords>
</OAI-PMH>`

func TestParseRecords(t *testing.T) {
	logger, hook := test.NewNullLogger()

	page, err := Parse([]byte(listRecordsPage), logger)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.False(t, page.NoRecords)

	first := page.Records[0]
	assert.Equal(t, "oai:example.org:1", first.Identifier)
	require.NotNil(t, first.Datestamp)
	assert.Equal(t, time.Date(2020, 3, 1, 10, 11, 12, 0, time.UTC), *first.Datestamp)
	assert.False(t, first.Deleted)
	assert.Equal(t, []string{"music:cds", "music"}, first.SetSpecs)
	assert.Contains(t, string(first.Metadata), "<leader>00000nam a2200000 a 4500</leader>")

	second := page.Records[1]
	assert.True(t, second.Deleted)
	assert.Nil(t, second.Datestamp)
	assert.Empty(t, second.Metadata)

	require.NotNil(t, page.Token)
	assert.Equal(t, "token/1", page.Token.Value)
	assert.Equal(t, 50000, page.Token.CompleteListSize)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "oai:example.org:2", hook.LastEntry().Data["oai_id"])
}

func TestParseOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		noRecords bool
		protocol  string
		malformed bool
	}{
		{
			name:      "request echo without records",
			body:      `<OAI-PMH><request verb="ListRecords">http://x</request><ListRecords/></OAI-PMH>`,
			noRecords: true,
		},
		{
			name:      "legacy requestURL echo",
			body:      `<ListRecords><requestURL>http://x</requestURL></ListRecords>`,
			noRecords: true,
		},
		{
			name:      "noRecordsMatch",
			body:      `<OAI-PMH><request>http://x</request><error code="noRecordsMatch">nothing</error></OAI-PMH>`,
			noRecords: true,
		},
		{
			name:     "protocol error",
			body:     `<OAI-PMH><request>http://x</request><error code="badResumptionToken">expired</error></OAI-PMH>`,
			protocol: "badResumptionToken",
		},
		{
			name:      "neither records nor echo",
			body:      `<OAI-PMH><ListRecords/></OAI-PMH>`,
			malformed: true,
		},
		{
			name:      "not xml",
			body:      `<html`,
			malformed: true,
		},
		{
			name:      "bad completeListSize",
			body:      `<OAI-PMH><ListRecords><record><header><identifier>a</identifier></header></record><resumptionToken completeListSize="many">t</resumptionToken></ListRecords></OAI-PMH>`,
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			page, err := Parse([]byte(tt.body), logger)

			switch {
			case tt.noRecords:
				require.NoError(t, err)
				assert.True(t, page.NoRecords)
				assert.Nil(t, page.Token)
			case tt.protocol != "":
				var pe *ProtocolError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, tt.protocol, pe.Code)
			case tt.malformed:
				var me *MalformedResponseError
				assert.True(t, errors.As(err, &me))
			}
		})
	}
}

func TestParseEmptyTokenEndsHarvest(t *testing.T) {
	body := `<OAI-PMH><ListRecords><record><header><identifier>a</identifier></header></record>` +
		`<resumptionToken completeListSize="1" cursor="0"></resumptionToken></ListRecords></OAI-PMH>`
	logger, _ := test.NewNullLogger()

	page, err := Parse([]byte(body), logger)
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.Nil(t, page.Token)
}

func TestParseTokenWithoutListSize(t *testing.T) {
	body := `<OAI-PMH><ListRecords><record><header><identifier>a</identifier></header></record>` +
		`<resumptionToken>next</resumptionToken></ListRecords></OAI-PMH>`
	logger, _ := test.NewNullLogger()

	page, err := Parse([]byte(body), logger)
	require.NoError(t, err)
	require.NotNil(t, page.Token)
	assert.Equal(t, -1, page.Token.CompleteListSize)
}

func TestParseDatestamp(t *testing.T) {
	expected := time.Date(2020, 3, 1, 10, 11, 12, 0, time.UTC)
	for _, in := range []string{"2020-03-01T10:11:12Z", "2020-03-01T10:11:12z", "2020-03-01 10:11:12", "2020-03-01T10:11:12"} {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDatestamp(in)
			require.NoError(t, err)
			assert.Equal(t, expected, got)
		})
	}

	day, err := ParseDatestamp("2020-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDatestamp("03/01/2020")
	assert.Error(t, err)
}
