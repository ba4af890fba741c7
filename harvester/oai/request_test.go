package oai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDate(t *testing.T) {
	until := time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2020-03-05", FormatDate(GranularityDay, until))
	assert.Equal(t, "2020-03-05T00:00:00Z", FormatDate(GranularitySecond, until))

	est := time.FixedZone("EST", -5*60*60)
	assert.Equal(t, "2020-03-05T05:00:00Z", FormatDate(GranularitySecond, time.Date(2020, 3, 5, 0, 0, 0, 0, est)))
}

func TestRequestURL(t *testing.T) {
	from := time.Date(2020, 1, 1, 12, 30, 0, 0, time.UTC)
	until := time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		req      Request
		expected string
	}{
		{
			"prefix only",
			Request{BaseURL: "http://oai.example.org/oai", MetadataPrefix: "marc21"},
			"http://oai.example.org/oai?verb=ListRecords&metadataPrefix=marc21",
		},
		{
			"day granularity",
			Request{BaseURL: "http://oai.example.org/oai", MetadataPrefix: "marc21", Set: "music:cds", Until: &until},
			"http://oai.example.org/oai?verb=ListRecords&metadataPrefix=marc21&set=music%3Acds&until=2020-03-05",
		},
		{
			"second granularity",
			Request{BaseURL: "http://oai.example.org/oai", MetadataPrefix: "marc21", From: &from, Until: &until, Granularity: GranularitySecond},
			"http://oai.example.org/oai?verb=ListRecords&metadataPrefix=marc21&from=2020-01-01T12:30:00Z&until=2020-03-05T00:00:00Z",
		},
		{
			"base url with query",
			Request{BaseURL: "http://oai.example.org/oai?repo=1", MetadataPrefix: "marc21"},
			"http://oai.example.org/oai?repo=1&verb=ListRecords&metadataPrefix=marc21",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.req.URL())
		})
	}
}

func TestResumeURL(t *testing.T) {
	assert.Equal(t, "http://oai.example.org/oai?verb=ListRecords&resumptionToken=a%2Fb%3D1%26c",
		ResumeURL("http://oai.example.org/oai", "a/b=1&c"))
}

func TestParseGranularity(t *testing.T) {
	assert.Equal(t, GranularitySecond, ParseGranularity("YYYY-MM-DDThh:mm:ssZ"))
	assert.Equal(t, GranularityDay, ParseGranularity("YYYY-MM-DD"))
	assert.Equal(t, GranularityDay, ParseGranularity(""))
}
