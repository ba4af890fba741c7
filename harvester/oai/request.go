// Package oai speaks the harvesting side of OAI-PMH: it builds ListRecords
// requests, fetches them and parses the responses into record envelopes.
package oai

import (
	"net/url"
	"strings"
	"time"
)

const verbListRecords = "ListRecords"

// Granularity is the datestamp precision a repository supports.
type Granularity int

const (
	GranularityDay Granularity = iota
	GranularitySecond
)

const (
	dayLayout    = "2006-01-02"
	secondLayout = "2006-01-02T15:04:05Z"
)

// ParseGranularity reads the granularity a repository advertises in Identify.
// Anything that is not second precision is treated as day precision.
func ParseGranularity(s string) Granularity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yyyy-mm-ddthh:mm:ssz", "second":
		return GranularitySecond
	}
	return GranularityDay
}

func (g Granularity) String() string {
	if g == GranularitySecond {
		return "second"
	}
	return "day"
}

// FormatDate formats t for a from/until argument. Second granularity is always
// expressed in UTC.
func FormatDate(g Granularity, t time.Time) string {
	if g == GranularitySecond {
		return t.UTC().Format(secondLayout)
	}
	return t.Format(dayLayout)
}

// Request describes the first ListRecords request of a harvest.
type Request struct {
	BaseURL        string
	MetadataPrefix string
	Set            string
	From           *time.Time
	Until          *time.Time
	Granularity    Granularity
}

// URL returns the literal request string.
func (r Request) URL() string {
	var b strings.Builder
	b.WriteString(r.BaseURL)
	b.WriteString(separator(r.BaseURL))
	b.WriteString("verb=" + verbListRecords)
	b.WriteString("&metadataPrefix=" + r.MetadataPrefix)
	if r.Set != "" {
		b.WriteString("&set=" + url.QueryEscape(r.Set))
	}
	if r.From != nil {
		b.WriteString("&from=" + FormatDate(r.Granularity, *r.From))
	}
	if r.Until != nil {
		b.WriteString("&until=" + FormatDate(r.Granularity, *r.Until))
	}
	return b.String()
}

// ResumeURL returns the request string continuing a harvest from token.
func ResumeURL(baseURL, token string) string {
	return baseURL + separator(baseURL) + "verb=" + verbListRecords + "&resumptionToken=" + url.QueryEscape(token)
}

func separator(baseURL string) string {
	if strings.Contains(baseURL, "?") {
		return "&"
	}
	return "?"
}
