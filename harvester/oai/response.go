package oai

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CodeNoRecordsMatch is the OAI-PMH error code for an empty result.
const CodeNoRecordsMatch = "noRecordsMatch"

// ProtocolError is an <error> element returned by the repository.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("OAI provider returned error %s: %s", e.Code, e.Message)
}

// MalformedResponseError reports a response that is neither a record list nor
// an empty-result echo.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response to the ListRecords request: %s: %s", e.Reason, e.Err)
	}
	return "invalid response to the ListRecords request: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Record is one <record> envelope.
type Record struct {
	Identifier string
	// Datestamp is nil when absent or unparseable.
	Datestamp *time.Time
	Deleted   bool
	// Metadata is the raw content of <metadata>.
	Metadata []byte
	SetSpecs []string
}

// ResumptionToken continues a harvest. A response whose token is empty carries
// no ResumptionToken at all.
type ResumptionToken struct {
	Value string
	// CompleteListSize is -1 when the repository did not report it.
	CompleteListSize int
}

// Page is one parsed ListRecords response.
type Page struct {
	// RequestURL is the literal request that produced the page.
	RequestURL string
	Records    []Record
	Token      *ResumptionToken
	// NoRecords is set when the repository echoed the request without records
	// or answered noRecordsMatch.
	NoRecords bool
}

type document struct {
	Error       *errorElement `xml:"error"`
	Request     *string       `xml:"request"`
	RequestURL  *string       `xml:"requestURL"`
	ListRecords *listRecords  `xml:"ListRecords"`

	// Some repositories answer with ListRecords as the document element.
	Records []recordElement `xml:"record"`
	Token   *tokenElement   `xml:"resumptionToken"`
}

type errorElement struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type listRecords struct {
	Records    []recordElement `xml:"record"`
	Token      *tokenElement   `xml:"resumptionToken"`
	RequestURL *string         `xml:"requestURL"`
}

type recordElement struct {
	Header struct {
		Status     string   `xml:"status,attr"`
		Identifier string   `xml:"identifier"`
		Datestamp  string   `xml:"datestamp"`
		SetSpecs   []string `xml:"setSpec"`
	} `xml:"header"`
	Metadata *struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"metadata"`
}

type tokenElement struct {
	Value            string `xml:",chardata"`
	CompleteListSize string `xml:"completeListSize,attr"`
}

// Parse reads one ListRecords response. Protocol errors other than
// noRecordsMatch are returned as *ProtocolError; a response with neither
// records nor a request echo is a *MalformedResponseError.
func Parse(data []byte, logger logrus.FieldLogger) (*Page, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedResponseError{Reason: "unparseable XML", Err: err}
	}

	if doc.Error != nil {
		code := strings.TrimSpace(doc.Error.Code)
		if code == CodeNoRecordsMatch {
			return &Page{NoRecords: true}, nil
		}
		return nil, &ProtocolError{Code: code, Message: strings.TrimSpace(doc.Error.Message)}
	}

	records, token, echoed := doc.Records, doc.Token, doc.Request != nil || doc.RequestURL != nil
	if lr := doc.ListRecords; lr != nil {
		records = lr.Records
		if lr.Token != nil {
			token = lr.Token
		}
		echoed = echoed || lr.RequestURL != nil
	}

	if len(records) == 0 {
		if echoed {
			return &Page{NoRecords: true}, nil
		}
		return nil, &MalformedResponseError{Reason: "no records and no request echo"}
	}

	page := &Page{Records: make([]Record, 0, len(records))}
	for _, re := range records {
		page.Records = append(page.Records, re.toRecord(logger))
	}

	if token != nil {
		t, err := token.toToken()
		if err != nil {
			return nil, &MalformedResponseError{Reason: "bad completeListSize", Err: err}
		}
		page.Token = t
	}
	return page, nil
}

func (re recordElement) toRecord(logger logrus.FieldLogger) Record {
	r := Record{
		Identifier: strings.TrimSpace(re.Header.Identifier),
		Deleted:    strings.EqualFold(re.Header.Status, "deleted"),
	}
	for _, s := range re.Header.SetSpecs {
		if s = strings.TrimSpace(s); s != "" {
			r.SetSpecs = append(r.SetSpecs, s)
		}
	}
	if re.Metadata != nil {
		r.Metadata = bytes.TrimSpace(re.Metadata.Inner)
	}

	if ds := strings.TrimSpace(re.Header.Datestamp); ds != "" {
		t, err := ParseDatestamp(ds)
		if err != nil {
			logger.WithField("oai_id", r.Identifier).Warnf("Could not parse datestamp %q: %s", ds, err)
		} else {
			r.Datestamp = &t
		}
	}
	return r
}

func (te tokenElement) toToken() (*ResumptionToken, error) {
	value := strings.TrimSpace(te.Value)
	if value == "" {
		return nil, nil
	}
	t := &ResumptionToken{Value: value, CompleteListSize: -1}
	if s := strings.TrimSpace(te.CompleteListSize); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		t.CompleteListSize = n
	}
	return t, nil
}

// ParseDatestamp accepts UTC datestamps with or without the T separator and
// the Z suffix, and plain day datestamps.
func ParseDatestamp(s string) (time.Time, error) {
	s = strings.Replace(s, "T", " ", 1)
	s = strings.Replace(s, "t", " ", 1)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "Z"), "z")
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dayLayout, s)
	return t, errors.Wrap(err, "unrecognized datestamp")
}
