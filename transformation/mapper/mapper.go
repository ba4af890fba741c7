// Package mapper converts MARC records into FRBR-leveled XC records.
package mapper

import (
	"strings"

	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/CMSgov/xc-harvester/transformation/xc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config configures a Mapper.
type Config struct {
	// OrgCode is the local authority prefix. $0 values carrying it map to
	// xcauth identifiers.
	OrgCode string `conf:"XC_ORG_CODE" conf_default:"NyRoU"`
}

// Mapper transforms MARC records. It holds no per-record state and can be
// shared; each Transform call uses its own state.
type Mapper struct {
	orgCode string
	log     logrus.FieldLogger
}

// state is the scratch space of one Transform call.
type state struct {
	rec *marc.Record
	out *xc.AggregateXCRecord

	// xc:creator elements from 959, keyed by linking tag.
	linkedCreators map[string]xc.Element
	// Sequence used to synthesize linking tags for fields without $8.
	artificialLinkingID int
}

func New(cfg Config, logger logrus.FieldLogger) *Mapper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Mapper{orgCode: cfg.OrgCode, log: logger}
}

// Transform maps rec into a new AggregateXCRecord.
func (m *Mapper) Transform(rec *marc.Record) (*xc.AggregateXCRecord, error) {
	if rec == nil {
		return nil, errors.New("cannot transform a nil MARC record")
	}
	if len(rec.Leader) < 9 {
		return nil, errors.Errorf("invalid MARC leader %q", rec.Leader)
	}

	s := &state{
		rec:                 rec,
		out:                 xc.New(),
		linkedCreators:      map[string]xc.Element{},
		artificialLinkingID: 1,
	}

	if rec.IsHoldings() {
		m.holdingsRecord(s)
	} else {
		m.bibRecord(s)
	}

	m.log.WithFields(logrus.Fields{
		"holdings": rec.IsHoldings(),
		"elements": s.out.Len(),
		"linked":   len(s.out.LinkedWorks()),
	}).Debug("Transformed MARC record")

	return s.out, nil
}

// TransformXML parses a single MARCXML record and transforms it.
func (m *Mapper) TransformXML(payload []byte) (*xc.AggregateXCRecord, error) {
	rec, err := marc.Parse(payload)
	if err != nil {
		return nil, err
	}
	return m.Transform(rec)
}

func (m *Mapper) bibRecord(s *state) {
	m.controlNumbers(s)
	for _, r := range bibRules {
		m.apply(s, r)
	}
	for _, r := range musicNumberRules {
		m.apply(s, r)
	}
	m.creators(s)
	m.uniformTitles(s)

	// 959 feeds the linked works built from 700-730.
	m.cacheLinkedCreators(s)
	m.addedEntries(s)
	m.uniformTitleAddedEntries(s)

	m.bibHoldings(s)
	m.electronicLocations(s)
	m.localHoldings(s)
}

func trim(s string) string {
	return strings.TrimSpace(s)
}

func joinValues(values []string) string {
	return trim(strings.Join(values, " "))
}
