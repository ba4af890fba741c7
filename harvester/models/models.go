// Package models holds the harvest data model shared by the harvester, its
// repositories and the control API.
package models

import (
	"strings"
	"time"

	"github.com/pborman/uuid"
)

// Status is the state of a schedule and of a harvest run.
type Status string

const (
	StatusNotRunning Status = "NOT_RUNNING"
	StatusRunning    Status = "RUNNING"
	StatusPaused     Status = "PAUSED"
	StatusError      Status = "ERROR"
	StatusCanceled   Status = "CANCELED"
	StatusCompleted  Status = "COMPLETED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusError || s == StatusCanceled || s == StatusCompleted
}

// RecordStatus is the previous processing status of a harvested record.
type RecordStatus byte

const (
	RecordActive  RecordStatus = 'A'
	RecordDeleted RecordStatus = 'D'
	RecordHeld    RecordStatus = 'H'
)

type Provider struct {
	ID      int
	Name    string
	BaseURL string
	// Granularity as advertised by Identify, e.g. YYYY-MM-DD.
	Granularity string
	// RepositoryIdentifier is the namespace of the provider's OAI identifiers
	// (oai:<RepositoryIdentifier>:<local id>).
	RepositoryIdentifier string
	// Formats and Sets are the metadata prefixes and set specs the provider
	// advertised when it was last validated.
	Formats []string
	Sets    []string

	RecordsAdded   int
	RecordsUpdated int
	RecordsDeleted int
	Errors         int
	Warnings       int
	LastLogMessage string
}

func (p Provider) SupportsFormat(format string) bool {
	return contains(p.Formats, format)
}

func (p Provider) SupportsSet(setSpec string) bool {
	return contains(p.Sets, setSpec)
}

// SetPrefix is prepended to every set spec harvested from the provider.
func (p Provider) SetPrefix() string {
	return strings.ReplaceAll(p.Name, " ", "-")
}

// ProviderCounts is added to a provider's cumulative counts at the end of a run.
type ProviderCounts struct {
	Added, Updated, Deleted, Errors, Warnings int
}

type HarvestSchedule struct {
	ID         int
	Name       string
	ProviderID int
	Status     Status
	Notify     string
}

// HarvestScheduleStep is one (format, set) pair of a schedule.
type HarvestScheduleStep struct {
	ID         int
	ScheduleID int
	Format     string
	SetSpec    string
	LastRan    *time.Time
}

// Harvest is one execution of a schedule step.
type Harvest struct {
	ID         uuid.UUID
	StepID     int
	ProviderID int
	StartTime  time.Time
	EndTime    *time.Time
	// Request is the literal OAI request last sent.
	Request string
	Status  Status
	Counts  Counts
}

// TypeCounts are the incremental counts of one set classification.
type TypeCounts struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	// Deleted is the part of Updated that marked a record deleted.
	Deleted int `json:"deleted"`
}

// Counts are owned by one harvest run.
type Counts struct {
	// Processed is the flat running total of records handled.
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	// CompleteListSize is the total advertised by the provider, -1 if unknown.
	CompleteListSize int `json:"complete_list_size"`

	Totals TypeCounts `json:"totals"`
	// BySet splits the counts by the set specs the records belong to.
	BySet map[string]TypeCounts `json:"by_set,omitempty"`
}

func NewCounts() Counts {
	return Counts{CompleteListSize: -1, BySet: map[string]TypeCounts{}}
}

// Harvested is the number of records added or updated.
func (c Counts) Harvested() int {
	return c.Totals.Added + c.Totals.Updated
}

// Clone returns a copy that shares nothing with c.
func (c Counts) Clone() Counts {
	out := c
	out.BySet = make(map[string]TypeCounts, len(c.BySet))
	for k, v := range c.BySet {
		out.BySet[k] = v
	}
	return out
}

// Set is a node of a provider's set hierarchy.
type Set struct {
	ID          int64
	ProviderID  int
	SetSpec     string
	DisplayName string
	IsRecordSet bool
}

// Record is a harvested record as stored.
type Record struct {
	ID            int64
	Provider      string
	HarvestID     uuid.UUID
	OAIIdentifier string
	Datestamp     *time.Time
	Format        string
	Deleted       bool
	Status        RecordStatus
	XML           []byte
	Sets          []Set
	UpdatedAt     time.Time
}

// SetSpecs returns the specs of the sets the record belongs to.
func (r Record) SetSpecs() []string {
	out := make([]string, 0, len(r.Sets))
	for _, s := range r.Sets {
		out = append(out, s.SetSpec)
	}
	return out
}

// ProcessingDirective routes records harvested from a provider to a service.
// Empty Formats or Sets match everything.
type ProcessingDirective struct {
	ID               int
	SourceProviderID int
	Service          string
	Formats          []string
	Sets             []string
}

func (d ProcessingDirective) Matches(r Record) bool {
	if len(d.Formats) > 0 && !contains(d.Formats, r.Format) {
		return false
	}
	if len(d.Sets) == 0 {
		return true
	}
	for _, s := range r.Sets {
		if contains(d.Sets, s.SetSpec) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
