package models

import (
	"context"
	"errors"
	"time"
)

type Repository interface {
	ProviderRepository
	ScheduleRepository
	HarvestRepository
	SetRepository
	RecordRepository
	DirectiveRepository
}

type ProviderRepository interface {
	GetProvider(ctx context.Context, id int) (*Provider, error)

	// AddProviderCounts increments the provider's cumulative counts and
	// records the last run log message.
	AddProviderCounts(ctx context.Context, id int, delta ProviderCounts, logMessage string) error
}

type ScheduleRepository interface {
	GetSchedule(ctx context.Context, id int) (*HarvestSchedule, error)

	GetScheduleStep(ctx context.Context, id int) (*HarvestScheduleStep, error)

	UpdateScheduleStatus(ctx context.Context, id int, status Status) error

	UpdateStepLastRan(ctx context.Context, stepID int, lastRan time.Time) error
}

type HarvestRepository interface {
	CreateHarvest(ctx context.Context, h Harvest) error

	UpdateHarvest(ctx context.Context, h Harvest) error

	GetHarvest(ctx context.Context, id string) (*Harvest, error)
}

type SetRepository interface {
	GetSetBySpec(ctx context.Context, providerID int, setSpec string) (*Set, error)

	// CreateSet inserts s and fills in its ID.
	CreateSet(ctx context.Context, s *Set) error
}

// RecordRepository stores record identities and bodies.
type RecordRepository interface {
	GetRecordID(ctx context.Context, repoName, oaiID string) (int64, error)

	// GetPreviousStatus returns the stored status of a record. Deleted records
	// are reported as not found unless wantDeleted is set.
	GetPreviousStatus(ctx context.Context, repoName string, recordID int64, wantDeleted bool) (RecordStatus, error)

	// InjectID assigns a new internal id to r.
	InjectID(ctx context.Context, r *Record) error

	PopulateHarvestCache(ctx context.Context, repoName string, cache map[string]int64) error

	PopulatePreviousStatuses(ctx context.Context, repoName string, statuses map[int64]RecordStatus) error

	// SaveRecords inserts or replaces records by id.
	SaveRecords(ctx context.Context, records []Record) error
}

type DirectiveRepository interface {
	GetDirectivesByProvider(ctx context.Context, providerID int) ([]ProcessingDirective, error)
}

var (
	ErrRecordNotFound    = errors.New("no record found for given identifier")
	ErrHarvestNotFound   = errors.New("no harvest found for given id")
	ErrHarvestNotUpdated = errors.New("harvest was not updated, no match found")
	ErrSetNotFound       = errors.New("no set found for given spec")
)
