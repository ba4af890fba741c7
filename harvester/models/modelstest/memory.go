// Package modelstest provides an in-memory models.Repository for tests.
package modelstest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/CMSgov/xc-harvester/harvester/models"
)

var _ models.Repository = &Repository{}

// Repository keeps everything in maps. Errors set in Fail are returned by the
// method of the same name.
type Repository struct {
	mu sync.Mutex

	Providers  map[int]*models.Provider
	Schedules  map[int]*models.HarvestSchedule
	Steps      map[int]*models.HarvestScheduleStep
	Harvests   map[string]*models.Harvest
	Sets       map[string]*models.Set
	Records    map[int64]models.Record
	Directives []models.ProcessingDirective

	Fail  map[string]error
	Calls map[string]int

	nextRecordID int64
	nextSetID    int64
}

func NewRepository() *Repository {
	return &Repository{
		Providers: make(map[int]*models.Provider),
		Schedules: make(map[int]*models.HarvestSchedule),
		Steps:     make(map[int]*models.HarvestScheduleStep),
		Harvests:  make(map[string]*models.Harvest),
		Sets:      make(map[string]*models.Set),
		Records:   make(map[int64]models.Record),
		Fail:      make(map[string]error),
		Calls:     make(map[string]int),
	}
}

func (r *Repository) call(name string) error {
	r.Calls[name]++
	return r.Fail[name]
}

func (r *Repository) GetProvider(ctx context.Context, id int) (*models.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetProvider"); err != nil {
		return nil, err
	}
	p, ok := r.Providers[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *Repository) AddProviderCounts(ctx context.Context, id int, delta models.ProviderCounts, logMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("AddProviderCounts"); err != nil {
		return err
	}
	p, ok := r.Providers[id]
	if !ok {
		return models.ErrRecordNotFound
	}
	p.RecordsAdded += delta.Added
	p.RecordsUpdated += delta.Updated
	p.RecordsDeleted += delta.Deleted
	p.Errors += delta.Errors
	p.Warnings += delta.Warnings
	if logMessage != "" {
		p.LastLogMessage = logMessage
	}
	return nil
}

func (r *Repository) GetSchedule(ctx context.Context, id int) (*models.HarvestSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetSchedule"); err != nil {
		return nil, err
	}
	s, ok := r.Schedules[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *Repository) GetScheduleStep(ctx context.Context, id int) (*models.HarvestScheduleStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetScheduleStep"); err != nil {
		return nil, err
	}
	s, ok := r.Steps[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *Repository) UpdateScheduleStatus(ctx context.Context, id int, status models.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("UpdateScheduleStatus"); err != nil {
		return err
	}
	if s, ok := r.Schedules[id]; ok {
		s.Status = status
	}
	return nil
}

func (r *Repository) UpdateStepLastRan(ctx context.Context, stepID int, lastRan time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("UpdateStepLastRan"); err != nil {
		return err
	}
	if s, ok := r.Steps[stepID]; ok {
		s.LastRan = &lastRan
	}
	return nil
}

func (r *Repository) CreateHarvest(ctx context.Context, h models.Harvest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("CreateHarvest"); err != nil {
		return err
	}
	h.Counts = h.Counts.Clone()
	r.Harvests[h.ID.String()] = &h
	return nil
}

func (r *Repository) UpdateHarvest(ctx context.Context, h models.Harvest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("UpdateHarvest"); err != nil {
		return err
	}
	if _, ok := r.Harvests[h.ID.String()]; !ok {
		return models.ErrHarvestNotUpdated
	}
	h.Counts = h.Counts.Clone()
	r.Harvests[h.ID.String()] = &h
	return nil
}

func (r *Repository) GetHarvest(ctx context.Context, id string) (*models.Harvest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetHarvest"); err != nil {
		return nil, err
	}
	h, ok := r.Harvests[id]
	if !ok {
		return nil, models.ErrHarvestNotFound
	}
	cp := *h
	cp.Counts = h.Counts.Clone()
	return &cp, nil
}

func setKey(providerID int, spec string) string {
	return strconv.Itoa(providerID) + "|" + spec
}

func (r *Repository) GetSetBySpec(ctx context.Context, providerID int, setSpec string) (*models.Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetSetBySpec"); err != nil {
		return nil, err
	}
	s, ok := r.Sets[setKey(providerID, setSpec)]
	if !ok {
		return nil, models.ErrSetNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *Repository) CreateSet(ctx context.Context, s *models.Set) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("CreateSet"); err != nil {
		return err
	}
	r.nextSetID++
	s.ID = r.nextSetID
	cp := *s
	r.Sets[setKey(s.ProviderID, s.SetSpec)] = &cp
	return nil
}

func (r *Repository) GetRecordID(ctx context.Context, repoName, oaiID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetRecordID"); err != nil {
		return 0, err
	}
	for id, rec := range r.Records {
		if rec.Provider == repoName && rec.OAIIdentifier == oaiID {
			return id, nil
		}
	}
	return 0, models.ErrRecordNotFound
}

func (r *Repository) GetPreviousStatus(ctx context.Context, repoName string, recordID int64, wantDeleted bool) (models.RecordStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetPreviousStatus"); err != nil {
		return 0, err
	}
	rec, ok := r.Records[recordID]
	if !ok || rec.Provider != repoName || (!wantDeleted && rec.Status == models.RecordDeleted) {
		return 0, models.ErrRecordNotFound
	}
	return rec.Status, nil
}

func (r *Repository) InjectID(ctx context.Context, rec *models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("InjectID"); err != nil {
		return err
	}
	r.nextRecordID++
	rec.ID = r.nextRecordID
	return nil
}

func (r *Repository) PopulateHarvestCache(ctx context.Context, repoName string, cache map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("PopulateHarvestCache"); err != nil {
		return err
	}
	for id, rec := range r.Records {
		if rec.Provider == repoName {
			cache[rec.OAIIdentifier] = id
		}
	}
	return nil
}

func (r *Repository) PopulatePreviousStatuses(ctx context.Context, repoName string, statuses map[int64]models.RecordStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("PopulatePreviousStatuses"); err != nil {
		return err
	}
	for id, rec := range r.Records {
		if rec.Provider == repoName {
			statuses[id] = rec.Status
		}
	}
	return nil
}

func (r *Repository) SaveRecords(ctx context.Context, records []models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("SaveRecords"); err != nil {
		return err
	}
	for _, rec := range records {
		if rec.ID > r.nextRecordID {
			r.nextRecordID = rec.ID
		}
		r.Records[rec.ID] = rec
	}
	return nil
}

func (r *Repository) GetDirectivesByProvider(ctx context.Context, providerID int) ([]models.ProcessingDirective, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.call("GetDirectivesByProvider"); err != nil {
		return nil, err
	}
	var out []models.ProcessingDirective
	for _, d := range r.Directives {
		if d.SourceProviderID == providerID {
			out = append(out, d)
		}
	}
	return out, nil
}

// RecordIDs returns the stored record ids in ascending order.
func (r *Repository) RecordIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.Records))
	for id := range r.Records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CallCount returns how often method was called.
func (r *Repository) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Calls[method]
}
