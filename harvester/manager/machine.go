// Package manager runs harvests: one Machine pulls every page of one schedule
// step from an OAI-PMH source and hands the records to a Sink.
package manager

import (
	"context"
	goerrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CMSgov/xc-harvester/conf"
	"github.com/CMSgov/xc-harvester/harvester/identity"
	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/CMSgov/xc-harvester/harvester/notify"
	"github.com/CMSgov/xc-harvester/harvester/oai"
	"github.com/CMSgov/xc-harvester/harvester/sets"
	workerlog "github.com/CMSgov/xc-harvester/harvestworker/log"
	"github.com/CMSgov/xc-harvester/metrics"
	"github.com/jinzhu/now"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// LargeThreshold is the completeListSize at which the identity cache is
	// warmed from storage.
	LargeThreshold int           `conf:"HARVEST_LARGE_THRESHOLD" conf_default:"10000"`
	PausePoll      time.Duration `conf:"HARVEST_PAUSE_POLL" conf_default:"3s"`
	// CommitInterval is the number of records between commits. Zero commits
	// once per page.
	CommitInterval int `conf:"HARVEST_COMMIT_INTERVAL" conf_default:"0"`
	// MaxRequests caps the pages fetched by a run. Zero is unlimited.
	MaxRequests int `conf:"HARVEST_MAX_REQUESTS" conf_default:"0"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := conf.Checkout(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to load harvest configuration")
	}
	if cfg.PausePoll <= 0 {
		return Config{}, errors.Errorf("HARVEST_PAUSE_POLL must be positive, got %s", cfg.PausePoll)
	}
	return cfg, nil
}

// Sink receives harvested records.
type Sink interface {
	AddRecord(ctx context.Context, r models.Record) error

	// CommitIfNecessary makes the records added so far durable when force is
	// set or the sink's own batch limit is reached, and reports whether it
	// committed.
	CommitIfNecessary(ctx context.Context, force bool, sinceLastCommit int, counts models.Counts, cursor string) (bool, error)
}

// SourceFactory opens the page source for a provider.
type SourceFactory func(p models.Provider) (oai.PageSource, error)

// SinkFactory opens the sink receiving a provider's records.
type SinkFactory func(p models.Provider) (Sink, error)

type Deps struct {
	Repository models.Repository
	Source     SourceFactory
	Sink       SinkFactory
	Notifier   notify.Notifier
	Logger     logrus.FieldLogger
}

// maxReportLines bounds the warnings kept for the report.
const maxReportLines = 100

// Machine is the state machine of one harvest run. Pause, Resume and Kill may
// be called from any goroutine; Run is called once.
type Machine struct {
	id   uuid.UUID
	cfg  Config
	deps Deps
	now  func() time.Time

	started int32
	paused  int32
	killed  int32

	mu      sync.RWMutex
	status  models.Status
	counts  models.Counts
	request string
}

func New(deps Deps, cfg Config) *Machine {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Machine{
		id:     uuid.NewRandom(),
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		status: models.StatusNotRunning,
		counts: models.NewCounts(),
	}
}

func (m *Machine) ID() uuid.UUID {
	return m.id
}

// Pause asks the run to stop at its next checkpoint until Resume is called.
func (m *Machine) Pause() {
	atomic.StoreInt32(&m.paused, 1)
}

func (m *Machine) Resume() {
	atomic.StoreInt32(&m.paused, 0)
}

// Kill ends the run at its next checkpoint, paused or not.
func (m *Machine) Kill() {
	atomic.StoreInt32(&m.killed, 1)
}

func (m *Machine) Status() models.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Progress is a point-in-time view of a run.
type Progress struct {
	ID      string        `json:"id"`
	Status  models.Status `json:"status"`
	Request string        `json:"request"`
	Counts  models.Counts `json:"counts"`
}

func (m *Machine) Progress() Progress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Progress{ID: m.id.String(), Status: m.status, Request: m.request, Counts: m.counts.Clone()}
}

func (m *Machine) setStatus(s models.Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Machine) setRequest(r string) {
	m.mu.Lock()
	m.request = r
	m.mu.Unlock()
}

func (m *Machine) lastRequest() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.request
}

func (m *Machine) updateCounts(f func(c *models.Counts)) {
	m.mu.Lock()
	f(&m.counts)
	m.mu.Unlock()
}

func (m *Machine) snapshot() models.Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts.Clone()
}

// run is the state scoped to one execution.
type run struct {
	schedule *models.HarvestSchedule
	step     *models.HarvestScheduleStep
	provider *models.Provider
	harvest  models.Harvest
	source   oai.PageSource
	sink     Sink
	cache    *identity.Cache
	sets     *sets.Resolver
	log      logrus.FieldLogger

	sinceCommit int
	cursor      string
	sawToken    bool
	warnings    []string
}

func (r *run) warn(msg string) {
	r.log.Warn(msg)
	if len(r.warnings) < maxReportLines {
		r.warnings = append(r.warnings, msg)
	}
}

// Run harvests one step of a schedule. A killed run returns nil and ends
// CANCELED; any other failure ends the run in ERROR and is returned.
func (m *Machine) Run(ctx context.Context, scheduleID, stepID int) error {
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return errors.New("harvest already started")
	}

	ctx, closeTxn := metrics.NewParent(ctx, "harvest")
	defer closeTxn()

	r, err := m.prepare(ctx, scheduleID, stepID)
	if err != nil {
		m.setStatus(models.StatusError)
		return err
	}

	err = m.start(ctx, r)
	if err == nil {
		err = m.harvest(ctx, r)
	}
	return m.finish(ctx, r, err)
}

func (m *Machine) prepare(ctx context.Context, scheduleID, stepID int) (*run, error) {
	repo := m.deps.Repository

	schedule, err := repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not retrieve schedule %d", scheduleID)
	}
	step, err := repo.GetScheduleStep(ctx, stepID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not retrieve schedule step %d", stepID)
	}
	if step.ScheduleID != schedule.ID {
		return nil, errors.Errorf("step %d does not belong to schedule %d", step.ID, schedule.ID)
	}
	provider, err := repo.GetProvider(ctx, schedule.ProviderID)
	if err != nil {
		return nil, errors.Wrapf(err, "could not retrieve provider %d", schedule.ProviderID)
	}

	ctx = workerlog.WithLogFields(ctx, logrus.Fields{
		"harvest_id": m.id.String(),
		"schedule":   schedule.Name,
		"provider":   provider.Name,
	})

	return &run{
		schedule: schedule,
		step:     step,
		provider: provider,
		harvest: models.Harvest{
			ID:         m.id,
			StepID:     step.ID,
			ProviderID: provider.ID,
			StartTime:  m.now(),
			Status:     models.StatusRunning,
			Counts:     models.NewCounts(),
		},
		cache: identity.New(provider.Name, provider.RepositoryIdentifier, repo, m.deps.Logger),
		sets:  sets.NewResolver(*provider, repo),
		log:   workerlog.Entry(ctx, m.deps.Logger),
	}, nil
}

func (m *Machine) start(ctx context.Context, r *run) error {
	if err := m.deps.Repository.CreateHarvest(ctx, r.harvest); err != nil {
		return errors.Wrap(err, "could not create harvest")
	}
	m.setStatus(models.StatusRunning)
	m.setScheduleStatus(ctx, r, models.StatusRunning)

	if err := validate(*r.provider, *r.step); err != nil {
		return err
	}

	source, err := m.deps.Source(*r.provider)
	if err != nil {
		return errors.Wrap(err, "could not open harvest source")
	}
	r.source = source

	sink, err := m.deps.Sink(*r.provider)
	if err != nil {
		return errors.Wrap(err, "could not open record sink")
	}
	r.sink = sink

	r.log.Infof("Harvest started: format=%s set=%q", r.step.Format, r.step.SetSpec)
	return nil
}

func validate(p models.Provider, step models.HarvestScheduleStep) error {
	if !p.SupportsFormat(step.Format) {
		return &ValidationError{Msg: fmt.Sprintf("provider %s no longer supports format %s", p.Name, step.Format)}
	}
	if step.SetSpec != "" && !p.SupportsSet(step.SetSpec) {
		return &ValidationError{Msg: fmt.Sprintf("provider %s no longer supports set %s", p.Name, step.SetSpec)}
	}
	return nil
}

// firstRequest bounds the run by the step's last successful run and the start
// of this one. Day granularity cannot express part of a day, so from is
// widened to the start of that day.
func (m *Machine) firstRequest(r *run) oai.Request {
	g := oai.ParseGranularity(r.provider.Granularity)
	until := r.harvest.StartTime
	req := oai.Request{
		BaseURL:        r.provider.BaseURL,
		MetadataPrefix: r.step.Format,
		Set:            r.step.SetSpec,
		Until:          &until,
		Granularity:    g,
	}
	if r.step.LastRan != nil {
		from := *r.step.LastRan
		if g == oai.GranularityDay {
			from = now.With(from).BeginningOfDay()
		}
		req.From = &from
	}
	return req
}

// harvest is the request loop. The sink is flushed when it returns, whatever
// the outcome.
func (m *Machine) harvest(ctx context.Context, r *run) (err error) {
	defer func() {
		if ferr := m.commit(ctx, r, true); ferr != nil {
			if err == nil {
				err = ferr
			} else {
				r.log.Errorf("Final commit failed: %s", ferr)
			}
		}
	}()

	req := m.firstRequest(r)
	token := ""
	for requests := 0; ; requests++ {
		if err := m.checkSignal(ctx, r); err != nil {
			return err
		}
		if m.cfg.MaxRequests > 0 && requests >= m.cfg.MaxRequests {
			r.warn(fmt.Sprintf("Stopped after %d requests (HARVEST_MAX_REQUESTS)", requests))
			return nil
		}

		page, err := m.fetch(ctx, r, req, token)
		if err != nil {
			return err
		}

		if err := m.processPage(ctx, r, page); err != nil {
			return err
		}

		if m.cfg.CommitInterval <= 0 {
			if err := m.commit(ctx, r, true); err != nil {
				return err
			}
		}

		r.harvest.Request = m.lastRequest()
		r.harvest.Counts = m.snapshot()
		if err := m.deps.Repository.UpdateHarvest(ctx, r.harvest); err != nil {
			r.log.Warnf("Failed to record harvest progress: %s", err)
		}

		if page.Token == nil || page.Token.Value == "" {
			r.log.Infof("Harvest finished after %d requests", requests+1)
			return nil
		}
		token = page.Token.Value
		r.cursor = token
	}
}

func (m *Machine) fetch(ctx context.Context, r *run, req oai.Request, token string) (*oai.Page, error) {
	defer metrics.NewChild(ctx, "fetch page")()

	var (
		page *oai.Page
		err  error
	)
	if token == "" {
		m.setRequest(req.URL())
		page, err = r.source.First(ctx, req)
	} else {
		m.setRequest(oai.ResumeURL(r.provider.BaseURL, token))
		page, err = r.source.Next(ctx, token)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "request %s failed", m.lastRequest())
	}
	if page.RequestURL != "" {
		m.setRequest(page.RequestURL)
	}
	return page, nil
}

func (m *Machine) processPage(ctx context.Context, r *run, page *oai.Page) error {
	defer metrics.NewChild(ctx, "ingest page")()

	if page.NoRecords {
		r.log.Info("No records matched the request")
	}

	if page.Token != nil {
		first := !r.sawToken
		r.sawToken = true
		if size := page.Token.CompleteListSize; size >= 0 {
			m.updateCounts(func(c *models.Counts) { c.CompleteListSize = size })
			// Only the first resumption token decides whether the harvest is large.
			if first && size >= m.cfg.LargeThreshold && !r.cache.Warmed() {
				if err := r.cache.Warm(ctx, size); err != nil {
					return err
				}
			}
		}
	}

	for _, rec := range page.Records {
		if err := m.checkSignal(ctx, r); err != nil {
			return err
		}

		err := m.ingest(ctx, r, rec)
		m.updateCounts(func(c *models.Counts) { c.Processed++ })

		var fault *InternalFault
		switch {
		case err == nil:
		case goerrors.As(err, &fault):
			if fault.RequestURL == "" {
				fault.RequestURL = m.lastRequest()
			}
			return fault
		default:
			m.updateCounts(func(c *models.Counts) { c.Failed++ })
			r.warn(err.Error())
			continue
		}

		r.sinceCommit++
		if m.cfg.CommitInterval > 0 {
			if err := m.commit(ctx, r, r.sinceCommit >= m.cfg.CommitInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

// ingest stores one record. Failures are returned as *RecordError unless they
// are internal faults.
func (m *Machine) ingest(ctx context.Context, r *run, rec oai.Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &InternalFault{RequestURL: m.lastRequest(), Err: errors.Errorf("panic while ingesting %s: %v", rec.Identifier, p)}
		}
	}()

	fail := func(cause error) error {
		var fault *InternalFault
		if goerrors.As(cause, &fault) {
			return cause
		}
		return &RecordError{OAIIdentifier: rec.Identifier, Err: cause}
	}

	memberOf, err := r.sets.Resolve(ctx, rec.SetSpecs)
	if err != nil {
		return fail(err)
	}
	id, found, err := r.cache.Lookup(ctx, rec.Identifier)
	if err != nil {
		return fail(err)
	}

	record := models.Record{
		ID:            id,
		Provider:      r.provider.Name,
		HarvestID:     m.id,
		OAIIdentifier: r.cache.Normalize(rec.Identifier),
		Datestamp:     rec.Datestamp,
		Format:        r.step.Format,
		Deleted:       rec.Deleted,
		Status:        models.RecordActive,
		XML:           rec.Metadata,
		Sets:          memberOf,
		UpdatedAt:     m.now(),
	}
	if rec.Deleted {
		record.Status = models.RecordDeleted
	}

	var outcome func(tc *models.TypeCounts)
	switch {
	case !found && rec.Deleted:
		r.log.WithField("oai_id", rec.Identifier).Debug("Deletion of a record never harvested")
		return nil
	case !found:
		if err := m.deps.Repository.InjectID(ctx, &record); err != nil {
			return fail(err)
		}
		outcome = func(tc *models.TypeCounts) { tc.Added++ }
	case rec.Deleted:
		prev, known, err := r.cache.PreviousStatus(ctx, id)
		if err != nil {
			return fail(err)
		}
		// A deletion is an update of the stored record. Deleted counts the
		// records that went from active to deleted.
		if known && prev == models.RecordDeleted {
			outcome = func(tc *models.TypeCounts) { tc.Updated++ }
		} else {
			outcome = func(tc *models.TypeCounts) { tc.Updated++; tc.Deleted++ }
		}
	default:
		outcome = func(tc *models.TypeCounts) { tc.Updated++ }
	}

	if err := r.sink.AddRecord(ctx, record); err != nil {
		return fail(err)
	}
	r.cache.Record(rec.Identifier, record.ID)
	r.cache.RecordStatus(record.ID, record.Status)

	m.updateCounts(func(c *models.Counts) {
		outcome(&c.Totals)
		for _, s := range memberOf {
			tc := c.BySet[s.SetSpec]
			outcome(&tc)
			c.BySet[s.SetSpec] = tc
		}
	})
	return nil
}

func (m *Machine) commit(ctx context.Context, r *run, force bool) error {
	if r.sinceCommit == 0 && !force {
		return nil
	}
	defer metrics.NewChild(ctx, "commit")()

	committed, err := r.sink.CommitIfNecessary(ctx, force, r.sinceCommit, m.snapshot(), r.cursor)
	if err != nil {
		return errors.Wrap(err, "commit failed")
	}
	if committed {
		r.sinceCommit = 0
	}
	return nil
}

// checkSignal returns ErrKilled once the run is killed and blocks while it is
// paused.
func (m *Machine) checkSignal(ctx context.Context, r *run) error {
	if atomic.LoadInt32(&m.killed) == 1 {
		return ErrKilled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if atomic.LoadInt32(&m.paused) == 0 {
		return nil
	}

	m.setStatus(models.StatusPaused)
	m.setScheduleStatus(ctx, r, models.StatusPaused)
	r.log.Info("Harvest paused")

	ticker := time.NewTicker(m.cfg.PausePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if atomic.LoadInt32(&m.killed) == 1 {
			return ErrKilled
		}
		if atomic.LoadInt32(&m.paused) == 0 {
			m.setStatus(models.StatusRunning)
			m.setScheduleStatus(ctx, r, models.StatusRunning)
			r.log.Info("Harvest resumed")
			return nil
		}
	}
}

func (m *Machine) setScheduleStatus(ctx context.Context, r *run, s models.Status) {
	if err := m.deps.Repository.UpdateScheduleStatus(ctx, r.schedule.ID, s); err != nil {
		r.log.Warnf("Failed to set schedule status to %s: %s", s, err)
	}
}

// finish records the outcome of a run and notifies the schedule's contacts.
// Failures here are logged and never replace runErr.
func (m *Machine) finish(ctx context.Context, r *run, runErr error) error {
	status := models.StatusCompleted
	killed := goerrors.Is(runErr, ErrKilled)
	switch {
	case killed:
		status = models.StatusCanceled
	case runErr != nil:
		status = models.StatusError
	}
	m.setStatus(status)

	// Bookkeeping must happen even if the run's context was canceled.
	bg := context.Background()

	counts := m.snapshot()
	end := m.now()
	r.harvest.EndTime = &end
	r.harvest.Status = status
	r.harvest.Counts = counts
	r.harvest.Request = m.lastRequest()
	if err := m.deps.Repository.UpdateHarvest(bg, r.harvest); err != nil {
		r.log.Errorf("Failed to record harvest end: %s", err)
	}

	scheduleStatus := status
	if status == models.StatusCompleted {
		scheduleStatus = models.StatusNotRunning
		if err := m.deps.Repository.UpdateStepLastRan(bg, r.step.ID, r.harvest.StartTime); err != nil {
			r.log.Errorf("Failed to record step last run: %s", err)
		}
	}
	m.setScheduleStatus(bg, r, scheduleStatus)

	if counts.CompleteListSize >= 0 && counts.CompleteListSize != counts.Processed && status == models.StatusCompleted {
		r.warn(fmt.Sprintf("Provider reported %d records but %d were processed", counts.CompleteListSize, counts.Processed))
	}

	var errs []string
	logMessage := fmt.Sprintf("Harvest %s: %d added, %d updated, %d deleted, %d failed",
		status, counts.Totals.Added, counts.Totals.Updated, counts.Totals.Deleted, counts.Failed)
	delta := models.ProviderCounts{
		Added:    counts.Totals.Added,
		Updated:  counts.Totals.Updated,
		Deleted:  counts.Totals.Deleted,
		Errors:   counts.Failed,
		Warnings: len(r.warnings),
	}
	switch {
	case killed:
		r.log.Info("Harvest manually terminated")
		runErr = nil
	case runErr != nil:
		delta.Errors++
		logMessage = fmt.Sprintf("Harvest failed: %s", runErr)
		errs = append(errs, runErr.Error())
		r.log.WithField("oai_request", m.lastRequest()).Error(logMessage)
	default:
		r.log.Info(logMessage)
	}
	if err := m.deps.Repository.AddProviderCounts(bg, r.provider.ID, delta, logMessage); err != nil {
		r.log.Errorf("Failed to update provider counts: %s", err)
	}

	if m.deps.Notifier != nil {
		report := notify.Report{
			Provider:   r.provider.Name,
			Schedule:   r.schedule.Name,
			RequestURL: m.lastRequest(),
			Status:     status,
			Killed:     killed,
			Counts:     counts,
			Warnings:   r.warnings,
			Errors:     errs,
		}
		if err := m.deps.Notifier.Send(bg, notify.Recipients(r.schedule.Notify), report.Subject(), report.Body()); err != nil {
			r.log.Errorf("Failed to send harvest report: %s", err)
		}
	}

	return runErr
}
