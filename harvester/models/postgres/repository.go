package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"github.com/pborman/uuid"
)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type executable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	sqlFlavor = sqlbuilder.PostgreSQL
)

// Ensure Repository satisfies the interface
var _ models.Repository = &Repository{}

type Repository struct {
	queryable
	executable
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db, db}
}

func NewRepositoryTx(tx *sql.Tx) *Repository {
	return &Repository{tx, tx}
}

func (r *Repository) GetProvider(ctx context.Context, id int) (*models.Provider, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "name", "base_url", "granularity", "repository_identifier", "formats", "sets",
		"records_added", "records_updated", "records_deleted", "errors", "warnings", "last_log_message")
	sb.From("providers").Where(sb.Equal("id", id))

	query, args := sb.Build()
	var (
		p                   models.Provider
		granularity, repoID sql.NullString
		lastLogMessage      sql.NullString
		formats, sets       pq.StringArray
	)
	err := r.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.Name, &p.BaseURL, &granularity, &repoID, &formats, &sets,
		&p.RecordsAdded, &p.RecordsUpdated, &p.RecordsDeleted, &p.Errors, &p.Warnings, &lastLogMessage)
	if err != nil {
		return nil, err
	}
	p.Granularity, p.RepositoryIdentifier, p.LastLogMessage = granularity.String, repoID.String, lastLogMessage.String
	p.Formats, p.Sets = formats, sets
	return &p, nil
}

func (r *Repository) AddProviderCounts(ctx context.Context, id int, delta models.ProviderCounts, logMessage string) error {
	ub := sqlFlavor.NewUpdateBuilder().Update("providers")
	ub.Set(
		ub.Add("records_added", delta.Added),
		ub.Add("records_updated", delta.Updated),
		ub.Add("records_deleted", delta.Deleted),
		ub.Add("errors", delta.Errors),
		ub.Add("warnings", delta.Warnings),
	)
	if logMessage != "" {
		ub.SetMore(ub.Assign("last_log_message", logMessage))
	}
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	_, err := r.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) GetSchedule(ctx context.Context, id int) (*models.HarvestSchedule, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "name", "provider_id", "status", "notify").From("harvest_schedules").Where(sb.Equal("id", id))

	query, args := sb.Build()
	var (
		s      models.HarvestSchedule
		notify sql.NullString
	)
	if err := r.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.Name, &s.ProviderID, &s.Status, &notify); err != nil {
		return nil, err
	}
	s.Notify = notify.String
	return &s, nil
}

func (r *Repository) GetScheduleStep(ctx context.Context, id int) (*models.HarvestScheduleStep, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "schedule_id", "format", "set_spec", "last_ran").From("harvest_schedule_steps").Where(sb.Equal("id", id))

	query, args := sb.Build()
	var (
		s       models.HarvestScheduleStep
		setSpec sql.NullString
		lastRan sql.NullTime
	)
	if err := r.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.ScheduleID, &s.Format, &setSpec, &lastRan); err != nil {
		return nil, err
	}
	s.SetSpec = setSpec.String
	if lastRan.Valid {
		s.LastRan = &lastRan.Time
	}
	return &s, nil
}

func (r *Repository) UpdateScheduleStatus(ctx context.Context, id int, status models.Status) error {
	ub := sqlFlavor.NewUpdateBuilder().Update("harvest_schedules")
	ub.Set(ub.Assign("status", status)).Where(ub.Equal("id", id))

	query, args := ub.Build()
	_, err := r.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) UpdateStepLastRan(ctx context.Context, stepID int, lastRan time.Time) error {
	ub := sqlFlavor.NewUpdateBuilder().Update("harvest_schedule_steps")
	ub.Set(ub.Assign("last_ran", lastRan)).Where(ub.Equal("id", stepID))

	query, args := ub.Build()
	_, err := r.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) CreateHarvest(ctx context.Context, h models.Harvest) error {
	counts, err := json.Marshal(h.Counts)
	if err != nil {
		return err
	}
	ib := sqlFlavor.NewInsertBuilder().InsertInto("harvests")
	ib.Cols("id", "step_id", "provider_id", "start_time", "request", "status", "counts").
		Values(h.ID.String(), h.StepID, h.ProviderID, h.StartTime, h.Request, h.Status, counts)

	query, args := ib.Build()
	_, err = r.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) UpdateHarvest(ctx context.Context, h models.Harvest) error {
	counts, err := json.Marshal(h.Counts)
	if err != nil {
		return err
	}
	ub := sqlFlavor.NewUpdateBuilder().Update("harvests")
	ub.Set(
		ub.Assign("end_time", h.EndTime),
		ub.Assign("request", h.Request),
		ub.Assign("status", h.Status),
		ub.Assign("counts", counts),
	)
	ub.Where(ub.Equal("id", h.ID.String()))

	query, args := ub.Build()
	result, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return models.ErrHarvestNotUpdated
	}

	return nil
}

func (r *Repository) GetHarvest(ctx context.Context, id string) (*models.Harvest, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "step_id", "provider_id", "start_time", "end_time", "request", "status", "counts")
	sb.From("harvests").Where(sb.Equal("id", id))

	query, args := sb.Build()
	var (
		h         models.Harvest
		harvestID string
		endTime   sql.NullTime
		request   sql.NullString
		counts    []byte
	)
	err := r.QueryRowContext(ctx, query, args...).Scan(&harvestID, &h.StepID, &h.ProviderID, &h.StartTime, &endTime,
		&request, &h.Status, &counts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrHarvestNotFound
		}
		return nil, err
	}
	h.ID, h.Request = uuid.Parse(harvestID), request.String
	if endTime.Valid {
		h.EndTime = &endTime.Time
	}
	h.Counts = models.NewCounts()
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &h.Counts); err != nil {
			return nil, err
		}
	}
	return &h, nil
}

func (r *Repository) GetSetBySpec(ctx context.Context, providerID int, setSpec string) (*models.Set, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "provider_id", "set_spec", "display_name", "is_record_set").From("sets")
	sb.Where(sb.Equal("provider_id", providerID), sb.Equal("set_spec", setSpec))

	query, args := sb.Build()
	var s models.Set
	err := r.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.ProviderID, &s.SetSpec, &s.DisplayName, &s.IsRecordSet)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSetNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repository) CreateSet(ctx context.Context, s *models.Set) error {
	ib := sqlFlavor.NewInsertBuilder().InsertInto("sets")
	ib.Cols("provider_id", "set_spec", "display_name", "is_record_set").
		Values(s.ProviderID, s.SetSpec, s.DisplayName, s.IsRecordSet)

	query, args := ib.Build()
	return r.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&s.ID)
}

func (r *Repository) GetRecordID(ctx context.Context, repoName, oaiID string) (int64, error) {
	sb := sqlFlavor.NewSelectBuilder().Select("id").From("records")
	sb.Where(sb.Equal("provider", repoName), sb.Equal("oai_id", oaiID))

	query, args := sb.Build()
	var id int64
	if err := r.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrRecordNotFound
		}
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetPreviousStatus(ctx context.Context, repoName string, recordID int64, wantDeleted bool) (models.RecordStatus, error) {
	sb := sqlFlavor.NewSelectBuilder().Select("status").From("records")
	sb.Where(sb.Equal("provider", repoName), sb.Equal("id", recordID))
	if !wantDeleted {
		sb.Where(sb.NotEqual("status", string(models.RecordDeleted)))
	}

	query, args := sb.Build()
	var status string
	if err := r.QueryRowContext(ctx, query, args...).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrRecordNotFound
		}
		return 0, err
	}
	if status == "" {
		return 0, models.ErrRecordNotFound
	}
	return models.RecordStatus(status[0]), nil
}

func (r *Repository) InjectID(ctx context.Context, rec *models.Record) error {
	return r.QueryRowContext(ctx, "SELECT nextval('records_id_seq')").Scan(&rec.ID)
}

func (r *Repository) PopulateHarvestCache(ctx context.Context, repoName string, cache map[string]int64) error {
	sb := sqlFlavor.NewSelectBuilder().Select("oai_id", "id").From("records")
	sb.Where(sb.Equal("provider", repoName))

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			oaiID string
			id    int64
		)
		if err := rows.Scan(&oaiID, &id); err != nil {
			return err
		}
		cache[oaiID] = id
	}
	return rows.Err()
}

func (r *Repository) PopulatePreviousStatuses(ctx context.Context, repoName string, statuses map[int64]models.RecordStatus) error {
	sb := sqlFlavor.NewSelectBuilder().Select("id", "status").From("records")
	sb.Where(sb.Equal("provider", repoName))

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     int64
			status string
		)
		if err := rows.Scan(&id, &status); err != nil {
			return err
		}
		if status != "" {
			statuses[id] = models.RecordStatus(status[0])
		}
	}
	return rows.Err()
}

const upsertRecord = ` ON CONFLICT (id) DO UPDATE SET harvest_id = EXCLUDED.harvest_id, datestamp = EXCLUDED.datestamp, ` +
	`format = EXCLUDED.format, deleted = EXCLUDED.deleted, status = EXCLUDED.status, xml = EXCLUDED.xml, updated_at = EXCLUDED.updated_at`

func (r *Repository) SaveRecords(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	ib := sqlFlavor.NewInsertBuilder().InsertInto("records")
	ib.Cols("id", "provider", "harvest_id", "oai_id", "datestamp", "format", "deleted", "status", "xml", "updated_at")
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ib.Values(rec.ID, rec.Provider, rec.HarvestID.String(), rec.OAIIdentifier, rec.Datestamp, rec.Format,
			rec.Deleted, string(rec.Status), string(rec.XML), rec.UpdatedAt)
		ids = append(ids, rec.ID)
	}
	query, args := ib.Build()
	if _, err := r.ExecContext(ctx, query+upsertRecord, args...); err != nil {
		return err
	}

	db := sqlFlavor.NewDeleteBuilder().DeleteFrom("record_sets")
	db.Where("record_id = ANY(" + db.Var(pq.Array(ids)) + ")")
	query, args = db.Build()
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	links := sqlFlavor.NewInsertBuilder().InsertInto("record_sets")
	links.Cols("record_id", "set_id")
	var n int
	for _, rec := range records {
		for _, s := range rec.Sets {
			links.Values(rec.ID, s.ID)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	query, args = links.Build()
	_, err := r.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) GetDirectivesByProvider(ctx context.Context, providerID int) ([]models.ProcessingDirective, error) {
	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("id", "source_provider_id", "service", "formats", "sets").From("processing_directives")
	sb.Where(sb.Equal("source_provider_id", providerID)).OrderBy("id")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var directives []models.ProcessingDirective
	for rows.Next() {
		var (
			d             models.ProcessingDirective
			formats, sets pq.StringArray
		)
		if err := rows.Scan(&d.ID, &d.SourceProviderID, &d.Service, &formats, &sets); err != nil {
			return nil, err
		}
		d.Formats, d.Sets = formats, sets
		directives = append(directives, d)
	}
	return directives, rows.Err()
}
