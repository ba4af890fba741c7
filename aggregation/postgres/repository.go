package postgres

import (
	"context"
	"database/sql"
	"sort"

	"github.com/CMSgov/xc-harvester/aggregation"
	"github.com/CMSgov/xc-harvester/aggregation/matchpoints"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const sqlFlavor = sqlbuilder.PostgreSQL

var _ aggregation.Repository = &Repository{}

type Repository struct {
	db  *sql.DB
	log logrus.FieldLogger
}

func NewRepository(db *sql.DB, logger logrus.FieldLogger) *Repository {
	return &Repository{db: db, log: logger}
}

// SaveMatchPoints replaces the match points of every record in batch. Values
// are bulk loaded with COPY in one transaction.
func (r *Repository) SaveMatchPoints(ctx context.Context, batch map[int64][]matchpoints.Point) error {
	if len(batch) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	byField := make(map[matchpoints.Field][]row)
	for _, id := range ids {
		for _, p := range batch[id] {
			byField[p.Field] = append(byField[p.Field], row{id, p})
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start match point transaction")
	}

	for _, f := range matchpoints.Fields {
		if err := r.replace(ctx, tx, f, ids, byField[f]); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Warnf("Failed to rollback match point transaction: %s", rbErr)
			}
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit match points")
	}
	return nil
}

func (r *Repository) replace(ctx context.Context, tx *sql.Tx, f matchpoints.Field, ids []int64, rows []row) error {
	db := sqlFlavor.NewDeleteBuilder().DeleteFrom(f.Table())
	db.Where("input_record_id = ANY(" + db.Var(pq.Array(ids)) + ")")
	query, args := db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "failed to clear %s", f.Table())
	}

	if len(rows) == 0 {
		return nil
	}
	if err := copyRows(ctx, tx, f, rows); err != nil {
		return err
	}
	r.log.Debugf("Copied %d rows into %s", len(rows), f.Table())
	return nil
}

type row struct {
	inputID int64
	point   matchpoints.Point
}

func copyRows(ctx context.Context, tx *sql.Tx, f matchpoints.Field, rows []row) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(f.Table(), "input_record_id", "string_id", "numeric_id"))
	if err != nil {
		return errors.Wrapf(err, "failed to prepare copy into %s", f.Table())
	}

	for _, rw := range rows {
		var numeric sql.NullInt64
		if rw.point.Numeric != nil {
			numeric = sql.NullInt64{Int64: *rw.point.Numeric, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rw.inputID, rw.point.Value, numeric); err != nil {
			_ = stmt.Close()
			return errors.Wrapf(err, "failed to copy match point of record %d", rw.inputID)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return errors.Wrapf(err, "failed to flush copy into %s", f.Table())
	}
	return stmt.Close()
}

func (r *Repository) FindByValues(ctx context.Context, field matchpoints.Field, values []string, exclude int64) ([]int64, error) {
	if len(values) == 0 {
		return nil, nil
	}

	sb := sqlFlavor.NewSelectBuilder()
	sb.Select("input_record_id").Distinct().From(field.Table())
	sb.Where(
		"string_id = ANY("+sb.Var(pq.Array(values))+")",
		sb.NotEqual("input_record_id", exclude),
	).OrderBy("input_record_id")

	query, args := sb.Build()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", field.Table())
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
