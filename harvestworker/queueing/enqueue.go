package queueing

import (
	"context"
	"encoding/json"

	"github.com/bgentry/que-go"
	"github.com/jackc/pgx"
	"github.com/pkg/errors"
)

// Enqueuer only handles inserting jobs into que_jobs.
type Enqueuer interface {
	AddHarvestStep(ctx context.Context, args HarvestStepArgs) error
}

func NewEnqueuer(pool *pgx.ConnPool) Enqueuer {
	return queEnqueuer{que.NewClient(pool)}
}

type queEnqueuer struct {
	*que.Client
}

func (q queEnqueuer) AddHarvestStep(ctx context.Context, args HarvestStepArgs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := q.Enqueue(&que.Job{Type: HarvestStepJob, Args: payload}); err != nil {
		return errors.Wrapf(err, "failed to enqueue schedule %d step %d", args.ScheduleID, args.StepID)
	}
	return nil
}
