// Package queueing runs harvest steps taken from a que-go job queue.
package queueing

import (
	"context"
	"encoding/json"
	goerrors "errors"

	"github.com/CMSgov/xc-harvester/conf"
	"github.com/CMSgov/xc-harvester/harvester/manager"
	workerlog "github.com/CMSgov/xc-harvester/harvestworker/log"
	"github.com/bgentry/que-go"
	"github.com/jackc/pgx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const HarvestStepJob = "HarvestStep"

// HarvestStepArgs are the arguments of a HarvestStepJob.
type HarvestStepArgs struct {
	ScheduleID int `json:"schedule_id"`
	StepID     int `json:"step_id"`
}

type Config struct {
	Workers int `conf:"HARVEST_WORKERS" conf_default:"2"`
	// MaxRetries is how often a failed harvest is retried before the job is
	// removed from the queue.
	MaxRetries int32 `conf:"QUE_MAX_RETRIES" conf_default:"3"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := conf.Checkout(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to load queue configuration")
	}
	return cfg, nil
}

// Runner harvests one schedule step.
type Runner func(ctx context.Context, scheduleID, stepID int) error

// Queue is responsible for retrieving jobs using the que client and
// delegating the harvest to the Runner.
type Queue struct {
	quePool *que.WorkerPool
	cfg     Config
	run     Runner
	log     logrus.FieldLogger
}

// StartQue creates a que-go client and begins listening for jobs. It returns
// immediately since the workers run in their own goroutines.
func StartQue(pool *pgx.ConnPool, cfg Config, run Runner, logger logrus.FieldLogger) *Queue {
	q := newQueue(cfg, run, logger)

	qc := que.NewClient(pool)
	wm := que.WorkMap{
		HarvestStepJob: q.processJob,
	}
	q.quePool = que.NewWorkerPool(qc, wm, cfg.Workers)
	q.quePool.Start()

	logger.Infof("Started %d harvest workers", cfg.Workers)
	return q
}

func newQueue(cfg Config, run Runner, logger logrus.FieldLogger) *Queue {
	return &Queue{cfg: cfg, run: run, log: logger}
}

// StopQue waits for running jobs to finish.
func (q *Queue) StopQue() {
	q.quePool.Shutdown()
}

func (q *Queue) processJob(job *que.Job) error {
	var args HarvestStepArgs
	if err := json.Unmarshal(job.Args, &args); err != nil {
		// ACK the job because retrying it won't help us be able to deserialize the data
		q.log.Warnf("Failed to deserialize job.Args '%s' %s. Removing job from queue.", job.Args, err)
		return nil
	}

	ctx := workerlog.WithLogFields(context.Background(), logrus.Fields{
		"que_job_id":  job.ID,
		"schedule_id": args.ScheduleID,
		"step_id":     args.StepID,
	})
	logger := workerlog.Entry(ctx, q.log)

	err := q.run(ctx, args.ScheduleID, args.StepID)
	if err == nil {
		return nil
	}

	var invalid *manager.ValidationError
	if goerrors.As(err, &invalid) {
		logger.Errorf("Harvest can never succeed, removing job from queue: %s", err)
		return nil
	}
	if job.ErrorCount >= q.cfg.MaxRetries {
		logger.Errorf("Harvest failed and retries are exhausted, removing job from queue: %s", err)
		return nil
	}

	logger.Warnf("Harvest failed, will retry: %s", err)
	return errors.Wrap(err, "failed to harvest")
}
