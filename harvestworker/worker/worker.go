// Package worker assembles harvest machines from configuration and runs them.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/CMSgov/xc-harvester/aggregation"
	aggpostgres "github.com/CMSgov/xc-harvester/aggregation/postgres"
	"github.com/CMSgov/xc-harvester/conf"
	"github.com/CMSgov/xc-harvester/harvester/manager"
	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/CMSgov/xc-harvester/harvester/models/postgres"
	"github.com/CMSgov/xc-harvester/harvester/notify"
	"github.com/CMSgov/xc-harvester/harvester/oai"
	"github.com/CMSgov/xc-harvester/log"
	"github.com/CMSgov/xc-harvester/service"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// OutputDir receives the XML produced by services. Output is only logged
	// when it is empty.
	OutputDir string `conf:"HARVEST_OUTPUT_DIR"`
}

type Worker interface {
	// HarvestStep harvests a schedule step from its provider's OAI endpoint.
	HarvestStep(ctx context.Context, scheduleID, stepID int) error
	// HarvestFrom harvests a schedule step from source instead.
	HarvestFrom(ctx context.Context, source oai.PageSource, scheduleID, stepID int) error
	Machines() *manager.Registry
	Repository() models.Repository
}

type worker struct {
	cfg      Config
	harvest  manager.Config
	client   oai.ClientConfig
	sink     service.SinkConfig
	repo     models.Repository
	services *service.Registry
	machines *manager.Registry
	notifier notify.Notifier
	log      logrus.FieldLogger
}

func NewWorker(db *sql.DB) (Worker, error) {
	return newWorker(postgres.NewRepository(db), aggpostgres.NewRepository(db, log.Aggregation), log.Harvest)
}

func newWorker(repo models.Repository, matches aggregation.Repository, logger logrus.FieldLogger) (*worker, error) {
	w := &worker{repo: repo, machines: manager.NewRegistry(), log: logger}

	for _, c := range []interface{}{&w.cfg, &w.client, &w.sink} {
		if err := conf.Checkout(c); err != nil {
			return nil, errors.Wrap(err, "failed to load worker configuration")
		}
	}
	var err error
	if w.harvest, err = manager.LoadConfig(); err != nil {
		return nil, err
	}

	var transformation service.TransformationConfig
	if err := conf.Checkout(&transformation); err != nil {
		return nil, errors.Wrap(err, "failed to load transformation configuration")
	}

	w.services = service.NewRegistry()
	if err := w.services.Register(service.TransformationKey, service.NewTransformation(transformation, log.Transform)); err != nil {
		return nil, err
	}
	if err := w.services.Register(service.AggregationKey, service.NewAggregation(matches, log.Aggregation)); err != nil {
		return nil, err
	}

	if w.notifier, err = notify.New(logger); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *worker) Machines() *manager.Registry {
	return w.machines
}

func (w *worker) Repository() models.Repository {
	return w.repo
}

func (w *worker) HarvestStep(ctx context.Context, scheduleID, stepID int) error {
	return w.run(ctx, func(p models.Provider) (oai.PageSource, error) {
		if p.BaseURL == "" {
			return nil, errors.Errorf("provider %s has no base URL", p.Name)
		}
		return oai.NewClient(p.BaseURL, w.client, w.log), nil
	}, scheduleID, stepID)
}

func (w *worker) HarvestFrom(ctx context.Context, source oai.PageSource, scheduleID, stepID int) error {
	return w.run(ctx, func(models.Provider) (oai.PageSource, error) {
		return source, nil
	}, scheduleID, stepID)
}

func (w *worker) run(ctx context.Context, source manager.SourceFactory, scheduleID, stepID int) error {
	m := manager.New(manager.Deps{
		Repository: w.repo,
		Source:     source,
		Sink: func(p models.Provider) (manager.Sink, error) {
			return service.NewSink(w.sink, w.repo, w.services, p.ID, w.output, w.log), nil
		},
		Notifier: w.notifier,
		Logger:   w.log,
	}, w.harvest)

	return w.machines.Run(ctx, m, scheduleID, stepID)
}

func (w *worker) output(_ context.Context, key string, out []service.OutputRecord) error {
	for _, o := range out {
		if len(o.Matches) > 0 {
			w.log.WithFields(logrus.Fields{"service": key, "oai_id": o.OAIIdentifier}).
				Infof("Record %d matches %v", o.InputID, o.Matches)
		}
		if len(o.XML) == 0 || w.cfg.OutputDir == "" {
			continue
		}

		dir := filepath.Join(w.cfg.OutputDir, key)
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return errors.Wrapf(err, "failed to create output directory %s", dir)
		}
		path := filepath.Join(dir, fmt.Sprintf("%d.xml", o.InputID))
		if err := ioutil.WriteFile(path, o.XML, 0600); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
	}
	return nil
}
