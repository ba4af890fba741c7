package service

import (
	"context"

	"github.com/CMSgov/xc-harvester/conf"
	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/CMSgov/xc-harvester/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type SinkConfig struct {
	BatchSize int `conf:"HARVEST_SINK_BATCH" conf_default:"1000"`
}

// Store is the part of the record repository the sink writes through.
type Store interface {
	SaveRecords(ctx context.Context, records []models.Record) error
	GetDirectivesByProvider(ctx context.Context, providerID int) ([]models.ProcessingDirective, error)
}

// OutputFunc receives the output of one service run.
type OutputFunc func(ctx context.Context, serviceKey string, out []OutputRecord) error

// Sink buffers harvested records. On commit it persists them and runs the
// services named by the provider's processing directives over the batch.
type Sink struct {
	cfg        SinkConfig
	store      Store
	services   *Registry
	providerID int
	output     OutputFunc
	log        logrus.FieldLogger

	pending    []models.Record
	directives []models.ProcessingDirective
	loaded     bool
}

func NewSink(cfg SinkConfig, store Store, services *Registry, providerID int, output OutputFunc, logger logrus.FieldLogger) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Sink{
		cfg:        cfg,
		store:      store,
		services:   services,
		providerID: providerID,
		output:     output,
		log:        logger,
	}
}

func (s *Sink) AddRecord(_ context.Context, r models.Record) error {
	s.pending = append(s.pending, r)
	return nil
}

// Pending returns the number of records added since the last commit.
func (s *Sink) Pending() int {
	return len(s.pending)
}

func (s *Sink) CommitIfNecessary(ctx context.Context, force bool, _ int, counts models.Counts, cursor string) (bool, error) {
	if !force && len(s.pending) < s.cfg.BatchSize {
		return false, nil
	}
	if len(s.pending) == 0 {
		return true, nil
	}

	defer metrics.NewChild(ctx, "commit records")()

	batch := s.pending
	if err := s.store.SaveRecords(ctx, batch); err != nil {
		return false, errors.Wrapf(err, "failed to commit %d records", len(batch))
	}
	s.pending = nil

	s.log.WithFields(logrus.Fields{
		"records":   len(batch),
		"harvested": counts.Harvested(),
		"cursor":    cursor,
	}).Info("Committed records")

	if err := s.process(ctx, batch); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Sink) process(ctx context.Context, batch []models.Record) error {
	if !s.loaded {
		directives, err := s.store.GetDirectivesByProvider(ctx, s.providerID)
		if err != nil {
			return errors.Wrapf(err, "failed to load processing directives for provider %d", s.providerID)
		}
		s.directives, s.loaded = directives, true
	}

	for _, d := range s.directives {
		var matched []models.Record
		for _, r := range batch {
			if d.Matches(r) {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			continue
		}

		svc, err := s.services.Get(d.Service)
		if err != nil {
			return err
		}
		out, err := svc.Transform(ctx, matched)
		if err != nil {
			return errors.Wrapf(err, "service %s failed", d.Service)
		}

		s.log.WithField("service", d.Service).Infof("Processed %d records into %d outputs", len(matched), len(out))
		if s.output != nil {
			if err := s.output(ctx, d.Service, out); err != nil {
				return errors.Wrapf(err, "failed to write output of service %s", d.Service)
			}
		}
	}
	return nil
}

// LoadSinkConfig reads SinkConfig from the environment.
func LoadSinkConfig() (SinkConfig, error) {
	var cfg SinkConfig
	if err := conf.Checkout(&cfg); err != nil {
		return SinkConfig{}, errors.Wrap(err, "failed to load sink configuration")
	}
	return cfg, nil
}
