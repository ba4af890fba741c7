package service

import (
	"context"

	"github.com/CMSgov/xc-harvester/aggregation"
	"github.com/CMSgov/xc-harvester/aggregation/matchpoints"
	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/CMSgov/xc-harvester/metrics"
	"github.com/CMSgov/xc-harvester/transformation/marc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Aggregation records the match points of bibliographic records and reports
// the records each one matches.
type Aggregation struct {
	repo    aggregation.Repository
	matcher *aggregation.Matcher
	log     logrus.FieldLogger
}

func NewAggregation(repo aggregation.Repository, logger logrus.FieldLogger) *Aggregation {
	return &Aggregation{repo: repo, matcher: aggregation.NewMatcher(repo), log: logger}
}

func (a *Aggregation) Validate() error {
	if a.repo == nil {
		return errors.New("a match point repository is required")
	}
	return nil
}

// Transform saves the batch's match points before matching, so records of the
// same batch match each other.
func (a *Aggregation) Transform(ctx context.Context, in []models.Record) ([]OutputRecord, error) {
	defer metrics.NewChild(ctx, "aggregate batch")()

	batch := make(map[int64][]matchpoints.Point)
	var order []models.Record
	for _, r := range in {
		if r.Deleted {
			continue
		}
		rec, err := marc.Parse(r.XML)
		if err != nil {
			a.log.WithField("oai_id", r.OAIIdentifier).Warnf("Skipping record %d: %s", r.ID, err)
			continue
		}
		if rec.IsHoldings() {
			continue
		}
		batch[r.ID] = matchpoints.Extract(rec)
		order = append(order, r)
	}

	if err := a.repo.SaveMatchPoints(ctx, batch); err != nil {
		return nil, errors.Wrap(err, "failed to save match points")
	}

	out := make([]OutputRecord, 0, len(order))
	for _, r := range order {
		matches, err := a.matcher.Match(ctx, r.ID, batch[r.ID])
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			a.log.WithField("oai_id", r.OAIIdentifier).Debugf("Record %d matches %v", r.ID, matches)
		}
		out = append(out, OutputRecord{InputID: r.ID, OAIIdentifier: r.OAIIdentifier, Matches: matches})
	}
	return out, nil
}
