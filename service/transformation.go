package service

import (
	"context"
	"fmt"

	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/CMSgov/xc-harvester/metrics"
	"github.com/CMSgov/xc-harvester/transformation/mapper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type TransformationConfig struct {
	mapper.Config
	// IDPrefix namespaces the identifiers given to output entities.
	IDPrefix string `conf:"XC_ID_PREFIX" conf_default:"oai:mst.rochester.edu:MARCToXCTransformation"`
}

// Transformation is the MARC to XC service.
type Transformation struct {
	mapper   *mapper.Mapper
	idPrefix string
	log      logrus.FieldLogger
}

func NewTransformation(cfg TransformationConfig, logger logrus.FieldLogger) *Transformation {
	return &Transformation{
		mapper:   mapper.New(cfg.Config, logger),
		idPrefix: cfg.IDPrefix,
		log:      logger,
	}
}

func (t *Transformation) Validate() error {
	if t.idPrefix == "" {
		return errors.New("an identifier prefix is required")
	}
	return nil
}

// Transform maps every live record. A record that cannot be parsed or mapped is
// logged and skipped.
func (t *Transformation) Transform(ctx context.Context, in []models.Record) ([]OutputRecord, error) {
	defer metrics.NewChild(ctx, "transform batch")()

	out := make([]OutputRecord, 0, len(in))
	for _, r := range in {
		if r.Deleted {
			continue
		}

		agg, err := t.mapper.TransformXML(r.XML)
		if err != nil {
			t.log.WithField("oai_id", r.OAIIdentifier).Warnf("Skipping record %d: %s", r.ID, err)
			continue
		}
		agg.AssignIDs(t.ids(r.ID))

		data, err := agg.Bytes(false)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to serialize record %d", r.ID)
		}
		out = append(out, OutputRecord{InputID: r.ID, OAIIdentifier: r.OAIIdentifier, XML: data})
	}
	return out, nil
}

// ids numbers the entities of one input record, so re-transforming a record
// reuses its identifiers.
func (t *Transformation) ids(inputID int64) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s/%d-%d", t.idPrefix, inputID, n)
	}
}
