// Package identity maps OAI identifiers to internal record ids for one harvest
// run.
package identity

import (
	"context"
	"strings"

	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store is the durable side of the cache.
type Store interface {
	GetRecordID(ctx context.Context, repoName, oaiID string) (int64, error)
	GetPreviousStatus(ctx context.Context, repoName string, recordID int64, wantDeleted bool) (models.RecordStatus, error)
	PopulateHarvestCache(ctx context.Context, repoName string, cache map[string]int64) error
	PopulatePreviousStatuses(ctx context.Context, repoName string, statuses map[int64]models.RecordStatus) error
}

// Cache resolves normalized OAI identifiers to record ids. Until Warm is called
// every miss falls through to the Store; afterwards the bulk-loaded maps are
// authoritative. Identities recorded during the run are always held locally so
// records not yet committed still resolve.
//
// A Cache belongs to one run and is not safe for concurrent use.
type Cache struct {
	repoName string
	prefixes []string
	store    Store
	log      logrus.FieldLogger

	warm     bool
	ids      map[string]int64
	statuses map[int64]models.RecordStatus
}

// New returns a cold cache for the provider repoName. OAI identifiers starting
// with oai:<repositoryIdentifier>: have that prefix removed.
func New(repoName, repositoryIdentifier string, store Store, logger logrus.FieldLogger) *Cache {
	c := &Cache{
		repoName: repoName,
		store:    store,
		log:      logger,
		ids:      make(map[string]int64),
		statuses: make(map[int64]models.RecordStatus),
	}
	if repositoryIdentifier != "" {
		c.prefixes = append(c.prefixes, "oai:"+repositoryIdentifier+":")
	}
	return c
}

// Normalize strips the provider's redundant prefix from oaiID.
func (c *Cache) Normalize(oaiID string) string {
	id := strings.TrimSpace(oaiID)
	for _, p := range c.prefixes {
		if len(id) > len(p) && strings.EqualFold(id[:len(p)], p) {
			return id[len(p):]
		}
	}
	return id
}

// Warmed reports whether Warm has run.
func (c *Cache) Warmed() bool {
	return c.warm
}

// Warm bulk-loads every identity and status of the provider. expected sizes
// the maps. It is a no-op after the first call.
func (c *Cache) Warm(ctx context.Context, expected int) error {
	if c.warm {
		return nil
	}

	ids := make(map[string]int64, expected)
	statuses := make(map[int64]models.RecordStatus, expected)
	if err := c.store.PopulateHarvestCache(ctx, c.repoName, ids); err != nil {
		return errors.Wrap(err, "failed to populate harvest cache")
	}
	if err := c.store.PopulatePreviousStatuses(ctx, c.repoName, statuses); err != nil {
		return errors.Wrap(err, "failed to populate previous statuses")
	}

	// Identities recorded before the warm-up win over the stored ones.
	for k, v := range c.ids {
		ids[k] = v
	}
	for k, v := range c.statuses {
		statuses[k] = v
	}
	c.ids, c.statuses, c.warm = ids, statuses, true

	c.log.WithFields(logrus.Fields{"provider": c.repoName, "identities": len(ids)}).Info("Warmed identity cache")
	return nil
}

// Lookup returns the record id for oaiID.
func (c *Cache) Lookup(ctx context.Context, oaiID string) (int64, bool, error) {
	key := c.Normalize(oaiID)
	if id, ok := c.ids[key]; ok {
		return id, true, nil
	}
	if c.warm {
		return 0, false, nil
	}

	id, err := c.store.GetRecordID(ctx, c.repoName, key)
	if errors.Is(err, models.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to look up %s", key)
	}
	return id, true, nil
}

// PreviousStatus returns the last known status of recordID, deleted records
// included.
func (c *Cache) PreviousStatus(ctx context.Context, recordID int64) (models.RecordStatus, bool, error) {
	if s, ok := c.statuses[recordID]; ok {
		return s, true, nil
	}
	if c.warm {
		return 0, false, nil
	}

	s, err := c.store.GetPreviousStatus(ctx, c.repoName, recordID, true)
	if errors.Is(err, models.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to read status of record %d", recordID)
	}
	return s, true, nil
}

// Record remembers that oaiID is recordID.
func (c *Cache) Record(oaiID string, recordID int64) {
	c.ids[c.Normalize(oaiID)] = recordID
}

// RecordStatus remembers the status of recordID.
func (c *Cache) RecordStatus(recordID int64, status models.RecordStatus) {
	c.statuses[recordID] = status
}
