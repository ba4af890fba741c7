// Package sets resolves the hierarchical set specs of harvested records into
// stored sets.
package sets

import (
	"context"
	"strings"

	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/pkg/errors"
)

type Store interface {
	GetSetBySpec(ctx context.Context, providerID int, setSpec string) (*models.Set, error)
	CreateSet(ctx context.Context, s *models.Set) error
}

// Expand returns every level of a colon-delimited set spec under prefix:
// Expand("repo", "a:b") is [repo:a repo:a:b]. Empty segments are dropped.
func Expand(prefix, setSpec string) []string {
	var (
		out   []string
		level string
	)
	for _, segment := range strings.Split(setSpec, ":") {
		if segment == "" {
			continue
		}
		if level == "" {
			level = segment
		} else {
			level += ":" + segment
		}
		if prefix != "" {
			out = append(out, prefix+":"+level)
		} else {
			out = append(out, level)
		}
	}
	return out
}

// Resolver looks up or creates the sets of one provider, caching them for the
// run.
type Resolver struct {
	providerID int
	prefix     string
	store      Store
	loaded     map[string]models.Set
}

func NewResolver(provider models.Provider, store Store) *Resolver {
	return &Resolver{
		providerID: provider.ID,
		prefix:     provider.SetPrefix(),
		store:      store,
		loaded:     make(map[string]models.Set),
	}
}

// Resolve returns the sets a record with the given raw set specs belongs to,
// every hierarchy level included, each once.
func (r *Resolver) Resolve(ctx context.Context, setSpecs []string) ([]models.Set, error) {
	var (
		out  []models.Set
		seen = make(map[string]struct{})
	)
	for _, raw := range setSpecs {
		for _, spec := range Expand(r.prefix, raw) {
			if _, ok := seen[spec]; ok {
				continue
			}
			seen[spec] = struct{}{}

			s, err := r.get(ctx, spec)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Resolver) get(ctx context.Context, spec string) (models.Set, error) {
	if s, ok := r.loaded[spec]; ok {
		return s, nil
	}

	found, err := r.store.GetSetBySpec(ctx, r.providerID, spec)
	switch {
	case err == nil:
		r.loaded[spec] = *found
		return *found, nil
	case !errors.Is(err, models.ErrSetNotFound):
		return models.Set{}, errors.Wrapf(err, "failed to look up set %s", spec)
	}

	s := models.Set{ProviderID: r.providerID, SetSpec: spec, DisplayName: spec, IsRecordSet: true}
	if err := r.store.CreateSet(ctx, &s); err != nil {
		return models.Set{}, errors.Wrapf(err, "failed to create set %s", spec)
	}
	r.loaded[spec] = s
	return s, nil
}
