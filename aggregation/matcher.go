package aggregation

import (
	"context"
	"sort"

	"github.com/CMSgov/xc-harvester/aggregation/matchpoints"
	"github.com/pkg/errors"
)

// Matcher applies the match rules to one input record.
type Matcher struct {
	repo Repository
}

func NewMatcher(repo Repository) *Matcher {
	return &Matcher{repo: repo}
}

// exactRules are tried after Step1a, each an equality on one match point.
var exactRules = []matchpoints.Field{matchpoints.LCCN, matchpoints.ISBN, matchpoints.ISSN}

// Step1a matches on the normalized system control number (035a).
func (m *Matcher) Step1a(ctx context.Context, inputID int64, points []matchpoints.Point) ([]int64, error) {
	return m.exact(ctx, matchpoints.SystemControlNumber, inputID, points)
}

// Match returns every previously processed record sharing a 035a, 010a, 020a
// or 022a with the input, sorted and without duplicates.
func (m *Matcher) Match(ctx context.Context, inputID int64, points []matchpoints.Point) ([]int64, error) {
	found := make(map[int64]struct{})

	ids, err := m.Step1a(ctx, inputID, points)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		found[id] = struct{}{}
	}

	for _, f := range exactRules {
		ids, err := m.exact(ctx, f, inputID, points)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			found[id] = struct{}{}
		}
	}

	out := make([]int64, 0, len(found))
	for id := range found {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Matcher) exact(ctx context.Context, f matchpoints.Field, inputID int64, points []matchpoints.Point) ([]int64, error) {
	var values []string
	for _, p := range points {
		if p.Field == f {
			values = append(values, p.Value)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}

	ids, err := m.repo.FindByValues(ctx, f, values, inputID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to match %s", f)
	}
	return ids, nil
}
