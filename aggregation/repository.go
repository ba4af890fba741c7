// Package aggregation finds previously processed records that describe the
// same resource as an incoming one.
package aggregation

import (
	"context"

	"github.com/CMSgov/xc-harvester/aggregation/matchpoints"
)

type Repository interface {
	// SaveMatchPoints appends the match points of a batch of input records.
	SaveMatchPoints(ctx context.Context, batch map[int64][]matchpoints.Point) error

	// FindByValues returns the input records other than exclude holding any of
	// values for field, in ascending order.
	FindByValues(ctx context.Context, field matchpoints.Field, values []string, exclude int64) ([]int64, error)
}
