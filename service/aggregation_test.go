package service

import (
	"context"
	"errors"
	"testing"

	"github.com/CMSgov/xc-harvester/aggregation/matchpoints"
	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) SaveMatchPoints(ctx context.Context, batch map[int64][]matchpoints.Point) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *MockMatchRepository) FindByValues(ctx context.Context, field matchpoints.Field, values []string, exclude int64) ([]int64, error) {
	args := m.Called(ctx, field, values, exclude)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func TestAggregationTransform(t *testing.T) {
	repo := new(MockMatchRepository)
	logger, _ := test.NewNullLogger()
	agg := NewAggregation(repo, logger)
	require.NoError(t, agg.Validate())

	in := []models.Record{
		{ID: 1, OAIIdentifier: "oai:example.org:1", XML: marcXML(bookLeader, "035|a|(OCoLC)123", "245|a|Etudes")},
		{ID: 2, OAIIdentifier: "oai:example.org:2", XML: marcXML(bookLeader, "035|a|(OCoLC)123")},
		{ID: 3, XML: marcXML("00000nx  a2200000 a 4500", "035|a|(OCoLC)123")},
		{ID: 4, Deleted: true},
	}

	repo.On("SaveMatchPoints", mock.Anything, mock.MatchedBy(func(batch map[int64][]matchpoints.Point) bool {
		_, holdings := batch[3]
		return len(batch) == 2 && !holdings
	})).Return(nil)
	repo.On("FindByValues", mock.Anything, matchpoints.SystemControlNumber, []string{"(ocolc)123"}, int64(1)).
		Return([]int64{2}, nil)
	repo.On("FindByValues", mock.Anything, matchpoints.SystemControlNumber, []string{"(ocolc)123"}, int64(2)).
		Return([]int64{1}, nil)

	out, err := agg.Transform(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, OutputRecord{InputID: 1, OAIIdentifier: "oai:example.org:1", Matches: []int64{2}}, out[0])
	assert.Equal(t, OutputRecord{InputID: 2, OAIIdentifier: "oai:example.org:2", Matches: []int64{1}}, out[1])
	repo.AssertExpectations(t)
}

func TestAggregationSaveFailure(t *testing.T) {
	repo := new(MockMatchRepository)
	logger, _ := test.NewNullLogger()
	repo.On("SaveMatchPoints", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err := NewAggregation(repo, logger).Transform(context.Background(),
		[]models.Record{{ID: 1, XML: marcXML(bookLeader, "245|a|Etudes")}})
	assert.EqualError(t, err, "failed to save match points: connection reset")
	repo.AssertNotCalled(t, "FindByValues", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAggregationValidate(t *testing.T) {
	logger, _ := test.NewNullLogger()
	assert.Error(t, NewAggregation(nil, logger).Validate())
}
