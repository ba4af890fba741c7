package metrics

import (
	"context"
	"testing"

	"github.com/newrelic/go-agent/v3/integrations/nrlogrus"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MetricTestSuite struct {
	suite.Suite
	timer Timer
	hook  *test.Hook
}

func TestMetricTestSuite(t *testing.T) {
	suite.Run(t, new(MetricTestSuite))
}

func (s *MetricTestSuite) SetupTest() {
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("xc-harvester-test"),
		newrelic.ConfigEnabled(false),
		func(cfg *newrelic.Config) {
			cfg.Logger = nrlogrus.StandardLogger()
		},
	)
	require.NoError(s.T(), err)

	s.hook = test.NewGlobal()
	s.timer = &timer{app}
}

func (s *MetricTestSuite) TestParentAndChild() {
	ctx := NewContext(context.Background(), s.timer)
	ctx, closeTxn := NewParent(ctx, "harvest")
	assert.NotNil(s.T(), newrelic.FromContext(ctx))

	closeChild := NewChild(ctx, "fetch page")
	closeChild()
	closeTxn()

	assert.Empty(s.T(), s.hook.AllEntries())
}

func (s *MetricTestSuite) TestChildWithoutParent() {
	closeChild := s.timer.newChild(context.Background(), "orphan")
	require.NotNil(s.T(), closeChild)
	closeChild()

	entries := s.hook.AllEntries()
	require.Len(s.T(), entries, 1)
	assert.Equal(s.T(), "No transaction found. Cannot create child.", entries[0].Message)
}

func TestNoopTimerKeepsContext(t *testing.T) {
	type k struct{}
	parent := context.WithValue(context.Background(), k{}, "v")

	ctx, closeTxn := NewParent(parent, "anything")
	defer closeTxn()
	assert.Equal(t, "v", ctx.Value(k{}))
	NewChild(ctx, "child")()
}
