package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CMSgov/xc-harvester/harvester/manager"
	"github.com/CMSgov/xc-harvester/harvester/models"
	"github.com/CMSgov/xc-harvester/harvester/models/modelstest"
	"github.com/CMSgov/xc-harvester/harvester/notify"
	"github.com/CMSgov/xc-harvester/harvester/oai"
	"github.com/CMSgov/xc-harvester/harvestworker/queueing"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// blockingSource holds the first request until released.
type blockingSource struct {
	release chan struct{}
}

func (s *blockingSource) First(ctx context.Context, _ oai.Request) (*oai.Page, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &oai.Page{Records: []oai.Record{{Identifier: "oai:example.org:1"}}}, nil
}

func (s *blockingSource) Next(context.Context, string) (*oai.Page, error) {
	return nil, errors.New("unexpected token")
}

type nopSink struct{}

func (nopSink) AddRecord(context.Context, models.Record) error { return nil }

func (nopSink) CommitIfNecessary(context.Context, bool, int, models.Counts, string) (bool, error) {
	return true, nil
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) AddHarvestStep(ctx context.Context, args queueing.HarvestStepArgs) error {
	return m.Called(ctx, args).Error(0)
}

type HandlerTestSuite struct {
	suite.Suite
	repo     *modelstest.Repository
	machines *manager.Registry
	enqueuer *MockEnqueuer
	pingErr  error
	server   *httptest.Server
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.repo = modelstest.NewRepository()
	s.repo.Providers[1] = &models.Provider{ID: 1, Name: "Example Library", RepositoryIdentifier: "example.org",
		Formats: []string{"marc21"}}
	s.repo.Schedules[1] = &models.HarvestSchedule{ID: 1, Name: "nightly", ProviderID: 1, Status: models.StatusNotRunning}
	s.repo.Steps[1] = &models.HarvestScheduleStep{ID: 1, ScheduleID: 1, Format: "marc21"}

	s.machines = manager.NewRegistry()
	s.enqueuer = new(MockEnqueuer)
	s.pingErr = nil

	logger, _ := test.NewNullLogger()
	ping := func(context.Context) error { return s.pingErr }
	s.server = httptest.NewServer(NewRouter(NewHandler(s.machines, s.repo, s.enqueuer, ping, logger)))
}

func (s *HandlerTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerTestSuite) do(method, path string) (*http.Response, map[string]interface{}) {
	req, err := http.NewRequest(method, s.server.URL+path, nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var body map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	return resp, body
}

// start runs a machine that blocks on its first request and waits until the
// registry knows it.
func (s *HandlerTestSuite) start() (*manager.Machine, *blockingSource, chan error) {
	src := &blockingSource{release: make(chan struct{})}
	logger, _ := test.NewNullLogger()
	m := manager.New(manager.Deps{
		Repository: s.repo,
		Source:     func(models.Provider) (oai.PageSource, error) { return src, nil },
		Sink:       func(models.Provider) (manager.Sink, error) { return nopSink{}, nil },
		Notifier:   &notify.LogNotifier{Logger: logger},
		Logger:     logger,
	}, manager.Config{PausePoll: 10 * time.Millisecond, LargeThreshold: 10000})

	done := make(chan error, 1)
	go func() { done <- s.machines.Run(context.Background(), m, 1, 1) }()
	s.Require().Eventually(func() bool {
		_, ok := s.machines.Get(m.ID().String())
		return ok && m.Status() == models.StatusRunning
	}, time.Second, 5*time.Millisecond)
	return m, src, done
}

func (s *HandlerTestSuite) TestHealth() {
	resp, body := s.do(http.MethodGet, "/_health")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["database"])

	s.pingErr = errors.New("connection refused")
	resp, body = s.do(http.MethodGet, "/_health")
	s.Equal(http.StatusBadGateway, resp.StatusCode)
	s.Equal("error", body["database"])
}

func (s *HandlerTestSuite) TestKillRunningHarvest() {
	m, src, done := s.start()
	id := m.ID().String()

	resp, body := s.do(http.MethodGet, "/harvests/"+id)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(string(models.StatusRunning), body["status"])

	resp, _ = s.do(http.MethodPost, "/harvests/"+id+"/pause")
	s.Equal(http.StatusAccepted, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/harvests/"+id+"/resume")
	s.Equal(http.StatusAccepted, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/harvests/"+id+"/kill")
	s.Equal(http.StatusAccepted, resp.StatusCode)

	close(src.release)
	s.Require().NoError(<-done)

	resp, body = s.do(http.MethodGet, "/harvests/"+id)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(string(models.StatusCanceled), body["status"])

	resp, _ = s.do(http.MethodPost, "/harvests/"+id+"/kill")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerTestSuite) TestRunning() {
	m, src, done := s.start()
	defer func() {
		close(src.release)
		<-done
	}()

	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/harvests/", nil)
	require.NoError(s.T(), err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	var running []manager.Progress
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&running))
	require.Len(s.T(), running, 1)
	assert.Equal(s.T(), m.ID().String(), running[0].ID)
}

func (s *HandlerTestSuite) TestUnknownHarvest() {
	resp, body := s.do(http.MethodGet, "/harvests/"+uuid.New())
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Contains(body["message"], "no harvest found")

	s.repo.Fail["GetHarvest"] = errors.New("connection reset")
	resp, _ = s.do(http.MethodGet, "/harvests/"+uuid.New())
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
}

func (s *HandlerTestSuite) TestEnqueue() {
	args := queueing.HarvestStepArgs{ScheduleID: 1, StepID: 2}
	s.enqueuer.On("AddHarvestStep", mock.Anything, args).Return(nil).Once()
	resp, body := s.do(http.MethodPost, "/schedules/1/steps/2/harvest")
	s.Equal(http.StatusAccepted, resp.StatusCode)
	s.Equal(float64(2), body["step_id"])

	s.enqueuer.On("AddHarvestStep", mock.Anything, args).Return(errors.New("queue down")).Once()
	resp, _ = s.do(http.MethodPost, "/schedules/1/steps/2/harvest")
	s.Equal(http.StatusInternalServerError, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/schedules/one/steps/2/harvest")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.enqueuer.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) TestCrossOrigin() {
	logger, _ := test.NewNullLogger()
	ping := func(context.Context) error { return nil }
	server := httptest.NewServer(NewRouter(NewHandler(s.machines, s.repo, s.enqueuer, ping, logger), "https://ops.example.org"))
	defer server.Close()

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, server.URL+"/harvests", nil)
		s.Require().NoError(err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(req)
		s.Require().NoError(err)
		resp.Body.Close()
		return resp
	}

	s.Equal("https://ops.example.org", preflight("https://ops.example.org").Header.Get("Access-Control-Allow-Origin"))
	s.Empty(preflight("https://elsewhere.example.org").Header.Get("Access-Control-Allow-Origin"))

	// Without allowed origins no CORS headers are sent.
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/harvests", nil)
	s.Require().NoError(err)
	req.Header.Set("Origin", "https://ops.example.org")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Empty(resp.Header.Get("Access-Control-Allow-Origin"))
}
