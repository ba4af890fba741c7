package oai

import (
	"context"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PageSource yields the pages of one ListRecords harvest. Implementations
// report the literal request they made on every Page.
type PageSource interface {
	First(ctx context.Context, req Request) (*Page, error)
	Next(ctx context.Context, token string) (*Page, error)
}

// FetchError is a transport failure talking to the repository.
type FetchError struct {
	RequestURL string
	Err        error
}

func (e *FetchError) Error() string {
	return "request " + e.RequestURL + " failed: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type ClientConfig struct {
	RetryMax int           `conf:"HARVEST_HTTP_RETRY_MAX" conf_default:"3"`
	Timeout  time.Duration `conf:"HARVEST_HTTP_TIMEOUT" conf_default:"5m"`
}

// Client fetches pages over HTTP, retrying transient failures.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	log     logrus.FieldLogger
}

func NewClient(baseURL string, cfg ClientConfig, logger logrus.FieldLogger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = retryLogger{logger}

	return &Client{baseURL: baseURL, http: rc, log: logger}
}

func (c *Client) First(ctx context.Context, req Request) (*Page, error) {
	req.BaseURL = c.baseURL
	return c.fetch(ctx, req.URL())
}

func (c *Client) Next(ctx context.Context, token string) (*Page, error) {
	return c.fetch(ctx, ResumeURL(c.baseURL, token))
}

func (c *Client) fetch(ctx context.Context, requestURL string) (*Page, error) {
	reqID := uuid.NewRandom()

	req, err := retryablehttp.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &FetchError{RequestURL: requestURL, Err: err}
	}
	req = req.WithContext(ctx)
	req.Header.Add("X-Request-ID", reqID.String())
	req.Header.Add("Accept", "text/xml")

	logger := c.log.WithFields(logrus.Fields{"request_id": reqID.String(), "oai_request": requestURL})
	logger.Info("OAI request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{RequestURL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	logger.WithFields(logrus.Fields{
		"resp_code":      resp.StatusCode,
		"content_length": resp.ContentLength,
	}).Info("OAI response")

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{RequestURL: requestURL, Err: errors.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{RequestURL: requestURL, Err: err}
	}

	page, err := Parse(data, logger)
	if err != nil {
		return nil, err
	}
	page.RequestURL = requestURL
	return page, nil
}

// retryLogger routes retryablehttp's messages to debug level.
type retryLogger struct {
	log logrus.FieldLogger
}

func (l retryLogger) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
