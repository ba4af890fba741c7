package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/CMSgov/xc-harvester/conf"
	"github.com/newrelic/go-agent/v3/integrations/nrlogrus"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// Timer times harvest runs and transformation batches.
//		timer := metrics.GetTimer()
//		defer timer.Close()
//		ctx := metrics.NewContext(ctx, timer)
//		ctx, close := metrics.NewParent(ctx, "harvest")
//		defer close()
//		closeFetch := metrics.NewChild(ctx, "fetch page")
//		// fetch
//		closeFetch()
type Timer interface {
	new(parentCtx context.Context, name string) (ctx context.Context, close func())
	newChild(parentCtx context.Context, name string) (close func())

	// Close flushes pending metrics.
	Close()
}

type key int

const timerKey key = 0

// NewContext returns a new Context that carries the provided Timer
func NewContext(ctx context.Context, t Timer) context.Context {
	return context.WithValue(ctx, timerKey, t)
}

// NewParent starts a transaction and embeds it into the returned context.
func NewParent(ctx context.Context, name string) (context.Context, func()) {
	return fromContext(ctx).new(ctx, name)
}

// NewChild times a segment of the transaction found in ctx.
func NewChild(ctx context.Context, name string) func() {
	return fromContext(ctx).newChild(ctx, name)
}

var defaultTimer = &noopTimer{}

func fromContext(ctx context.Context) Timer {
	t, ok := ctx.Value(timerKey).(Timer)
	if !ok {
		return defaultTimer
	}
	return t
}

// GetTimer returns a New Relic backed timer, or a no-op timer when the agent
// cannot be started or connected.
func GetTimer() Timer {
	target := conf.FromEnv("DEPLOYMENT_TARGET", "local")
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(fmt.Sprintf("XC-Harvester-%s", target)),
		newrelic.ConfigLicense(conf.GetEnv("NEW_RELIC_LICENSE_KEY")),
		newrelic.ConfigEnabled(true),
		func(cfg *newrelic.Config) {
			cfg.HighSecurity = true
			cfg.Logger = nrlogrus.StandardLogger()
		},
	)
	if err != nil {
		logrus.Warnf("Failed to instantiate NewRelic application. Default to no-op timer. %s", err.Error())
		return &noopTimer{}
	}

	timeout := time.Duration(conf.GetEnvInt("NEW_RELIC_CONNECTION_TIMEOUT_SECONDS", 30)) * time.Second
	if err = app.WaitForConnection(timeout); err != nil {
		logrus.Warnf("Failed to establish connection to New Relic server in %s. Default to no-op timer.", timeout)
		return &noopTimer{}
	}

	logrus.Info("Using New Relic backed timer.")
	return &timer{app}
}

var _ Timer = &timer{}

type timer struct {
	nr *newrelic.Application
}

func (t *timer) new(parentCtx context.Context, name string) (context.Context, func()) {
	txn := t.nr.StartTransaction(name)
	return newrelic.NewContext(parentCtx, txn), txn.End
}

func (t *timer) newChild(parentCtx context.Context, name string) func() {
	txn := newrelic.FromContext(parentCtx)
	if txn == nil {
		logrus.Warn("No transaction found. Cannot create child.")
		return noop
	}
	return txn.StartSegment(name).End
}

func (t *timer) Close() {
	t.nr.Shutdown(30 * time.Second)
}

var _ Timer = &noopTimer{}

type noopTimer struct{}

func (t *noopTimer) new(parentCtx context.Context, _ string) (context.Context, func()) {
	return parentCtx, noop
}

func (t *noopTimer) newChild(context.Context, string) func() {
	return noop
}

func (t *noopTimer) Close() {}

func noop() {}
