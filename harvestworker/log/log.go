package workerlog

import (
	"context"

	"github.com/sirupsen/logrus"
)

type logFieldsCtxKeyType string

const logFieldsCtxKey logFieldsCtxKeyType = "logFields"

// WithLogFields returns a copy of ctx carrying fields merged over any already
// present.
func WithLogFields(ctx context.Context, fields logrus.Fields) context.Context {
	merged := logrus.Fields{}
	for k, v := range GetLogFields(ctx) {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, logFieldsCtxKey, merged)
}

func GetLogFields(ctx context.Context) logrus.Fields {
	logFields, ok := ctx.Value(logFieldsCtxKey).(logrus.Fields)
	if !ok {
		return nil
	}
	return logFields
}

// Entry decorates logger with the fields carried by ctx.
func Entry(ctx context.Context, logger logrus.FieldLogger) logrus.FieldLogger {
	if fields := GetLogFields(ctx); len(fields) > 0 {
		return logger.WithFields(fields)
	}
	return logger
}
