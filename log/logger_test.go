package log

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/CMSgov/xc-harvester/conf"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// TestLoggers verifies that all of our loggers are set up
// with the expected parameters and write to the expected files.
func TestLoggers(t *testing.T) {
	env := uuid.New()
	old := conf.GetEnv("ENVIRONMENT")
	assert.NoError(t, conf.SetEnv(t, "ENVIRONMENT", env))
	t.Cleanup(func() { assert.NoError(t, conf.SetEnv(t, "ENVIRONMENT", old)) })

	tests := []struct {
		logEnv      string
		logSupplier func() logrus.FieldLogger
		application string
	}{
		{"XC_API_LOG", func() logrus.FieldLogger { return API }, "api"},
		{"XC_HARVEST_LOG", func() logrus.FieldLogger { return Harvest }, "harvest"},
		{"XC_TRANSFORM_LOG", func() logrus.FieldLogger { return Transform }, "transform"},
		{"XC_AGGREGATION_LOG", func() logrus.FieldLogger { return Aggregation }, "aggregation"},
		{"XC_WORKER_LOG", func() logrus.FieldLogger { return Worker }, "worker"},
	}
	for _, tt := range tests {
		t.Run(tt.logEnv, func(t *testing.T) {
			logFile, err := os.CreateTemp("", "*")
			assert.NoError(t, err)
			oldPath := conf.GetEnv(tt.logEnv)
			t.Cleanup(func() {
				assert.NoError(t, os.Remove(logFile.Name()))
				assert.NoError(t, conf.SetEnv(t, tt.logEnv, oldPath))
			})

			assert.NoError(t, conf.SetEnv(t, tt.logEnv, logFile.Name()))
			SetupLoggers()

			msg := uuid.New()
			tt.logSupplier().Info(msg)

			data, err := io.ReadAll(logFile)
			assert.NoError(t, err)
			res := strings.Split(string(data), "\n")
			// msg + new line
			assert.Len(t, res, 2)

			var fields logrus.Fields
			assert.NoError(t, json.Unmarshal([]byte(res[0]), &fields))
			assert.Equal(t, tt.application, fields["application"])
			assert.Equal(t, env, fields["environment"])
			assert.Equal(t, msg, fields["msg"])
		})
	}
}
