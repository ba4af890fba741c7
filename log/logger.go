package log

import (
	"os"
	"path/filepath"

	"github.com/CMSgov/xc-harvester/conf"
	"github.com/sirupsen/logrus"
)

var (
	API logrus.FieldLogger

	Harvest     logrus.FieldLogger
	Transform   logrus.FieldLogger
	Aggregation logrus.FieldLogger
	Worker      logrus.FieldLogger
)

func init() {
	SetupLoggers()
}

// SetupLoggers (re)creates every package logger from the current configuration.
func SetupLoggers() {
	env := conf.GetEnv("ENVIRONMENT")

	API = Logger(logrus.New(), conf.GetEnv("XC_API_LOG"), "api", env)

	Harvest = Logger(logrus.New(), conf.GetEnv("XC_HARVEST_LOG"), "harvest", env)
	Transform = Logger(logrus.New(), conf.GetEnv("XC_TRANSFORM_LOG"), "transform", env)
	Aggregation = Logger(logrus.New(), conf.GetEnv("XC_AGGREGATION_LOG"), "aggregation", env)
	Worker = Logger(logrus.New(), conf.GetEnv("XC_WORKER_LOG"), "worker", env)
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	logger.SetFormatter(&logrus.JSONFormatter{})

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
