package fetch

import (
	"strings"

	rh "github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type leveledLogrus struct {
	logrus.FieldLogger
}

// NewLeveledLogger adapts a logrus logger to the interface the retrying
// HTTP client logs through.
func NewLeveledLogger(logger logrus.FieldLogger) rh.LeveledLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return rh.LeveledLogger(&leveledLogrus{logger})
}

const monitoringKeyword = "retrying"

func fields(keysAndValues ...interface{}) logrus.Fields {
	fields := make(logrus.Fields)

	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}

	return fields
}

func (l *leveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.WithFields(fields(keysAndValues...)).Error(msg)
}

func (l *leveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.WithFields(fields(keysAndValues...)).Info(msg)
}

// retries are logged at info level so they show up without --verbose
func (l *leveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	if strings.Contains(msg, monitoringKeyword) {
		l.WithFields(fields(keysAndValues...)).Info(msg)
	} else {
		l.WithFields(fields(keysAndValues...)).Debug(msg)
	}
}

func (l *leveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.WithFields(fields(keysAndValues...)).Warn(msg)
}
