package common

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var allLevels = []logrus.Level{
	logrus.DebugLevel,
	logrus.InfoLevel,
	logrus.WarnLevel,
	logrus.ErrorLevel,
	logrus.FatalLevel,
	logrus.PanicLevel,
}

// BuildHook tags every entry with the commit the binary was built from.
type BuildHook struct {
}

func (h *BuildHook) Levels() []logrus.Level {
	return allLevels
}

func (h *BuildHook) Fire(e *logrus.Entry) error {
	e.Data["build_commit"] = BuildCommit
	e.Data["build_time"] = BuildTime

	return nil
}

// RunHook tags every entry with the id of the current invocation, so the
// log lines of one fetch or build run can be grouped in the journal.
type RunHook struct {
	RunID string
}

func NewRunHook() *RunHook {
	return &RunHook{RunID: uuid.New().String()}
}

func (h *RunHook) Levels() []logrus.Level {
	return allLevels
}

func (h *RunHook) Fire(e *logrus.Entry) error {
	e.Data["run_id"] = h.RunID
	return nil
}
