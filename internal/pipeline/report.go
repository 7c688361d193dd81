package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"github.com/osbuild/rootfs-composer/internal/target"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome is the result of one Target.
type Outcome struct {
	Target       string        `json:"target" yaml:"target"`
	OS           string        `json:"os" yaml:"os"`
	Version      string        `json:"version" yaml:"version"`
	Arch         string        `json:"arch" yaml:"arch"`
	Status       Status        `json:"status" yaml:"status"`
	Duration     time.Duration `json:"duration_ns" yaml:"duration"`
	Archive      string        `json:"archive,omitempty" yaml:"archive,omitempty"`
	Checksum     string        `json:"md5,omitempty" yaml:"md5,omitempty"`
	Size         int64         `json:"size,omitempty" yaml:"size,omitempty"`
	Error        *Error        `json:"error,omitempty" yaml:"error,omitempty"`
	CleanupError string        `json:"cleanup_error,omitempty" yaml:"cleanup_error,omitempty"`
	SkipReason   string        `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
}

func newOutcome(t target.Target) Outcome {
	return Outcome{
		Target:  t.String(),
		OS:      string(t.OS),
		Version: t.Release.Version,
		Arch:    t.ArchToken,
	}
}

func skipped(t target.Target, reason string) Outcome {
	o := newOutcome(t)
	o.Status = StatusSkipped
	o.SkipReason = reason
	return o
}

type Report struct {
	Pipeline string    `json:"pipeline" yaml:"pipeline"`
	RunID    string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished" yaml:"finished"`
	Outcomes []Outcome `json:"targets" yaml:"targets"`
}

func (r *Report) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

func (r *Report) Succeeded() int { return r.count(StatusSucceeded) }
func (r *Report) Failed() int    { return r.count(StatusFailed) }
func (r *Report) Skipped() int   { return r.count(StatusSkipped) }

// OK is true when no Target failed or was skipped.
func (r *Report) OK() bool {
	return r.Failed() == 0 && r.Skipped() == 0
}

// Summary is a one-line human readable account of the run.
func (r *Report) Summary() string {
	return fmt.Sprintf("%s: %d succeeded, %d failed, %d skipped", r.Pipeline, r.Succeeded(), r.Failed(), r.Skipped())
}

// WriteTable prints one line per Target.
func (r *Report) WriteTable(w io.Writer) error {
	for _, o := range r.Outcomes {
		detail := o.Archive
		switch {
		case o.Error != nil:
			detail = o.Error.Error()
		case o.SkipReason != "":
			detail = o.SkipReason
		}
		if _, err := fmt.Fprintf(w, "%-9s  %-28s  %8s  %s\n", o.Status, o.Target, o.Duration.Round(time.Second), detail); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, r.Summary())
	return err
}

// Encode writes the report as YAML when format is "yaml", JSON otherwise.
func (r *Report) Encode(w io.Writer, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile stores the report at path atomically. The format follows the
// extension: .yaml and .yml give YAML, anything else JSON.
func (r *Report) WriteFile(path string) error {
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	var buf strings.Builder
	if err := r.Encode(&buf, format); err != nil {
		return fmt.Errorf("cannot encode report: %w", err)
	}
	if err := renameio.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("cannot write report %s: %w", path, err)
	}
	return nil
}
