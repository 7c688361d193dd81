// Package pipeline drives a per-Target function over a Target matrix and
// records the outcome of every Target in a Report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/rootfs-composer/internal/cleanup"
	"github.com/osbuild/rootfs-composer/internal/prometheus"
	"github.com/osbuild/rootfs-composer/internal/target"
)

// Policy decides what happens to the remaining Targets after one fails.
type Policy int

const (
	ContinueOnFailure Policy = iota
	StopOnFailure
)

func (p Policy) String() string {
	if p == StopOnFailure {
		return "stop-on-failure"
	}
	return "continue-on-failure"
}

// Product describes what a successful Target left on disk.
type Product struct {
	Archive  string
	Checksum string
	Size     int64
}

// Func processes one Target. Release actions pushed on stack run after
// Func returns, whatever the result.
type Func func(ctx context.Context, logger logrus.FieldLogger, stack *cleanup.Stack, t target.Target) (*Product, error)

type Options struct {
	// Name labels logs, metrics and the report, "fetch" or "build".
	Name   string
	Policy Policy
	Logger logrus.FieldLogger
	RunID  string
}

// Run calls fn for every Target in order. It never returns early on a
// Target failure unless the policy says so; the remaining Targets are
// then reported as skipped.
func Run(ctx context.Context, opts Options, targets []target.Target, fn Func) *Report {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	report := &Report{
		Pipeline: opts.Name,
		RunID:    opts.RunID,
		Started:  time.Now().UTC(),
		Outcomes: make([]Outcome, 0, len(targets)),
	}

	stopped := ""
	for _, t := range targets {
		if stopped == "" && ctx.Err() != nil {
			stopped = "cancelled"
		}
		if stopped != "" {
			report.Outcomes = append(report.Outcomes, skipped(t, stopped))
			prometheus.TargetFinished(opts.Name, string(t.OS), string(StatusSkipped))
			continue
		}

		outcome := runOne(ctx, opts.Name, logger, t, fn)
		report.Outcomes = append(report.Outcomes, outcome)
		prometheus.TargetFinished(opts.Name, string(t.OS), string(outcome.Status))

		if outcome.Status == StatusFailed && opts.Policy == StopOnFailure {
			stopped = fmt.Sprintf("%s failed", t)
		}
	}

	report.Finished = time.Now().UTC()
	return report
}

func runOne(ctx context.Context, name string, logger logrus.FieldLogger, t target.Target, fn Func) (outcome Outcome) {
	tl := logger.WithFields(t.Fields())
	stack := cleanup.NewStack(tl)
	started := time.Now()

	outcome = newOutcome(t)
	tl.Infof("Starting %s of %s", name, t)

	product, err := func() (*Product, error) {
		defer func() {
			if rerr := stack.Release(); rerr != nil {
				outcome.CleanupError = rerr.Error()
			}
		}()
		return fn(ctx, tl, stack, t)
	}()

	outcome.Duration = time.Since(started)
	prometheus.ObserveStep(name, "target", started)

	switch {
	case err != nil:
		outcome.Status = StatusFailed
		outcome.Error = asError(err)
		tl.WithField("error_code", outcome.Error.ID.String()).Errorf("%s of %s failed: %v", name, t, err)
	case outcome.CleanupError != "":
		outcome.Status = StatusFailed
		outcome.Error = NewError(ErrorRelease, "releasing host resources failed", errors.New(outcome.CleanupError))
		tl.Errorf("%s of %s succeeded but cleanup failed: %s", name, t, outcome.CleanupError)
	default:
		outcome.Status = StatusSucceeded
		tl.Infof("Finished %s of %s in %s", name, t, outcome.Duration.Round(time.Millisecond))
	}

	if product != nil {
		outcome.Archive = product.Archive
		outcome.Checksum = product.Checksum
		outcome.Size = product.Size
	}
	return outcome
}

func asError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorCancelled, "interrupted", err)
	}
	return NewError(ErrorInternal, "unexpected error", err)
}
