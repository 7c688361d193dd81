package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

type hostRunner struct {
	logger logrus.FieldLogger
	// output receives a live copy of stdout and stderr, may be nil
	output io.Writer
}

// NewHostRunner returns a Runner executing commands on the host. When
// output is non-nil the process output is streamed to it in addition to
// being captured.
func NewHostRunner(logger logrus.FieldLogger, output io.Writer) Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &hostRunner{logger: logger, output: output}
}

func (h *hostRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (h *hostRunner) Run(ctx context.Context, c *Command) (*Result, error) {
	// There's no potential command injection vector here, arguments are
	// never passed through a shell
	/* #nosec G204 */
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	if h.output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, h.output)
		cmd.Stderr = io.MultiWriter(&stderr, h.output)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	h.logger.Debugf("Running %s", c)
	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("cannot run %s: %w", c.Name, err)
		}
		result.ExitCode = exitErr.ExitCode()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("%s interrupted: %w", c.Name, ctxErr)
		}
		return result, &ExitError{Command: c.String(), Result: result}
	}

	h.logger.Debugf("%s finished in %s", c.Name, result.Duration.Round(time.Millisecond))
	return result, nil
}
