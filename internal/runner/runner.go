// Package runner executes the external tools the pipelines depend on and
// returns a structured result for every invocation, so that all callers
// handle failures the same way.
package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	// Env is appended to the inherited environment.
	Env   []string
	Dir   string
	Stdin io.Reader
}

// NewCommand is a shorthand for a Command without extra settings.
func NewCommand(name string, args ...string) *Command {
	return &Command{Name: name, Args: args}
}

func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a process that was started.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// ExitError is returned by Run when the process exited with a non-zero
// status. The Result is still available.
type ExitError struct {
	Command string
	Result  *Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.Result.ExitCode)
	if stderr := strings.TrimSpace(string(e.Result.Stderr)); stderr != "" {
		msg += ": " + lastLines(stderr, 5)
	}
	return msg
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Runner runs commands to completion.
//
// Run returns a non-nil Result whenever the process was started. A
// non-zero exit status is reported as *ExitError; failing to start the
// process at all is reported as a plain error with a nil Result.
type Runner interface {
	Run(ctx context.Context, cmd *Command) (*Result, error)
	// LookPath resolves a tool name like exec.LookPath.
	LookPath(name string) (string, error)
}

// Chroot wraps cmd so it executes with its root directory set to root.
func Chroot(root string, cmd *Command) *Command {
	args := append([]string{root, cmd.Name}, cmd.Args...)
	return &Command{
		Name:  "chroot",
		Args:  args,
		Env:   cmd.Env,
		Dir:   cmd.Dir,
		Stdin: cmd.Stdin,
	}
}
