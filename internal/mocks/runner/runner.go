// Package runner provides a recording fake of runner.Runner.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/osbuild/rootfs-composer/internal/runner"
)

// Hook is consulted for every command. Returning a non-nil result or
// error overrides the default successful empty result.
type Hook func(cmd *runner.Command) (*runner.Result, error)

// Fake records every command and never starts a process.
type Fake struct {
	mu       sync.Mutex
	commands []string
	hooks    []Hook
	// Tools lists the names LookPath resolves. A nil map resolves all.
	Tools map[string]bool
}

func New() *Fake {
	return &Fake{}
}

// OnCommand registers a hook.
func (f *Fake) OnCommand(h Hook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, h)
}

// FailWhen makes every command whose string form contains substr exit
// with status 1. It takes precedence over hooks registered earlier.
func (f *Fake) FailWhen(substr string) {
	h := func(cmd *runner.Command) (*runner.Result, error) {
		if !strings.Contains(cmd.String(), substr) {
			return nil, nil
		}
		res := &runner.Result{ExitCode: 1, Stderr: []byte("fake failure")}
		return res, &runner.ExitError{Command: cmd.String(), Result: res}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append([]Hook{h}, f.hooks...)
}

func (f *Fake) Run(ctx context.Context, cmd *runner.Command) (*runner.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd.String())
	hooks := append([]Hook(nil), f.hooks...)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, h := range hooks {
		res, err := h(cmd)
		if res != nil || err != nil {
			return res, err
		}
	}
	return &runner.Result{}, nil
}

func (f *Fake) LookPath(name string) (string, error) {
	if f.Tools == nil || f.Tools[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}

// Commands returns the string form of every command run so far.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// Ran reports whether a command containing substr was run.
func (f *Fake) Ran(substr string) bool {
	return f.Index(substr) >= 0
}

// Index returns the position of the first command containing substr,
// or -1.
func (f *Fake) Index(substr string) int {
	for i, c := range f.Commands() {
		if strings.Contains(c, substr) {
			return i
		}
	}
	return -1
}
