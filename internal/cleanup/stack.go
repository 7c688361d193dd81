// Package cleanup implements a stack of release actions for resources
// that live outside the process, such as bind mounts and binfmt
// registrations.
//
// Acquire a resource, then Push its release immediately. Release runs the
// actions in reverse order and keeps going when one of them fails.
package cleanup

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

type action struct {
	name string
	fn   func() error
}

type Stack struct {
	mu      sync.Mutex
	actions []action
	logger  logrus.FieldLogger
}

func NewStack(logger logrus.FieldLogger) *Stack {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Stack{logger: logger}
}

// Push registers fn to be run by Release.
func (s *Stack) Push(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action{name: name, fn: fn})
}

// Len returns the number of pending actions.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

// Release pops and runs every pending action, last pushed first. The
// stack is empty afterwards, so calling Release twice is safe.
func (s *Stack) Release() error {
	s.mu.Lock()
	actions := s.actions
	s.actions = nil
	s.mu.Unlock()

	var result *multierror.Error
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		s.logger.Debugf("Releasing %s", a.name)
		if err := a.fn(); err != nil {
			s.logger.Errorf("Releasing %s failed: %v", a.name, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", a.name, err))
		}
	}
	return result.ErrorOrNil()
}
