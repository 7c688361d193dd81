package cleanup

import (
	"errors"
	"testing"

	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseOrder(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	s := NewStack(logger)

	var order []string
	for _, name := range []string{"proc", "sys", "dev"} {
		name := name
		s.Push(name, func() error {
			order = append(order, name)
			return nil
		})
	}
	require.Equal(t, 3, s.Len())

	require.NoError(t, s.Release())
	assert.Equal(t, []string{"dev", "sys", "proc"}, order)
	assert.Equal(t, 0, s.Len())
}

func TestReleaseContinuesOnError(t *testing.T) {
	logger, hook := logrusTest.NewNullLogger()
	s := NewStack(logger)

	boom := errors.New("boom")
	ran := 0
	s.Push("first", func() error { ran++; return nil })
	s.Push("broken", func() error { ran++; return boom })
	s.Push("last", func() error { ran++; return nil })

	err := s.Release()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.Equal(t, 3, ran)
	assert.Equal(t, "Releasing broken failed: boom", hook.LastEntry().Message)
}

func TestReleaseTwice(t *testing.T) {
	s := NewStack(nil)
	calls := 0
	s.Push("once", func() error { calls++; return nil })
	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.Equal(t, 1, calls)
}
