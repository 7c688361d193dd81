package runner_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/rootfs-composer/internal/runner"
)

func TestHostRunnerCapturesOutput(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	r := runner.NewHostRunner(logger, nil)

	res, err := r.Run(context.Background(), runner.NewCommand("sh", "-c", "echo out; echo err >&2"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestHostRunnerExitError(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	r := runner.NewHostRunner(logger, nil)

	res, err := r.Run(context.Background(), runner.NewCommand("sh", "-c", "echo broken >&2; exit 3"))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.ExitCode)

	var exitErr *runner.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Result.ExitCode)
	assert.Contains(t, err.Error(), "exited with status 3: broken")
}

func TestHostRunnerMissingBinary(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	r := runner.NewHostRunner(logger, nil)

	res, err := r.Run(context.Background(), runner.NewCommand("/nonexistent/tool"))
	assert.Nil(t, res)
	assert.Error(t, err)
}

func TestHostRunnerEnvStdinAndStream(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	var live bytes.Buffer
	r := runner.NewHostRunner(logger, &live)

	cmd := runner.NewCommand("sh", "-c", `cat; echo "$FOO"`)
	cmd.Env = []string{"FOO=bar"}
	cmd.Stdin = strings.NewReader("in\n")
	res, err := r.Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "in\nbar\n", string(res.Stdout))
	assert.Equal(t, "in\nbar\n", live.String())
}

func TestHostRunnerCancel(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	r := runner.NewHostRunner(logger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx, runner.NewCommand("sleep", "10"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChroot(t *testing.T) {
	cmd := runner.NewCommand("apt-get", "update")
	cmd.Env = []string{"DEBIAN_FRONTEND=noninteractive"}
	wrapped := runner.Chroot("/tmp/root", cmd)
	assert.Equal(t, "chroot /tmp/root apt-get update", wrapped.String())
	assert.Equal(t, cmd.Env, wrapped.Env)
}
