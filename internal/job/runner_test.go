package job

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/observability"
)

func newTestRunner() *Runner {
	logger := logging.NewLogger(logging.LevelError, logging.FormatText)
	logger.SetOutput(io.Discard)
	return NewRunner(logger, observability.NewTestMetrics())
}

func TestResolveDefaultsToAll(t *testing.T) {
	runner := newTestRunner()
	runner.Register("tokens", func(ctx context.Context) (interface{}, error) { return nil, nil })
	runner.Register("market", func(ctx context.Context) (interface{}, error) { return nil, nil })

	names, err := runner.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokens", "market"}, names)

	names, err = runner.Resolve([]string{"market", "all"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tokens", "market"}, names)
}

func TestResolveRejectsUnknownJob(t *testing.T) {
	runner := newTestRunner()
	runner.Register("tokens", func(ctx context.Context) (interface{}, error) { return nil, nil })

	_, err := runner.Resolve([]string{"bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	runner := newTestRunner()
	var ran []string
	runner.Register("a", func(ctx context.Context) (interface{}, error) {
		ran = append(ran, "a")
		return nil, nil
	})
	runner.Register("b", func(ctx context.Context) (interface{}, error) {
		ran = append(ran, "b")
		return nil, errors.New("boom")
	})
	runner.Register("c", func(ctx context.Context) (interface{}, error) {
		ran = append(ran, "c")
		return nil, nil
	})

	err := runner.Run(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job b")
	assert.Equal(t, []string{"a", "b"}, ran)
}
