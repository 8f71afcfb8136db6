// Package job runs the sync services as named, finite batch jobs.
package job

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/observability"
)

// Func is one job execution. The returned value is logged as the job's
// result summary.
type Func func(ctx context.Context) (interface{}, error)

// Runner executes registered jobs sequentially by name
type Runner struct {
	jobs    map[string]Func
	order   []string
	logger  *logging.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRunner creates an empty job runner
func NewRunner(logger *logging.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{
		jobs:    make(map[string]Func),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Register adds a named job. Registration order is the "all" execution
// order.
func (r *Runner) Register(name string, fn Func) {
	if _, exists := r.jobs[name]; !exists {
		r.order = append(r.order, name)
	}
	r.jobs[name] = fn
}

// Names returns the registered job names in registration order
func (r *Runner) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Resolve expands the requested job arguments. No arguments, or "all"
// anywhere, means every registered job.
func (r *Runner) Resolve(args []string) ([]string, error) {
	var requested []string
	runAll := len(args) == 0
	for _, arg := range args {
		name := strings.ToLower(strings.TrimSpace(arg))
		if name == "" {
			continue
		}
		if name == "all" {
			runAll = true
			continue
		}
		if _, ok := r.jobs[name]; !ok {
			known := r.Names()
			sort.Strings(known)
			return nil, fmt.Errorf("unknown job %q, use one of: %s", name, strings.Join(known, ", "))
		}
		requested = append(requested, name)
	}
	if runAll {
		return r.Names(), nil
	}
	return requested, nil
}

// Run executes the named jobs in order, stopping at the first failure.
// Each run carries a shared run ID through the logs.
func (r *Runner) Run(ctx context.Context, names []string) error {
	runID := uuid.NewString()
	logger := r.logger.WithField("run_id", runID)
	ctx = logging.WithLogger(ctx, logger)

	for _, name := range names {
		fn, ok := r.jobs[name]
		if !ok {
			return fmt.Errorf("unknown job %q", name)
		}

		jobLogger := logger.WithField("job", name)
		jobLogger.Info("job started")
		started := r.now()

		result, err := fn(ctx)
		elapsed := r.now().Sub(started)
		r.metrics.JobDurationSeconds.WithLabelValues(name).Observe(elapsed.Seconds())

		if err != nil {
			r.metrics.JobRuns.WithLabelValues(name, "failure").Inc()
			jobLogger.WithError(err).WithField("elapsed", elapsed.String()).Error("job failed")
			return fmt.Errorf("job %s: %w", name, err)
		}

		r.metrics.JobRuns.WithLabelValues(name, "success").Inc()
		jobLogger.WithFields(map[string]interface{}{
			"elapsed": elapsed.String(),
			"result":  result,
		}).Info("job complete")
	}
	return nil
}
