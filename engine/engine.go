package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/snippetbox/config"
	"github.com/isdmx/snippetbox/policy"
	"github.com/isdmx/snippetbox/sandbox"
)

// DefaultBudget bounds a run when no budget is configured
const DefaultBudget = 2 * time.Second

// Engine checks and runs snippets against one policy catalog
type Engine struct {
	logger   *zap.Logger
	catalog  *policy.Catalog
	checker  *policy.Checker
	executor sandbox.SandboxExecutor
	budget   time.Duration
	metrics  *Metrics
}

// Option defines a functional option for Engine
type Option func(*Engine)

// WithBudget sets the wall-clock limit for every run
func WithBudget(budget time.Duration) Option {
	return func(e *Engine) {
		e.budget = budget
	}
}

// WithExecutor replaces the default Starlark executor
func WithExecutor(executor sandbox.SandboxExecutor) Option {
	return func(e *Engine) {
		e.executor = executor
	}
}

// WithMetrics records every run in m
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine. The budget is fixed for the engine's lifetime.
func New(logger *zap.Logger, catalog *policy.Catalog, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("policy catalog is required")
	}

	e := &Engine{
		logger:  logger,
		catalog: catalog,
		checker: policy.NewChecker(catalog),
		budget:  DefaultBudget,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got: %s", e.budget)
	}

	if e.executor == nil {
		var executorOpts []sandbox.StarlarkExecutorOption
		if e.metrics != nil {
			executorOpts = append(executorOpts, sandbox.WithOrphanTracker(e.metrics.OrphanedWorkers))
		}
		e.executor = sandbox.NewStarlarkExecutor(logger, executorOpts...)
	}

	return e, nil
}

// NewFromConfig creates the Engine described by the configuration
func NewFromConfig(cfg *config.Config, logger *zap.Logger, catalog *policy.Catalog, metrics *Metrics) (*Engine, error) {
	var executorOpts []sandbox.StarlarkExecutorOption
	opts := []Option{WithBudget(cfg.GetBudget())}
	if metrics != nil {
		executorOpts = append(executorOpts, sandbox.WithOrphanTracker(metrics.OrphanedWorkers))
		opts = append(opts, WithMetrics(metrics))
	}

	executor, err := sandbox.NewExecutor(logger, cfg, executorOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox executor: %w", err)
	}

	return New(logger, catalog, append(opts, WithExecutor(executor))...)
}

// Budget returns the per-run wall-clock limit
func (e *Engine) Budget() time.Duration {
	return e.budget
}

// Catalog returns the policy catalog the engine enforces
func (e *Engine) Catalog() *policy.Catalog {
	return e.catalog
}

// CanRun reports whether snippet passes the policy check. The returned error
// is a *policy.Violation. Nothing is executed.
func (e *Engine) CanRun(snippet string) error {
	return e.checker.Check(snippet)
}

// Violations returns every policy violation in snippet
func (e *Engine) Violations(snippet string) []*policy.Violation {
	return e.checker.CheckAll(snippet)
}

// Run checks snippet and, if it is accepted, executes it in a fresh namespace.
func (e *Engine) Run(ctx context.Context, snippet string) (outcome sandbox.Outcome) {
	runID := uuid.NewString()
	start := time.Now()
	log := e.logger.With(zap.String("run_id", runID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("snippet run panicked", zap.Any("panic", r))
			outcome = sandbox.RuntimeFailure("", "", fmt.Sprintf("internal error: %v", r))
		}
		outcome.RunID = runID
		outcome.Duration = time.Since(start)
		e.record(log, outcome)
	}()

	if err := e.CanRun(snippet); err != nil {
		var v *policy.Violation
		if !errors.As(err, &v) {
			v = &policy.Violation{Kind: policy.KindSyntaxInvalid, Message: err.Error()}
		}
		return sandbox.PolicyRejected(v)
	}

	ns := sandbox.BuildNamespace(e.catalog)
	return e.executor.Execute(ctx, snippet, ns, e.budget)
}

func (e *Engine) record(log *zap.Logger, o sandbox.Outcome) {
	fields := []zap.Field{
		zap.String("outcome", string(o.Kind)),
		zap.Duration("duration", o.Duration),
		zap.Int("stdout_len", len(o.Stdout)),
	}

	switch o.Kind {
	case sandbox.KindPolicyRejected:
		log.Info("snippet rejected by policy", append(fields,
			zap.String("violation", string(o.Violation.Kind)),
			zap.String("message", o.Violation.Error()))...)
	case sandbox.KindRuntimeFailure:
		log.Info("snippet raised an error", append(fields, zap.String("error", o.Error))...)
	case sandbox.KindTimedOut:
		log.Warn("snippet exceeded budget, worker abandoned", append(fields, zap.Duration("budget", e.budget))...)
	default:
		log.Info("snippet run completed", fields...)
	}

	if e.metrics == nil {
		return
	}
	e.metrics.RunsTotal.WithLabelValues(string(o.Kind)).Inc()
	e.metrics.RunDuration.WithLabelValues(string(o.Kind)).Observe(o.Duration.Seconds())
	if o.Violation != nil {
		e.metrics.ViolationsTotal.WithLabelValues(string(o.Violation.Kind)).Inc()
	}
}
