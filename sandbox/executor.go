package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.starlark.net/starlark"
	"go.uber.org/zap"

	"github.com/isdmx/snippetbox/policy"
)

// StarlarkExecutor implements SandboxExecutor with the embedded Starlark interpreter
type StarlarkExecutor struct {
	logger         *zap.Logger
	maxOutputBytes int
	maxSteps       uint64
	tracker        OrphanTracker
	orphans        atomic.Int64
}

// StarlarkExecutorOption defines a functional option for StarlarkExecutor
type StarlarkExecutorOption func(*StarlarkExecutor)

// WithMaxOutputBytes caps each captured stream
func WithMaxOutputBytes(n int) StarlarkExecutorOption {
	return func(e *StarlarkExecutor) {
		e.maxOutputBytes = n
	}
}

// WithMaxSteps stops a run after n interpreter steps; zero means unlimited
func WithMaxSteps(n uint64) StarlarkExecutorOption {
	return func(e *StarlarkExecutor) {
		e.maxSteps = n
	}
}

// WithOrphanTracker reports abandoned workers to t
func WithOrphanTracker(t OrphanTracker) StarlarkExecutorOption {
	return func(e *StarlarkExecutor) {
		e.tracker = t
	}
}

// NewStarlarkExecutor creates a new StarlarkExecutor with default limits and optional overrides
func NewStarlarkExecutor(logger *zap.Logger, opts ...StarlarkExecutorOption) *StarlarkExecutor {
	executor := &StarlarkExecutor{
		logger:         logger,
		maxOutputBytes: DefaultMaxOutputBytes,
		tracker:        nopTracker{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs snippet on a dedicated goroutine and waits for it until the
// budget expires or ctx is cancelled, whichever comes first.
func (e *StarlarkExecutor) Execute(ctx context.Context, snippet string, ns Namespace, budget time.Duration) Outcome {
	capture := NewCapture(e.maxOutputBytes)
	defer capture.Release()

	thread := &starlark.Thread{
		Name:  policy.SnippetFilename,
		Print: capture.Print,
	}
	if e.maxSteps > 0 {
		thread.SetMaxExecutionSteps(e.maxSteps)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	// Buffered so an abandoned worker can always deliver its result and exit.
	done := make(chan error, 1)
	go func() {
		done <- run(thread, snippet, ns)
	}()

	select {
	case err := <-done:
		if err != nil {
			message := describe(err, capture)
			stdout, stderr := capture.Release()
			return RuntimeFailure(stdout, stderr, message)
		}
		stdout, stderr := capture.Release()
		return Success(stdout, stderr)

	case <-ctxWithTimeout.Done():
		stdout, stderr := capture.Release()
		thread.Cancel(CancelReason)
		e.abandon(done)

		if errors.Is(ctxWithTimeout.Err(), context.DeadlineExceeded) {
			return TimedOut(stdout, stderr)
		}
		return RuntimeFailure(stdout, stderr, fmt.Sprintf("execution cancelled: %v", ctx.Err()))
	}
}

// Orphans returns the number of abandoned workers that have not exited yet
func (e *StarlarkExecutor) Orphans() int64 {
	return e.orphans.Load()
}

func (e *StarlarkExecutor) abandon(done <-chan error) {
	e.orphans.Add(1)
	e.tracker.Inc()

	go func() {
		err := <-done
		e.logger.Debug("abandoned worker exited", zap.Error(err))
		e.tracker.Dec()
		e.orphans.Add(-1)
	}()
}

func run(thread *starlark.Thread, snippet string, ns Namespace) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal interpreter error: %v", r)
		}
	}()

	_, err = starlark.ExecFileOptions(policy.FileOptions(), thread, policy.SnippetFilename, snippet, ns.Globals())
	return err
}

// describe turns a run error into the learner-facing message and writes the
// backtrace, when there is one, to stderr.
func describe(err error, capture *Capture) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		fmt.Fprintln(capture.Stderr(), evalErr.Backtrace())
		return evalErr.Msg
	}
	return err.Error()
}
