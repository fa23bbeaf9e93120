package sandbox

import (
	"context"
	"time"
)

// SandboxExecutor runs one policy-approved snippet against a namespace,
// waiting at most budget. It never returns KindPolicyRejected.
type SandboxExecutor interface {
	Execute(ctx context.Context, snippet string, ns Namespace, budget time.Duration) Outcome
}

// OrphanTracker is told when a worker is abandoned after a timeout and
// when that worker finally exits. prometheus.Gauge satisfies it.
type OrphanTracker interface {
	Inc()
	Dec()
}

type nopTracker struct{}

func (nopTracker) Inc() {}
func (nopTracker) Dec() {}

// DefaultMaxOutputBytes caps each captured stream unless overridden
const DefaultMaxOutputBytes = 64 * 1024

// CancelReason is passed to starlark.Thread.Cancel when the budget expires
const CancelReason = "execution time exceeded"
