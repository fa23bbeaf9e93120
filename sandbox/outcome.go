package sandbox

import (
	"time"

	"github.com/isdmx/snippetbox/policy"
)

// Kind discriminates the terminal result of a run attempt
type Kind string

const (
	KindSuccess        Kind = "success"
	KindRuntimeFailure Kind = "runtime_failure"
	KindPolicyRejected Kind = "policy_rejected"
	KindTimedOut       Kind = "timed_out"
)

// Outcome is the result of one run attempt. Exactly one variant is populated,
// selected by Kind:
//
//   - KindSuccess: Stdout
//   - KindRuntimeFailure: partial Stdout, Error
//   - KindPolicyRejected: Violation
//   - KindTimedOut: partial Stdout
//
// Stderr carries interpreter diagnostics such as the evaluation backtrace.
type Outcome struct {
	Kind      Kind              `json:"kind"`
	Stdout    string            `json:"stdout"`
	Stderr    string            `json:"stderr,omitempty"`
	Error     string            `json:"error,omitempty"`
	Violation *policy.Violation `json:"violation,omitempty"`
	RunID     string            `json:"run_id,omitempty"`
	Duration  time.Duration     `json:"duration_ns"`
}

// Success builds a successful outcome
func Success(stdout, stderr string) Outcome {
	return Outcome{Kind: KindSuccess, Stdout: stdout, Stderr: stderr}
}

// RuntimeFailure builds an outcome for an error raised inside the sandbox
func RuntimeFailure(stdout, stderr, message string) Outcome {
	return Outcome{Kind: KindRuntimeFailure, Stdout: stdout, Stderr: stderr, Error: message}
}

// PolicyRejected builds an outcome for a snippet that was never run
func PolicyRejected(v *policy.Violation) Outcome {
	return Outcome{Kind: KindPolicyRejected, Violation: v}
}

// TimedOut builds an outcome for a run that exceeded its budget
func TimedOut(stdout, stderr string) Outcome {
	return Outcome{Kind: KindTimedOut, Stdout: stdout, Stderr: stderr}
}

// OK reports whether the run completed successfully
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}
