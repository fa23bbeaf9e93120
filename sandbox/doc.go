// Package sandbox provides time-bounded, in-process snippet execution.
//
// The sandbox package runs policy-approved Starlark snippets against a fresh
// namespace built from the policy catalog's allow-list. Each run gets its own
// output capture and its own worker goroutine; the caller waits at most the
// execution budget. A worker still running when the budget expires is
// abandoned: the caller receives a TimedOut outcome while the worker is asked
// to stop through starlark.Thread.Cancel and exits at its next step.
//
// Usage:
//
//	executor := sandbox.NewStarlarkExecutor(logger)
//	ns := sandbox.BuildNamespace(policy.DefaultCatalog())
//	outcome := executor.Execute(ctx, "print(1+1)", ns, 2*time.Second)
//	fmt.Println(outcome.Kind, outcome.Stdout)
package sandbox
