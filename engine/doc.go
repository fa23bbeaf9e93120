// Package engine is the entry point the content and UI layers call.
//
// An Engine folds the static policy check and the time-bounded executor into
// a single sandbox.Outcome. CanRun only checks policy and never executes
// anything; Run checks, builds a fresh namespace and executes, and never
// panics or blocks past the configured budget plus scheduling overhead.
//
// Usage:
//
//	eng, err := engine.New(logger, policy.DefaultCatalog(), engine.WithBudget(2*time.Second))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := eng.CanRun(src); err != nil {
//	    // disable the run button, show err as a tooltip
//	}
//	outcome := eng.Run(ctx, src)
//	fmt.Println(eng.Render(outcome))
package engine
