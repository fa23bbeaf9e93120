package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/isdmx/snippetbox/sandbox"
)

const (
	// EmptyOutputPlaceholder is shown when a successful run printed nothing
	EmptyOutputPlaceholder = "(no output)"
	// TimeoutNotice heads the rendering of a timed out run
	TimeoutNotice = "Execution time exceeded"
)

// Render formats an outcome for the output panel. Each outcome kind has its
// own template so a bug, a rejected snippet and a slow snippet read differently.
func Render(o sandbox.Outcome, budget time.Duration) string {
	switch o.Kind {
	case sandbox.KindSuccess:
		if o.Stdout == "" {
			return EmptyOutputPlaceholder
		}
		return o.Stdout

	case sandbox.KindRuntimeFailure:
		return withPartialOutput(fmt.Sprintf("Your code raised an error: %s", o.Error), o.Stdout)

	case sandbox.KindPolicyRejected:
		if o.Violation == nil {
			return "This code isn't allowed here."
		}
		return fmt.Sprintf("This code isn't allowed here. %s: %s", o.Violation.Kind.Title(), o.Violation.Error())

	case sandbox.KindTimedOut:
		return withPartialOutput(fmt.Sprintf("%s (limit %s). Check for loops that never end.", TimeoutNotice, budget), o.Stdout)

	default:
		return fmt.Sprintf("Unknown outcome %q", o.Kind)
	}
}

// Render formats an outcome with the engine's budget
func (e *Engine) Render(o sandbox.Outcome) string {
	return Render(o, e.budget)
}

func withPartialOutput(header, stdout string) string {
	if stdout == "" {
		return header
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\nOutput so far:\n")
	b.WriteString(stdout)
	return b.String()
}
