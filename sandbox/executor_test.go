package sandbox

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/snippetbox/policy"
)

// countingTracker implements OrphanTracker for testing
type countingTracker struct {
	mu      sync.Mutex
	current int
	total   int
}

func (c *countingTracker) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current++
	c.total++
}

func (c *countingTracker) Dec() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current--
}

func (c *countingTracker) snapshot() (current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.total
}

func newTestExecutor(t *testing.T, opts ...StarlarkExecutorOption) *StarlarkExecutor {
	t.Helper()
	executor := NewStarlarkExecutor(zaptest.NewLogger(t), opts...)
	// Abandoned workers log on exit; let them finish before the test logger goes away.
	t.Cleanup(func() {
		assert.Eventually(t, func() bool { return executor.Orphans() == 0 }, 5*time.Second, 10*time.Millisecond)
	})
	return executor
}

func execute(t *testing.T, executor *StarlarkExecutor, snippet string, budget time.Duration) Outcome {
	t.Helper()
	ns := BuildNamespace(policy.DefaultCatalog())
	return executor.Execute(context.Background(), snippet, ns, budget)
}

func TestStarlarkExecutorConstructors(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("DefaultConstructor", func(t *testing.T) {
		executor := NewStarlarkExecutor(logger)
		require.NotNil(t, executor)
		assert.Equal(t, logger, executor.logger)
		assert.Equal(t, DefaultMaxOutputBytes, executor.maxOutputBytes)
		assert.Zero(t, executor.maxSteps)
		assert.NotNil(t, executor.tracker)
	})

	t.Run("ConstructorWithOptions", func(t *testing.T) {
		tracker := &countingTracker{}
		executor := NewStarlarkExecutor(logger,
			WithMaxOutputBytes(128),
			WithMaxSteps(42),
			WithOrphanTracker(tracker),
		)
		assert.Equal(t, 128, executor.maxOutputBytes)
		assert.Equal(t, uint64(42), executor.maxSteps)
		assert.Equal(t, tracker, executor.tracker)
	})
}

func TestStarlarkExecutorCompletes(t *testing.T) {
	executor := newTestExecutor(t)

	t.Run("Success", func(t *testing.T) {
		o := execute(t, executor, "print(1+1)", time.Second)
		assert.Equal(t, KindSuccess, o.Kind)
		assert.Equal(t, "2\n", o.Stdout)
	})

	t.Run("SuccessWithoutOutput", func(t *testing.T) {
		o := execute(t, executor, "x = [i * i for i in range(10)]", time.Second)
		assert.Equal(t, KindSuccess, o.Kind)
		assert.Empty(t, o.Stdout)
	})

	t.Run("SandboxBuiltins", func(t *testing.T) {
		o := execute(t, executor, "print(sum([1, 2, 3]), pow(2, 8), divmod(7, 2))", time.Second)
		assert.Equal(t, KindSuccess, o.Kind)
		assert.Equal(t, "6 256 (3, 1)\n", o.Stdout)
	})

	t.Run("DivisionByZero", func(t *testing.T) {
		o := execute(t, executor, "1/0", time.Second)
		assert.Equal(t, KindRuntimeFailure, o.Kind)
		assert.Empty(t, o.Stdout)
		assert.Contains(t, o.Error, "division")
		assert.Contains(t, o.Stderr, "Traceback")
	})

	t.Run("PartialOutputKept", func(t *testing.T) {
		o := execute(t, executor, "print('before')\nx = {}['missing']\nprint('after')", time.Second)
		assert.Equal(t, KindRuntimeFailure, o.Kind)
		assert.Equal(t, "before\n", o.Stdout)
		assert.Contains(t, o.Error, "missing")
	})

	t.Run("UndefinedName", func(t *testing.T) {
		o := execute(t, executor, "print(x)", time.Second)
		assert.Equal(t, KindRuntimeFailure, o.Kind)
		assert.Contains(t, o.Error, "undefined: x")
	})

	t.Run("UnavailableUniverseBuiltin", func(t *testing.T) {
		o := execute(t, executor, "print(hash('a'))", time.Second)
		assert.Equal(t, KindRuntimeFailure, o.Kind)
		assert.Contains(t, o.Error, "hash is not available in the sandbox")
	})

	t.Run("BacktraceNamesFunction", func(t *testing.T) {
		o := execute(t, executor, "def f(n):\n    return n / 0\nf(1)", time.Second)
		assert.Equal(t, KindRuntimeFailure, o.Kind)
		assert.Contains(t, o.Stderr, "in f")
	})
}

func TestStarlarkExecutorTimeout(t *testing.T) {
	t.Run("InfiniteLoop", func(t *testing.T) {
		tracker := &countingTracker{}
		executor := newTestExecutor(t, WithOrphanTracker(tracker))

		start := time.Now()
		o := execute(t, executor, "while True:\n    pass", 500*time.Millisecond)
		elapsed := time.Since(start)

		assert.Equal(t, KindTimedOut, o.Kind)
		assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
		assert.Less(t, elapsed, 900*time.Millisecond)

		_, total := tracker.snapshot()
		assert.Equal(t, 1, total)

		// The abandoned worker observes the cancellation and exits.
		assert.Eventually(t, func() bool {
			current, _ := tracker.snapshot()
			return current == 0 && executor.Orphans() == 0
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("PartialOutput", func(t *testing.T) {
		executor := newTestExecutor(t)
		o := execute(t, executor, "print('started')\nwhile True:\n    pass", 200*time.Millisecond)
		assert.Equal(t, KindTimedOut, o.Kind)
		assert.Equal(t, "started\n", o.Stdout)
	})

	t.Run("OutputCapped", func(t *testing.T) {
		executor := newTestExecutor(t, WithMaxOutputBytes(32))
		o := execute(t, executor, "while True:\n    print('spam')", 200*time.Millisecond)
		assert.Equal(t, KindTimedOut, o.Kind)
		assert.True(t, strings.HasSuffix(o.Stdout, TruncationMarker))
		assert.LessOrEqual(t, len(o.Stdout), 32+len(TruncationMarker))
	})

	t.Run("StepLimit", func(t *testing.T) {
		executor := newTestExecutor(t, WithMaxSteps(10000))
		o := execute(t, executor, "while True:\n    pass", 5*time.Second)
		assert.Equal(t, KindRuntimeFailure, o.Kind)
		assert.Contains(t, o.Error, "too many steps")
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		executor := newTestExecutor(t)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(100*time.Millisecond, cancel)

		o := executor.Execute(ctx, "while True:\n    pass", BuildNamespace(policy.DefaultCatalog()), 5*time.Second)
		assert.Equal(t, KindRuntimeFailure, o.Kind)
		assert.Contains(t, o.Error, "execution cancelled")
	})
}

func TestStarlarkExecutorIsolation(t *testing.T) {
	executor := newTestExecutor(t)

	t.Run("NoStateBetweenRuns", func(t *testing.T) {
		first := execute(t, executor, "x = 5\nprint(x * 2)", time.Second)
		assert.Equal(t, KindSuccess, first.Kind)
		assert.Equal(t, "10\n", first.Stdout)

		second := execute(t, executor, "print(x)", time.Second)
		assert.Equal(t, KindRuntimeFailure, second.Kind)
	})

	t.Run("ConcurrentOutputNeverMixes", func(t *testing.T) {
		var wg sync.WaitGroup
		results := make([]Outcome, 20)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				letter := string(rune('a' + i))
				results[i] = execute(t, executor, "for i in range(50):\n    print('"+letter+"')", 5*time.Second)
			}(i)
		}
		wg.Wait()

		for i, o := range results {
			letter := string(rune('a' + i))
			require.Equal(t, KindSuccess, o.Kind)
			assert.Equal(t, strings.Repeat(letter+"\n", 50), o.Stdout)
		}
	})
}
