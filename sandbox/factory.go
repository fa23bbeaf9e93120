package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/snippetbox/config"
)

// NewExecutor creates the sandbox executor described by the configuration
func NewExecutor(logger *zap.Logger, cfg *config.Config, opts ...StarlarkExecutorOption) (*StarlarkExecutor, error) {
	if cfg.Sandbox.MaxOutputKB <= 0 {
		return nil, fmt.Errorf("sandbox.max_output_kb must be positive, got: %d", cfg.Sandbox.MaxOutputKB)
	}

	base := []StarlarkExecutorOption{
		WithMaxOutputBytes(cfg.GetMaxOutputBytes()),
		WithMaxSteps(cfg.Sandbox.MaxSteps),
	}

	return NewStarlarkExecutor(logger, append(base, opts...)...), nil
}
