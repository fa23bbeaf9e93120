// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and SNIPPETBOX_* environment variables. It
// supports configuration for server settings, the execution budget and
// output limits of the sandbox, policy catalog overrides, logging and metrics.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Execution budget: %s\n", cfg.GetBudget())
package config
