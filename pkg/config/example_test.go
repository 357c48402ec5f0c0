package config_test

import (
	"fmt"

	"github.com/wonny/paperflow/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Stages file: %s\n", cfg.Project.StagesFile)
	fmt.Printf("Diagnostics: %s\n", cfg.Project.DiagnosticsDir)
	fmt.Printf("History store enabled: %v\n", cfg.Database.Enabled)
}
