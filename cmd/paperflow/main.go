package main

import (
	"os"

	"github.com/wonny/paperflow/cmd/paperflow/commands"
)

// main is the entry point for the paperflow CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/paperflow [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
