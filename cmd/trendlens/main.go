package main

import (
	"os"

	"github.com/wonny/trendlens/cmd/trendlens/commands"
)

// main is the entry point for the trendlens CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/trendlens [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
