package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	evidenceConfig string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trendlens",
	Short: "TrendLens - 토픽 근거/기회 점수 설명 서비스",
	Long: `TrendLens Unified CLI

토픽의 기회 점수를 분해하고, 리스크/반대 근거와
신호 수렴도, 예측 타임라인을 함께 제공하는 Go BFF.

Usage:
  go run ./cmd/trendlens [command]

Examples:
  go run ./cmd/trendlens api
  go run ./cmd/trendlens evidence 42
  go run ./cmd/trendlens refresh
  go run ./cmd/trendlens check-config configs/evidence.yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&evidenceConfig, "evidence-config", "", "evidence YAML (overrides EVIDENCE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
