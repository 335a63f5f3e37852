package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/trendlens/internal/evidenceconfig"
)

// checkConfigCmd validates an evidence YAML file
var checkConfigCmd = &cobra.Command{
	Use:   "check-config [path]",
	Short: "근거 설정 YAML 검증",
	Long: `근거 설정 파일(임계값/테마/라벨)을 검증하고 해시를 출력합니다.
경로를 생략하면 --evidence-config 또는 기본값을 검증합니다.

Example:
  go run ./cmd/trendlens check-config configs/evidence.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheckConfig,
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	path := evidenceConfig
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := evidenceconfig.LoadOrDefault(path)
	if err != nil {
		return err
	}

	hash, err := evidenceconfig.Hash(cfg)
	if err != nil {
		return fmt.Errorf("hash evidence config: %w", err)
	}

	if path == "" {
		path = "(built-in defaults)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s\n   hash: %s\n", path, hash)
	return nil
}
