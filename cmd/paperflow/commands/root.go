package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	projectRoot string
	stagesFile  string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "paperflow",
	Short: "paperflow - 연구 파이프라인 데이터 품질 감사",
	Long: `paperflow Unified CLI

연구 프로젝트의 파이프라인 스테이지 파일을 감사하고,
데이터셋을 선언적 규칙으로 검증하며, 원고 변형을 스냅샷합니다.

Usage:
  go run ./cmd/paperflow [command]

Examples:
  go run ./cmd/paperflow audit
  go run ./cmd/paperflow validate data_work/panel.parquet --rules rules.yaml
  go run ./cmd/paperflow variant snapshot short
  go run ./cmd/paperflow serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", "", "project root (default: PROJECT_ROOT or walk up to src/ + manuscript_quarto/)")
	rootCmd.PersistentFlags().StringVar(&stagesFile, "stages", "", "stage map YAML (default: AUDIT_STAGES_FILE or built-in stages)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
