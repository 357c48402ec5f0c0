package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// stagesCmd represents the stages command
var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "스테이지 목록",
	Long: `설정된 파이프라인 스테이지와 파일 상태를 표로 출력합니다.

Example:
  go run ./cmd/paperflow stages
  go run ./cmd/paperflow stages --stages config/stages.yaml`,
	RunE: runStages,
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}

func runStages(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}

	stages := pipeline.Stages()
	rows := make([][]string, 0, len(stages))
	for i, s := range stages {
		size, modified := "-", "-"
		if info, err := os.Stat(a.path(s.Path)); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
			modified = humanize.Time(info.ModTime())
		}
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), s.Name, s.Path, size, modified})
	}

	PrintBanner(fmt.Sprintf("Pipeline Stages (%s)", a.root))
	return printTable([]string{"#", "Stage", "Path", "Size", "Modified"}, rows)
}
