package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/paperflow/internal/tabular"
	"github.com/wonny/paperflow/internal/validation"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "규칙 기반 데이터셋 검증",
	Long: `YAML 규칙 파일로 데이터셋을 검증합니다.

지원 형식: .csv .parquet .json .xlsx .gpkg
error 심각도 규칙이 실패하면 종료 코드 1 을 반환합니다.
--strict 를 주면 warning 실패도 실패로 취급합니다.

Example:
  go run ./cmd/paperflow validate data_work/panel.parquet --rules config/rules.yaml
  go run ./cmd/paperflow validate data_work/panel.csv --show-passed
  go run ./cmd/paperflow validate data_work/panel.csv --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var (
	validateRules      string
	validateShowPassed bool
	validateStrict     bool
	validateFormat     string
)

func init() {
	rootCmd.AddCommand(validateCmd)

	// Flags
	validateCmd.Flags().StringVar(&validateRules, "rules", "", "규칙 YAML 파일 (기본값: VALIDATION_RULES_FILE)")
	validateCmd.Flags().BoolVar(&validateShowPassed, "show-passed", false, "통과한 검사도 출력")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "warning 실패도 실패로 처리")
	validateCmd.Flags().StringVar(&validateFormat, "format", "text", "출력 형식 (text|json)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	rulesPath := validateRules
	if rulesPath == "" {
		rulesPath = a.cfg.Project.RulesFile
	}
	if rulesPath == "" {
		return errors.New("no rules file: pass --rules or set VALIDATION_RULES_FILE")
	}

	rules, err := validation.LoadRuleSet(a.path(rulesPath))
	if err != nil {
		return err
	}

	path := a.path(args[0])
	ds, err := tabular.NewLoader().Load(path)
	if err != nil {
		return err
	}

	report := rules.Validate(ds, a.log)

	switch validateFormat {
	case "text":
		fmt.Println(report.Format(validateShowPassed))
		fmt.Printf("%s %s (%d errors, %d warnings)\n",
			statusLabel(report.Passed()), path, report.ErrorCount(), report.WarningCount())
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown format %q (text|json)", validateFormat)
	}

	if report.HasErrors() {
		return fmt.Errorf("%w: %d error(s)", validation.ErrValidationFailed, report.ErrorCount())
	}
	if validateStrict && report.HasWarnings() {
		return fmt.Errorf("%w: %d warning(s) in strict mode", validation.ErrValidationFailed, report.WarningCount())
	}
	return nil
}
