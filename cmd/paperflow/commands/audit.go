package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/paperflow/internal/audit"
	"github.com/wonny/paperflow/internal/tabular"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "파이프라인 스테이지 감사",
	Long: `설정된 모든 파이프라인 스테이지 파일을 감사합니다.

각 스테이지의 존재 여부, 행/열 수, 파일 크기, 컬럼별 결측치를 보고하고
연속된 데이터 스테이지 사이의 행 감소(attrition)를 계산합니다.

Example:
  go run ./cmd/paperflow audit
  go run ./cmd/paperflow audit --full --report
  go run ./cmd/paperflow audit --output data_work/diagnostics/audit.json
  go run ./cmd/paperflow audit --format markdown
  go run ./cmd/paperflow audit --save-db`,
	RunE: runAudit,
}

// auditCompareCmd compares two stages
var auditCompareCmd = &cobra.Command{
	Use:   "compare <stage1> <stage2>",
	Short: "두 스테이지 비교",
	Long: `두 스테이지의 행 수 차이와 컬럼 추가/삭제를 비교합니다.

Example:
  go run ./cmd/paperflow audit compare raw linked`,
	Args: cobra.ExactArgs(2),
	RunE: runAuditCompare,
}

// auditCoverageCmd checks required columns of a dataset
var auditCoverageCmd = &cobra.Command{
	Use:   "coverage <file>",
	Short: "필수 컬럼 커버리지 확인",
	Long: `데이터셋이 필수 컬럼을 모두 포함하는지 확인합니다.
--key 와 --value 를 함께 주면 연결(match) 비율도 계산합니다.

Example:
  go run ./cmd/paperflow audit coverage data_work/panel.parquet --require id,year,outcome
  go run ./cmd/paperflow audit coverage data_work/linked.csv --key id --value census_tract`,
	Args: cobra.ExactArgs(1),
	RunE: runAuditCoverage,
}

// auditCountCmd counts rows without a full load
var auditCountCmd = &cobra.Command{
	Use:   "count <file>",
	Short: "행 수 빠른 계산",
	Long: `전체 로드 없이 데이터 파일의 행 수를 계산합니다.

Example:
  go run ./cmd/paperflow audit count data_work/data_raw.parquet`,
	Args: cobra.ExactArgs(1),
	RunE: runAuditCount,
}

// auditHistoryCmd lists stored runs
var auditHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "저장된 감사 이력 조회",
	Long: `PostgreSQL에 저장된 감사 실행 이력을 조회합니다 (DB_ENABLED=true 필요).

Example:
  go run ./cmd/paperflow audit history --limit 10`,
	RunE: runAuditHistory,
}

var (
	auditFull    bool
	auditReport  bool
	auditOutput  string
	auditFormat  string
	auditSaveDB  bool
	coverageCols []string
	coverageKey  string
	coverageVal  string
	historyLimit int
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditCompareCmd)
	auditCmd.AddCommand(auditCoverageCmd)
	auditCmd.AddCommand(auditCountCmd)
	auditCmd.AddCommand(auditHistoryCmd)

	// Flags
	auditCmd.Flags().BoolVarP(&auditFull, "full", "f", false, "컬럼 목록까지 출력")
	auditCmd.Flags().BoolVarP(&auditReport, "report", "r", false, "마크다운 보고서를 diagnostics 디렉토리에 저장")
	auditCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "JSON 보고서 저장 경로")
	auditCmd.Flags().StringVar(&auditFormat, "format", "text", "출력 형식 (text|markdown|json)")
	auditCmd.Flags().BoolVar(&auditSaveDB, "save-db", false, "감사 결과를 PostgreSQL에 저장")

	auditCoverageCmd.Flags().StringSliceVar(&coverageCols, "require", nil, "필수 컬럼 (쉼표 구분)")
	auditCoverageCmd.Flags().StringVar(&coverageKey, "key", "", "match rate 키 컬럼")
	auditCoverageCmd.Flags().StringVar(&coverageVal, "value", "", "match rate 값 컬럼")

	auditHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "조회할 실행 수")
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}

	report := pipeline.RunFullAudit()

	switch auditFormat {
	case "text":
		fmt.Println(report.Format(auditFull))
	case "markdown":
		fmt.Println(audit.RenderMarkdown(report))
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown format %q (text|markdown|json)", auditFormat)
	}

	if auditOutput != "" {
		path, err := report.Save(a.path(auditOutput))
		if err != nil {
			return err
		}
		fmt.Printf("\nJSON report saved to: %s\n", path)
	}

	if auditReport {
		mdPath := filepath.Join(a.path(a.cfg.Project.DiagnosticsDir), "audit_report.md")
		if err := os.MkdirAll(filepath.Dir(mdPath), 0o755); err != nil {
			return fmt.Errorf("create diagnostics dir: %w", err)
		}
		if err := os.WriteFile(mdPath, []byte(audit.RenderMarkdown(report)), 0o644); err != nil {
			return fmt.Errorf("write markdown report: %w", err)
		}
		fmt.Printf("\nMarkdown report saved to: %s\n", mdPath)
	}

	if auditSaveDB {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		repo, db, err := a.history(ctx)
		defer db.Close()
		if err != nil {
			return err
		}

		runID := uuid.New()
		if err := repo.SaveRun(ctx, runID, a.root, report); err != nil {
			return err
		}
		fmt.Println()
		PrintSuccess(fmt.Sprintf("Audit run saved: %s", runID))
	}

	return nil
}

func runAuditCompare(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}

	cmp, err := pipeline.CompareStages(args[0], args[1])
	if err != nil {
		return err
	}

	PrintBanner(fmt.Sprintf("Compare %s → %s", cmp.Stage1, cmp.Stage2))
	if !cmp.OK() {
		PrintError(cmp.Error)
		fmt.Printf("  %s exists: %t\n", cmp.Stage1, cmp.Stage1Exists)
		fmt.Printf("  %s exists: %t\n", cmp.Stage2, cmp.Stage2Exists)
		return nil
	}

	fmt.Printf("Rows      : %s → %s (%s)\n",
		humanize.Comma(int64(cmp.RowCount1)),
		humanize.Comma(int64(cmp.RowCount2)),
		signedComma(cmp.RowDiff))
	fmt.Printf("Added     : %s\n", listOrDash(cmp.ColumnsAdded))
	fmt.Printf("Removed   : %s\n", listOrDash(cmp.ColumnsRemoved))
	fmt.Printf("Common    : %d columns\n", len(cmp.ColumnsCommon))
	return nil
}

func runAuditCoverage(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	path := a.path(args[0])
	ds, err := tabular.NewLoader().Load(path)
	if err != nil {
		return err
	}

	PrintBanner("Column Coverage")
	fmt.Printf("File      : %s\n", path)
	fmt.Printf("Rows      : %s\n", humanize.Comma(int64(ds.NumRows())))

	cov := audit.CheckColumnCoverage(ds, coverageCols)
	fmt.Printf("Coverage  : %.1f%%\n", cov.CoverageRate*100)
	for _, col := range cov.Present {
		fmt.Printf("  %s %s\n", passLabel("✓"), col)
	}
	for _, col := range cov.Missing {
		fmt.Printf("  %s %s\n", failLabel("✗"), col)
	}

	if coverageKey != "" || coverageVal != "" {
		if coverageKey == "" || coverageVal == "" {
			return errors.New("--key and --value must be given together")
		}
		stats, err := audit.MatchRate(ds, coverageKey, coverageVal)
		if err != nil {
			return err
		}
		PrintSeparator()
		fmt.Printf("Match     : %s / %s (%.1f%%)\n",
			humanize.Comma(int64(stats.Matched)),
			humanize.Comma(int64(stats.Total)),
			stats.Rate*100)
	}

	if len(cov.Missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(cov.Missing, ", "))
	}
	return nil
}

func runAuditCount(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}

	rows, err := pipeline.CountRows(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s rows\n", args[0], humanize.Comma(int64(rows)))
	return nil
}

func runAuditHistory(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	repo, db, err := a.history(ctx)
	defer db.Close()
	if err != nil {
		return err
	}

	runs, err := repo.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		PrintInfo("No audit runs stored yet")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.RunID.String(),
			humanize.Time(run.GeneratedAt),
			strconv.Itoa(run.Report.StagesWithData) + "/" + strconv.Itoa(run.Report.TotalStages),
			strconv.Itoa(len(run.Report.Attrition)),
			run.ProjectRoot,
		})
	}
	return printTable([]string{"Run ID", "Generated", "With Data", "Attrition Steps", "Project"}, rows)
}

func signedComma(n int) string {
	if n > 0 {
		return "+" + humanize.Comma(int64(n))
	}
	return humanize.Comma(int64(n))
}

func listOrDash(items []string) string {
	if len(items) == 0 {
		return dimLabel("-")
	}
	return strings.Join(items, ", ")
}
