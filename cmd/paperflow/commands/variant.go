package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/paperflow/internal/variant"
	"github.com/wonny/paperflow/pkg/redis"
)

// variantCmd groups manuscript variant commands
var variantCmd = &cobra.Command{
	Use:   "variant",
	Short: "원고 변형(variant) 관리",
	Long: `manuscript_quarto/variants/ 아래 원고 변형을 스냅샷, 색인, 비교합니다.

REDIS_ENABLED=true 이면 파일 sha256 다이제스트를 Redis에 캐시합니다.

Example:
  go run ./cmd/paperflow variant snapshot short --created-by analyst --notes "JEEM 제출본"
  go run ./cmd/paperflow variant index
  go run ./cmd/paperflow variant compare short long --output diff.md`,
}

var variantSnapshotCmd = &cobra.Command{
	Use:   "snapshot <variant>",
	Short: "변형 메타데이터 캡처",
	Args:  cobra.ExactArgs(1),
	RunE:  runVariantSnapshot,
}

var variantIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "변형 색인 재생성",
	Args:  cobra.NoArgs,
	RunE:  runVariantIndex,
}

var variantCompareCmd = &cobra.Command{
	Use:   "compare <left> <right>",
	Short: "두 변형 비교",
	Args:  cobra.ExactArgs(2),
	RunE:  runVariantCompare,
}

var (
	variantCreatedBy string
	variantNotes     string
	variantNoIndex   bool
	variantOutput    string
)

func init() {
	rootCmd.AddCommand(variantCmd)
	variantCmd.AddCommand(variantSnapshotCmd)
	variantCmd.AddCommand(variantIndexCmd)
	variantCmd.AddCommand(variantCompareCmd)

	// Flags
	variantSnapshotCmd.Flags().StringVar(&variantCreatedBy, "created-by", "", "작성자")
	variantSnapshotCmd.Flags().StringVar(&variantNotes, "notes", "", "manifest에 저장할 메모")
	variantSnapshotCmd.Flags().BoolVar(&variantNoIndex, "no-index", false, "색인 재생성 생략")

	variantCompareCmd.Flags().StringVar(&variantOutput, "output", "", "보고서를 파일로 저장")
}

// variantManager builds the manager with the Redis-backed digest cache when enabled.
// The returned close func is never nil.
func variantManager(ctx context.Context, a *app) (*variant.Manager, func(), error) {
	opts := []variant.Option{variant.WithLogger(a.log)}
	closeFn := func() {}

	if a.cfg.Redis.Enabled {
		client, err := redis.New(ctx, a.cfg)
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() { client.Close() }
		cache := redis.NewCache(client, redis.KeyPrefix)
		opts = append(opts, variant.WithDigester(variant.NewDigester(cache, a.cfg.Redis.TTL)))
		a.log.Debug("Digest cache enabled")
	}

	return variant.NewManager(a.path(a.cfg.Project.ManuscriptDir), opts...), closeFn, nil
}

func runVariantSnapshot(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	mgr, closeFn, err := variantManager(ctx, a)
	defer closeFn()
	if err != nil {
		return err
	}

	opts := variant.SnapshotOptions{CreatedBy: variantCreatedBy}
	if cmd.Flags().Changed("notes") {
		opts.Notes = &variantNotes
	}

	manifest, err := mgr.Snapshot(ctx, args[0], opts)
	if err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("Snapshot %s: %d manuscript files, %d data inputs",
		manifest.Variant.Name, len(manifest.ManuscriptFiles), len(manifest.DataProvenance.Files)))

	if variantNoIndex {
		return nil
	}
	idx, err := mgr.BuildIndex(ctx)
	if err != nil {
		return err
	}
	PrintInfo(fmt.Sprintf("Index rebuilt (%d variants)", len(idx.Variants)))
	return nil
}

func runVariantIndex(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	mgr, closeFn, err := variantManager(ctx, a)
	defer closeFn()
	if err != nil {
		return err
	}

	idx, err := mgr.BuildIndex(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(idx.Variants))
	for _, v := range idx.Variants {
		commit := v.GitCommit
		if v.GitDirty {
			commit += " (dirty)"
		}
		rows = append(rows, []string{v.Name, v.SnapshotAt, v.OutputDir, commit})
	}
	PrintBanner(fmt.Sprintf("Variants (%s)", mgr.VariantsDir()))
	return printTable([]string{"Variant", "Snapshot", "Output", "Git"}, rows)
}

func runVariantCompare(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	mgr, closeFn, err := variantManager(cmd.Context(), a)
	defer closeFn()
	if err != nil {
		return err
	}

	cmp, err := mgr.Compare(args[0], args[1])
	if err != nil {
		return err
	}

	report := cmp.Markdown()
	if variantOutput == "" {
		fmt.Println(report)
		return nil
	}
	if err := os.WriteFile(variantOutput, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Comparison saved to: %s", variantOutput))
	return nil
}
