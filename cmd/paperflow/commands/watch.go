package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/paperflow/internal/audit"
	"github.com/wonny/paperflow/internal/scheduler"
	"github.com/wonny/paperflow/internal/scheduler/jobs"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "스테이지 파일 변경 감시 및 예약 감사",
	Long: `스테이지 파일이 바뀔 때마다, 그리고 cron 일정(WATCH_SCHEDULE)마다 감사를 실행합니다.

연속된 실행 사이의 행 수 변화(drift)를 출력하고,
DB_ENABLED=true 이면 각 실행을 PostgreSQL에 저장합니다.

Example:
  go run ./cmd/paperflow watch
  go run ./cmd/paperflow watch --schedule "0 0 * * * *" --debounce 5s`,
	RunE: runWatch,
}

var (
	watchSchedule string
	watchDebounce time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)

	// Flags
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron 일정 (초 포함, 기본값: WATCH_SCHEDULE)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "변경 감지 후 대기 시간 (기본값: WATCH_DEBOUNCE)")
}

// consolePublisher prints each run and its drift against the previous one
type consolePublisher struct {
	mu   sync.Mutex
	prev *audit.Report
}

func (c *consolePublisher) Publish(runID uuid.UUID, report *audit.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	PrintDoubleSeparator()
	fmt.Printf("  Audit run %s (%s)\n", runID, report.GeneratedAt.Format(time.RFC3339))
	PrintSeparator()
	fmt.Printf("  Stages with data: %d/%d\n", report.StagesWithData(), report.TotalStages())

	drift := jobs.Drift(c.prev, report)
	if c.prev != nil && len(drift) == 0 {
		fmt.Printf("  %s\n", passLabel("No drift since previous run"))
	}
	for _, d := range drift {
		switch {
		case d.Appeared:
			PrintInfo(fmt.Sprintf("%s appeared (%d rows)", d.Stage, d.AfterRows))
		case d.Vanished:
			PrintError(fmt.Sprintf("%s vanished (was %d rows)", d.Stage, d.BeforeRows))
		default:
			PrintWarning(fmt.Sprintf("%s: %d → %d (%s)", d.Stage, d.BeforeRows, d.AfterRows, signedComma(d.Difference)))
		}
	}
	c.prev = report
}

// startAuditScheduler registers the audit job and starts the cron loop
func startAuditScheduler(a *app, pipeline *audit.Pipeline, store jobs.ReportStore, pubs ...jobs.Publisher) (*scheduler.Scheduler, *jobs.AuditJob, error) {
	job := jobs.NewAuditJob(pipeline, a.log,
		jobs.WithStore(store),
		jobs.WithPublishers(pubs...),
		jobs.WithSchedule(a.cfg.Watch.Schedule),
	)

	sched := scheduler.New(a.log)
	if err := sched.AddJob(job); err != nil {
		return nil, nil, err
	}
	sched.Start()

	a.log.WithField("schedule", job.Schedule()).Info("Audit scheduler started")
	return sched, job, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	fmt.Println("=== paperflow Watch ===")

	a, err := loadApp()
	if err != nil {
		return err
	}
	if watchSchedule != "" {
		a.cfg.Watch.Schedule = watchSchedule
	}
	if watchDebounce > 0 {
		a.cfg.Watch.Debounce = watchDebounce
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}

	var store jobs.ReportStore
	if a.cfg.Database.Enabled {
		repo, db, err := a.history(ctx)
		defer db.Close()
		if err != nil {
			return err
		}
		store = repo
	}

	sched, job, err := startAuditScheduler(a, pipeline, store, &consolePublisher{})
	if err != nil {
		return err
	}
	defer sched.Stop()

	// Initial run so drift has a baseline
	if _, err := sched.RunNow(ctx, job.Name(), scheduler.TriggerManual); err != nil {
		PrintError(err.Error())
	}

	stages := pipeline.Stages()
	files := make([]string, len(stages))
	for i, s := range stages {
		files[i] = a.path(s.Path)
	}

	watcher, err := scheduler.NewWatcher(files, a.cfg.Watch.Debounce, func(ctx context.Context) {
		if _, err := sched.RunNow(ctx, job.Name(), scheduler.TriggerWatch); err != nil {
			a.log.WithError(err).Warn("Change-triggered audit failed")
		}
	}, a.log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Run(ctx)
	}()

	fmt.Printf("👀 Watching %d stage files (schedule %q, debounce %s)\n", len(files), job.Schedule(), a.cfg.Watch.Debounce)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	stats := sched.GetJobStats()[job.Name()]
	fmt.Printf("\n✅ Watch stopped (%d runs, %.0f%% success)\n", stats.TotalRuns, stats.SuccessRate*100)
	return nil
}
