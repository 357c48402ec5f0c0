package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/paperflow/internal/api"
	"github.com/wonny/paperflow/internal/api/handlers"
	"github.com/wonny/paperflow/internal/scheduler/jobs"
	"github.com/wonny/paperflow/internal/tabular"
	"github.com/wonny/paperflow/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `감사/검증 REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 예약 감사 실행 (스케줄러)
- 감사 결과 웹소켓 스트림 제공

Endpoints:
  GET  /health                 - Health check
  GET  /api/audit              - 전체 감사 (JSON)
  GET  /api/audit/markdown     - 전체 감사 (Markdown)
  GET  /api/audit/text         - 전체 감사 (텍스트, ?columns=true)
  GET  /api/audit/history      - 저장된 감사 이력 (DB 필요)
  GET  /api/stages             - 스테이지 목록
  GET  /api/stages/compare     - 스테이지 비교 (?a=..&b=..)
  POST /api/validate           - 데이터셋 검증
  GET  /ws/audit               - 감사 실행 스트림

Example:
  go run ./cmd/paperflow serve
  go run ./cmd/paperflow serve --port 8090 --no-scheduler`,
	RunE: runServe,
}

var (
	servePort        string
	serveNoScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본값: PORT)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "예약 감사 비활성화")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== paperflow API Server ===")

	// 1. Load config
	a, err := loadApp()
	if err != nil {
		return err
	}
	if servePort != "" {
		a.cfg.API.Port = servePort
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// 2. Build pipeline
	pipeline, err := a.pipeline()
	if err != nil {
		return err
	}

	// 3. Optional audit history
	var history handlers.HistoryStore
	var store jobs.ReportStore
	backends := make(map[string]api.Pinger)
	if a.cfg.Database.Enabled {
		repo, db, err := a.history(ctx)
		defer db.Close()
		if err != nil {
			return err
		}
		history = repo
		store = repo
		backends["database"] = db
	}

	// 4. Rate limiter (Redis when enabled, otherwise per-process)
	var limiter api.Limiter = api.NewLocalLimiter(a.cfg.API.RateLimit, a.cfg.API.RateBurst)
	if a.cfg.Redis.Enabled {
		client, err := redis.New(ctx, a.cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		backends["redis"] = client

		perMinute := int(math.Ceil(a.cfg.API.RateLimit * 60))
		limiter = redis.NewRateLimiter(client, redis.KeyPrefix, perMinute, time.Minute)
		a.log.WithField("limit_per_minute", perMinute).Info("Using Redis rate limiter")
	}

	// 5. Handlers and router
	hub := api.NewHub(a.log)
	router := api.NewRouter(api.Routes{
		Audit:    handlers.NewAuditHandler(pipeline, history, a.log),
		Validate: handlers.NewValidateHandler(a.root, a.cfg.Project.RulesFile, tabular.NewLoader(), a.log),
		Hub:      hub,
		Limiter:  limiter,
		Backends: backends,
	}, a.log)

	// 6. Scheduled audits stream to the hub
	if !serveNoScheduler {
		sched, _, err := startAuditScheduler(a, pipeline, store, hub)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	// 7. Start server
	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("✅ API server listening on :%s\n", a.cfg.API.Port)
	fmt.Println("Press Ctrl+C to stop")

	// 8. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
		return errors.New("server stopped unexpectedly")
	}

	fmt.Println("\nShutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	fmt.Println("✅ Server stopped")
	return nil
}
