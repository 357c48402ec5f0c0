package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wonny/paperflow/internal/audit"
	"github.com/wonny/paperflow/pkg/logger"
)

// DefaultAuditSchedule runs the audit every 15 minutes (with seconds)
const DefaultAuditSchedule = "0 */15 * * * *"

// ReportStore persists audit runs. *audit.Repository satisfies it.
type ReportStore interface {
	SaveRun(ctx context.Context, runID uuid.UUID, projectRoot string, report *audit.Report) error
}

// Publisher receives every completed audit run (e.g. the websocket hub)
type Publisher interface {
	Publish(runID uuid.UUID, report *audit.Report)
}

// StageDrift is a row-count change of one stage between two consecutive runs
type StageDrift struct {
	Stage      string `json:"stage"`
	BeforeRows int    `json:"before_rows"`
	AfterRows  int    `json:"after_rows"`
	Difference int    `json:"difference"`
	Appeared   bool   `json:"appeared,omitempty"`
	Vanished   bool   `json:"vanished,omitempty"`
}

// AuditJob runs the full pipeline audit
// ⭐ SSOT: 예약/변경 감지 감사 실행은 이 Job에서만
type AuditJob struct {
	pipeline   *audit.Pipeline
	store      ReportStore
	publishers []Publisher
	schedule   string
	logger     *logger.Logger

	mu       sync.Mutex
	previous *audit.Report
	lastRun  uuid.UUID
}

// AuditJobOption configures an AuditJob
type AuditJobOption func(*AuditJob)

// WithStore saves each run through store
func WithStore(store ReportStore) AuditJobOption {
	return func(j *AuditJob) {
		j.store = store
	}
}

// WithPublishers adds run subscribers
func WithPublishers(pubs ...Publisher) AuditJobOption {
	return func(j *AuditJob) {
		j.publishers = append(j.publishers, pubs...)
	}
}

// WithSchedule overrides DefaultAuditSchedule
func WithSchedule(expr string) AuditJobOption {
	return func(j *AuditJob) {
		if expr != "" {
			j.schedule = expr
		}
	}
}

// NewAuditJob creates a new audit job
func NewAuditJob(pipeline *audit.Pipeline, log *logger.Logger, opts ...AuditJobOption) *AuditJob {
	j := &AuditJob{
		pipeline: pipeline,
		schedule: DefaultAuditSchedule,
		logger:   log.WithComponent("audit_job"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name returns the job name
func (j *AuditJob) Name() string {
	return "pipeline_audit"
}

// Schedule returns the cron schedule
func (j *AuditJob) Schedule() string {
	return j.schedule
}

// Previous returns the last completed run, or nil before the first one
func (j *AuditJob) Previous() (uuid.UUID, *audit.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun, j.previous
}

// Run audits every stage, logs drift against the previous run, then stores and publishes the report
func (j *AuditJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runID := uuid.New()
	log := j.logger.WithField("run_id", runID.String())

	report := j.pipeline.RunFullAudit()
	log.WithFields(map[string]interface{}{
		"stages":    report.TotalStages(),
		"with_data": report.StagesWithData(),
	}).Info("Pipeline audit finished")

	j.mu.Lock()
	prev := j.previous
	j.mu.Unlock()

	for _, d := range Drift(prev, report) {
		log.WithFields(map[string]interface{}{
			"stage":      d.Stage,
			"before":     d.BeforeRows,
			"after":      d.AfterRows,
			"difference": d.Difference,
			"appeared":   d.Appeared,
			"vanished":   d.Vanished,
		}).Warn("Stage row count drifted")
	}

	if j.store != nil {
		if err := j.store.SaveRun(ctx, runID, j.pipeline.Root(), report); err != nil {
			return fmt.Errorf("save audit run: %w", err)
		}
	}

	j.mu.Lock()
	j.previous = report
	j.lastRun = runID
	j.mu.Unlock()

	for _, p := range j.publishers {
		p.Publish(runID, report)
	}

	return nil
}

// Drift lists stages whose row count or presence changed between prev and cur
func Drift(prev, cur *audit.Report) []StageDrift {
	if prev == nil || cur == nil {
		return nil
	}

	before := make(map[string]audit.StageAudit, len(prev.Stages))
	for _, s := range prev.Stages {
		before[s.StageName] = s
	}

	var out []StageDrift
	for _, s := range cur.Stages {
		b, ok := before[s.StageName]
		if !ok {
			continue
		}
		d := StageDrift{
			Stage:      s.StageName,
			BeforeRows: b.RowCount,
			AfterRows:  s.RowCount,
			Difference: s.RowCount - b.RowCount,
			Appeared:   !b.Exists && s.Exists,
			Vanished:   b.Exists && !s.Exists,
		}
		if d.Difference != 0 || d.Appeared || d.Vanished {
			out = append(out, d)
		}
	}
	return out
}
