package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrRunNotFound is returned when no stored audit run matches
var ErrRunNotFound = errors.New("audit run not found")

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS audit;
	CREATE TABLE IF NOT EXISTS audit.pipeline_runs (
		run_id           UUID PRIMARY KEY,
		project_root     TEXT NOT NULL,
		generated_at     TIMESTAMPTZ NOT NULL,
		total_stages     INT NOT NULL,
		stages_with_data INT NOT NULL,
		report           JSONB NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_pipeline_runs_generated_at
		ON audit.pipeline_runs (generated_at DESC);
`

// Run is one persisted audit report
type Run struct {
	RunID       uuid.UUID `json:"run_id"`
	ProjectRoot string    `json:"project_root"`
	GeneratedAt time.Time `json:"generated_at"`
	Report      Document  `json:"report"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository handles audit run persistence
// ⭐ SSOT: 감사 이력 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the audit schema and table if missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// SaveRun stores a report under runID. Saving the same runID again replaces it.
func (r *Repository) SaveRun(ctx context.Context, runID uuid.UUID, projectRoot string, report *Report) error {
	doc := report.ToDict()
	reportJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO audit.pipeline_runs (
			run_id, project_root, generated_at, total_stages, stages_with_data, report
		) VALUES ($1::uuid, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			project_root = EXCLUDED.project_root,
			generated_at = EXCLUDED.generated_at,
			total_stages = EXCLUDED.total_stages,
			stages_with_data = EXCLUDED.stages_with_data,
			report = EXCLUDED.report
	`

	_, err = r.pool.Exec(ctx, query,
		runID.String(), projectRoot, report.GeneratedAt,
		doc.TotalStages, doc.StagesWithData, reportJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	query := `
		SELECT run_id::text, project_root, generated_at, report, created_at
		FROM audit.pipeline_runs
		WHERE run_id = $1::uuid
	`

	run, err := scanRun(r.pool.QueryRow(ctx, query, runID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit run: %w", err)
	}
	return run, nil
}

// LatestRun retrieves the most recent run
func (r *Repository) LatestRun(ctx context.Context) (*Run, error) {
	query := `
		SELECT run_id::text, project_root, generated_at, report, created_at
		FROM audit.pipeline_runs
		ORDER BY generated_at DESC
		LIMIT 1
	`

	run, err := scanRun(r.pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest audit run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id::text, project_root, generated_at, report, created_at
		FROM audit.pipeline_runs
		ORDER BY generated_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit runs: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		run        Run
		idText     string
		reportJSON []byte
	)

	if err := row.Scan(&idText, &run.ProjectRoot, &run.GeneratedAt, &reportJSON, &run.CreatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idText)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", idText, err)
	}
	run.RunID = id

	if err := json.Unmarshal(reportJSON, &run.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &run, nil
}
