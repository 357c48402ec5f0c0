package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/paperflow/internal/audit"
	"github.com/wonny/paperflow/internal/contracts"
	"github.com/wonny/paperflow/pkg/logger"
)

type memStore struct {
	runs map[uuid.UUID]*audit.Report
	err  error
}

func (m *memStore) SaveRun(_ context.Context, runID uuid.UUID, _ string, report *audit.Report) error {
	if m.err != nil {
		return m.err
	}
	m.runs[runID] = report
	return nil
}

type recorder struct {
	ids []uuid.UUID
}

func (r *recorder) Publish(runID uuid.UUID, _ *audit.Report) {
	r.ids = append(r.ids, runID)
}

func writeCSV(t *testing.T, path string, rows int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var b strings.Builder
	b.WriteString("id\n")
	for i := 0; i < rows; i++ {
		b.WriteString("1\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func testPipeline(t *testing.T, root string) *audit.Pipeline {
	t.Helper()
	p, err := audit.New(root, audit.WithStages([]contracts.Stage{
		{Name: "raw", Path: "raw.csv"},
		{Name: "clean", Path: "clean.csv"},
	}))
	require.NoError(t, err)
	return p
}

func TestAuditJob_Run(t *testing.T) {
	root := t.TempDir()
	writeCSV(t, filepath.Join(root, "raw.csv"), 10)

	store := &memStore{runs: map[uuid.UUID]*audit.Report{}}
	pub := &recorder{}
	job := NewAuditJob(testPipeline(t, root), logger.Nop(), WithStore(store), WithPublishers(pub))

	assert.Equal(t, "pipeline_audit", job.Name())
	assert.Equal(t, DefaultAuditSchedule, job.Schedule())

	require.NoError(t, job.Run(context.Background()))
	first, report := job.Previous()
	require.NotNil(t, report)
	assert.Equal(t, 1, report.StagesWithData())
	assert.Contains(t, store.runs, first)

	writeCSV(t, filepath.Join(root, "raw.csv"), 12)
	writeCSV(t, filepath.Join(root, "clean.csv"), 8)
	require.NoError(t, job.Run(context.Background()))
	second, _ := job.Previous()

	assert.NotEqual(t, first, second)
	assert.Len(t, store.runs, 2)
	assert.Equal(t, []uuid.UUID{first, second}, pub.ids)
}

func TestAuditJob_StoreError(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	pub := &recorder{}
	job := NewAuditJob(testPipeline(t, t.TempDir()), logger.Nop(), WithStore(store), WithPublishers(pub), WithSchedule("@hourly"))

	err := job.Run(context.Background())
	assert.EqualError(t, err, "save audit run: db down")
	assert.Empty(t, pub.ids)
	assert.Equal(t, "@hourly", job.Schedule())

	_, prev := job.Previous()
	assert.Nil(t, prev)
}

func TestAuditJob_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := NewAuditJob(testPipeline(t, t.TempDir()), logger.Nop())
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
}

func TestDrift(t *testing.T) {
	prev := &audit.Report{Stages: []audit.StageAudit{
		{StageName: "raw", Exists: true, RowCount: 100},
		{StageName: "clean", Exists: true, RowCount: 80},
		{StageName: "panel", Exists: false},
		{StageName: "old", Exists: true, RowCount: 5},
	}}
	cur := &audit.Report{Stages: []audit.StageAudit{
		{StageName: "raw", Exists: true, RowCount: 100},
		{StageName: "clean", Exists: false},
		{StageName: "panel", Exists: true, RowCount: 70},
		{StageName: "new", Exists: true, RowCount: 1},
	}}

	got := Drift(prev, cur)
	assert.Equal(t, []StageDrift{
		{Stage: "clean", BeforeRows: 80, AfterRows: 0, Difference: -80, Vanished: true},
		{Stage: "panel", BeforeRows: 0, AfterRows: 70, Difference: 70, Appeared: true},
	}, got)

	assert.Nil(t, Drift(nil, cur))
}
