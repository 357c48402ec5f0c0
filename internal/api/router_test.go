package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/paperflow/internal/api/handlers"
	"github.com/wonny/paperflow/internal/audit"
	"github.com/wonny/paperflow/internal/contracts"
	"github.com/wonny/paperflow/internal/tabular"
	"github.com/wonny/paperflow/pkg/logger"
)

type fakeHistory struct {
	runs  []audit.Run
	err   error
	limit int
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]audit.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, int, error) { return false, 0, nil }

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, int, error) {
	return false, 0, errors.New("redis down")
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "data_work/raw.csv", "id,value\n1,10\n2,20\n3,\n")
	writeFile(t, root, "data_work/clean.csv", "id,value,flag\n1,10,true\n2,20,false\n")
	writeFile(t, root, "rules.yaml", "rules:\n  - type: no_missing_values\n    columns: [id, value]\n  - type: row_count\n    min: 1\n")
	writeFile(t, root, "bad_rules.yaml", "rules:\n  - type: nonsense\n")
	return root
}

func newTestRouter(t *testing.T, root string, history handlers.HistoryStore, limiter Limiter) (http.Handler, *Hub) {
	t.Helper()
	log := logger.Nop()
	pipeline, err := audit.New(root, audit.WithStages([]contracts.Stage{
		{Name: "raw", Path: "data_work/raw.csv"},
		{Name: "clean", Path: "data_work/clean.csv"},
		{Name: "panel", Path: "data_work/panel.csv"},
	}))
	require.NoError(t, err)
	hub := NewHub(log)
	routes := Routes{
		Audit:    handlers.NewAuditHandler(pipeline, history, log),
		Validate: handlers.NewValidateHandler(root, "", tabular.NewLoader(), log),
		Hub:      hub,
		Limiter:  limiter,
	}
	return NewRouter(routes, log), hub
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, setupProject(t), nil, nil)

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"paperflow-api"}`, rec.Body.String())
}

func TestHealth_Backends(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name     string
		backends map[string]Pinger
		status   int
		want     string
	}{
		{
			name:     "all up",
			backends: map[string]Pinger{"database": up, "redis": up},
			status:   http.StatusOK,
			want:     `{"status":"ok","service":"paperflow-api","checks":{"database":"ok","redis":"ok"}}`,
		},
		{
			name:     "redis down",
			backends: map[string]Pinger{"database": up, "redis": down},
			status:   http.StatusServiceUnavailable,
			want:     `{"status":"degraded","service":"paperflow-api","checks":{"database":"ok","redis":"connection refused"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(Routes{Backends: tt.backends}, logger.Nop())
			rec := do(t, h, http.MethodGet, "/health", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestGetAudit(t *testing.T) {
	h, _ := newTestRouter(t, setupProject(t), nil, nil)

	rec := do(t, h, http.MethodGet, "/api/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RunID          string            `json:"run_id"`
		TotalStages    int               `json:"total_stages"`
		StagesWithData int               `json:"stages_with_data"`
		Attrition      []audit.Attrition `json:"attrition"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	_, err := uuid.Parse(body.RunID)
	assert.NoError(t, err)
	assert.Equal(t, 3, body.TotalStages)
	assert.Equal(t, 2, body.StagesWithData)
	require.Len(t, body.Attrition, 1)
	assert.Equal(t, -1, body.Attrition[0].Difference)
}

func TestGetAudit_TextAndMarkdown(t *testing.T) {
	h, _ := newTestRouter(t, setupProject(t), nil, nil)

	rec := do(t, h, http.MethodGet, "/api/audit/markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# Pipeline Data Audit Report"))

	rec = do(t, h, http.MethodGet, "/api/audit/text?columns=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clean (3 columns):\n  - id\n  - value\n  - flag")

	rec = do(t, h, http.MethodGet, "/api/audit/text?columns=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStages(t *testing.T) {
	root := setupProject(t)
	h, _ := newTestRouter(t, root, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/stages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stages handlers.StagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stages))
	assert.Equal(t, 3, stages.Count)
	assert.Equal(t, root, stages.Root)
	assert.Equal(t, "raw", stages.Stages[0].Name)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"ok", "?a=raw&b=clean", http.StatusOK},
		{"missing file", "?a=raw&b=panel", http.StatusOK},
		{"unknown stage", "?a=raw&b=nope", http.StatusNotFound},
		{"missing param", "?a=raw", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/stages/compare"+tt.query, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec = do(t, h, http.MethodGet, "/api/stages/compare?a=raw&b=clean", nil)
	var cmp audit.Comparison
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmp))
	assert.Equal(t, []string{"flag"}, cmp.ColumnsAdded)
	assert.Equal(t, -1, cmp.RowDiff)
}

func TestHistory(t *testing.T) {
	root := setupProject(t)

	h, _ := newTestRouter(t, root, nil, nil)
	rec := do(t, h, http.MethodGet, "/api/audit/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	store := &fakeHistory{runs: []audit.Run{{RunID: uuid.New(), ProjectRoot: root}}}
	h, _ = newTestRouter(t, root, store, nil)

	rec = do(t, h, http.MethodGet, "/api/audit/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.limit)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = do(t, h, http.MethodGet, "/api/audit/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, store.limit)

	rec = do(t, h, http.MethodGet, "/api/audit/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.err = errors.New("db down")
	rec = do(t, h, http.MethodGet, "/api/audit/history", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestValidate(t *testing.T) {
	h, _ := newTestRouter(t, setupProject(t), nil, nil)

	tests := []struct {
		name   string
		body   string
		status int
		check  func(t *testing.T, body string)
	}{
		{
			name:   "failing rules",
			body:   `{"path":"data_work/raw.csv","rules_file":"rules.yaml"}`,
			status: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, `"passed":false`)
				assert.Contains(t, body, `"error_count":1`)
			},
		},
		{
			name:   "passing rules",
			body:   `{"path":"data_work/clean.csv","rules_file":"rules.yaml"}`,
			status: http.StatusOK,
			check: func(t *testing.T, body string) {
				assert.Contains(t, body, `"passed":true`)
			},
		},
		{name: "bad rules", body: `{"path":"data_work/raw.csv","rules_file":"bad_rules.yaml"}`, status: http.StatusBadRequest},
		{name: "missing dataset", body: `{"path":"nope.csv","rules_file":"rules.yaml"}`, status: http.StatusBadRequest},
		{name: "no rules configured", body: `{"path":"data_work/raw.csv"}`, status: http.StatusBadRequest},
		{name: "no path", body: `{"rules_file":"rules.yaml"}`, status: http.StatusBadRequest},
		{name: "bad json", body: `{`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/validate", []byte(tt.body))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, rec.Body.String())
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/api/validate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestValidate_OutsideRoot(t *testing.T) {
	root := setupProject(t)
	outside := t.TempDir()
	writeFile(t, outside, "secret.csv", "token\nhunter2\n")
	writeFile(t, outside, "leak.yaml", "rules:\n  - type: categorical_values\n    column: token\n    values: [x]\n")

	h, _ := newTestRouter(t, root, nil, nil)

	rel, err := filepath.Rel(root, filepath.Join(outside, "secret.csv"))
	require.NoError(t, err)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"absolute dataset", map[string]string{"path": filepath.Join(outside, "secret.csv"), "rules_file": "rules.yaml"}},
		{"dot-dot dataset", map[string]string{"path": rel, "rules_file": "rules.yaml"}},
		{"nested dot-dot dataset", map[string]string{"path": "data_work/../../secret.csv", "rules_file": "rules.yaml"}},
		{"absolute rules", map[string]string{"path": "data_work/raw.csv", "rules_file": filepath.Join(outside, "leak.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.body)
			require.NoError(t, err)

			rec := do(t, h, http.MethodPost, "/api/validate", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), "outside the project root")
			assert.NotContains(t, rec.Body.String(), "hunter2")
		})
	}

	// absolute paths inside the root are fine
	body, err := json.Marshal(map[string]string{
		"path":       filepath.Join(root, "data_work", "clean.csv"),
		"rules_file": "rules.yaml",
	})
	require.NoError(t, err)
	rec := do(t, h, http.MethodPost, "/api/validate", body)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	root := setupProject(t)

	h, _ := newTestRouter(t, root, nil, denyAll{})
	rec := do(t, h, http.MethodGet, "/api/stages", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health is outside the limited subrouter
	rec = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h, _ = newTestRouter(t, root, nil, brokenLimiter{})
	rec = do(t, h, http.MethodGet, "/api/stages", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h, _ = newTestRouter(t, root, nil, NewLocalLimiter(0.001, 2))
	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, h, http.MethodGet, "/api/stages", nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRecovery(t *testing.T) {
	log := logger.Nop()
	r := recoveryMiddleware(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := do(t, r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestHub_Stream(t *testing.T) {
	h, hub := newTestRouter(t, setupProject(t), nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	first := uuid.New()
	report := &audit.Report{GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	hub.Publish(first, report)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/audit"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() RunMessage {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg RunMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// latest run replayed on connect
	msg := read()
	assert.Equal(t, "audit_run", msg.Type)
	assert.Equal(t, first.String(), msg.RunID)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	second := uuid.New()
	hub.Publish(second, report)
	assert.Equal(t, second.String(), read().RunID)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}
