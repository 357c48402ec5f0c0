package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/wonny/paperflow/internal/audit"
	"github.com/wonny/paperflow/internal/contracts"
	"github.com/wonny/paperflow/pkg/logger"
)

const defaultHistoryLimit = 20

// HistoryStore lists stored audit runs. *audit.Repository satisfies it.
type HistoryStore interface {
	ListRuns(ctx context.Context, limit int) ([]audit.Run, error)
}

// AuditHandler serves pipeline audits
// ⭐ SSOT: 감사 API 핸들러는 이 구조체에서만
type AuditHandler struct {
	pipeline *audit.Pipeline
	history  HistoryStore
	logger   *logger.Logger
}

// NewAuditHandler creates a new audit handler. A nil history disables /api/audit/history.
func NewAuditHandler(pipeline *audit.Pipeline, history HistoryStore, log *logger.Logger) *AuditHandler {
	return &AuditHandler{
		pipeline: pipeline,
		history:  history,
		logger:   log,
	}
}

// AuditResponse is the audit report with the ID of this run
type AuditResponse struct {
	RunID string `json:"run_id"`
	audit.Document
}

// GetAudit runs a full audit
// GET /api/audit
func (h *AuditHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	report := h.pipeline.RunFullAudit()
	respondJSON(w, http.StatusOK, AuditResponse{
		RunID:    uuid.NewString(),
		Document: report.ToDict(),
	})
}

// GetMarkdown returns the audit as a markdown document
// GET /api/audit/markdown
func (h *AuditHandler) GetMarkdown(w http.ResponseWriter, r *http.Request) {
	respondText(w, "text/markdown", h.pipeline.GenerateMarkdownReport())
}

// GetText returns the console-style audit text
// GET /api/audit/text?columns=true
func (h *AuditHandler) GetText(w http.ResponseWriter, r *http.Request) {
	showColumns := false
	if v := r.URL.Query().Get("columns"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'columns' value (expected true or false)")
			return
		}
		showColumns = parsed
	}

	respondText(w, "text/plain", h.pipeline.RunFullAudit().Format(showColumns))
}

// StagesResponse lists the configured stage map
type StagesResponse struct {
	Root   string            `json:"root"`
	Count  int               `json:"count"`
	Stages []contracts.Stage `json:"stages"`
}

// GetStages returns the configured stages in pipeline order
// GET /api/stages
func (h *AuditHandler) GetStages(w http.ResponseWriter, r *http.Request) {
	stages := h.pipeline.Stages()
	respondJSON(w, http.StatusOK, StagesResponse{
		Root:   h.pipeline.Root(),
		Count:  len(stages),
		Stages: stages,
	})
}

// CompareStages diffs two stages
// GET /api/stages/compare?a=<stage>&b=<stage>
func (h *AuditHandler) CompareStages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		respondError(w, http.StatusBadRequest, "Query parameters 'a' and 'b' are required")
		return
	}

	cmp, err := h.pipeline.CompareStages(a, b)
	if errors.Is(err, audit.ErrUnknownStage) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to compare stages")
		respondError(w, http.StatusInternalServerError, "Failed to compare stages")
		return
	}

	respondJSON(w, http.StatusOK, cmp)
}

// GetHistory lists stored audit runs, newest first
// GET /api/audit/history?limit=20
func (h *AuditHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "Audit history store is not configured (set DB_ENABLED=true)")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected a positive integer)")
			return
		}
		limit = parsed
	}

	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list audit runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve audit history")
		return
	}
	if runs == nil {
		runs = []audit.Run{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}
