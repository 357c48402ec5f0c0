package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/wonny/paperflow/internal/tabular"
	"github.com/wonny/paperflow/internal/validation"
	"github.com/wonny/paperflow/pkg/logger"
)

// ValidateHandler runs declarative rule files against datasets inside the project
type ValidateHandler struct {
	root         string
	defaultRules string
	loader       *tabular.Loader
	logger       *logger.Logger
}

// NewValidateHandler creates a validate handler. defaultRules is used when a request names no rule file.
func NewValidateHandler(root, defaultRules string, loader *tabular.Loader, log *logger.Logger) *ValidateHandler {
	return &ValidateHandler{
		root:         root,
		defaultRules: defaultRules,
		loader:       loader,
		logger:       log,
	}
}

// ValidateRequest names the dataset and (optionally) the rule file; both must resolve inside the project root
type ValidateRequest struct {
	Path      string `json:"path"`
	RulesFile string `json:"rules_file,omitempty"`
}

// Validate runs the rule set against a dataset
// POST /api/validate
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "'path' is required")
		return
	}

	// request paths are confined to the project; the configured default is trusted
	rulesPath := h.defaultRules
	if req.RulesFile != "" {
		p, err := h.resolve(req.RulesFile)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		rulesPath = p
	} else if rulesPath != "" && !filepath.IsAbs(rulesPath) {
		rulesPath = filepath.Join(h.root, rulesPath)
	}
	if rulesPath == "" {
		respondError(w, http.StatusBadRequest, "'rules_file' is required (no VALIDATION_RULES_FILE configured)")
		return
	}

	dataPath, err := h.resolve(req.Path)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rules, err := validation.LoadRuleSet(rulesPath)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to load rules: "+err.Error())
		return
	}

	ds, err := h.loader.Load(dataPath)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to load dataset: "+err.Error())
		return
	}

	report := rules.Validate(ds, h.logger)
	h.logger.WithFields(map[string]interface{}{
		"path":     req.Path,
		"errors":   report.ErrorCount(),
		"warnings": report.WarningCount(),
	}).Info("Validation finished")

	respondJSON(w, http.StatusOK, report.ToDict())
}

// resolve joins path onto the project root and rejects anything that escapes it
func (h *ValidateHandler) resolve(path string) (string, error) {
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(h.root, path)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(h.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the project root", path)
	}
	return full, nil
}
