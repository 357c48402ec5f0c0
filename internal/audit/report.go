package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wonny/paperflow/internal/contracts"
)

const timestampLayout = "2006-01-02 15:04:05"

// StageAudit is the snapshot of one stage's output file at inspection time.
// When Exists is false the counts are zero and Columns/MissingByColumn are empty.
// When the file exists but cannot be parsed the counts stay zero and Notes carries the error;
// Status tells that case apart from a genuinely empty file.
type StageAudit struct {
	StageName       string
	FilePath        string
	Exists          bool
	Status          contracts.StageStatus
	RowCount        int
	ColumnCount     int
	Columns         []string
	FileSizeMB      float64
	ModifiedTime    time.Time
	MissingByColumn map[string]int
	Notes           string
}

// Attrition is the row-count change between two consecutive data-bearing stages
type Attrition struct {
	FromStage     string  `json:"from_stage"`
	ToStage       string  `json:"to_stage"`
	FromRows      int     `json:"from_rows"`
	ToRows        int     `json:"to_rows"`
	Difference    int     `json:"difference"`
	PercentChange float64 `json:"percent_change"`
}

// Report is the ordered result of auditing every configured stage
type Report struct {
	Stages      []StageAudit
	GeneratedAt time.Time
}

// TotalStages returns the number of audited stages
func (r *Report) TotalStages() int {
	return len(r.Stages)
}

// StagesWithData returns the number of stages whose file exists
func (r *Report) StagesWithData() int {
	n := 0
	for _, s := range r.Stages {
		if s.Exists {
			n++
		}
	}
	return n
}

// Attrition compares consecutive stages among those that exist and have rows.
// Stages without data are skipped, not treated as zero-row transitions.
func (r *Report) Attrition() []Attrition {
	var withData []StageAudit
	for _, s := range r.Stages {
		if s.Exists && s.RowCount > 0 {
			withData = append(withData, s)
		}
	}

	attrition := make([]Attrition, 0, len(withData))
	for i := 1; i < len(withData); i++ {
		prev, curr := withData[i-1], withData[i]

		diff := curr.RowCount - prev.RowCount
		pct := 0.0
		if prev.RowCount > 0 {
			pct = float64(diff) / float64(prev.RowCount) * 100
		}

		attrition = append(attrition, Attrition{
			FromStage:     prev.StageName,
			ToStage:       curr.StageName,
			FromRows:      prev.RowCount,
			ToRows:        curr.RowCount,
			Difference:    diff,
			PercentChange: pct,
		})
	}
	return attrition
}

// Format renders the plain-text report
func (r *Report) Format(showColumns bool) string {
	rule := strings.Repeat("=", 60)
	dash := strings.Repeat("-", 60)

	lines := []string{
		rule,
		"PIPELINE DATA AUDIT REPORT",
		"Generated: " + r.GeneratedAt.Format(timestampLayout),
		rule,
		"",
		"STAGE SUMMARY",
		dash,
		fmt.Sprintf("%-20s %-8s %10s %6s %10s", "Stage", "Exists", "Rows", "Cols", "Size MB"),
		dash,
	}

	for _, s := range r.Stages {
		exists, rows, cols, size := stageCells(s)
		lines = append(lines, fmt.Sprintf("%-20s %-8s %10s %6s %10s", s.StageName, exists, rows, cols, size))
	}
	lines = append(lines, dash, "")

	if attrition := r.Attrition(); len(attrition) > 0 {
		lines = append(lines, "SAMPLE ATTRITION", dash)
		for _, a := range attrition {
			sign := signOf(a.Difference)
			lines = append(lines, fmt.Sprintf("%s -> %s: %s -> %s (%s%s, %s%.1f%%)",
				a.FromStage, a.ToStage,
				humanize.Comma(int64(a.FromRows)), humanize.Comma(int64(a.ToRows)),
				sign, humanize.Comma(int64(a.Difference)),
				sign, a.PercentChange,
			))
		}
		lines = append(lines, "")
	}

	lines = append(lines, "MISSING VALUES BY STAGE", dash)
	for _, s := range r.Stages {
		if !s.Exists || len(s.MissingByColumn) == 0 {
			continue
		}
		lines = append(lines, "\n"+s.StageName+":")
		for _, col := range missingColumnsInOrder(s) {
			n := s.MissingByColumn[col]
			pct := 0.0
			if s.RowCount > 0 {
				pct = float64(n) / float64(s.RowCount) * 100
			}
			lines = append(lines, fmt.Sprintf("  %s: %s (%.1f%%)", col, humanize.Comma(int64(n)), pct))
		}
	}

	if showColumns {
		lines = append(lines, "", "COLUMNS BY STAGE", dash)
		for _, s := range r.Stages {
			if !s.Exists || len(s.Columns) == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("\n%s (%d columns):", s.StageName, len(s.Columns)))
			for _, col := range s.Columns {
				lines = append(lines, "  - "+col)
			}
		}
	}

	lines = append(lines, "", rule)
	return strings.Join(lines, "\n")
}

// StageRecord is the serialised form of a StageAudit. The column list is intentionally left out.
type StageRecord struct {
	StageName       string         `json:"stage_name"`
	Exists          bool           `json:"exists"`
	RowCount        int            `json:"row_count"`
	ColumnCount     int            `json:"column_count"`
	FileSizeMB      float64        `json:"file_size_mb"`
	MissingByColumn map[string]int `json:"missing_by_column"`
	Notes           string         `json:"notes"`
}

// Document is the serialised form of a Report
type Document struct {
	GeneratedAt    string        `json:"generated_at"`
	TotalStages    int           `json:"total_stages"`
	StagesWithData int           `json:"stages_with_data"`
	Attrition      []Attrition   `json:"attrition"`
	Stages         []StageRecord `json:"stages"`
}

// ToDict converts the report to its plain serialisable form
func (r *Report) ToDict() Document {
	stages := make([]StageRecord, len(r.Stages))
	for i, s := range r.Stages {
		missing := s.MissingByColumn
		if missing == nil {
			missing = map[string]int{}
		}
		stages[i] = StageRecord{
			StageName:       s.StageName,
			Exists:          s.Exists,
			RowCount:        s.RowCount,
			ColumnCount:     s.ColumnCount,
			FileSizeMB:      s.FileSizeMB,
			MissingByColumn: missing,
			Notes:           s.Notes,
		}
	}

	return Document{
		GeneratedAt:    r.GeneratedAt.Format(time.RFC3339Nano),
		TotalStages:    r.TotalStages(),
		StagesWithData: r.StagesWithData(),
		Attrition:      r.Attrition(),
		Stages:         stages,
	}
}

// MarshalJSON encodes the report as its Document form
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToDict())
}

// Save writes the report as indented JSON, creating parent directories
func (r *Report) Save(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(r.ToDict(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// stageCells returns the exists/rows/cols/size cells shared by the text and markdown tables
func stageCells(s StageAudit) (exists, rows, cols, size string) {
	if !s.Exists {
		return "No", "-", "-", "-"
	}
	return "Yes",
		humanize.Comma(int64(s.RowCount)),
		fmt.Sprintf("%d", s.ColumnCount),
		fmt.Sprintf("%.2f", s.FileSizeMB)
}

func signOf(diff int) string {
	if diff > 0 {
		return "+"
	}
	return ""
}

// missingColumnsInOrder lists columns with missing values in dataset order
func missingColumnsInOrder(s StageAudit) []string {
	cols := make([]string, 0, len(s.MissingByColumn))
	seen := make(map[string]bool, len(s.MissingByColumn))
	for _, col := range s.Columns {
		if n, ok := s.MissingByColumn[col]; ok && n > 0 {
			cols = append(cols, col)
			seen[col] = true
		}
	}
	for col, n := range s.MissingByColumn {
		if !seen[col] && n > 0 {
			cols = append(cols, col)
		}
	}
	return cols
}
