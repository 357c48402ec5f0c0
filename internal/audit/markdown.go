package audit

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// RenderMarkdown renders a report in the fixed markdown layout used for diagnostics
func RenderMarkdown(r *Report) string {
	lines := []string{
		"# Pipeline Data Audit Report",
		"",
		"**Generated:** " + r.GeneratedAt.Format(timestampLayout),
		"",
		"## Summary",
		"",
		fmt.Sprintf("- Total stages: %d", r.TotalStages()),
		fmt.Sprintf("- Stages with data: %d", r.StagesWithData()),
		"",
		"## Stage Details",
		"",
		"| Stage | Exists | Rows | Columns | Size (MB) |",
		"|-------|--------|------|---------|-----------|",
	}

	for _, s := range r.Stages {
		exists, rows, cols, size := stageCells(s)
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s |", s.StageName, exists, rows, cols, size))
	}
	lines = append(lines, "")

	if attrition := r.Attrition(); len(attrition) > 0 {
		lines = append(lines,
			"## Sample Attrition",
			"",
			"| From | To | Change | Percent |",
			"|------|----|---------:|---------:|",
		)
		for _, a := range attrition {
			sign := signOf(a.Difference)
			lines = append(lines, fmt.Sprintf("| %s | %s | %s%s | %s%.1f%% |",
				a.FromStage, a.ToStage,
				sign, humanize.Comma(int64(a.Difference)),
				sign, a.PercentChange,
			))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
