package audit

import (
	"fmt"

	"github.com/wonny/paperflow/internal/tabular"
)

// Coverage reports which required columns a dataset carries
type Coverage struct {
	Present      []string `json:"present"`
	Missing      []string `json:"missing"`
	CoverageRate float64  `json:"coverage_rate"`
}

// CheckColumnCoverage partitions required into present and missing, preserving order.
// An empty requirement list has full coverage.
func CheckColumnCoverage(ds *tabular.Dataset, required []string) Coverage {
	cov := Coverage{Present: []string{}, Missing: []string{}, CoverageRate: 1.0}
	for _, col := range required {
		if ds.HasColumn(col) {
			cov.Present = append(cov.Present, col)
		} else {
			cov.Missing = append(cov.Missing, col)
		}
	}
	if len(required) > 0 {
		cov.CoverageRate = float64(len(cov.Present)) / float64(len(required))
	}
	return cov
}

// MatchStats summarises how many rows found a linked value
type MatchStats struct {
	Matched   int     `json:"matched"`
	Unmatched int     `json:"unmatched"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"`
}

// MatchRate counts every row as matched or unmatched by whether valueColumn is non-null.
// keyColumn must exist but its values are not consulted.
func MatchRate(ds *tabular.Dataset, keyColumn, valueColumn string) (MatchStats, error) {
	if !ds.HasColumn(keyColumn) {
		return MatchStats{}, fmt.Errorf("column %q not found", keyColumn)
	}
	val, ok := ds.Column(valueColumn)
	if !ok {
		return MatchStats{}, fmt.Errorf("column %q not found", valueColumn)
	}

	stats := MatchStats{Total: val.Len()}
	for i := 0; i < val.Len(); i++ {
		if val.IsNull(i) {
			stats.Unmatched++
		} else {
			stats.Matched++
		}
	}
	if stats.Total > 0 {
		stats.Rate = float64(stats.Matched) / float64(stats.Total)
	}
	return stats, nil
}
