package contracts

// Pipeline Stage 정의 (SSOT)
// 스테이지 이름과 산출물 경로는 감사, 비교, 스케줄러, API 전부에서 이 타입을 사용
//
// 기본 파이프라인 흐름:
//   s00_raw → s01_linked → s02_panel

import (
	"errors"
	"fmt"
)

// ErrInvalidStages is wrapped by ValidateStages failures
var ErrInvalidStages = errors.New("invalid stage map")

// Stage names one pipeline step and the file (relative to the project root) holding its output
type Stage struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

const (
	// StageRaw s00: raw ingest output
	StageRaw = "s00_raw"

	// StageLinked s01: records after linkage
	StageLinked = "s01_linked"

	// StagePanel s02: analysis panel
	StagePanel = "s02_panel"
)

// DefaultStages returns the built-in three-stage map in declaration order
func DefaultStages() []Stage {
	return []Stage{
		{Name: StageRaw, Path: "data_work/data_raw.parquet"},
		{Name: StageLinked, Path: "data_work/data_linked.parquet"},
		{Name: StagePanel, Path: "data_work/panel.parquet"},
	}
}

// StageNames returns the names of stages in order
func StageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

// ValidateStages checks that every stage has a name and a path and that names are unique
func ValidateStages(stages []Stage) error {
	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return fmt.Errorf("%w: stages[%d]: name is required", ErrInvalidStages, i)
		}
		if s.Path == "" {
			return fmt.Errorf("%w: stages[%d] (%s): path is required", ErrInvalidStages, i, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: stages[%d]: duplicate stage name %q", ErrInvalidStages, i, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// FindStage looks up a stage by name
func FindStage(stages []Stage, name string) (Stage, bool) {
	for _, s := range stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// StageStatus separates the cases that the exists/row_count pair alone cannot tell apart
type StageStatus string

const (
	// StageMissing the output file does not exist
	StageMissing StageStatus = "missing"

	// StageUnreadable the file exists but could not be parsed
	StageUnreadable StageStatus = "unreadable"

	// StageEmpty the file parsed and has zero rows
	StageEmpty StageStatus = "empty"

	// StageOK the file parsed and has rows
	StageOK StageStatus = "ok"
)

// String returns the status name
func (s StageStatus) String() string {
	return string(s)
}

// HasData reports whether the stage contributes to attrition
func (s StageStatus) HasData() bool {
	return s == StageOK
}

// Description returns a short human description
func (s StageStatus) Description() string {
	switch s {
	case StageMissing:
		return "output file not found"
	case StageUnreadable:
		return "output file could not be read"
	case StageEmpty:
		return "output file has no rows"
	case StageOK:
		return "output file has data"
	default:
		return "unknown"
	}
}
