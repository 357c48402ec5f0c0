package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStages(t *testing.T) {
	stages := DefaultStages()

	assert.Equal(t, []string{"s00_raw", "s01_linked", "s02_panel"}, StageNames(stages))
	assert.Equal(t, "data_work/panel.parquet", stages[2].Path)
}

func TestFindStage(t *testing.T) {
	stages := DefaultStages()

	s, ok := FindStage(stages, StageLinked)
	assert.True(t, ok)
	assert.Equal(t, "data_work/data_linked.parquet", s.Path)

	_, ok = FindStage(stages, "s99_final")
	assert.False(t, ok)
}

func TestValidateStages(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		wantErr string
	}{
		{name: "defaults", stages: DefaultStages()},
		{name: "empty", stages: nil},
		{name: "no name", stages: []Stage{{Path: "a.csv"}}, wantErr: "name is required"},
		{name: "no path", stages: []Stage{{Name: "raw"}}, wantErr: "path is required"},
		{
			name:    "duplicate",
			stages:  []Stage{{Name: "raw", Path: "a.csv"}, {Name: "raw", Path: "b.csv"}},
			wantErr: `duplicate stage name "raw"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStages(tt.stages)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidStages)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStageStatus(t *testing.T) {
	tests := []struct {
		status  StageStatus
		hasData bool
	}{
		{StageMissing, false},
		{StageUnreadable, false},
		{StageEmpty, false},
		{StageOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.hasData, tt.status.HasData())
			assert.NotEqual(t, "unknown", tt.status.Description())
		})
	}

	assert.Equal(t, "unknown", StageStatus("bogus").Description())
}
