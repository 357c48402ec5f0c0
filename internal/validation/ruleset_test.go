package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/paperflow/pkg/logger"
)

const sampleRules = `
rules:
  - type: no_missing_values
    columns: [id, date]
  - type: unique_values
    column: id
    severity: warning
  - type: value_range
    column: value
    min: 0
    max: 100.5
  - type: categorical_values
    column: group
    values: [A, B, D]
  - type: date_range
    column: date
    min: "2019-01-01"
  - type: row_count
    min: 5
    max: 10
  - type: no_duplicate_rows
    description: full-row dedup
schema:
  - column: id
    type: int
  - column: value
    type: float
`

func TestLoadRuleSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	rs, err := LoadRuleSet(path)
	require.NoError(t, err)

	v := rs.Validator(logger.Nop())
	rules := v.Rules()
	require.Len(t, rules, 7)
	assert.Equal(t, "unique_values:id", rules[1].Name())
	assert.Equal(t, SeverityWarning, rules[1].Severity())
	assert.Equal(t, "Check that 'value' values are in range [0, 100.5]", rules[2].Description())
	assert.Equal(t, "full-row dedup", rules[6].Description())

	report := v.Validate(sampleDataset(t))
	assert.False(t, report.HasErrors())
	assert.True(t, report.HasWarnings())
	assert.Equal(t, 2, report.WarningCount())

	schema := rs.BuildSchema()
	assert.Equal(t, Schema{{Name: "id", Category: CategoryInt}, {Name: "value", Category: CategoryFloat}}, schema)
}

func TestRuleSet_Validate(t *testing.T) {
	rs, err := ParseRuleSet([]byte(sampleRules))
	require.NoError(t, err)

	report := rs.Validate(sampleDataset(t), logger.Nop())
	require.Len(t, report.Results, 9)
	assert.Equal(t, "column:id", report.Results[7].RuleName)
	assert.True(t, report.Results[7].Passed)
	assert.Equal(t, "column:value", report.Results[8].RuleName)
	assert.False(t, report.HasErrors())

	plain, err := ParseRuleSet([]byte("rules:\n  - type: row_count\n    min: 1\n"))
	require.NoError(t, err)
	assert.Len(t, plain.Validate(sampleDataset(t), logger.Nop()).Results, 1)
}

func TestParseRuleSet_Errors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown type", "rules:\n  - type: mostly_positive\n    column: x\n", "rules[0].type"},
		{"missing type", "rules:\n  - column: x\n", "rules[0].type"},
		{"missing column", "rules:\n  - type: unique_values\n", "rules[0].column"},
		{"missing columns", "rules:\n  - type: no_missing_values\n", "rules[0].columns"},
		{"bad severity", "rules:\n  - type: row_count\n    severity: fatal\n", "rules[0].severity"},
		{"non numeric bound", "rules:\n  - type: value_range\n    column: x\n    min: low\n", "rules[0].min"},
		{"inverted bounds", "rules:\n  - type: value_range\n    column: x\n    min: 5\n    max: 1\n", "rules[0]"},
		{"fractional row count", "rules:\n  - type: row_count\n    min: 2.5\n", "rules[0].min"},
		{"bad date", "rules:\n  - type: date_range\n    column: d\n    max: someday\n", "rules[0].max"},
		{"no values", "rules:\n  - type: categorical_values\n    column: g\n", "rules[0].values"},
		{"bad schema type", "schema:\n  - column: id\n    type: decimal\n", "schema[0].type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRuleSet([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestParseRuleSet_UnknownField(t *testing.T) {
	_, err := ParseRuleSet([]byte("rules:\n  - type: row_count\n    minimum: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minimum")
}
