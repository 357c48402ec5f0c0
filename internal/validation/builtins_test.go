package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/paperflow/internal/tabular"
)

func sampleDataset(t *testing.T) *tabular.Dataset {
	t.Helper()
	ds, err := tabular.FromColumns(
		tabular.NewColumn("id", tabular.TypeInt, int64(1), int64(2), int64(3), int64(3), int64(5)),
		tabular.NewColumn("value", tabular.TypeFloat, 10.0, nil, 50.0, 150.0, -5.0),
		tabular.NewColumn("group", tabular.TypeString, "A", "B", "D", "A", nil),
		tabular.NewColumn("date", tabular.TypeString, "2019-06-01", "2020-01-15", "not a date", "2021-03-01", "2025-01-01"),
	)
	require.NoError(t, err)
	return ds
}

func TestNoMissingValues(t *testing.T) {
	ds := sampleDataset(t)

	passed, msg := NoMissingValues([]string{"id", "value", "group"}).Check(ds)
	assert.False(t, passed)
	assert.Equal(t, "Missing values found: {'value': 1, 'group': 1}", msg)

	passed, msg = NoMissingValues([]string{"id", "date", "ghost"}).Check(ds)
	assert.True(t, passed)
	assert.Equal(t, "No missing values in ['id', 'date', 'ghost']", msg)

	r := NoMissingValues([]string{"id"})
	assert.Equal(t, "no_missing_values", r.Name())
	assert.Equal(t, SeverityError, r.Severity())
}

func TestUniqueValues(t *testing.T) {
	ds := sampleDataset(t)

	r := UniqueValues("id")
	passed, msg := r.Check(ds)
	assert.False(t, passed)
	assert.Equal(t, SeverityError, r.Severity())
	assert.Equal(t, "unique_values:id", r.Name())
	assert.Equal(t, "Column 'id' has 1 duplicate values (4 unique of 5)", msg)

	// nulls are excluded from the distinct count
	passed, msg = UniqueValues("value").Check(ds)
	assert.False(t, passed)
	assert.Equal(t, "Column 'value' has 1 duplicate values (4 unique of 5)", msg)

	passed, msg = UniqueValues("date").Check(ds)
	assert.True(t, passed)
	assert.Equal(t, "Column 'date' has all unique values (5)", msg)

	passed, msg = UniqueValues("ghost").Check(ds)
	assert.False(t, passed)
	assert.Equal(t, "Column 'ghost' not found", msg)
}

func TestValueRange(t *testing.T) {
	ds := sampleDataset(t)

	tests := []struct {
		name   string
		rule   Rule
		passed bool
		msg    string
	}{
		{
			name:   "both bounds violated",
			rule:   ValueRange("value", Ptr(0.0), Ptr(100.0)),
			passed: false,
			msg:    "Column 'value': 1 values below 0, 1 values above 100",
		},
		{
			name:   "open upper bound",
			rule:   ValueRange("value", Ptr(-10.0), nil),
			passed: true,
			msg:    "Column 'value' values within [-10, None]",
		},
		{
			name:   "positive values",
			rule:   PositiveValues("value"),
			passed: false,
			msg:    "Column 'value': 1 values below 0",
		},
		{
			name:   "missing column",
			rule:   ValueRange("ghost", nil, nil),
			passed: false,
			msg:    "Column 'ghost' not found",
		},
		{
			name:   "non numeric",
			rule:   ValueRange("group", Ptr(0.0), nil),
			passed: false,
			msg:    "Column 'group' is not numeric (object)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, msg := tt.rule.Check(ds)
			assert.Equal(t, tt.passed, passed)
			assert.Equal(t, tt.msg, msg)
		})
	}

	r := PositiveValues("value")
	assert.Equal(t, "value_range:value", r.Name())
	assert.Equal(t, SeverityWarning, r.Severity())
	assert.Equal(t, "Check that 'value' values are in range [0, None]", r.Description())
}

func TestCategoricalValues(t *testing.T) {
	ds := sampleDataset(t)

	passed, msg := CategoricalValues("group", []any{"A", "B", "C"}).Check(ds)
	assert.False(t, passed)
	assert.Equal(t, "Column 'group' has invalid values: {'D'}", msg)

	passed, msg = CategoricalValues("group", []any{"A", "B", "D"}).Check(ds)
	assert.True(t, passed)
	assert.Equal(t, "Column 'group' values are valid", msg)

	// ints and floats compare by value
	passed, _ = CategoricalValues("id", []any{1, 2, 3, 5.0}).Check(ds)
	assert.True(t, passed)

	passed, msg = CategoricalValues("ghost", []any{"A"}).Check(ds)
	assert.False(t, passed)
	assert.Equal(t, "Column 'ghost' not found", msg)
}

func TestDateRange(t *testing.T) {
	ds := sampleDataset(t)

	r := DateRange("date", "2020-01-01", "2024-12-31")
	passed, msg := r.Check(ds)
	assert.False(t, passed)
	assert.Equal(t, SeverityWarning, r.Severity())
	assert.Equal(t, "Column 'date': 1 dates before 2020-01-01, 1 dates after 2024-12-31", msg)

	passed, msg = DateRange("date", "2019-01-01", "").Check(ds)
	assert.True(t, passed)
	assert.Equal(t, "Column 'date' dates within range", msg)

	passed, msg = DateRange("ghost", "2019-01-01", "").Check(ds)
	assert.False(t, passed)
	assert.Equal(t, "Column 'ghost' not found", msg)

	typed, err := tabular.FromColumns(tabular.NewColumn("ts", tabular.TypeDatetime,
		time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), nil, time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	passed, msg = DateRange("ts", "2020-01-01", "").Check(typed)
	assert.False(t, passed)
	assert.Equal(t, "Column 'ts': 1 dates before 2020-01-01", msg)
}

func TestRowCount(t *testing.T) {
	ds := sampleDataset(t)

	tests := []struct {
		name   string
		min    *int
		max    *int
		passed bool
		msg    string
	}{
		{"below minimum", Ptr(10), nil, false, "Row count issue: only 5 rows (minimum: 10)"},
		{"above maximum", nil, Ptr(3), false, "Row count issue: 5 rows exceeds maximum (3)"},
		{"within", Ptr(1), Ptr(5), true, "Row count OK (5 rows)"},
		{"unbounded", nil, nil, true, "Row count OK (5 rows)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, msg := RowCount(tt.min, tt.max).Check(ds)
			assert.Equal(t, tt.passed, passed)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestNoDuplicateRows(t *testing.T) {
	ds := sampleDataset(t)

	passed, msg := NoDuplicateRows(nil).Check(ds)
	assert.True(t, passed)
	assert.Equal(t, "No duplicate rows", msg)

	passed, msg = NoDuplicateRows([]string{"id", "ghost"}).Check(ds)
	assert.False(t, passed)
	assert.Equal(t, "Found 1 duplicate rows on ['id']", msg)

	passed, msg = NoDuplicateRows([]string{"ghost"}).Check(ds)
	assert.False(t, passed)
	assert.Equal(t, "None of specified columns found: ['ghost']", msg)

	dup, err := tabular.FromColumns(
		tabular.NewColumn("a", tabular.TypeInt, int64(1), int64(1), int64(1)),
		tabular.NewColumn("b", tabular.TypeString, "x", "x", nil),
	)
	require.NoError(t, err)
	passed, msg = NoDuplicateRows(nil).Check(dup)
	assert.False(t, passed)
	assert.Equal(t, "Found 1 duplicate rows", msg)
}

func TestWithSeverity(t *testing.T) {
	r := UniqueValues("id", WithSeverity(SeverityInfo), WithDescription("ids"))
	assert.Equal(t, SeverityInfo, r.Severity())
	assert.Equal(t, "ids", r.Description())
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("WARNING")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, s)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}
