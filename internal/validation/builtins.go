package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/paperflow/internal/tabular"
)

// Built-in rule type names, shared by constructors and rule files
const (
	TypeNoMissingValues   = "no_missing_values"
	TypeUniqueValues      = "unique_values"
	TypeValueRange        = "value_range"
	TypeCategoricalValues = "categorical_values"
	TypeDateRange         = "date_range"
	TypeRowCount          = "row_count"
	TypeNoDuplicateRows   = "no_duplicate_rows"
	TypePositiveValues    = "positive_values"
)

// Ptr returns a pointer to v, for optional bounds
func Ptr[T any](v T) *T {
	return &v
}

func columnNotFound(column string) string {
	return fmt.Sprintf("Column '%s' not found", column)
}

// NoMissingValues fails when any listed column present in the dataset has nulls.
// Listed columns absent from the dataset are ignored.
func NoMissingValues(columns []string, opts ...RuleOption) Rule {
	cols := append([]string(nil), columns...)

	check := func(ds *tabular.Dataset) (bool, string) {
		missing := make(map[string]int)
		for _, name := range cols {
			col, ok := ds.Column(name)
			if !ok {
				continue
			}
			if n := col.NullCount(); n > 0 {
				missing[name] = n
			}
		}

		if len(missing) > 0 {
			return false, "Missing values found: " + countMap(cols, missing)
		}
		return true, "No missing values in " + quoteList(cols)
	}

	return newRule(TypeNoMissingValues, SeverityError,
		"Check for no missing values in columns: "+quoteList(cols), check, opts)
}

// UniqueValues fails when the distinct non-null count differs from the row count
func UniqueValues(column string, opts ...RuleOption) Rule {
	check := func(ds *tabular.Dataset) (bool, string) {
		col, ok := ds.Column(column)
		if !ok {
			return false, columnNotFound(column)
		}

		total := col.Len()
		seen := make(map[string]struct{}, total)
		for i := 0; i < total; i++ {
			if col.IsNull(i) {
				continue
			}
			seen[col.Key(i)] = struct{}{}
		}
		unique := len(seen)

		if total != unique {
			return false, fmt.Sprintf("Column '%s' has %d duplicate values (%d unique of %d)",
				column, total-unique, unique, total)
		}
		return true, fmt.Sprintf("Column '%s' has all unique values (%d)", column, unique)
	}

	return newRule(TypeUniqueValues+":"+column, SeverityError,
		fmt.Sprintf("Check that column '%s' has unique values", column), check, opts)
}

// ValueRange fails when non-null values fall below min or above max. Nil bounds are open.
func ValueRange(column string, min, max *float64, opts ...RuleOption) Rule {
	return valueRange(column, min, max, opts)
}

// PositiveValues is ValueRange with min 0 and no upper bound
func PositiveValues(column string, opts ...RuleOption) Rule {
	return valueRange(column, Ptr(0.0), nil, opts)
}

func valueRange(column string, min, max *float64, opts []RuleOption) Rule {
	check := func(ds *tabular.Dataset) (bool, string) {
		col, ok := ds.Column(column)
		if !ok {
			return false, columnNotFound(column)
		}

		var below, above int
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				continue
			}
			v, ok := col.Float(i)
			if !ok {
				return false, fmt.Sprintf("Column '%s' is not numeric (%s)", column, col.Type)
			}
			if min != nil && v < *min {
				below++
			}
			if max != nil && v > *max {
				above++
			}
		}

		var issues []string
		if below > 0 {
			issues = append(issues, fmt.Sprintf("%d values below %s", below, optFloat(min)))
		}
		if above > 0 {
			issues = append(issues, fmt.Sprintf("%d values above %s", above, optFloat(max)))
		}

		if len(issues) > 0 {
			return false, fmt.Sprintf("Column '%s': %s", column, strings.Join(issues, ", "))
		}
		return true, fmt.Sprintf("Column '%s' values within [%s, %s]", column, optFloat(min), optFloat(max))
	}

	return newRule(TypeValueRange+":"+column, SeverityWarning,
		fmt.Sprintf("Check that '%s' values are in range [%s, %s]", column, optFloat(min), optFloat(max)),
		check, opts)
}

// CategoricalValues fails when an observed non-null value is outside the allowed set
func CategoricalValues(column string, allowed []any, opts ...RuleOption) Rule {
	valid := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		valid[categoryKey(v)] = struct{}{}
	}

	check := func(ds *tabular.Dataset) (bool, string) {
		col, ok := ds.Column(column)
		if !ok {
			return false, columnNotFound(column)
		}

		var invalid []any
		reported := make(map[string]struct{})
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				continue
			}
			k := categoryKey(col.Values[i])
			if _, ok := valid[k]; ok {
				continue
			}
			if _, dup := reported[k]; dup {
				continue
			}
			reported[k] = struct{}{}
			invalid = append(invalid, col.Values[i])
		}

		if len(invalid) > 0 {
			return false, fmt.Sprintf("Column '%s' has invalid values: %s", column, literalSet(invalid))
		}
		return true, fmt.Sprintf("Column '%s' values are valid", column)
	}

	return newRule(TypeCategoricalValues+":"+column, SeverityError,
		fmt.Sprintf("Check that '%s' values are in %s", column, literalSet(allowed)), check, opts)
}

// categoryKey normalises numbers so 1 and 1.0 compare equal
func categoryKey(v any) string {
	switch x := v.(type) {
	case int:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case int32:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case int64:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case float32:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64)
	case float64:
		return "n:" + strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	default:
		return "v:" + tabular.FormatValue(v)
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"20060102",
}

// ParseDate parses the date spellings accepted by DateRange. Naive values are UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func cellDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return ParseDate(x)
	default:
		return time.Time{}, false
	}
}

// DateRange fails when parseable dates fall outside [minDate, maxDate].
// Empty bounds are open. Unparseable cells count as null.
func DateRange(column, minDate, maxDate string, opts ...RuleOption) Rule {
	check := func(ds *tabular.Dataset) (bool, string) {
		col, ok := ds.Column(column)
		if !ok {
			return false, columnNotFound(column)
		}

		var minT, maxT time.Time
		if minDate != "" {
			if minT, ok = ParseDate(minDate); !ok {
				return false, fmt.Sprintf("Column '%s': invalid minimum date %q", column, minDate)
			}
		}
		if maxDate != "" {
			if maxT, ok = ParseDate(maxDate); !ok {
				return false, fmt.Sprintf("Column '%s': invalid maximum date %q", column, maxDate)
			}
		}

		var before, after int
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				continue
			}
			d, ok := cellDate(col.Values[i])
			if !ok {
				continue
			}
			if minDate != "" && d.Before(minT) {
				before++
			}
			if maxDate != "" && d.After(maxT) {
				after++
			}
		}

		var issues []string
		if before > 0 {
			issues = append(issues, fmt.Sprintf("%d dates before %s", before, minDate))
		}
		if after > 0 {
			issues = append(issues, fmt.Sprintf("%d dates after %s", after, maxDate))
		}

		if len(issues) > 0 {
			return false, fmt.Sprintf("Column '%s': %s", column, strings.Join(issues, ", "))
		}
		return true, fmt.Sprintf("Column '%s' dates within range", column)
	}

	return newRule(TypeDateRange+":"+column, SeverityWarning,
		fmt.Sprintf("Check that '%s' dates are in range [%s, %s]", column, optString(minDate), optString(maxDate)),
		check, opts)
}

// RowCount fails when the row count is outside [min, max]. Nil bounds are open.
func RowCount(min, max *int, opts ...RuleOption) Rule {
	check := func(ds *tabular.Dataset) (bool, string) {
		n := ds.NumRows()

		var issues []string
		if min != nil && n < *min {
			issues = append(issues, fmt.Sprintf("only %d rows (minimum: %d)", n, *min))
		}
		if max != nil && n > *max {
			issues = append(issues, fmt.Sprintf("%d rows exceeds maximum (%d)", n, *max))
		}

		if len(issues) > 0 {
			return false, "Row count issue: " + strings.Join(issues, ", ")
		}
		return true, fmt.Sprintf("Row count OK (%d rows)", n)
	}

	return newRule(TypeRowCount, SeverityError,
		fmt.Sprintf("Check row count in range [%s, %s]", optInt(min), optInt(max)), check, opts)
}

// NoDuplicateRows fails when a row repeats an earlier one, over all columns or the listed subset.
// Listed columns absent from the dataset are dropped; if none remain the rule fails.
func NoDuplicateRows(columns []string, opts ...RuleOption) Rule {
	cols := append([]string(nil), columns...)

	check := func(ds *tabular.Dataset) (bool, string) {
		var subset []*tabular.Column
		suffix := ""

		if len(cols) > 0 {
			var present []string
			for _, name := range cols {
				if col, ok := ds.Column(name); ok {
					subset = append(subset, col)
					present = append(present, name)
				}
			}
			if len(subset) == 0 {
				return false, "None of specified columns found: " + quoteList(cols)
			}
			suffix = " on " + quoteList(present)
		} else {
			subset = ds.Columns()
		}

		dups := 0
		seen := make(map[string]struct{}, ds.NumRows())
		var key strings.Builder
		for i := 0; i < ds.NumRows(); i++ {
			key.Reset()
			for _, col := range subset {
				key.WriteString(col.Key(i))
				key.WriteByte(0x1f)
			}
			k := key.String()
			if _, ok := seen[k]; ok {
				dups++
				continue
			}
			seen[k] = struct{}{}
		}

		if dups > 0 {
			return false, fmt.Sprintf("Found %d duplicate rows%s", dups, suffix)
		}
		return true, "No duplicate rows" + suffix
	}

	return newRule(TypeNoDuplicateRows, SeverityError, "Check for duplicate rows", check, opts)
}
