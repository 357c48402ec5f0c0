package validation

import (
	"fmt"

	"github.com/wonny/paperflow/internal/tabular"
)

// TypeCategory is the coarse type a schema column is expected to have
type TypeCategory string

const (
	CategoryInt      TypeCategory = "int"
	CategoryFloat    TypeCategory = "float"
	CategoryStr      TypeCategory = "str"
	CategoryBool     TypeCategory = "bool"
	CategoryDatetime TypeCategory = "datetime"
)

// ParseCategory maps a type name to its category; unknown names map to str
func ParseCategory(name string) TypeCategory {
	switch TypeCategory(name) {
	case CategoryInt, CategoryFloat, CategoryBool, CategoryDatetime:
		return TypeCategory(name)
	default:
		return CategoryStr
	}
}

// Matches reports whether a column type belongs to the category
func (c TypeCategory) Matches(t tabular.ColumnType) bool {
	switch c {
	case CategoryInt:
		return t == tabular.TypeInt
	case CategoryFloat:
		return t == tabular.TypeFloat
	case CategoryBool:
		return t == tabular.TypeBool
	case CategoryDatetime:
		return t == tabular.TypeDatetime
	default:
		return t == tabular.TypeString || t == tabular.TypeBinary
	}
}

// SchemaField is one expected column as written in rule files
type SchemaField struct {
	Column string `yaml:"column" json:"column"`
	Type   string `yaml:"type" json:"type"`
}

// SchemaColumn is one expected column with its resolved category
type SchemaColumn struct {
	Name     string
	Category TypeCategory
}

// Schema is an ordered list of expected columns
type Schema []SchemaColumn

// CreateSchema resolves type names (int, float, str, bool, datetime) in order
func CreateSchema(fields ...SchemaField) Schema {
	schema := make(Schema, len(fields))
	for i, f := range fields {
		schema[i] = SchemaColumn{Name: f.Column, Category: ParseCategory(f.Type)}
	}
	return schema
}

// ValidateSchema checks presence and type of every schema column.
// The report is independent of rule-based validation.
func (v *Validator) ValidateSchema(ds *tabular.Dataset, schema Schema) *Report {
	report := &Report{Results: make([]Result, 0, len(schema))}

	for _, sc := range schema {
		col, ok := ds.Column(sc.Name)
		switch {
		case !ok:
			report.Results = append(report.Results, Result{
				RuleName: "column_exists:" + sc.Name,
				Passed:   false,
				Message:  fmt.Sprintf("Required column '%s' not found", sc.Name),
				Severity: SeverityError,
			})
		case !sc.Category.Matches(col.Type):
			report.Results = append(report.Results, Result{
				RuleName: "column_type:" + sc.Name,
				Passed:   false,
				Message:  fmt.Sprintf("Column '%s' has type %s, expected %s", sc.Name, col.Type, sc.Category),
				Severity: SeverityWarning,
			})
		default:
			report.Results = append(report.Results, Result{
				RuleName: "column:" + sc.Name,
				Passed:   true,
				Message:  fmt.Sprintf("Column '%s' present with correct type", sc.Name),
				Severity: SeverityInfo,
			})
		}
	}

	return report
}
