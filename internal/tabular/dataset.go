package tabular

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ColumnType is the coarse storage type of a column
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeDatetime
	TypeBinary
)

// String returns the dtype-style name used in reports
func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int64"
	case TypeFloat:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeDatetime:
		return "datetime64[ns]"
	case TypeBinary:
		return "binary"
	default:
		return "object"
	}
}

// Column is a named, typed vector of cells.
// Cells hold int64, float64, string, bool, time.Time, []byte or nil (missing).
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// NewColumn builds a column from literal cells
func NewColumn(name string, typ ColumnType, values ...any) *Column {
	return &Column{Name: name, Type: typ, Values: values}
}

// Len returns the number of cells
func (c *Column) Len() int {
	return len(c.Values)
}

// IsNull reports whether cell i is missing. NaN floats count as missing.
func (c *Column) IsNull(i int) bool {
	v := c.Values[i]
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

// NullCount returns the number of missing cells
func (c *Column) NullCount() int {
	n := 0
	for i := range c.Values {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Float returns cell i as a float64 when it is a non-missing number
func (c *Column) Float(i int) (float64, bool) {
	if c.IsNull(i) {
		return 0, false
	}
	switch v := c.Values[i].(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case float32:
		return float64(v), true
	}
	return 0, false
}

// Key returns a comparable identity for cell i. All missing cells share one key.
func (c *Column) Key(i int) string {
	if c.IsNull(i) {
		return "\x00"
	}
	return FormatValue(c.Values[i])
}

// Display returns cell i for human output
func (c *Column) Display(i int) string {
	if c.IsNull(i) {
		return ""
	}
	return FormatValue(c.Values[i])
}

// FormatValue renders a cell value without type decoration
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// Dataset is an ordered collection of equally long columns
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New creates an empty dataset
func New() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// FromColumns builds a dataset from prepared columns
func FromColumns(cols ...*Column) (*Dataset, error) {
	ds := New()
	for _, c := range cols {
		if err := ds.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// AddColumn appends a column. Names must be unique and lengths must match.
func (d *Dataset) AddColumn(c *Column) error {
	if _, exists := d.index[c.Name]; exists {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if len(d.columns) > 0 && c.Len() != d.rows {
		return fmt.Errorf("column %q has %d rows, dataset has %d", c.Name, c.Len(), d.rows)
	}

	d.index[c.Name] = len(d.columns)
	d.columns = append(d.columns, c)
	d.rows = c.Len()
	return nil
}

// NumRows returns the row count
func (d *Dataset) NumRows() int {
	return d.rows
}

// NumColumns returns the column count
func (d *Dataset) NumColumns() int {
	return len(d.columns)
}

// ColumnNames returns column names in declaration order
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in declaration order
func (d *Dataset) Columns() []*Column {
	return d.columns
}

// Column looks up a column by name
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// HasColumn reports whether the dataset has the named column
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// MissingByColumn returns missing-cell counts for columns with at least one missing cell
func (d *Dataset) MissingByColumn() map[string]int {
	missing := make(map[string]int)
	for _, c := range d.columns {
		if n := c.NullCount(); n > 0 {
			missing[c.Name] = n
		}
	}
	return missing
}
