package tabular

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelReader reads the first worksheet of an Office Open XML workbook.
// The first row is the header.
type ExcelReader struct{}

// Read decodes the first sheet
func (ExcelReader) Read(path string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errNoColumns
	}

	names := uniqueNames(rows[0])
	raw := make([][]string, len(names))
	for _, row := range rows[1:] {
		for i := range names {
			// trailing empty cells are trimmed by GetRows
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			raw[i] = append(raw[i], cell)
		}
	}

	ds := New()
	for i, name := range names {
		if err := ds.AddColumn(columnFromText(name, raw[i])); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
