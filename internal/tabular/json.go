package tabular

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// JSONReader reads a table serialised as JSON.
// Accepted layouts:
//   - records: [{"col": v, ...}, ...]
//   - columns: {"col": {"0": v, "1": v}, ...}
//   - lists:   {"col": [v, v], ...}
//
// Column order follows first appearance in the document.
type JSONReader struct{}

// Read decodes the file
func (JSONReader) Read(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON document")
	}

	root := gjson.ParseBytes(data)
	switch {
	case root.IsArray():
		return jsonRecords(root)
	case root.IsObject():
		return jsonColumns(root)
	}
	return nil, fmt.Errorf("expected a JSON array or object, got %s", root.Type)
}

func jsonRecords(root gjson.Result) (*Dataset, error) {
	var names []string
	cells := make(map[string][]any)
	rows := 0

	var rowErr error
	root.ForEach(func(_, record gjson.Result) bool {
		if !record.IsObject() {
			rowErr = fmt.Errorf("record %d is not an object", rows)
			return false
		}
		record.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			col, seen := cells[name]
			if !seen {
				names = append(names, name)
				col = make([]any, rows)
			}
			// pad cells skipped by earlier records
			for len(col) < rows {
				col = append(col, nil)
			}
			cells[name] = append(col, jsonValue(value))
			return true
		})
		rows++
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	ds := New()
	for _, name := range names {
		col := cells[name]
		for len(col) < rows {
			col = append(col, nil)
		}
		if err := ds.AddColumn(columnFromValues(name, col)); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func jsonColumns(root gjson.Result) (*Dataset, error) {
	type column struct {
		name   string
		values map[string]gjson.Result
	}

	var columns []column
	var index []string
	seenIndex := make(map[string]bool)

	var colErr error
	root.ForEach(func(key, value gjson.Result) bool {
		c := column{name: key.String(), values: make(map[string]gjson.Result)}
		switch {
		case value.IsObject():
			value.ForEach(func(k, v gjson.Result) bool {
				c.values[k.String()] = v
				if !seenIndex[k.String()] {
					seenIndex[k.String()] = true
					index = append(index, k.String())
				}
				return true
			})
		case value.IsArray():
			for i, v := range value.Array() {
				k := strconv.Itoa(i)
				c.values[k] = v
				if !seenIndex[k] {
					seenIndex[k] = true
					index = append(index, k)
				}
			}
		default:
			colErr = fmt.Errorf("column %q is neither an object nor an array", c.name)
			return false
		}
		columns = append(columns, c)
		return true
	})
	if colErr != nil {
		return nil, colErr
	}

	ds := New()
	for _, c := range columns {
		values := make([]any, len(index))
		for i, k := range index {
			if v, ok := c.values[k]; ok {
				values[i] = jsonValue(v)
			}
		}
		if err := ds.AddColumn(columnFromValues(c.name, values)); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return n
			}
		}
		return v.Float()
	case gjson.String:
		return v.String()
	}
	// nested arrays and objects are kept as raw JSON text
	return v.Raw
}
