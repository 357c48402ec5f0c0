package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ParquetReader reads Apache Parquet files
type ParquetReader struct{}

func openParquet(path string) (*parquet.File, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return pf, f, nil
}

// CountRows reads the row count from the footer metadata
func (ParquetReader) CountRows(path string) (int, error) {
	pf, f, err := openParquet(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return int(pf.NumRows()), nil
}

type parquetLeaf struct {
	name     string
	typ      ColumnType
	repeated bool
	convert  func(parquet.Value) any
}

// Read decodes every row group into memory
func (ParquetReader) Read(path string) (*Dataset, error) {
	pf, f, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	schema := pf.Schema()
	paths := schema.Columns()
	leaves := make([]parquetLeaf, len(paths))
	for _, p := range paths {
		leaf, ok := schema.Lookup(p...)
		if !ok {
			return nil, fmt.Errorf("column %s missing from schema", strings.Join(p, "."))
		}
		typ, convert := parquetConverter(leaf.Node)
		leaves[leaf.ColumnIndex] = parquetLeaf{
			name:     strings.Join(p, "."),
			typ:      typ,
			repeated: leaf.MaxRepetitionLevel > 0,
			convert:  convert,
		}
	}

	values := make([][]any, len(leaves))
	for i := range values {
		values[i] = make([]any, 0, pf.NumRows())
	}

	buf := make([]parquet.Row, 256)
	cells := make([][]any, len(leaves))
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for i := range cells {
					cells[i] = cells[i][:0]
				}
				for _, v := range row {
					col := v.Column()
					if col < 0 || col >= len(leaves) || v.IsNull() {
						continue
					}
					cells[col] = append(cells[col], leaves[col].convert(v))
				}
				for i, leaf := range leaves {
					values[i] = append(values[i], collapseCells(leaf, cells[i]))
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, err
			}
		}
		rows.Close()
	}

	ds := New()
	for i, leaf := range leaves {
		// pandas stores a non-default index as an extra column
		if strings.HasPrefix(leaf.name, "__index_level_") {
			continue
		}
		typ := leaf.typ
		if leaf.repeated {
			typ = TypeString
		}
		if err := ds.AddColumn(&Column{Name: leaf.name, Type: typ, Values: values[i]}); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// collapseCells turns the values of one leaf within a row into a single cell
func collapseCells(leaf parquetLeaf, cells []any) any {
	if !leaf.repeated {
		if len(cells) == 0 {
			return nil
		}
		return cells[0]
	}
	if len(cells) == 0 {
		return nil
	}
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = FormatValue(c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func parquetConverter(node parquet.Node) (ColumnType, func(parquet.Value) any) {
	t := node.Type()
	lt := t.LogicalType()

	switch t.Kind() {
	case parquet.Boolean:
		return TypeBool, func(v parquet.Value) any { return v.Boolean() }

	case parquet.Int32:
		if lt != nil && lt.Date != nil {
			return TypeDatetime, func(v parquet.Value) any {
				return time.Unix(int64(v.Int32())*86400, 0).UTC()
			}
		}
		return TypeInt, func(v parquet.Value) any { return int64(v.Int32()) }

	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			unit := lt.Timestamp.Unit
			return TypeDatetime, func(v parquet.Value) any {
				n := v.Int64()
				switch {
				case unit.Millis != nil:
					return time.UnixMilli(n).UTC()
				case unit.Micros != nil:
					return time.UnixMicro(n).UTC()
				default:
					return time.Unix(0, n).UTC()
				}
			}
		}
		return TypeInt, func(v parquet.Value) any { return v.Int64() }

	case parquet.Float:
		return TypeFloat, func(v parquet.Value) any { return float64(v.Float()) }

	case parquet.Double:
		return TypeFloat, func(v parquet.Value) any { return v.Double() }

	case parquet.ByteArray, parquet.FixedLenByteArray:
		return TypeString, func(v parquet.Value) any { return string(v.ByteArray()) }
	}

	return TypeString, func(v parquet.Value) any { return v.String() }
}
