package tabular

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// GeoPackageReader reads the first feature (or attribute) table of an OGC GeoPackage.
// Geometry blobs are kept as binary cells; the fid key becomes the row index and is dropped.
type GeoPackageReader struct{}

const gpkgLayerQuery = `
	SELECT table_name
	FROM gpkg_contents
	WHERE data_type IN ('features', 'attributes')
	ORDER BY CASE data_type WHEN 'features' THEN 0 ELSE 1 END, rowid
	LIMIT 1
`

// Read decodes the first layer
func (GeoPackageReader) Read(path string) (*Dataset, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var table string
	if err := db.QueryRow(gpkgLayerQuery).Scan(&table); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("geopackage has no feature layers")
		}
		return nil, fmt.Errorf("read gpkg_contents: %w", err)
	}

	rows, err := db.Query(fmt.Sprintf(`SELECT * FROM "%s"`, strings.ReplaceAll(table, `"`, `""`)))
	if err != nil {
		return nil, fmt.Errorf("query layer %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([][]any, len(names))
	for rows.Next() {
		dest := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan layer %s: %w", table, err)
		}
		for i, v := range dest {
			values[i] = append(values[i], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ds := New()
	for i, name := range names {
		if name == "fid" {
			continue
		}
		col := values[i]
		if col == nil {
			col = []any{}
		}
		if err := ds.AddColumn(columnFromValues(name, col)); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
