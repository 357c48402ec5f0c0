package tabular

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the data file does not exist
	ErrNotFound = errors.New("data file not found")

	// ErrUnsupportedFormat is returned for extensions without a reader
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Reader decodes one file format into a Dataset
type Reader interface {
	Read(path string) (*Dataset, error)
}

// RowCounter is implemented by readers that can count rows without a full decode
type RowCounter interface {
	CountRows(path string) (int, error)
}

// Loader dispatches to a Reader by file extension
// ⭐ SSOT: 확장자별 데이터 로딩은 여기서만
type Loader struct {
	readers map[string]Reader
}

// NewLoader creates a loader with the built-in readers registered
func NewLoader() *Loader {
	l := &Loader{readers: make(map[string]Reader)}

	l.Register(".parquet", ParquetReader{})
	l.Register(".csv", CSVReader{})
	l.Register(".xlsx", ExcelReader{})
	l.Register(".xls", ExcelReader{})
	l.Register(".json", JSONReader{})
	l.Register(".gpkg", GeoPackageReader{})
	l.Register(".dta", StataReader{})

	return l
}

// Register adds or replaces the reader for ext (".csv", "parquet", ...)
func (l *Loader) Register(ext string, r Reader) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	l.readers[ext] = r
}

// Extensions returns the registered extensions, sorted
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.readers))
	for ext := range l.readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load reads the whole file into memory
func (l *Loader) Load(path string) (*Dataset, error) {
	reader, err := l.readerFor(path)
	if err != nil {
		return nil, err
	}

	ds, err := reader.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return ds, nil
}

// CountRows returns the number of data rows, 0 when the file is absent.
// Columnar formats answer from metadata; delimited text counts lines minus the header.
func (l *Loader) CountRows(path string) (int, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	reader, err := l.readerFor(path)
	if err != nil {
		return 0, err
	}

	if counter, ok := reader.(RowCounter); ok {
		n, err := counter.CountRows(path)
		if err != nil {
			return 0, fmt.Errorf("count rows %s: %w", filepath.Base(path), err)
		}
		return n, nil
	}

	ds, err := reader.Read(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return ds.NumRows(), nil
}

func (l *Loader) readerFor(path string) (Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	reader, ok := l.readers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return reader, nil
}
