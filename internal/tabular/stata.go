package tabular

import "fmt"

// StataReader recognises .dta files so they are reported as unreadable rather than unknown.
// There is no decoder for the Stata binary format.
type StataReader struct{}

// Read always fails with ErrUnsupportedFormat
func (StataReader) Read(path string) (*Dataset, error) {
	return nil, fmt.Errorf("%w: .dta (Stata files must be exported to parquet or csv)", ErrUnsupportedFormat)
}
