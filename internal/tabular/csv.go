package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
)

var errNoColumns = errors.New("no columns to parse from file")

// CSVReader reads comma-delimited text with a header row
type CSVReader struct{}

// Read decodes the whole file and infers column types
func (CSVReader) Read(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errNoColumns
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	names := uniqueNames(header)

	raw := make([][]string, len(names))
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for i := range names {
			raw[i] = append(raw[i], record[i])
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

// CountRows counts physical lines minus the header line
func (CSVReader) CountRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	lines := 0
	var last byte
	for {
		n, err := f.Read(buf)
		if n > 0 {
			lines += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	// unterminated final line
	if last != 0 && last != '\n' {
		lines++
	}

	if lines == 0 {
		return 0, nil
	}
	return lines - 1, nil
}
