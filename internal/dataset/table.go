package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table is a raw CSV table with columns addressed by header name.
// It is the ingestion boundary: callers validate the columns they
// need before touching any row.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// ReadTable loads a CSV file into a Table. The first record is the
// header; short rows are an input-format error.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return readTable(f, path)
}

func readTable(r io.Reader, name string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%s: file is empty", name)
		}
		return nil, fmt.Errorf("reading header from %s: %w", name, err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	t := &Table{Headers: headers}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s line %d: %w", name, line+1, err)
		}
		line++
		if len(record) < len(headers) {
			return nil, fmt.Errorf("%s line %d: %d fields, header has %d", name, line, len(record), len(headers))
		}
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = record[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// RequireColumns fails fast when any named column is missing from the
// header, listing every missing column in one error.
func (t *Table) RequireColumns(cols ...string) error {
	present := make(map[string]struct{}, len(t.Headers))
	for _, h := range t.Headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, c := range cols {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s (have: %s)",
			strings.Join(missing, ", "), strings.Join(t.Headers, ", "))
	}
	return nil
}

// HasColumn reports whether the header contains the named column.
func (t *Table) HasColumn(col string) bool {
	for _, h := range t.Headers {
		if h == col {
			return true
		}
	}
	return false
}
