package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Row is one corpus or gold-set line keyed by header column name.
type Row map[string]string

// LoadCSV reads a CSV file into header-keyed rows. The first line
// names the columns; the prompt and gold-set loaders pick the columns
// they need, so extra columns pass through harmlessly.
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := records[0]
	rows := make([]Row, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// LoadCSVRange reads the data rows in [start, end], 1-based and
// inclusive, counting from the first row after the header. Used to
// sample a slice of a large corpus without editing the file.
func LoadCSVRange(path string, start, end int) ([]Row, error) {
	if start < 1 {
		return nil, fmt.Errorf("csv: range start must be >= 1, got %d", start)
	}
	if end < start {
		return nil, fmt.Errorf("csv: range end (%d) must be >= start (%d)", end, start)
	}

	allRows, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}

	if end > len(allRows) {
		end = len(allRows)
	}
	if start > len(allRows) {
		return []Row{}, nil
	}

	return allRows[start-1 : end], nil
}
