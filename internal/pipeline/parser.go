package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// parseCSV reads a header row followed by data rows. Header names are matched
// case-insensitively against headerAliases; unknown columns are ignored. Every
// column in required must be present.
func parseCSV(data []byte, required []string) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parseCSV: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("parseCSV: reading header: %w", err)
	}

	columns := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		if canonical, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			columns[i] = canonical
			present[canonical] = true
		}
	}

	var missing []string
	for _, c := range required {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("parseCSV: missing required columns: %s", strings.Join(missing, ", "))
	}

	var rows []Row
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parseCSV: %w", err)
		}
		line, _ := r.FieldPos(0)
		if blank(record) {
			continue
		}

		fields := make(map[string]string, len(columns))
		for i, value := range record {
			if i < len(columns) && columns[i] != "" {
				fields[columns[i]] = strings.TrimSpace(value)
			}
		}
		rows = append(rows, Row{Line: line, Fields: fields})
	}

	return rows, nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
