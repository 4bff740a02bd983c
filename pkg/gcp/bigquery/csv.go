package bigquery

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	bqapi "google.golang.org/api/bigquery/v2"
)

// ToCSV renders a header line of field names followed by one line per row.
// NULL cells are empty and REPEATED or RECORD cells are written as JSON.
// There is no trailing newline.
func ToCSV(schema *bqapi.TableSchema, rows []*bqapi.TableRow) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	var header []string
	if schema != nil {
		for _, field := range schema.Fields {
			header = append(header, field.Name)
		}
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i, row := range rows {
		record := make([]string, 0, len(row.F))
		for _, cell := range row.F {
			value, err := cellString(cell)
			if err != nil {
				return "", fmt.Errorf("row %d: %w", i, err)
			}
			record = append(record, value)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func cellString(cell *bqapi.TableCell) (string, error) {
	if cell == nil || cell.V == nil {
		return "", nil
	}
	if s, ok := cell.V.(string); ok {
		return s, nil
	}

	encoded, err := json.Marshal(cell.V)
	if err != nil {
		return "", fmt.Errorf("failed to encode cell: %w", err)
	}
	return string(encoded), nil
}
