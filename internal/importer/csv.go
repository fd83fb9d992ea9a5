package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV reads rows from an export with a header line. Columns are matched
// by name, case-insensitively. Unknown columns are ignored and missing ones
// read as empty.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"date", "amount"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("read csv header: missing %q column", required)
		}
	}

	var rows []Row
	line := 1
	for {
		record, readErr := reader.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read csv line %d: %w", line+1, readErr)
		}
		line++
		get := func(col string) string {
			i, ok := colIndex[col]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}
		rows = append(rows, Row{
			Date:     get("date"),
			Amount:   get("amount"),
			Account:  get("account"),
			Envelope: get("envelope"),
			Name:     get("name"),
			Notes:    get("notes"),
			Details:  get("details"),
		})
	}
	return rows, nil
}
