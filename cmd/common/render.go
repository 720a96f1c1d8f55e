package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Column preference orders for record tables. The first list that matches
// the records wins; incidents and active calls carry different fields.
var columnPreferences = [][]string{
	{"incidentnum", "date1", "beat", "division", "offincident", "ucr_offense"},
	{"nature_of_call", "unit_number", "block", "location", "beat"},
}

// maxCellWidth keeps wide free-text fields from wrapping the terminal.
const maxCellWidth = 40

// PickColumns chooses table columns for a record set: the first preference
// list with at least one field present in the first record, falling back to
// every key of the first record.
func PickColumns(records []map[string]any) []string {
	if len(records) == 0 {
		return nil
	}
	first := records[0]

	for _, preference := range columnPreferences {
		var present []string
		for _, column := range preference {
			if _, ok := first[column]; ok {
				present = append(present, column)
			}
		}
		if len(present) > 0 {
			return present
		}
	}

	columns := make([]string, 0, len(first))
	for key := range first {
		columns = append(columns, key)
	}
	return columns
}

// RenderRecords formats records as a table on w.
func RenderRecords(w io.Writer, records []map[string]any, columns []string) {
	if len(columns) == 0 {
		columns = PickColumns(records)
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	t.AppendHeader(header)

	for _, record := range records {
		row := make(table.Row, len(columns))
		for i, column := range columns {
			row[i] = cellValue(record[column])
		}
		t.AppendRow(row)
	}
	t.Render()
}

// RenderJSON writes v as indented JSON on w.
func RenderJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// RenderTable writes header/rows as a table on stdout.
func RenderTable(header table.Row, rows []table.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
}

func cellValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		if len(value) > maxCellWidth {
			return value[:maxCellWidth-3] + "..."
		}
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}
