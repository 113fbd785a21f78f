package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Format renders every row of the result as a text table for the transcript
// and for the model. Values are shown in full.
func (r *Result) Format() string {
	if r == nil || len(r.Columns) == 0 {
		return "Query returned no results."
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	table.SetHeader(r.Columns)

	for _, row := range r.Rows {
		values := make([]string, len(r.Columns))
		for i := range r.Columns {
			if i < len(row) {
				values[i] = FormatValue(row[i])
			}
		}
		table.Append(values)
	}
	table.Render()

	fmt.Fprintf(&sb, "(%d rows)\n", len(r.Rows))
	return sb.String()
}

// FormatValue renders a single value. Floats use the shortest representation
// that round-trips.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}
