package exporter

import (
	"strconv"
	"time"
)

// TimestampLayout is used for timestamp cells in text outputs
const TimestampLayout = "2006-01-02 15:04:05"

// formatFloat formats a float64 with the shortest representation that round-trips
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// formatCell renders one table cell as text. Nulls are empty strings.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return formatInt(x)
	case float64:
		return formatFloat(x)
	case bool:
		return formatBool(x)
	case time.Time:
		return x.Format(TimestampLayout)
	default:
		return ""
	}
}
