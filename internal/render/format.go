package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/praeparo-labs/praeparo/internal/dataset"
)

// FormatValue renders one cell under a value format. `percent:<precision>`
// formats a fraction as a percentage, `duration:hms` formats seconds as
// HH:MM:SS; anything else passes through.
func FormatValue(value any, format string) string {
	if value == nil {
		return ""
	}

	number, isNumber := dataset.Number(value)
	switch {
	case strings.HasPrefix(format, "percent") && isNumber:
		return formatPercent(number, format)
	case strings.HasPrefix(format, "duration") && isNumber:
		return formatDuration(number)
	case isNumber:
		return strconv.FormatFloat(number, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}

func formatPercent(fraction float64, format string) string {
	precision := 2
	if _, spec, ok := strings.Cut(format, ":"); ok {
		if parsed, err := strconv.Atoi(spec); err == nil && parsed >= 0 {
			precision = parsed
		}
	}
	return strconv.FormatFloat(fraction*100, 'f', precision, 64) + "%"
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := total % 3600 / 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, total%60)
}
