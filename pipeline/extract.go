package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
)

// numericFieldPatterns match labeled numeric fields in document text, e.g.
// "Total: 120.50" or "count 7". The first match per field wins. The sign
// is captured so negative values can be surfaced as validation warnings
// instead of silently skipped.
var numericFieldPatterns = map[string]*regexp.Regexp{
	"total":  regexp.MustCompile(`(?i)total[:\s]+(-?\d+(?:\.\d+)?)`),
	"sum":    regexp.MustCompile(`(?i)sum[:\s]+(-?\d+(?:\.\d+)?)`),
	"amount": regexp.MustCompile(`(?i)amount[:\s]+(-?\d+(?:\.\d+)?)`),
	"count":  regexp.MustCompile(`(?i)count[:\s]+(-?\d+(?:\.\d+)?)`),
}

// ExtractNumericFields scans document content for labeled numeric fields.
// Only the first occurrence of each field is taken.
func ExtractNumericFields(content string) map[string]float64 {
	fields := make(map[string]float64)
	for name, pattern := range numericFieldPatterns {
		m := pattern.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		fields[name] = value
	}
	return fields
}

// ValidateNumericFields checks extracted numeric fields for suspicious
// values. Findings are warnings: they are recorded on the processing
// result but never block persistence.
func ValidateNumericFields(fields map[string]float64) []string {
	var warnings []string
	for name, value := range fields {
		if value < 0 {
			warnings = append(warnings, fmt.Sprintf("negative value for field %q: %g", name, value))
		}
	}
	return warnings
}
