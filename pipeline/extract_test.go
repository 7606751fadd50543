package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractNumericFields(t *testing.T) {
	fields := ExtractNumericFields("Invoice summary. Total: 120.50, item count 7")
	assert.Equal(t, 120.50, fields["total"])
	assert.Equal(t, float64(7), fields["count"])
	assert.NotContains(t, fields, "sum")
	assert.NotContains(t, fields, "amount")
}

func TestExtractNumericFieldsCaseInsensitive(t *testing.T) {
	fields := ExtractNumericFields("TOTAL: 99\nAmount 12.5")
	assert.Equal(t, float64(99), fields["total"])
	assert.Equal(t, 12.5, fields["amount"])
}

func TestExtractNumericFieldsFirstMatchWins(t *testing.T) {
	fields := ExtractNumericFields("Total: 10 then later Total: 20")
	assert.Equal(t, float64(10), fields["total"])
}

func TestExtractNumericFieldsNegative(t *testing.T) {
	fields := ExtractNumericFields("Adjustment applied. Total: -100")
	assert.Equal(t, float64(-100), fields["total"])
}

func TestExtractNumericFieldsNone(t *testing.T) {
	fields := ExtractNumericFields("no numbers of interest here")
	assert.Empty(t, fields)
}

func TestValidateNumericFields(t *testing.T) {
	warnings := ValidateNumericFields(map[string]float64{"total": -100, "count": 3})
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "total")

	assert.Empty(t, ValidateNumericFields(map[string]float64{"total": 0}))
	assert.Empty(t, ValidateNumericFields(nil))
}
