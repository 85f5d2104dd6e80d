package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected *float64
	}{
		{"Currency string", "$520,000", floatPtr(520000)},
		{"Decimal string", "3.5", floatPtr(3.5)},
		{"Euro with spaces", " €1 250 ", floatPtr(1250)},
		{"USD prefix", "USD 99", floatPtr(99)},
		{"JSON float", 410000.5, floatPtr(410000.5)},
		{"JSON number", json.Number("12"), floatPtr(12)},
		{"Plain int", 7, floatPtr(7)},
		{"Nil", nil, nil},
		{"Empty string", "", nil},
		{"Dash placeholder", "—", nil},
		{"Words", "N/A", nil},
		{"Bool", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Float(tt.input))
		})
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected *int
	}{
		{"Integral string", "1,512", intPtr(1512)},
		{"Integral float", 3.0, intPtr(3)},
		{"Fractional value", "2.5", nil},
		{"Garbage", "three", nil},
		{"Missing", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Int(tt.input))
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "Condo", String("  Condo "))
	assert.Equal(t, "3200", String(3200.0))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, `{"a":1}`, String(map[string]any{"a": 1}))
}

func floatPtr(v float64) *float64 {
	return &v
}

func intPtr(v int) *int {
	return &v
}
