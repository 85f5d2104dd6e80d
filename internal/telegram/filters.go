package telegram

import (
	"math"
	"strings"

	"homeworth/server/internal/models"
)

// Filters decides which price changes are worth an alert.
type Filters struct {
	MinChangePercent float64
	States           []string
}

// IsChangeAllowed checks if a price change matches the filter criteria
func (f *Filters) IsChangeAllowed(property *models.Property, previous, current float64) bool {
	if f == nil {
		return true
	}

	if f.MinChangePercent > 0 {
		if previous == 0 {
			return false
		}
		change := math.Abs(current-previous) / previous * 100
		if change < f.MinChangePercent {
			return false
		}
	}

	if len(f.States) > 0 {
		allowed := false
		for _, state := range f.States {
			if strings.EqualFold(strings.TrimSpace(state), property.State) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	return true
}
