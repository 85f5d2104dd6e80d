// Package facts stores labeled key/value facts about a property gathered from
// auxiliary sources. Facts are append-only.
package facts

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"homeworth/server/internal/models"
)

type Accumulator struct {
	logger *logrus.Logger
	now    func() time.Time
}

func NewAccumulator(logger *logrus.Logger) *Accumulator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Accumulator{logger: logger, now: time.Now}
}

// AddFacts inserts one row per entry of facts, all stamped with the same capture time.
// Existing facts are never updated or deduplicated.
func (a *Accumulator) AddFacts(tx *gorm.DB, propertyID uint, source string, facts map[string]string) error {
	if len(facts) == 0 {
		return nil
	}

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	capturedAt := a.now().UTC()
	rows := make([]models.ContextFact, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, models.ContextFact{
			PropertyID: propertyID,
			Source:     source,
			DataKey:    k,
			DataValue:  facts[k],
			CapturedAt: capturedAt,
		})
	}

	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert context facts: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"property_id": propertyID,
		"source":      source,
		"count":       len(rows),
	}).Debug("Added context facts")
	return nil
}

// List returns every fact stored for propertyID in capture order.
func (a *Accumulator) List(db *gorm.DB, propertyID uint) ([]models.ContextFact, error) {
	var rows []models.ContextFact
	err := db.Where("property_id = ?", propertyID).
		Order("captured_at").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list context facts: %w", err)
	}
	return rows, nil
}
