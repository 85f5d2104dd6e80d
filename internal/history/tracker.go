// Package history keeps the per-property price history. A new entry is appended only
// when the observed price differs from the most recent one, so the stored sequence
// never contains two consecutive equal prices.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"homeworth/server/internal/models"
)

// Result describes what RecordPrice did.
type Result struct {
	Appended bool
	Latest   float64
	// Previous is the price that was latest before this observation, nil for the first one.
	Previous *float64
}

// Changed reports whether an existing price was replaced by a different one.
func (r Result) Changed() bool {
	return r.Appended && r.Previous != nil
}

type Tracker struct {
	logger *logrus.Logger
}

func NewTracker(logger *logrus.Logger) *Tracker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Tracker{logger: logger}
}

// RecordPrice appends observed to the history of propertyID unless it equals the latest
// stored price. It runs on the caller's transaction handle.
func (t *Tracker) RecordPrice(tx *gorm.DB, propertyID uint, observed float64, observedAt time.Time) (Result, error) {
	var latest models.PriceHistoryEntry
	err := tx.Where("property_id = ?", propertyID).
		Order("captured_at DESC").
		Order("id DESC").
		First(&latest).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first observation
	case err != nil:
		return Result{}, fmt.Errorf("failed to load latest price: %w", err)
	case latest.Price == observed:
		return Result{Latest: latest.Price}, nil
	}

	entry := models.PriceHistoryEntry{
		PropertyID: propertyID,
		Price:      observed,
		// sqlite orders the stored text, which only matches time order in one zone
		CapturedAt: observedAt.UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return Result{}, fmt.Errorf("failed to append price: %w", err)
	}

	res := Result{Appended: true, Latest: observed}
	if latest.ID != 0 {
		prev := latest.Price
		res.Previous = &prev
	}

	t.logger.WithFields(logrus.Fields{
		"property_id": propertyID,
		"price":       observed,
		"previous":    res.Previous,
	}).Debug("Recorded price")

	return res, nil
}

// History returns the price entries of propertyID in capture order.
func (t *Tracker) History(db *gorm.DB, propertyID uint) ([]models.PriceHistoryEntry, error) {
	var entries []models.PriceHistoryEntry
	err := db.Where("property_id = ?", propertyID).
		Order("captured_at").
		Order("id").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	return entries, nil
}
