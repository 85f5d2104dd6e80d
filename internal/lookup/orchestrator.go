// Package lookup implements the cache-aside property lookup and the page ingest
// pipeline on top of the Lookup Store.
package lookup

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"homeworth/server/internal/database"
	"homeworth/server/internal/facts"
	"homeworth/server/internal/history"
	"homeworth/server/internal/metrics"
	"homeworth/server/internal/models"
	"homeworth/server/internal/normalizer"
	"homeworth/server/internal/source"
)

// Store is the part of the Lookup Store the orchestrator needs.
type Store interface {
	FindEstimate(ctx context.Context, key string) (*models.Estimate, error)
	EvictEstimates(ctx context.Context, key string) (int64, error)
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Orchestrator struct {
	store   Store
	fetcher source.Fetcher
	history *history.Tracker
	facts   *facts.Accumulator
	metrics *metrics.LookupMetrics
	logger  *logrus.Logger
	now     func() time.Time
}

func NewOrchestrator(store Store, fetcher source.Fetcher, m *metrics.LookupMetrics, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		store:   store,
		fetcher: fetcher,
		history: history.NewTracker(logger),
		facts:   facts.NewAccumulator(logger),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// GetOrCreate returns the stored estimate for address, fetching and persisting it on a
// miss. A hit never calls the source. Every miss calls the source exactly once.
func (o *Orchestrator) GetOrCreate(ctx context.Context, address string) (*models.Estimate, error) {
	key := normalizer.AddressKey(address)
	if key == "" {
		return nil, &NormalizationError{Key: address, Err: errors.New("address is empty")}
	}
	kind := string(o.fetcher.Kind())
	log := o.logger.WithField("key", key)

	stored, err := o.store.FindEstimate(ctx, key)
	if err != nil {
		o.metrics.RecordStoreFailure("lookup")
		return nil, &StoreError{Op: "lookup", Err: err}
	}
	if stored != nil {
		o.metrics.RecordHit(kind)
		log.Debug("Estimate served from store")
		return stored, nil
	}
	o.metrics.RecordMiss(kind)

	payload, err := o.fetch(ctx, key, address)
	if err != nil {
		return nil, err
	}

	res, err := normalizer.Normalize(payload, o.fetcher.Kind())
	if err != nil {
		return nil, &NormalizationError{Key: key, Err: err}
	}

	// a caller that gave up must not leave a half-finished lookup behind
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	estimate := res.Estimate
	estimate.LookupKey = key
	if estimate.Address == "" {
		estimate.Address = address
	}

	var property *models.Property
	err = o.store.Transaction(ctx, func(tx *gorm.DB) error {
		if res.Property.HasStructure() {
			candidate := res.Property
			candidate.LookupKey = key
			p, _, err := database.FirstOrCreateProperty(tx, &candidate)
			if err != nil {
				return err
			}
			property = p
			estimate.PropertyID = &p.ID
		}

		if err := tx.Create(&estimate).Error; err != nil {
			return err
		}

		if property == nil {
			return nil
		}
		if res.Price != nil {
			if _, err := o.history.RecordPrice(tx, property.ID, *res.Price, o.now()); err != nil {
				return err
			}
		}
		return o.facts.AddFacts(tx, property.ID, kind, res.Facts)
	})
	if err != nil {
		o.metrics.RecordStoreFailure("persist")
		return nil, &StoreError{Op: "persist", Err: err}
	}

	estimate.Property = property
	log.WithField("estimate_id", estimate.ID).Info("Estimate fetched and stored")
	return &estimate, nil
}

func (o *Orchestrator) fetch(ctx context.Context, key, address string) (source.Payload, error) {
	kind := string(o.fetcher.Kind())
	start := time.Now()
	payload, err := o.fetcher.Fetch(ctx, address)
	switch {
	case errors.Is(err, source.ErrEmpty):
		o.metrics.ObserveFetch(kind, "empty", time.Since(start))
		o.metrics.RecordNotFound(kind)
		return nil, ErrNotFound
	case err != nil:
		o.metrics.ObserveFetch(kind, "error", time.Since(start))
		o.metrics.RecordUpstreamFailure(kind)
		o.logger.WithError(err).WithField("key", key).Warn("Source fetch failed")
		return nil, &UpstreamError{Key: key, Err: err}
	}
	o.metrics.ObserveFetch(kind, "success", time.Since(start))
	return payload, nil
}

// Evict removes the stored estimates for address so the next GetOrCreate fetches again.
func (o *Orchestrator) Evict(ctx context.Context, address string) (int64, error) {
	key := normalizer.AddressKey(address)
	if key == "" {
		return 0, &NormalizationError{Key: address, Err: errors.New("address is empty")}
	}
	n, err := o.store.EvictEstimates(ctx, key)
	if err != nil {
		return 0, &StoreError{Op: "evict", Err: err}
	}
	o.logger.WithFields(logrus.Fields{"key": key, "evicted": n}).Info("Evicted estimates")
	return n, nil
}
