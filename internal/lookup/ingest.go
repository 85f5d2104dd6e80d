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

// pageContextSource labels facts that arrive embedded in the scraped page itself.
const pageContextSource = "page"

// ContextSource supplies auxiliary facts about a property, such as census statistics.
type ContextSource interface {
	Name() string
	Facts(ctx context.Context, property *models.Property) (map[string]string, error)
}

// PriceNotifier is told when an ingested page shows a price different from the stored one.
type PriceNotifier interface {
	NotifyPriceChange(property *models.Property, previous, current float64) error
}

// TxStore runs scoped transactions.
type TxStore interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IngestResult summarises one ingested page.
type IngestResult struct {
	Property   *models.Property
	Created    bool
	Price      history.Result
	FactsAdded int
}

type Ingestor struct {
	store    TxStore
	fetcher  source.Fetcher
	sources  []ContextSource
	notifier PriceNotifier
	history  *history.Tracker
	facts    *facts.Accumulator
	metrics  *metrics.LookupMetrics
	logger   *logrus.Logger
	now      func() time.Time
}

// NewIngestor wires the page pipeline. sources and notifier may be nil.
func NewIngestor(store TxStore, fetcher source.Fetcher, sources []ContextSource, notifier PriceNotifier, m *metrics.LookupMetrics, logger *logrus.Logger) *Ingestor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Ingestor{
		store:    store,
		fetcher:  fetcher,
		sources:  sources,
		notifier: notifier,
		history:  history.NewTracker(logger),
		facts:    facts.NewAccumulator(logger),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest fetches pageURL once, upserts its property, appends the price when it changed
// and appends context facts from every configured source.
func (i *Ingestor) Ingest(ctx context.Context, pageURL string) (*IngestResult, error) {
	key := normalizer.URLKey(pageURL)
	if key == "" {
		return nil, &NormalizationError{Key: pageURL, Err: errors.New("url is empty")}
	}
	kind := string(i.fetcher.Kind())
	log := i.logger.WithField("key", key)

	start := time.Now()
	payload, err := i.fetcher.Fetch(ctx, pageURL)
	switch {
	case errors.Is(err, source.ErrEmpty):
		i.metrics.ObserveFetch(kind, "empty", time.Since(start))
		i.metrics.RecordNotFound(kind)
		i.metrics.RecordIngest("not_found")
		return nil, ErrNotFound
	case err != nil:
		i.metrics.ObserveFetch(kind, "error", time.Since(start))
		i.metrics.RecordUpstreamFailure(kind)
		i.metrics.RecordIngest("error")
		return nil, &UpstreamError{Key: key, Err: err}
	}
	i.metrics.ObserveFetch(kind, "success", time.Since(start))

	res, err := normalizer.Normalize(payload, source.KindPage)
	if err != nil {
		i.metrics.RecordIngest("error")
		return nil, &NormalizationError{Key: key, Err: err}
	}

	candidate := res.Property
	candidate.LookupKey = key
	// the fetched URL, not the page's own canonical link, is what the refresh scheduler revisits
	candidate.SourceURL = pageURL

	factSets := i.gatherFacts(ctx, log, &candidate)
	if len(res.Facts) > 0 {
		factSets[pageContextSource] = res.Facts
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &IngestResult{}
	observedAt := i.now()
	err = i.store.Transaction(ctx, func(tx *gorm.DB) error {
		p, created, err := database.FirstOrCreateProperty(tx, &candidate)
		if err != nil {
			return err
		}
		result.Property = p
		result.Created = created

		if res.Price != nil {
			result.Price, err = i.history.RecordPrice(tx, p.ID, *res.Price, observedAt)
			if err != nil {
				return err
			}
		}

		for name, set := range factSets {
			if err := i.facts.AddFacts(tx, p.ID, name, set); err != nil {
				return err
			}
			result.FactsAdded += len(set)
		}
		return nil
	})
	if err != nil {
		i.metrics.RecordStoreFailure("persist")
		i.metrics.RecordIngest("error")
		return nil, &StoreError{Op: "persist", Err: err}
	}

	i.metrics.RecordIngest("ok")
	log.WithFields(logrus.Fields{
		"property_id":   result.Property.ID,
		"created":       result.Created,
		"price_changed": result.Price.Appended,
		"facts":         result.FactsAdded,
	}).Info("Page ingested")

	if result.Price.Changed() {
		i.metrics.RecordPriceChange()
		i.notify(log, result)
	}
	return result, nil
}

func (i *Ingestor) gatherFacts(ctx context.Context, log *logrus.Entry, p *models.Property) map[string]map[string]string {
	sets := make(map[string]map[string]string, len(i.sources)+1)
	for _, src := range i.sources {
		f, err := src.Facts(ctx, p)
		if err != nil {
			log.WithError(err).WithField("source", src.Name()).Warn("Context source failed, skipping")
			continue
		}
		if len(f) > 0 {
			sets[src.Name()] = f
		}
	}
	return sets
}

func (i *Ingestor) notify(log *logrus.Entry, result *IngestResult) {
	if i.notifier == nil {
		return
	}
	err := i.notifier.NotifyPriceChange(result.Property, *result.Price.Previous, result.Price.Latest)
	if err != nil {
		log.WithError(err).Warn("Failed to send price change notification")
	}
}
