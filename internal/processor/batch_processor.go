package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"homeworth/server/internal/lookup"
	"homeworth/server/internal/queue"
)

// Ingester runs one page through the ingest pipeline
type Ingester interface {
	Ingest(ctx context.Context, pageURL string) (*lookup.IngestResult, error)
}

// BatchProcessor ingests the URL batches taken from the queue, running up to
// workers pages concurrently. Failed pages are logged and not retried.
type BatchProcessor struct {
	ingester Ingester
	logger   *logrus.Logger
	queue    *queue.URLQueue
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(ingester Ingester, q *queue.URLQueue, workers int, logger *logrus.Logger) *BatchProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		ingester: ingester,
		queue:    q,
		workers:  workers,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes the processor to the queue
func (p *BatchProcessor) Start() {
	p.once.Do(func() {
		p.queue.Subscribe(p.processBatch)
	})
}

// Stop cancels in-flight ingests; later batches fail fast
func (p *BatchProcessor) Stop() {
	p.cancel()
}

// BatchStats counts the outcome of one batch
type BatchStats struct {
	Ingested     int
	PriceChanges int
	NotFound     int
	Failed       int
}

func (p *BatchProcessor) processBatch(batch []string) error {
	stats := p.ProcessURLs(p.ctx, batch)
	if stats.Failed > 0 {
		return fmt.Errorf("failed to ingest %d of %d urls", stats.Failed, len(batch))
	}
	return nil
}

// ProcessURLs ingests urls with bounded concurrency and returns the tally
func (p *BatchProcessor) ProcessURLs(ctx context.Context, urls []string) BatchStats {
	var (
		stats BatchStats
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, p.workers)
	)

	for _, u := range urls {
		if ctx.Err() != nil {
			mu.Lock()
			stats.Failed++
			mu.Unlock()
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := p.ingester.Ingest(ctx, pageURL)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, lookup.ErrNotFound):
				stats.NotFound++
				p.logger.WithField("url", pageURL).Warn("No property data on page")
			case err != nil:
				stats.Failed++
				p.logger.WithError(err).WithField("url", pageURL).Error("Failed to ingest page")
			default:
				stats.Ingested++
				if res.Price.Changed() {
					stats.PriceChanges++
				}
			}
		}(u)
	}
	wg.Wait()

	p.logger.WithFields(logrus.Fields{
		"urls":          len(urls),
		"ingested":      stats.Ingested,
		"price_changes": stats.PriceChanges,
		"not_found":     stats.NotFound,
		"failed":        stats.Failed,
	}).Info("Processed ingest batch")
	return stats
}
