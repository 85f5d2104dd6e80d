package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"homeworth/server/internal/queue"
)

// URLLister returns the page URLs of every known property
type URLLister interface {
	ListPropertyURLs(ctx context.Context) ([]string, error)
}

// Scheduler periodically queues every known listing page for re-ingest so that
// price changes are picked up
type Scheduler struct {
	lister       URLLister
	queue        *queue.URLQueue
	interval     time.Duration
	batchSize    int
	runOnStartup bool
	logger       *logrus.Logger
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	jobMutex     sync.Mutex // Ensures sequential refresh runs
}

// NewScheduler creates a new scheduler
func NewScheduler(lister URLLister, q *queue.URLQueue, interval time.Duration, batchSize int, runOnStartup bool, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scheduler{
		lister:       lister,
		queue:        q,
		interval:     interval,
		batchSize:    batchSize,
		runOnStartup: runOnStartup,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the scheduled refreshes. A non-positive interval disables them.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info("Refresh scheduler disabled")
		return
	}
	s.wg.Add(1)
	go s.runScheduler()
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopChan
		cancel()
	}()

	if s.runOnStartup {
		s.logger.Info("Running startup refresh")
		s.refresh(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	queued, err := s.RunRefresh(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("queued", queued).Error("Refresh run failed")
		return
	}
	s.logger.WithField("queued", queued).Info("Refresh run completed")
}

// RunRefresh queues all known property URLs once and returns how many were queued
func (s *Scheduler) RunRefresh(ctx context.Context) (int, error) {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	urls, err := s.lister.ListPropertyURLs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list property urls: %w", err)
	}
	if len(urls) == 0 {
		return 0, nil
	}

	queued, err := s.queue.PushAll(urls, s.batchSize)
	if err != nil {
		return queued, fmt.Errorf("failed to queue refresh batch: %w", err)
	}
	return queued, nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
