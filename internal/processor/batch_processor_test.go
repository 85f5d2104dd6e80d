package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"homeworth/server/internal/history"
	"homeworth/server/internal/lookup"
	"homeworth/server/internal/queue"
)

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, pageURL string) (*lookup.IngestResult, error) {
	args := m.Called(ctx, pageURL)
	res, _ := args.Get(0).(*lookup.IngestResult)
	return res, args.Error(1)
}

func floatPtr(v float64) *float64 { return &v }

func TestNewBatchProcessor(t *testing.T) {
	ingester := &MockIngester{}
	q := queue.NewURLQueue(10, logrus.New())
	logger := logrus.New()

	p := NewBatchProcessor(ingester, q, 0, logger)

	assert.NotNil(t, p)
	assert.Equal(t, ingester, p.ingester)
	assert.Equal(t, q, p.queue)
	assert.Equal(t, 1, p.workers, "worker count is at least one")
	assert.Equal(t, logger, p.logger)
}

func TestBatchProcessor_ProcessURLs(t *testing.T) {
	ingester := &MockIngester{}
	ingester.On("Ingest", mock.Anything, "https://example.com/ok").
		Return(&lookup.IngestResult{}, nil).Once()
	ingester.On("Ingest", mock.Anything, "https://example.com/changed").
		Return(&lookup.IngestResult{Price: history.Result{Appended: true, Latest: 2, Previous: floatPtr(1)}}, nil).Once()
	ingester.On("Ingest", mock.Anything, "https://example.com/gone").
		Return(nil, lookup.ErrNotFound).Once()
	ingester.On("Ingest", mock.Anything, "https://example.com/broken").
		Return(nil, &lookup.UpstreamError{Key: "broken", Err: errors.New("timeout")}).Once()

	p := NewBatchProcessor(ingester, queue.NewURLQueue(1, logrus.New()), 2, logrus.New())

	stats := p.ProcessURLs(context.Background(), []string{
		"https://example.com/ok",
		"https://example.com/changed",
		"https://example.com/gone",
		"https://example.com/broken",
	})

	assert.Equal(t, BatchStats{Ingested: 2, PriceChanges: 1, NotFound: 1, Failed: 1}, stats)
	ingester.AssertExpectations(t)
}

func TestBatchProcessor_NoRetry(t *testing.T) {
	ingester := &MockIngester{}
	ingester.On("Ingest", mock.Anything, mock.Anything).Return(nil, errors.New("db error"))

	p := NewBatchProcessor(ingester, queue.NewURLQueue(1, logrus.New()), 1, logrus.New())
	err := p.processBatch([]string{"https://example.com/1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ingest 1 of 1 urls")
	ingester.AssertNumberOfCalls(t, "Ingest", 1)
}

func TestBatchProcessor_BoundedConcurrency(t *testing.T) {
	const workers = 2
	var (
		mu      sync.Mutex
		running int
		peak    int
	)

	ingester := &MockIngester{}
	ingester.On("Ingest", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
		}).
		Return(&lookup.IngestResult{}, nil)

	p := NewBatchProcessor(ingester, queue.NewURLQueue(1, logrus.New()), workers, logrus.New())
	stats := p.ProcessURLs(context.Background(), []string{"1", "2", "3", "4", "5", "6"})

	assert.Equal(t, 6, stats.Ingested)
	assert.LessOrEqual(t, peak, workers)
}

func TestBatchProcessor_StartStop(t *testing.T) {
	ingester := &MockIngester{}
	done := make(chan struct{})
	ingester.On("Ingest", mock.Anything, "https://example.com/1").
		Run(func(mock.Arguments) { close(done) }).
		Return(&lookup.IngestResult{}, nil).Once()

	q := queue.NewURLQueue(10, logrus.New())
	p := NewBatchProcessor(ingester, q, 2, logrus.New())
	p.Start()
	p.Start()
	q.Start()

	require.NoError(t, q.Push([]string{"https://example.com/1"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not ingested")
	}

	p.Stop()
	require.NoError(t, q.Close())
	assert.True(t, q.IsClosed())

	stats := p.ProcessURLs(p.ctx, []string{"https://example.com/2"})
	assert.Equal(t, 1, stats.Failed, "stopped processor does not start new ingests")
	ingester.AssertNumberOfCalls(t, "Ingest", 1)
}
