package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// URLQueue is an in-memory queue of page URL batches waiting to be ingested
type URLQueue struct {
	items    chan []string
	done     chan struct{}
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	logger   *logrus.Logger
	handlers []func([]string) error
}

// NewURLQueue creates a new queue holding at most bufferSize batches
func NewURLQueue(bufferSize int, logger *logrus.Logger) *URLQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &URLQueue{
		items:    make(chan []string, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func([]string) error, 0),
	}
}

// Push adds a batch of URLs to the queue
func (q *URLQueue) Push(urls []string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if len(urls) == 0 {
		return nil
	}

	// Non-blocking send so callers on request paths never stall
	select {
	case q.items <- urls:
		q.logger.WithField("batch_size", len(urls)).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// PushAll splits urls into batches of batchSize and queues them. It returns the number
// of URLs queued before the first failure.
func (q *URLQueue) PushAll(urls []string, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = len(urls)
	}
	queued := 0
	for start := 0; start < len(urls); start += batchSize {
		end := start + batchSize
		if end > len(urls) {
			end = len(urls)
		}
		if err := q.Push(urls[start:end]); err != nil {
			return queued, err
		}
		queued = end
	}
	return queued, nil
}

// Subscribe adds a handler function that will be called for each batch
func (q *URLQueue) Subscribe(handler func([]string) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *URLQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.process()
}

func (q *URLQueue) process() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case batch := <-q.items:
			q.processBatch(batch)
		}
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *URLQueue) processBatch(batch []string) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process batch")
		}
	}
}

// Close stops the queue, waits for the batch in progress and drops the rest
func (q *URLQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()
	if pending := len(q.items); pending > 0 {
		q.logger.WithField("pending_batches", pending).Warn("Queue closed with unprocessed batches")
	}
	return nil
}

// Len returns the current number of batches in the queue
func (q *URLQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *URLQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
