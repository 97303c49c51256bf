// Package worker publishes memory events off the request path through a
// bounded pool of goroutines. Handlers enqueue and return immediately; a full
// queue drops the event rather than slowing the response.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/memories-sh/memories-go/pkg/eventstream"
	"github.com/memories-sh/memories-go/pkg/logger"
)

var (
	defaultNumWorkers     uint = 2
	defaultQueueSize      uint = 128
	defaultPublishTimeout      = 5 * time.Second
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every enqueued event. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool (defaults to 2).
	NumWorkers uint

	// QueueSize is the capacity of the buffered event channel (defaults to 128).
	QueueSize uint

	// PublishTimeout bounds each publish call (defaults to 5s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes events asynchronously.
type Pool struct {
	config *Config
	queue  chan *eventstream.MemoryAddedEvent
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("publisher is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}

	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan *eventstream.MemoryAddedEvent, c.QueueSize),
		logger: log,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits an event for publishing.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the event being dropped.
func (p *Pool) Enqueue(event *eventstream.MemoryAddedEvent) bool {
	if event == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("event not queued, pool closed", "event_id", event.EventID)
		return false
	}

	select {
	case p.queue <- event:
		p.logger.Debug("event queued",
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
		return true
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
		return false
	}
}

// Close stops accepting events and waits for queued ones to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
// Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls events off the queue.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("event worker started", "worker_id", id)

	for event := range p.queue {
		p.publish(event)
	}

	p.logger.Debug("event worker stopped", "worker_id", id)
}

// publish sends one event. Failures are logged and never retried.
func (p *Pool) publish(event *eventstream.MemoryAddedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishMemoryAdded(ctx, event); err != nil {
		p.logger.Error("event publish failed",
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	p.logger.Debug("event published", "event_id", event.EventID)
}
