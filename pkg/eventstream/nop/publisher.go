// Package nop provides a Publisher that discards events.
package nop

import (
	"context"

	"github.com/memories-sh/memories-go/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishMemoryAdded validates input and otherwise does nothing.
func (p *Publisher) PublishMemoryAdded(_ context.Context, event *eventstream.MemoryAddedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
