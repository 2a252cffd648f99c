package mocks

import (
	"context"
	"sync"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

// MockParcelEventPublisher implements ports.ParcelEventPublisher for testing
// the outbox relay without a real broker.
type MockParcelEventPublisher struct {
	mu sync.RWMutex

	PublishedEvents  []ports.ParcelEvent
	PublishError     error
	PublishCallCount int
}

var _ ports.ParcelEventPublisher = (*MockParcelEventPublisher)(nil)

func NewMockParcelEventPublisher() *MockParcelEventPublisher {
	return &MockParcelEventPublisher{PublishedEvents: make([]ports.ParcelEvent, 0)}
}

func (m *MockParcelEventPublisher) PublishParcelEvent(ctx context.Context, evt ports.ParcelEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCallCount++
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, evt)
	return nil
}

// GetPublishedEvents returns a copy of the published events.
func (m *MockParcelEventPublisher) GetPublishedEvents() []ports.ParcelEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]ports.ParcelEvent, len(m.PublishedEvents))
	copy(events, m.PublishedEvents)
	return events
}

func (m *MockParcelEventPublisher) GetPublishCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PublishCallCount
}
