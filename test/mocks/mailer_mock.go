package mocks

import (
	"sync"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// MockMailer records emails instead of sending them.
type MockMailer struct {
	mu sync.Mutex

	Sent []SentEmail
	// FailFor makes SendText return the mapped error for that address.
	FailFor map[string]error
}

var _ ports.Mailer = (*MockMailer)(nil)

func NewMockMailer() *MockMailer {
	return &MockMailer{FailFor: make(map[string]error)}
}

func (m *MockMailer) SendText(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailFor[to]; ok {
		return err
	}
	m.Sent = append(m.Sent, SentEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *MockMailer) SentTo(to string) []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SentEmail
	for _, e := range m.Sent {
		if e.To == to {
			out = append(out, e)
		}
	}
	return out
}
