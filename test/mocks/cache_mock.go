package mocks

import (
	"context"
	"sync"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

// MockCredentialVersionCache implements ports.CredentialVersionCache in memory.
type MockCredentialVersionCache struct {
	mu       sync.RWMutex
	versions map[string]int

	GetCalls  int
	SetCalls  int
	FillCalls int
}

var _ ports.CredentialVersionCache = (*MockCredentialVersionCache)(nil)

func NewMockCredentialVersionCache() *MockCredentialVersionCache {
	return &MockCredentialVersionCache{versions: make(map[string]int)}
}

func (m *MockCredentialVersionCache) Get(ctx context.Context, userID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	v, ok := m.versions[userID]
	return v, ok
}

func (m *MockCredentialVersionCache) Set(ctx context.Context, userID string, version int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	m.versions[userID] = version
}

// Fill only writes absent entries, like SETNX.
func (m *MockCredentialVersionCache) Fill(ctx context.Context, userID string, version int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FillCalls++
	if _, ok := m.versions[userID]; !ok {
		m.versions[userID] = version
	}
}
