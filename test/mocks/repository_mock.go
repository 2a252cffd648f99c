// Package mocks provides in-memory implementations of the port interfaces
// for tests. Each mock records its calls and supports error injection.
package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

// MockUserRepository implements ports.UserRepository in memory.
type MockUserRepository struct {
	mu sync.RWMutex

	users map[string]*domain.User // keyed by id

	CreateCalls         []domain.User
	FindByEmailCalls    []string
	UpdatePasswordCalls []string

	CreateError         error
	FindByEmailError    error
	FindByIDError       error
	ListError           error
	UpdateProfileError  error
	UpdatePasswordError error
}

var _ ports.UserRepository = (*MockUserRepository)(nil)

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// SeedUser stores a copy of user for test setup.
func (m *MockUserRepository) SeedUser(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = &user
}

// StoredUser returns a copy of the stored record, including the password hash.
func (m *MockUserRepository) StoredUser(id string) (domain.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, false
	}
	return *u, true
}

func (m *MockUserRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, *user)
	if m.CreateError != nil {
		return m.CreateError
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrDuplicateIdentity
		}
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindByEmailCalls = append(m.FindByEmailCalls, email)
	if m.FindByEmailError != nil {
		return nil, m.FindByEmailError
	}
	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FindByIDError != nil {
		return nil, m.FindByIDError
	}
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *u
	return &out, nil
}

// List ignores the cursor and returns the newest Limit users.
func (m *MockUserRepository) List(ctx context.Context, page domain.Page) (*domain.UserList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListError != nil {
		return nil, m.ListError
	}
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	if page.Limit > 0 && len(users) > page.Limit {
		users = users[:page.Limit]
	}
	return &domain.UserList{Users: users}, nil
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateProfileError != nil {
		return m.UpdateProfileError
	}
	stored, ok := m.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	updated := *user
	updated.Email = stored.Email
	updated.Password = stored.Password
	updated.CredentialVersion = stored.CredentialVersion
	m.users[user.ID] = &updated
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdatePasswordCalls = append(m.UpdatePasswordCalls, id)
	if m.UpdatePasswordError != nil {
		return 0, m.UpdatePasswordError
	}
	u, ok := m.users[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	u.Password = passwordHash
	u.CredentialVersion++
	return u.CredentialVersion, nil
}

// MockParcelRepository implements ports.ParcelRepository in memory, including
// the optimistic version guard.
type MockParcelRepository struct {
	mu sync.RWMutex

	parcels map[string]*domain.Parcel

	Events      []ports.ParcelEvent
	UpdateCalls int

	CreateError   error
	FindByIDError error
	ListError     error
	UpdateError   error
}

var _ ports.ParcelRepository = (*MockParcelRepository)(nil)

func NewMockParcelRepository() *MockParcelRepository {
	return &MockParcelRepository{parcels: make(map[string]*domain.Parcel)}
}

func (m *MockParcelRepository) SeedParcel(p domain.Parcel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parcels[p.ID] = &p
}

func (m *MockParcelRepository) StoredParcel(id string) (domain.Parcel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parcels[id]
	if !ok {
		return domain.Parcel{}, false
	}
	return *p, true
}

func (m *MockParcelRepository) RecordedEvents() []ports.ParcelEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ports.ParcelEvent, len(m.Events))
	copy(out, m.Events)
	return out
}

func (m *MockParcelRepository) Create(ctx context.Context, parcel *domain.Parcel, event ports.ParcelEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateError != nil {
		return m.CreateError
	}
	stored := *parcel
	m.parcels[parcel.ID] = &stored
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockParcelRepository) FindByID(ctx context.Context, id string) (*domain.Parcel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FindByIDError != nil {
		return nil, m.FindByIDError
	}
	p, ok := m.parcels[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *MockParcelRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Parcel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.parcels {
		if p.TrackingNumber == trackingNumber {
			out := *p
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockParcelRepository) List(ctx context.Context, page domain.Page) (*domain.ParcelList, error) {
	return m.list(page, func(*domain.Parcel) bool { return true })
}

func (m *MockParcelRepository) ListByEmail(ctx context.Context, email string, page domain.Page) (*domain.ParcelList, error) {
	return m.list(page, func(p *domain.Parcel) bool { return p.Involves(email) })
}

func (m *MockParcelRepository) list(page domain.Page, keep func(*domain.Parcel) bool) (*domain.ParcelList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListError != nil {
		return nil, m.ListError
	}
	parcels := make([]domain.Parcel, 0, len(m.parcels))
	for _, p := range m.parcels {
		if keep(p) {
			parcels = append(parcels, *p)
		}
	}
	sort.Slice(parcels, func(i, j int) bool { return parcels[i].CreatedAt.After(parcels[j].CreatedAt) })
	if page.Limit > 0 && len(parcels) > page.Limit {
		parcels = parcels[:page.Limit]
	}
	return &domain.ParcelList{Parcels: parcels}, nil
}

func (m *MockParcelRepository) Update(ctx context.Context, parcel *domain.Parcel, expectedVersion int, event *ports.ParcelEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls++
	if m.UpdateError != nil {
		return m.UpdateError
	}
	stored, ok := m.parcels[parcel.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	updated := *parcel
	updated.Version = expectedVersion + 1
	m.parcels[parcel.ID] = &updated
	if event != nil {
		m.Events = append(m.Events, *event)
	}
	return nil
}
