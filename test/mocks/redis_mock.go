package mocks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient is an in-memory stand-in for the commands used by the
// credential-version cache, the auth rate limiter and the readiness probe.
type MockRedisClient struct {
	mu   sync.Mutex
	data map[string]mockRedisValue

	SetError    error
	GetError    error
	IncrError   error
	ExpireError error
	PingError   error
}

type mockRedisValue struct {
	value     string
	expiresAt time.Time
}

func (v mockRedisValue) expired(now time.Time) bool {
	return !v.expiresAt.IsZero() && now.After(v.expiresAt)
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{data: make(map[string]mockRedisValue)}
}

// live returns the entry for key unless it is absent or expired. Callers hold mu.
func (m *MockRedisClient) live(key string) (mockRedisValue, bool) {
	val, ok := m.data[key]
	if !ok || val.expired(time.Now()) {
		return mockRedisValue{}, false
	}
	return val, true
}

func deadline(expiration time.Duration) time.Time {
	if expiration <= 0 {
		return time.Time{}
	}
	return time.Now().Add(expiration)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStatusCmd(ctx)
	if m.SetError != nil {
		cmd.SetErr(m.SetError)
		return cmd
	}
	m.data[key] = mockRedisValue{value: fmt.Sprint(value), expiresAt: deadline(expiration)}
	cmd.SetVal("OK")
	return cmd
}

// SetNX writes only when key is absent or expired. It shares SetError with Set.
func (m *MockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewBoolCmd(ctx)
	if m.SetError != nil {
		cmd.SetErr(m.SetError)
		return cmd
	}
	if _, ok := m.live(key); ok {
		cmd.SetVal(false)
		return cmd
	}
	m.data[key] = mockRedisValue{value: fmt.Sprint(value), expiresAt: deadline(expiration)}
	cmd.SetVal(true)
	return cmd
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStringCmd(ctx)
	if m.GetError != nil {
		cmd.SetErr(m.GetError)
		return cmd
	}
	val, ok := m.live(key)
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val.value)
	return cmd
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if m.PingError != nil {
		cmd.SetErr(m.PingError)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

// Incr keeps an existing expiry, and creates a key without one when absent.
func (m *MockRedisClient) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewIntCmd(ctx)
	if m.IncrError != nil {
		cmd.SetErr(m.IncrError)
		return cmd
	}

	val, ok := m.live(key)
	var n int64
	if ok {
		parsed, err := strconv.ParseInt(val.value, 10, 64)
		if err != nil {
			cmd.SetErr(fmt.Errorf("ERR value is not an integer or out of range"))
			return cmd
		}
		n = parsed
	}
	n++
	val.value = strconv.FormatInt(n, 10)
	m.data[key] = val
	cmd.SetVal(n)
	return cmd
}

func (m *MockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewBoolCmd(ctx)
	if m.ExpireError != nil {
		cmd.SetErr(m.ExpireError)
		return cmd
	}
	val, ok := m.live(key)
	if !ok {
		cmd.SetVal(false)
		return cmd
	}
	val.expiresAt = time.Now().Add(expiration)
	m.data[key] = val
	cmd.SetVal(true)
	return cmd
}

// TTL reports -2s for a missing key and -1s for a key without expiry.
func (m *MockRedisClient) TTL(ctx context.Context, key string) *redis.DurationCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewDurationCmd(ctx, time.Second)
	val, ok := m.live(key)
	switch {
	case !ok:
		cmd.SetVal(-2 * time.Second)
	case val.expiresAt.IsZero():
		cmd.SetVal(-1 * time.Second)
	default:
		cmd.SetVal(time.Until(val.expiresAt).Round(time.Second))
	}
	return cmd
}

// SetKey stores a raw value for test setup.
func (m *MockRedisClient) SetKey(key, value string, expiration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = mockRedisValue{value: value, expiresAt: deadline(expiration)}
}

// GetKey returns a live raw value for test assertions.
func (m *MockRedisClient) GetKey(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.live(key)
	return val.value, ok
}

// KeyTTL returns the remaining expiry of key, or zero when it has none.
func (m *MockRedisClient) KeyTTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.live(key)
	if !ok || val.expiresAt.IsZero() {
		return 0
	}
	return time.Until(val.expiresAt)
}
