package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/handler"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/metrics"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/middleware"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/security"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/services"
	"github.com/AchilleasB/courierman/parcel-service/test/mocks"
)

type testServer struct {
	handler http.Handler
	users   *mocks.MockUserRepository
	parcels *mocks.MockParcelRepository
	redis   *mocks.MockRedisClient
	metrics *metrics.Metrics
	hasher  *security.BcryptHasher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	tokens, err := security.NewJWTIssuer([]byte("router-test-secret-0123456789"), security.DefaultTokenTTL)
	require.NoError(t, err)

	s := &testServer{
		users:   mocks.NewMockUserRepository(),
		parcels: mocks.NewMockParcelRepository(),
		redis:   mocks.NewMockRedisClient(),
		metrics: metrics.New(),
		hasher:  security.NewBcryptHasher(bcrypt.MinCost),
	}

	userService := services.NewUserService(s.users, s.hasher, tokens, mocks.NewMockCredentialVersionCache())
	parcelService := services.NewParcelService(s.parcels)

	s.handler = New(Dependencies{
		Auth:           handler.NewAuthHandler(userService, logger),
		Users:          handler.NewUserHandler(userService, logger),
		Parcels:        handler.NewParcelHandler(parcelService, s.metrics, logger),
		Health:         handler.NewHealthHandler(nil, s.redis, "test"),
		Authenticator:  middleware.NewAuthMiddleware(tokens, userService, logger),
		Metrics:        s.metrics,
		Logger:         logger,
		RateLimitStore: s.redis,
		RateLimit: middleware.RateLimitConfig{
			Limit:         100,
			Window:        time.Minute,
			BlockDuration: time.Minute,
			KeyPrefix:     "rl:auth",
		},
		AllowedOrigins: []string{"*"},
		RequestTimeout: 5 * time.Second,
	})
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// seedStaff stores a user with the given role directly and logs them in.
func (s *testServer) seedStaff(t *testing.T, id, email string, role domain.Role) string {
	t.Helper()
	hash, err := s.hasher.Hash("Passw0rd!")
	require.NoError(t, err)
	s.users.SeedUser(domain.User{
		ID:                id,
		FullName:          string(role),
		Email:             email,
		Password:          hash,
		Role:              role,
		CredentialVersion: 1,
		CreatedAt:         time.Now(),
	})
	return s.login(t, email, "Passw0rd!")
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, "POST", "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

type userJSON struct {
	ID       string `json:"id"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type parcelJSON struct {
	ID                     string `json:"id"`
	TrackingNumber         string `json:"tracking_number"`
	SenderEmail            string `json:"sender_email"`
	RecipientEmail         string `json:"recipient_email"`
	Origin                 string `json:"origin"`
	Status                 int    `json:"status"`
	StatusLabel            string `json:"status_label"`
	IsReturn               bool   `json:"is_return"`
	OriginalTrackingNumber string `json:"original_tracking_number"`
	Version                int    `json:"version"`
	Weight                 string `json:"weight"`
}

func TestAliceScenario(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/auth/register", "", map[string]string{
		"fullname": "Alice",
		"email":    "alice@example.com",
		"password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	alice := decode[userJSON](t, rec)
	assert.Equal(t, "user", alice.Role)
	assert.Empty(t, alice.Password)

	token := s.login(t, "alice@example.com", "Passw0rd!")

	rec = s.do(t, "GET", "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, "GET", "/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decode[userJSON](t, rec).Email)

	before, _ := s.users.StoredUser(alice.ID)
	rec = s.do(t, "PUT", "/users/"+alice.ID+"/change-password", token, map[string]string{
		"old_password": "wrong-password",
		"new_password": "N3wPassw0rd!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	after, _ := s.users.StoredUser(alice.ID)
	assert.Equal(t, before.Password, after.Password)
}

func TestPasswordChangeRevokesOldTokens(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/auth/register", "", map[string]string{
		"fullname": "Alice", "email": "alice@example.com", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	alice := decode[userJSON](t, rec)
	oldToken := s.login(t, "alice@example.com", "Passw0rd!")

	rec = s.do(t, "PUT", "/users/"+alice.ID+"/change-password", oldToken, map[string]string{
		"old_password": "Passw0rd!", "new_password": "N3wPassw0rd!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, "GET", "/users/me", oldToken, nil).Code)

	newToken := s.login(t, "alice@example.com", "N3wPassw0rd!")
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/users/me", newToken, nil).Code)
}

func TestRegisterValidationAndDuplicates(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{name: "missing_email", body: map[string]string{"fullname": "A", "password": "Passw0rd!"}, want: http.StatusBadRequest},
		{name: "bad_email", body: map[string]string{"fullname": "A", "email": "nope", "password": "Passw0rd!"}, want: http.StatusBadRequest},
		{name: "short_password", body: map[string]string{"fullname": "A", "email": "a@example.com", "password": "short"}, want: http.StatusBadRequest},
		{name: "unknown_field", body: map[string]string{"fullname": "A", "email": "a@example.com", "password": "Passw0rd!", "role": "admin"}, want: http.StatusBadRequest},
		{name: "malformed_json", body: "{", want: http.StatusBadRequest},
		{name: "empty_body", body: "", want: http.StatusBadRequest},
		{name: "first_registration", body: map[string]string{"fullname": "A", "email": "a@example.com", "password": "Passw0rd!"}, want: http.StatusCreated},
		{name: "duplicate", body: map[string]string{"fullname": "B", "email": "a@example.com", "password": "Other-pass1"}, want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, "POST", "/auth/register", "", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want >= 400 {
				assert.NotEmpty(t, decode[map[string]string](t, rec)["message"])
			}
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	s.seedStaff(t, "u-1", "alice@example.com", domain.RoleUser)

	wrongPassword := s.do(t, "POST", "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope"})
	unknownEmail := s.do(t, "POST", "/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	s := newTestServer(t)
	s.redis.SetKey("rl:auth:ip:192.0.2.1:blocked", "1", time.Minute)

	rec := s.do(t, "POST", "/auth/login", "", map[string]string{"email": "a@example.com", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestUserAdministration(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.seedStaff(t, "admin-1", "admin@example.com", domain.RoleAdmin)
	userToken := s.seedStaff(t, "user-1", "user@example.com", domain.RoleUser)

	rec := s.do(t, "POST", "/users", userToken, map[string]interface{}{
		"fullname": "Mod", "email": "mod@example.com", "password": "Passw0rd!", "role": "moderator",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "POST", "/users", adminToken, map[string]interface{}{
		"fullname": "Mod", "email": "mod@example.com", "password": "Passw0rd!", "role": "moderator",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "moderator", decode[userJSON](t, rec).Role)

	assert.Equal(t, http.StatusForbidden, s.do(t, "GET", "/users", userToken, nil).Code)

	rec = s.do(t, "GET", "/users?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Users []userJSON `json:"users"`
	}](t, rec)
	assert.Len(t, list.Users, 3)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/users?limit=abc", adminToken, nil).Code)
}

func TestUpdateUserSelfOrAdmin(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.seedStaff(t, "admin-1", "admin@example.com", domain.RoleAdmin)
	aliceToken := s.seedStaff(t, "alice-1", "alice@example.com", domain.RoleUser)
	s.seedStaff(t, "bob-1", "bob@example.com", domain.RoleUser)

	rec := s.do(t, "PUT", "/users/alice-1", aliceToken, map[string]interface{}{"fullname": "Alice A.", "age": 30})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Alice A.", decode[userJSON](t, rec).FullName)

	assert.Equal(t, http.StatusForbidden, s.do(t, "PUT", "/users/bob-1", aliceToken, map[string]string{"fullname": "x"}).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "PUT", "/users/bob-1", adminToken, map[string]string{"fullname": "Bob B."}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "PUT", "/users/alice-1", aliceToken, map[string]string{}).Code)

	rec = s.do(t, "PUT", "/users/bob-1/change-password", adminToken, map[string]string{
		"old_password": "Passw0rd!", "new_password": "N3wPassw0rd!",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, "password changes are self-service only")
}

func parcelBody() map[string]interface{} {
	return map[string]interface{}{
		"sender_name":     "Alice",
		"sender_email":    "alice@example.com",
		"recipient_name":  "Bob",
		"recipient_email": "bob@example.com",
		"origin":          "Nairobi",
		"destination":     "Mombasa",
		"weight":          "2.5",
		"cost":            12,
		"date":            "2026-03-05",
	}
}

func TestParcelLifecycle(t *testing.T) {
	s := newTestServer(t)
	modToken := s.seedStaff(t, "mod-1", "mod@example.com", domain.RoleModerator)
	bobToken := s.seedStaff(t, "bob-1", "bob@example.com", domain.RoleUser)
	carolToken := s.seedStaff(t, "carol-1", "carol@example.com", domain.RoleUser)

	assert.Equal(t, http.StatusForbidden, s.do(t, "POST", "/parcels", bobToken, parcelBody()).Code)

	rec := s.do(t, "POST", "/parcels", modToken, parcelBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	parcel := decode[parcelJSON](t, rec)
	assert.Equal(t, 0, parcel.Status)
	assert.Equal(t, "pending", parcel.StatusLabel)
	assert.Equal(t, 1, parcel.Version)
	assert.Equal(t, "2.5", parcel.Weight)

	rec = s.do(t, "GET", "/parcels/"+parcel.ID, bobToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "recipient can view")
	assert.Equal(t, http.StatusForbidden, s.do(t, "GET", "/parcels/"+parcel.ID, carolToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/parcels/missing", modToken, nil).Code)

	rec = s.do(t, "GET", "/parcels/track/"+parcel.TrackingNumber, bobToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, "GET", "/parcels/track/"+parcel.TrackingNumber, carolToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "tracking numbers do not bypass visibility")
	assert.NotContains(t, rec.Body.String(), "alice@example.com")

	rec = s.do(t, "GET", "/parcels", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Parcels []parcelJSON `json:"parcels"`
	}](t, rec).Parcels, 1)

	rec = s.do(t, "GET", "/parcels", carolToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Parcels []parcelJSON `json:"parcels"`
	}](t, rec).Parcels)

	rec = s.do(t, "GET", "/parcels/me", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// pending -> delivered skips a step
	rec = s.do(t, "PUT", "/parcels/"+parcel.ID+"/status", modToken, map[string]int{"status": 2, "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusForbidden,
		s.do(t, "PUT", "/parcels/"+parcel.ID+"/status", bobToken, map[string]int{"status": 1, "version": 1}).Code)

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID+"/status", modToken, map[string]int{"status": 1, "version": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[parcelJSON](t, rec)
	assert.Equal(t, "in_transit", moved.StatusLabel)
	assert.Equal(t, 2, moved.Version)

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID+"/status", modToken, map[string]int{"status": 2, "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code, "stale version")

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID, modToken, map[string]interface{}{"destination": "Kisumu", "version": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID+"/status", modToken, map[string]int{"status": 2, "version": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID, modToken, map[string]interface{}{"note": "late", "version": 4})
	assert.Equal(t, http.StatusConflict, rec.Code, "delivered parcels are locked")

	assert.Len(t, s.parcels.RecordedEvents(), 3)
}

func TestStatusChangeThroughParcelUpdate(t *testing.T) {
	s := newTestServer(t)
	modToken := s.seedStaff(t, "mod-1", "mod@example.com", domain.RoleModerator)

	rec := s.do(t, "POST", "/parcels", modToken, parcelBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	parcel := decode[parcelJSON](t, rec)

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID, modToken, map[string]int{"status": 2, "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code, "pending cannot jump to delivered")

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID, modToken, map[string]int{"status": 1, "version": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[parcelJSON](t, rec)
	assert.Equal(t, "in_transit", moved.StatusLabel)
	assert.Equal(t, 2, moved.Version)

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID, modToken, map[string]int{"status": 2, "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code, "stale version")

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID, modToken, map[string]interface{}{
		"status": 2, "destination": "Kisumu", "version": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "PUT", "/parcels/"+parcel.ID, modToken, map[string]int{"status": 2, "version": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "delivered", decode[parcelJSON](t, rec).StatusLabel)

	events := s.parcels.RecordedEvents()
	require.Len(t, events, 3)
	assert.Equal(t, "in_transit", events[1].Status)
	assert.Equal(t, "delivered", events[2].Status)
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	s := newTestServer(t)

	// 40 characters but 80 bytes.
	rec := s.do(t, "POST", "/auth/register", "", map[string]string{
		"fullname": "Élodie", "email": "elodie@example.com", "password": strings.Repeat("é", 40),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode[map[string]string](t, rec)["message"], "72 bytes")
	assert.Zero(t, s.users.Count())
}

func TestAuthRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	s := newTestServer(t)

	var last int
	for i := 0; i <= 100; i++ {
		req := httptest.NewRequest("POST", "/auth/login",
			strings.NewReader(`{"email":"ghost@example.com","password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i%250))
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestParcelValidation(t *testing.T) {
	s := newTestServer(t)
	modToken := s.seedStaff(t, "mod-1", "mod@example.com", domain.RoleModerator)

	mutations := map[string]func(map[string]interface{}){
		"zero_weight":    func(b map[string]interface{}) { b["weight"] = 0 },
		"negative_cost":  func(b map[string]interface{}) { b["cost"] = -1 },
		"missing_date":   func(b map[string]interface{}) { delete(b, "date") },
		"bad_date":       func(b map[string]interface{}) { b["date"] = "05/03/2026" },
		"bad_email":      func(b map[string]interface{}) { b["sender_email"] = "alice" },
		"missing_origin": func(b map[string]interface{}) { delete(b, "origin") },
		"unknown_field":  func(b map[string]interface{}) { b["status"] = 2 },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			body := parcelBody()
			mutate(body)
			rec := s.do(t, "POST", "/parcels", modToken, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(t, "PUT", "/parcels/p-1/status", modToken, map[string]int{"version": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "status is required")
}

func TestCreateReturnParcel(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.seedStaff(t, "admin-1", "admin@example.com", domain.RoleAdmin)

	body := parcelBody()
	body["original_tracking_number"] = "CM-OUTBOUND"
	rec := s.do(t, "POST", "/parcels/return", adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	p := decode[parcelJSON](t, rec)
	assert.True(t, p.IsReturn)
	assert.Equal(t, "CM-OUTBOUND", p.OriginalTrackingNumber)
	assert.Equal(t, "bob@example.com", p.SenderEmail)
	assert.Equal(t, "alice@example.com", p.RecipientEmail)
	assert.Equal(t, "Mombasa", p.Origin)

	delete(body, "original_tracking_number")
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/parcels/return", adminToken, body).Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(t, "GET", "/health/ready", "", nil).Code, "no database configured")
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, "POST", "/health", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/nope", "", nil).Code)

	rec := s.do(t, "GET", "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "courier_http_requests_total")
}
