package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/response"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

// CredentialVersions reports the current credential version of a user.
type CredentialVersions interface {
	CredentialVersion(ctx context.Context, userID string) (int, error)
}

type AuthMiddleware struct {
	tokens   ports.TokenIssuer
	versions CredentialVersions
	logger   *zap.Logger
}

func NewAuthMiddleware(tokens ports.TokenIssuer, versions CredentialVersions, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		tokens:   tokens,
		versions: versions,
		logger:   logger,
	}
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the identity attached by Authenticate.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}

// Authenticate rejects requests without a valid bearer token. Tokens issued
// before the holder's last password change are rejected as well.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			response.FromError(w, m.logger, err)
			return
		}

		identity, err := m.tokens.Verify(tokenString)
		if err != nil {
			m.logger.Debug("token rejected", zap.Error(err))
			response.FromError(w, m.logger, err)
			return
		}

		if m.versions != nil {
			current, err := m.versions.CredentialVersion(r.Context(), identity.UserID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				response.FromError(w, m.logger, domain.ErrInvalidToken)
				return
			case err != nil:
				response.FromError(w, m.logger, err)
				return
			case current != identity.CredentialVersion:
				m.logger.Debug("revoked token", zap.String("user_id", identity.UserID))
				response.FromError(w, m.logger, domain.ErrInvalidToken)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRole must run after Authenticate.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				response.FromError(w, nil, domain.ErrAuthenticationRequired)
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.FromError(w, nil, domain.ErrAuthorizationDenied)
		})
	}
}

// RequireStaff admits admins and moderators.
func RequireStaff(next http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin, domain.RoleModerator)(next)
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", domain.ErrAuthenticationRequired
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", domain.ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}
