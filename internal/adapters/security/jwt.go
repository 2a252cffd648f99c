package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

const DefaultTokenTTL = 10 * 24 * time.Hour

type Claims struct {
	Role              string `json:"role"`
	Email             string `json:"email"`
	CredentialVersion int    `json:"cv"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 bearer tokens with a process-wide secret.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ ports.TokenIssuer = (*JWTIssuer)(nil)

type JWTOption func(*JWTIssuer)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) JWTOption {
	return func(i *JWTIssuer) { i.now = now }
}

func NewJWTIssuer(secret []byte, ttl time.Duration, opts ...JWTOption) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	i := &JWTIssuer{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

func (i *JWTIssuer) Issue(identity domain.Identity) (string, error) {
	if identity.UserID == "" {
		return "", domain.ErrInvalidInput
	}
	now := i.now()
	claims := Claims{
		Role:              string(identity.Role),
		Email:             identity.Email,
		CredentialVersion: identity.CredentialVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify does not distinguish expiry from tampering: both are domain.ErrInvalidToken.
func (i *JWTIssuer) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, domain.ErrAuthenticationRequired
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	if claims.Subject == "" || claims.Role == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	return domain.Identity{
		UserID:            claims.Subject,
		Email:             claims.Email,
		Role:              domain.Role(claims.Role),
		CredentialVersion: claims.CredentialVersion,
	}, nil
}
