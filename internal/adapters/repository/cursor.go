package repository

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
)

type cursor struct {
	CreatedAt time.Time
	ID        string
}

func encodeCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor returns nil for the first page.
func decodeCursor(s string) (*cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, domain.Validationf("invalid cursor")
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || !validID(id) {
		return nil, domain.Validationf("invalid cursor")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, domain.Validationf("invalid cursor")
	}
	return &cursor{CreatedAt: createdAt, ID: id}, nil
}
