package ports

import (
	"context"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, page domain.Page) (*domain.UserList, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	// UpdatePassword stores the new hash and bumps the credential version,
	// returning the new version.
	UpdatePassword(ctx context.Context, id, passwordHash string) (int, error)
}

type ParcelRepository interface {
	// Create persists the parcel and its outbox event in one transaction.
	Create(ctx context.Context, parcel *domain.Parcel, event ParcelEvent) error
	FindByID(ctx context.Context, id string) (*domain.Parcel, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Parcel, error)
	List(ctx context.Context, page domain.Page) (*domain.ParcelList, error)
	ListByEmail(ctx context.Context, email string, page domain.Page) (*domain.ParcelList, error)
	// Update writes every mutable column of parcel and sets version to
	// expectedVersion+1, but only if the stored version still equals expectedVersion;
	// otherwise it returns domain.ErrVersionConflict. A nil event writes no outbox row.
	Update(ctx context.Context, parcel *domain.Parcel, expectedVersion int, event *ParcelEvent) error
}

// CredentialVersionCache stores each user's current credential version.
type CredentialVersionCache interface {
	Get(ctx context.Context, userID string) (int, bool)
	// Set overwrites the entry. Only the writer of a new version may call it.
	Set(ctx context.Context, userID string, version int)
	// Fill stores a version read from the repository, but only when no entry
	// exists, so a slow reader cannot replace a newer version with its own.
	Fill(ctx context.Context, userID string, version int)
}
