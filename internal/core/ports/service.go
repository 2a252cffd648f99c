package ports

import (
	"context"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
)

type RegisterInput struct {
	FullName    string
	Email       string
	Password    string
	PhoneNumber string
	Age         *int
	Country     string
	Address     string
}

// CreateUserInput is the administrative variant of RegisterInput.
type CreateUserInput struct {
	RegisterInput
	Role   domain.Role
	Status int
}

type LoginResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context, page domain.Page) (*domain.UserList, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
	// CredentialVersion reports the user's current credential version for token revocation.
	CredentialVersion(ctx context.Context, id string) (int, error)
}

type CreateReturnInput struct {
	domain.ParcelDetails
	OriginalTrackingNumber string
}

type ParcelService interface {
	Create(ctx context.Context, details domain.ParcelDetails) (*domain.Parcel, error)
	CreateReturn(ctx context.Context, in CreateReturnInput) (*domain.Parcel, error)
	Get(ctx context.Context, id string) (*domain.Parcel, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Parcel, error)
	List(ctx context.Context, page domain.Page) (*domain.ParcelList, error)
	ListForEmail(ctx context.Context, email string, page domain.Page) (*domain.ParcelList, error)
	UpdateStatus(ctx context.Context, id string, status domain.ParcelStatus, expectedVersion int) (*domain.Parcel, error)
	UpdateDetails(ctx context.Context, id string, update domain.ParcelDetailsUpdate, expectedVersion int) (*domain.Parcel, error)
}
