package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

const initialCredentialVersion = 1

type UserService struct {
	userRepo ports.UserRepository
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	versions ports.CredentialVersionCache
	now      func() time.Time
}

var _ ports.UserService = (*UserService)(nil)

// NewUserService wires the user lifecycle. versions may be nil, in which case
// credential versions are always read from the repository.
func NewUserService(
	userRepo ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	versions ports.CredentialVersionCache,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		versions: versions,
		now:      time.Now,
	}
}

func (s *UserService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.create(ctx, in, domain.RoleUser, domain.DefaultUserStatus)
}

func (s *UserService) CreateUser(ctx context.Context, in ports.CreateUserInput) (*domain.User, error) {
	role := domain.Role(strings.TrimSpace(string(in.Role)))
	if role == "" {
		role = domain.RoleUser
	}
	return s.create(ctx, in.RegisterInput, role, in.Status)
}

func (s *UserService) create(ctx context.Context, in ports.RegisterInput, role domain.Role, status int) (*domain.User, error) {
	if in.Email == "" || in.FullName == "" {
		return nil, domain.Validationf("fullname and email are required")
	}

	_, err := s.userRepo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, domain.ErrDuplicateIdentity
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, hashFailure(err, "password")
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:                uuid.NewString(),
		FullName:          in.FullName,
		Email:             in.Email,
		Password:          hash,
		PhoneNumber:       in.PhoneNumber,
		Age:               in.Age,
		Country:           in.Country,
		Address:           in.Address,
		Status:            status,
		Role:              role,
		CredentialVersion: initialCredentialVersion,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return withoutCredential(user), nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(domain.Identity{
		UserID:            user.ID,
		Email:             user.Email,
		Role:              user.Role,
		CredentialVersion: user.CredentialVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &ports.LoginResult{User: withoutCredential(user), Token: token}, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return withoutCredential(user), nil
}

func (s *UserService) ListUsers(ctx context.Context, page domain.Page) (*domain.UserList, error) {
	list, err := s.userRepo.List(ctx, page.Normalize())
	if err != nil {
		return nil, err
	}
	for i := range list.Users {
		list.Users[i].Password = ""
	}
	return list, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	if update.Empty() {
		return nil, domain.Validationf("no fields to update")
	}
	if update.FullName != nil && strings.TrimSpace(*update.FullName) == "" {
		return nil, domain.Validationf("fullname must not be empty")
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	update.Apply(user)
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return withoutCredential(user), nil
}

// ChangePassword leaves the stored hash untouched unless oldPassword verifies.
// A successful change bumps the credential version, revoking earlier tokens.
func (s *UserService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, user.Password) {
		return domain.ErrIncorrectPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return hashFailure(err, "new password")
	}

	version, err := s.userRepo.UpdatePassword(ctx, id, hash)
	if err != nil {
		return err
	}

	if s.versions != nil {
		s.versions.Set(ctx, id, version)
	}
	return nil
}

func (s *UserService) CredentialVersion(ctx context.Context, id string) (int, error) {
	if s.versions != nil {
		if v, ok := s.versions.Get(ctx, id); ok {
			return v, nil
		}
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}

	if s.versions != nil {
		s.versions.Fill(ctx, id, user.CredentialVersion)
	}
	return user.CredentialVersion, nil
}

func hashFailure(err error, field string) error {
	switch {
	case errors.Is(err, domain.ErrPasswordTooLong):
		return domain.Validationf("%s must be at most 72 bytes", field)
	case errors.Is(err, domain.ErrInvalidInput):
		return domain.Validationf("%s is required", field)
	}
	return fmt.Errorf("hash password: %w", err)
}

func withoutCredential(u *domain.User) *domain.User {
	out := *u
	out.Password = ""
	return &out
}
