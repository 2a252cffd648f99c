package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/middleware"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/response"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

type UserHandler struct {
	users  ports.UserService
	logger *zap.Logger
}

func NewUserHandler(users ports.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type CreateUserRequest struct {
	RegisterRequest
	Role   string `json:"role" validate:"omitempty,max=32"`
	Status int    `json:"status" validate:"min=0"`
}

type UpdateUserRequest struct {
	FullName    *string `json:"fullname" validate:"omitempty,max=200"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=32"`
	Address     *string `json:"address" validate:"omitempty,max=300"`
	Country     *string `json:"country" validate:"omitempty,max=100"`
	Age         *int    `json:"age" validate:"omitempty,min=0,max=150"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Create is the admin variant of registration with explicit role and status.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	user, err := h.users.CreateUser(r.Context(), ports.CreateUserInput{
		RegisterInput: req.input(),
		Role:          domain.Role(req.Role),
		Status:        req.Status,
	})
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusCreated, user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	list, err := h.users.ListUsers(r.Context(), page)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.FromError(w, h.logger, domain.ErrAuthenticationRequired)
		return
	}
	user, err := h.users.GetUser(r.Context(), identity.UserID)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

// Update allows users to edit their own profile; admins may edit anyone's.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.FromError(w, h.logger, domain.ErrAuthenticationRequired)
		return
	}
	id := chi.URLParam(r, "id")
	if identity.UserID != id && identity.Role != domain.RoleAdmin {
		response.FromError(w, h.logger, domain.ErrAuthorizationDenied)
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id, domain.ProfileUpdate{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Country:     req.Country,
		Age:         req.Age,
	})
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}

// ChangePassword is self-service only.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.FromError(w, h.logger, domain.ErrAuthenticationRequired)
		return
	}
	id := chi.URLParam(r, "id")
	if identity.UserID != id {
		response.FromError(w, h.logger, domain.ErrAuthorizationDenied)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	h.logger.Info("password changed", zap.String("user_id", id))
	response.JSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
}
