package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/response"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

type AuthHandler struct {
	users  ports.UserService
	logger *zap.Logger
}

func NewAuthHandler(users ports.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger}
}

type RegisterRequest struct {
	FullName    string `json:"fullname" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=32"`
	Age         *int   `json:"age" validate:"omitempty,min=0,max=150"`
	Country     string `json:"country" validate:"omitempty,max=100"`
	Address     string `json:"address" validate:"omitempty,max=300"`
}

func (req RegisterRequest) input() ports.RegisterInput {
	return ports.RegisterInput{
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		Age:         req.Age,
		Country:     req.Country,
		Address:     req.Address,
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.input())
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID))
	response.JSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	result, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}
