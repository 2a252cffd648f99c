package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/middleware"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/response"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

// TransitionObserver is notified after each successful status change.
type TransitionObserver interface {
	ObserveTransition(to string)
}

type ParcelHandler struct {
	parcels  ports.ParcelService
	observer TransitionObserver
	logger   *zap.Logger
}

// NewParcelHandler creates the parcel endpoints. observer may be nil.
func NewParcelHandler(parcels ports.ParcelService, observer TransitionObserver, logger *zap.Logger) *ParcelHandler {
	return &ParcelHandler{parcels: parcels, observer: observer, logger: logger}
}

type CreateParcelRequest struct {
	SenderName     string          `json:"sender_name" validate:"required,max=200"`
	SenderEmail    string          `json:"sender_email" validate:"required,email"`
	RecipientName  string          `json:"recipient_name" validate:"required,max=200"`
	RecipientEmail string          `json:"recipient_email" validate:"required,email"`
	Origin         string          `json:"origin" validate:"required,max=200"`
	Destination    string          `json:"destination" validate:"required,max=200"`
	Weight         decimal.Decimal `json:"weight"`
	Cost           decimal.Decimal `json:"cost"`
	Date           Date            `json:"date" validate:"required"`
	Note           string          `json:"note" validate:"omitempty,max=1000"`
}

func (req CreateParcelRequest) details() domain.ParcelDetails {
	return domain.ParcelDetails{
		SenderName:     req.SenderName,
		SenderEmail:    req.SenderEmail,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		Origin:         req.Origin,
		Destination:    req.Destination,
		Weight:         req.Weight,
		Cost:           req.Cost,
		ScheduledDate:  req.Date.Time,
		Note:           req.Note,
	}
}

// CreateReturnRequest carries the outbound shipment as it was booked.
type CreateReturnRequest struct {
	CreateParcelRequest
	OriginalTrackingNumber string `json:"original_tracking_number" validate:"required,max=64"`
}

type UpdateStatusRequest struct {
	Status  *int `json:"status" validate:"required"`
	Version int  `json:"version" validate:"required,min=1"`
}

// UpdateParcelRequest edits details or, when Status is set, moves the parcel
// through the state machine. The two cannot be combined in one request.
type UpdateParcelRequest struct {
	Status         *int             `json:"status"`
	SenderName     *string          `json:"sender_name" validate:"omitempty,max=200"`
	SenderEmail    *string          `json:"sender_email" validate:"omitempty,email"`
	RecipientName  *string          `json:"recipient_name" validate:"omitempty,max=200"`
	RecipientEmail *string          `json:"recipient_email" validate:"omitempty,email"`
	Origin         *string          `json:"origin" validate:"omitempty,max=200"`
	Destination    *string          `json:"destination" validate:"omitempty,max=200"`
	Weight         *decimal.Decimal `json:"weight"`
	Cost           *decimal.Decimal `json:"cost"`
	Date           *Date            `json:"date"`
	Note           *string          `json:"note" validate:"omitempty,max=1000"`
	Version        int              `json:"version" validate:"required,min=1"`
}

func (req UpdateParcelRequest) hasDetails() bool {
	return req.SenderName != nil || req.SenderEmail != nil || req.RecipientName != nil ||
		req.RecipientEmail != nil || req.Origin != nil || req.Destination != nil ||
		req.Weight != nil || req.Cost != nil || req.Date != nil || req.Note != nil
}

func (req UpdateParcelRequest) update() domain.ParcelDetailsUpdate {
	u := domain.ParcelDetailsUpdate{
		SenderName:     req.SenderName,
		SenderEmail:    req.SenderEmail,
		RecipientName:  req.RecipientName,
		RecipientEmail: req.RecipientEmail,
		Origin:         req.Origin,
		Destination:    req.Destination,
		Weight:         req.Weight,
		Cost:           req.Cost,
		Note:           req.Note,
	}
	if req.Date != nil {
		t := req.Date.Time
		u.ScheduledDate = &t
	}
	return u
}

func (h *ParcelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateParcelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	parcel, err := h.parcels.Create(r.Context(), req.details())
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	h.logger.Info("parcel created",
		zap.String("parcel_id", parcel.ID),
		zap.String("tracking_number", parcel.TrackingNumber),
	)
	response.JSON(w, http.StatusCreated, parcel)
}

func (h *ParcelHandler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	var req CreateReturnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	parcel, err := h.parcels.CreateReturn(r.Context(), ports.CreateReturnInput{
		ParcelDetails:          req.details(),
		OriginalTrackingNumber: req.OriginalTrackingNumber,
	})
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	h.logger.Info("return parcel created",
		zap.String("parcel_id", parcel.ID),
		zap.String("original_tracking_number", parcel.OriginalTrackingNumber),
	)
	response.JSON(w, http.StatusCreated, parcel)
}

// List shows every parcel to staff and only their own parcels to everyone else.
func (h *ParcelHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.FromError(w, h.logger, domain.ErrAuthenticationRequired)
		return
	}
	page, err := pageFrom(r)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	var list *domain.ParcelList
	if identity.Role.IsStaff() {
		list, err = h.parcels.List(r.Context(), page)
	} else {
		list, err = h.parcels.ListForEmail(r.Context(), identity.Email, page)
	}
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

func (h *ParcelHandler) Mine(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.FromError(w, h.logger, domain.ErrAuthenticationRequired)
		return
	}
	page, err := pageFrom(r)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	list, err := h.parcels.ListForEmail(r.Context(), identity.Email, page)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

// Track applies the same visibility rule as Get.
func (h *ParcelHandler) Track(w http.ResponseWriter, r *http.Request) {
	h.respondVisible(w, r, func() (*domain.Parcel, error) {
		return h.parcels.GetByTrackingNumber(r.Context(), chi.URLParam(r, "trackingNumber"))
	})
}

func (h *ParcelHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondVisible(w, r, func() (*domain.Parcel, error) {
		return h.parcels.Get(r.Context(), chi.URLParam(r, "id"))
	})
}

// respondVisible writes the parcel for staff and for its sender or recipient.
func (h *ParcelHandler) respondVisible(w http.ResponseWriter, r *http.Request, load func() (*domain.Parcel, error)) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		response.FromError(w, h.logger, domain.ErrAuthenticationRequired)
		return
	}

	parcel, err := load()
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	if !identity.Role.IsStaff() && !parcel.Involves(identity.Email) {
		response.FromError(w, h.logger, domain.ErrAuthorizationDenied)
		return
	}
	response.JSON(w, http.StatusOK, parcel)
}

func (h *ParcelHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateParcelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	if req.Status != nil {
		if req.hasDetails() {
			response.FromError(w, h.logger, domain.Validationf("status cannot be combined with other fields"))
			return
		}
		h.changeStatus(w, r, domain.ParcelStatus(*req.Status), req.Version)
		return
	}

	parcel, err := h.parcels.UpdateDetails(r.Context(), chi.URLParam(r, "id"), req.update(), req.Version)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, parcel)
}

func (h *ParcelHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.FromError(w, h.logger, err)
		return
	}
	h.changeStatus(w, r, domain.ParcelStatus(*req.Status), req.Version)
}

func (h *ParcelHandler) changeStatus(w http.ResponseWriter, r *http.Request, status domain.ParcelStatus, version int) {
	parcel, err := h.parcels.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, version)
	if err != nil {
		response.FromError(w, h.logger, err)
		return
	}

	if h.observer != nil {
		h.observer.ObserveTransition(status.String())
	}
	h.logger.Info("parcel status changed",
		zap.String("parcel_id", parcel.ID),
		zap.String("status", status.String()),
		zap.Int("version", parcel.Version),
	)
	response.JSON(w, http.StatusOK, parcel)
}
