package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

const trackingNumberPrefix = "CM-"

// NewTrackingNumber returns a time-ordered, globally unique tracking reference.
func NewTrackingNumber() string {
	return trackingNumberPrefix + ulid.Make().String()
}

type ParcelService struct {
	parcelRepo        ports.ParcelRepository
	newTrackingNumber func() string
	now               func() time.Time
}

var _ ports.ParcelService = (*ParcelService)(nil)

func NewParcelService(parcelRepo ports.ParcelRepository) *ParcelService {
	return &ParcelService{
		parcelRepo:        parcelRepo,
		newTrackingNumber: NewTrackingNumber,
		now:               time.Now,
	}
}

func (s *ParcelService) Create(ctx context.Context, details domain.ParcelDetails) (*domain.Parcel, error) {
	return s.create(ctx, details, false, "")
}

// CreateReturn takes the details of the outbound shipment and books the reverse leg.
// The original tracking number is recorded as given; it is not resolved.
func (s *ParcelService) CreateReturn(ctx context.Context, in ports.CreateReturnInput) (*domain.Parcel, error) {
	original := strings.TrimSpace(in.OriginalTrackingNumber)
	if original == "" {
		return nil, domain.Validationf("original tracking number is required")
	}
	return s.create(ctx, in.ParcelDetails.Reversed(), true, original)
}

func (s *ParcelService) create(ctx context.Context, d domain.ParcelDetails, isReturn bool, original string) (*domain.Parcel, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	parcel := &domain.Parcel{
		ID:                     uuid.NewString(),
		TrackingNumber:         s.newTrackingNumber(),
		SenderName:             d.SenderName,
		SenderEmail:            d.SenderEmail,
		RecipientName:          d.RecipientName,
		RecipientEmail:         d.RecipientEmail,
		Origin:                 d.Origin,
		Destination:            d.Destination,
		Weight:                 d.Weight,
		Cost:                   d.Cost,
		ScheduledDate:          d.ScheduledDate,
		Note:                   d.Note,
		Status:                 domain.StatusPending,
		IsReturn:               isReturn,
		OriginalTrackingNumber: original,
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.parcelRepo.Create(ctx, parcel, newParcelEvent(ports.EventParcelCreated, parcel, nil)); err != nil {
		return nil, err
	}
	return parcel, nil
}

func (s *ParcelService) Get(ctx context.Context, id string) (*domain.Parcel, error) {
	return s.parcelRepo.FindByID(ctx, id)
}

func (s *ParcelService) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Parcel, error) {
	return s.parcelRepo.FindByTrackingNumber(ctx, trackingNumber)
}

func (s *ParcelService) List(ctx context.Context, page domain.Page) (*domain.ParcelList, error) {
	return s.parcelRepo.List(ctx, page.Normalize())
}

func (s *ParcelService) ListForEmail(ctx context.Context, email string, page domain.Page) (*domain.ParcelList, error) {
	if email == "" {
		return nil, domain.Validationf("email is required")
	}
	return s.parcelRepo.ListByEmail(ctx, email, page.Normalize())
}

// UpdateStatus moves the parcel along the state machine. expectedVersion is the
// version the caller last read; any other writer in between causes ErrVersionConflict.
func (s *ParcelService) UpdateStatus(ctx context.Context, id string, status domain.ParcelStatus, expectedVersion int) (*domain.Parcel, error) {
	parcel, err := s.parcelRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if parcel.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if err := domain.ValidateTransition(parcel.Status, status); err != nil {
		return nil, err
	}

	previous := parcel.Status
	parcel.Status = status
	parcel.UpdatedAt = s.now().UTC()

	evt := newParcelEvent(ports.EventParcelStatusChanged, parcel, &previous)
	if err := s.parcelRepo.Update(ctx, parcel, expectedVersion, &evt); err != nil {
		return nil, err
	}
	parcel.Version = expectedVersion + 1
	return parcel, nil
}

// UpdateDetails edits non-status fields. Delivered and rejected parcels are read-only.
func (s *ParcelService) UpdateDetails(ctx context.Context, id string, update domain.ParcelDetailsUpdate, expectedVersion int) (*domain.Parcel, error) {
	parcel, err := s.parcelRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if parcel.Version != expectedVersion {
		return nil, domain.ErrVersionConflict
	}
	if parcel.Status.Terminal() {
		return nil, domain.ErrInvalidTransition
	}

	update.Apply(parcel)
	if err := domain.DetailsOf(parcel).Validate(); err != nil {
		return nil, err
	}
	parcel.UpdatedAt = s.now().UTC()

	if err := s.parcelRepo.Update(ctx, parcel, expectedVersion, nil); err != nil {
		return nil, err
	}
	parcel.Version = expectedVersion + 1
	return parcel, nil
}

func newParcelEvent(eventType string, p *domain.Parcel, previous *domain.ParcelStatus) ports.ParcelEvent {
	evt := ports.ParcelEvent{
		Type:           eventType,
		ParcelID:       p.ID,
		TrackingNumber: p.TrackingNumber,
		SenderName:     p.SenderName,
		SenderEmail:    p.SenderEmail,
		RecipientName:  p.RecipientName,
		RecipientEmail: p.RecipientEmail,
		Origin:         p.Origin,
		Destination:    p.Destination,
		Status:         p.Status.String(),
		IsReturn:       p.IsReturn,
		OccurredAt:     p.UpdatedAt,
	}
	if previous != nil {
		evt.PreviousStatus = previous.String()
	}
	return evt
}
