package mocks

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

// CreateTestParcel returns a pending parcel at version 1.
func CreateTestParcel(id string) domain.Parcel {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.Parcel{
		ID:             id,
		TrackingNumber: "CM-" + id,
		SenderName:     "Alice",
		SenderEmail:    "alice@example.com",
		RecipientName:  "Bob",
		RecipientEmail: "bob@example.com",
		Origin:         "Nairobi",
		Destination:    "Mombasa",
		Weight:         decimal.RequireFromString("2.5"),
		Cost:           decimal.RequireFromString("12.00"),
		ScheduledDate:  time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:         domain.StatusPending,
		Version:        1,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

// CreateTestEvent returns a sample parcel.created event.
func CreateTestEvent() ports.ParcelEvent {
	return ports.ParcelEvent{
		Type:           ports.EventParcelCreated,
		ParcelID:       "parcel-1",
		TrackingNumber: "CM-TEST",
		SenderName:     "Alice",
		SenderEmail:    "alice@example.com",
		RecipientName:  "Bob",
		RecipientEmail: "bob@example.com",
		Origin:         "Nairobi",
		Destination:    "Mombasa",
		Status:         domain.StatusPending.String(),
		OccurredAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}
