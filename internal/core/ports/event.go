package ports

import (
	"context"
	"time"
)

const (
	EventParcelCreated       = "parcel.created"
	EventParcelStatusChanged = "parcel.status_changed"
)

// ParcelEvent is written to the outbox and relayed to the message broker.
type ParcelEvent struct {
	Type           string    `json:"type"`
	ParcelID       string    `json:"parcel_id"`
	TrackingNumber string    `json:"tracking_number"`
	SenderName     string    `json:"sender_name"`
	SenderEmail    string    `json:"sender_email"`
	RecipientName  string    `json:"recipient_name"`
	RecipientEmail string    `json:"recipient_email"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	IsReturn       bool      `json:"is_return"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type ParcelEventPublisher interface {
	PublishParcelEvent(ctx context.Context, evt ParcelEvent) error
}

// Mailer delivers a plain-text email to a single address.
type Mailer interface {
	SendText(to, subject, body string) error
}
