package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ParcelStatus int

const (
	StatusPending ParcelStatus = iota
	StatusInTransit
	StatusDelivered
	StatusRejected
)

var statusLabels = map[ParcelStatus]string{
	StatusPending:   "pending",
	StatusInTransit: "in_transit",
	StatusDelivered: "delivered",
	StatusRejected:  "rejected",
}

func (s ParcelStatus) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

func (s ParcelStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Terminal statuses accept no further transitions or detail edits.
func (s ParcelStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusRejected
}

var transitions = map[ParcelStatus][]ParcelStatus{
	StatusPending:   {StatusInTransit, StatusRejected},
	StatusInTransit: {StatusDelivered, StatusRejected},
}

// CanTransition reports whether from -> to is an edge of the parcel state machine.
func CanTransition(from, to ParcelStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error wrapping ErrInvalidTransition when from -> to is not allowed.
func ValidateTransition(from, to ParcelStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %d", ErrInvalidTransition, int(to))
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

type Parcel struct {
	ID                     string          `json:"id"`
	TrackingNumber         string          `json:"tracking_number"`
	SenderName             string          `json:"sender_name"`
	SenderEmail            string          `json:"sender_email"`
	RecipientName          string          `json:"recipient_name"`
	RecipientEmail         string          `json:"recipient_email"`
	Origin                 string          `json:"origin"`
	Destination            string          `json:"destination"`
	Weight                 decimal.Decimal `json:"weight"`
	Cost                   decimal.Decimal `json:"cost"`
	ScheduledDate          time.Time       `json:"scheduled_date"`
	Note                   string          `json:"note,omitempty"`
	Status                 ParcelStatus    `json:"status"`
	IsReturn               bool            `json:"is_return"`
	OriginalTrackingNumber string          `json:"original_tracking_number,omitempty"`
	Version                int             `json:"version"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// MarshalJSON adds the canonical status label next to the numeric status.
func (p Parcel) MarshalJSON() ([]byte, error) {
	type alias Parcel
	return json.Marshal(struct {
		alias
		StatusLabel string `json:"status_label"`
	}{alias: alias(p), StatusLabel: p.Status.String()})
}

// Involves reports whether email is the parcel's sender or recipient.
func (p *Parcel) Involves(email string) bool {
	return email != "" && (p.SenderEmail == email || p.RecipientEmail == email)
}

// ParcelDetails holds the fields required to create a parcel.
type ParcelDetails struct {
	SenderName     string
	SenderEmail    string
	RecipientName  string
	RecipientEmail string
	Origin         string
	Destination    string
	Weight         decimal.Decimal
	Cost           decimal.Decimal
	ScheduledDate  time.Time
	Note           string
}

// Validate checks the required fields that the HTTP layer cannot express in tags.
func (d ParcelDetails) Validate() error {
	switch {
	case d.SenderName == "" || d.SenderEmail == "":
		return Validationf("sender name and email are required")
	case d.RecipientName == "" || d.RecipientEmail == "":
		return Validationf("recipient name and email are required")
	case d.Origin == "" || d.Destination == "":
		return Validationf("origin and destination are required")
	case !d.Weight.IsPositive():
		return Validationf("weight must be greater than zero")
	case d.Cost.IsNegative():
		return Validationf("cost must not be negative")
	case d.ScheduledDate.IsZero():
		return Validationf("date is required")
	}
	return nil
}

// Reversed swaps sender with recipient and origin with destination.
func (d ParcelDetails) Reversed() ParcelDetails {
	d.SenderName, d.RecipientName = d.RecipientName, d.SenderName
	d.SenderEmail, d.RecipientEmail = d.RecipientEmail, d.SenderEmail
	d.Origin, d.Destination = d.Destination, d.Origin
	return d
}

// ParcelDetailsUpdate carries editable non-status fields. Nil fields are left untouched.
type ParcelDetailsUpdate struct {
	SenderName     *string
	SenderEmail    *string
	RecipientName  *string
	RecipientEmail *string
	Origin         *string
	Destination    *string
	Weight         *decimal.Decimal
	Cost           *decimal.Decimal
	ScheduledDate  *time.Time
	Note           *string
}

func (u ParcelDetailsUpdate) Apply(p *Parcel) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&p.SenderName, u.SenderName)
	setString(&p.SenderEmail, u.SenderEmail)
	setString(&p.RecipientName, u.RecipientName)
	setString(&p.RecipientEmail, u.RecipientEmail)
	setString(&p.Origin, u.Origin)
	setString(&p.Destination, u.Destination)
	setString(&p.Note, u.Note)
	if u.Weight != nil {
		p.Weight = *u.Weight
	}
	if u.Cost != nil {
		p.Cost = *u.Cost
	}
	if u.ScheduledDate != nil {
		p.ScheduledDate = *u.ScheduledDate
	}
}

// DetailsOf extracts the creation fields of an existing parcel.
func DetailsOf(p *Parcel) ParcelDetails {
	return ParcelDetails{
		SenderName:     p.SenderName,
		SenderEmail:    p.SenderEmail,
		RecipientName:  p.RecipientName,
		RecipientEmail: p.RecipientEmail,
		Origin:         p.Origin,
		Destination:    p.Destination,
		Weight:         p.Weight,
		Cost:           p.Cost,
		ScheduledDate:  p.ScheduledDate,
		Note:           p.Note,
	}
}

// Page is a keyset pagination request; Cursor is opaque to callers.
type Page struct {
	Limit  int
	Cursor string
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps Limit into [1, MaxPageLimit].
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

type ParcelList struct {
	Parcels    []Parcel `json:"parcels"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type UserList struct {
	Users      []User `json:"users"`
	NextCursor string `json:"next_cursor,omitempty"`
}
