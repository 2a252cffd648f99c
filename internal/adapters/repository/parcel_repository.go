package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

const parcelColumns = `id, tracking_number, sender_name, sender_email, recipient_name, recipient_email,
		origin, destination, weight, cost, scheduled_date, note, status, is_return,
		original_tracking_number, version, created_at, updated_at`

type ParcelRepository struct {
	db *sql.DB
}

var _ ports.ParcelRepository = (*ParcelRepository)(nil)

func NewParcelRepository(db *sql.DB) *ParcelRepository {
	return &ParcelRepository{db: db}
}

// Create inserts the parcel and its outbox row atomically. The outbox insert
// fires the notify trigger that wakes the relay.
func (r *ParcelRepository) Create(ctx context.Context, parcel *domain.Parcel, event ports.ParcelEvent) error {
	return withTx(ctx, r.db, func(tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO parcels (`+parcelColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			parcel.ID,
			parcel.TrackingNumber,
			parcel.SenderName,
			parcel.SenderEmail,
			parcel.RecipientName,
			parcel.RecipientEmail,
			parcel.Origin,
			parcel.Destination,
			parcel.Weight,
			parcel.Cost,
			parcel.ScheduledDate,
			parcel.Note,
			int(parcel.Status),
			parcel.IsReturn,
			parcel.OriginalTrackingNumber,
			parcel.Version,
			parcel.CreatedAt,
			parcel.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *ParcelRepository) FindByID(ctx context.Context, id string) (*domain.Parcel, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+parcelColumns+` FROM parcels WHERE id = $1`, id)
	return scanParcel(row)
}

func (r *ParcelRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Parcel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+parcelColumns+` FROM parcels WHERE tracking_number = $1`, trackingNumber)
	return scanParcel(row)
}

func (r *ParcelRepository) List(ctx context.Context, page domain.Page) (*domain.ParcelList, error) {
	return r.list(ctx, page, "")
}

// ListByEmail returns parcels where email is the sender or the recipient.
func (r *ParcelRepository) ListByEmail(ctx context.Context, email string, page domain.Page) (*domain.ParcelList, error) {
	return r.list(ctx, page, email)
}

func (r *ParcelRepository) list(ctx context.Context, page domain.Page, email string) (*domain.ParcelList, error) {
	page = page.Normalize()
	after, err := decodeCursor(page.Cursor)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE TRUE`
	var args []any
	if email != "" {
		args = append(args, email)
		query += fmt.Sprintf(` AND (sender_email = $%d OR recipient_email = $%d)`, len(args), len(args))
	}
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		query += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, page.Limit+1)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	parcels := make([]domain.Parcel, 0, page.Limit)
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		parcels = append(parcels, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	list := &domain.ParcelList{Parcels: parcels}
	if len(parcels) > page.Limit {
		last := parcels[page.Limit-1]
		list.Parcels = parcels[:page.Limit]
		list.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return list, nil
}

// Update is a compare-and-swap on the version column. When no row matches, a
// follow-up existence check separates a missing parcel from a stale version.
func (r *ParcelRepository) Update(ctx context.Context, parcel *domain.Parcel, expectedVersion int, event *ports.ParcelEvent) error {
	if !validID(parcel.ID) {
		return domain.ErrNotFound
	}
	return withTx(ctx, r.db, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE parcels
			SET sender_name = $3, sender_email = $4, recipient_name = $5, recipient_email = $6,
				origin = $7, destination = $8, weight = $9, cost = $10, scheduled_date = $11,
				note = $12, status = $13, version = version + 1, updated_at = $14
			WHERE id = $1 AND version = $2`,
			parcel.ID,
			expectedVersion,
			parcel.SenderName,
			parcel.SenderEmail,
			parcel.RecipientName,
			parcel.RecipientEmail,
			parcel.Origin,
			parcel.Destination,
			parcel.Weight,
			parcel.Cost,
			parcel.ScheduledDate,
			parcel.Note,
			int(parcel.Status),
			parcel.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM parcels WHERE id = $1)`, parcel.ID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			if !exists {
				return domain.ErrNotFound
			}
			return domain.ErrVersionConflict
		}

		if event == nil {
			return nil
		}
		return insertOutboxEvent(ctx, tx, *event)
	})
}

func insertOutboxEvent(ctx context.Context, tx DBTX, event ports.ParcelEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), event.ParcelID, event.Type, payload,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func scanParcel(row rowScanner) (*domain.Parcel, error) {
	var (
		p      domain.Parcel
		status int
	)
	err := row.Scan(
		&p.ID,
		&p.TrackingNumber,
		&p.SenderName,
		&p.SenderEmail,
		&p.RecipientName,
		&p.RecipientEmail,
		&p.Origin,
		&p.Destination,
		&p.Weight,
		&p.Cost,
		&p.ScheduledDate,
		&p.Note,
		&status,
		&p.IsReturn,
		&p.OriginalTrackingNumber,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	p.Status = domain.ParcelStatus(status)
	return &p, nil
}
