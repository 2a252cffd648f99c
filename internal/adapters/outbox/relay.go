package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/config"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

const (
	// PostgreSQL NOTIFY/LISTEN configuration
	listenerMinReconnectInterval = 10 * time.Second
	listenerMaxReconnectInterval = time.Minute
	outboxChannelName            = "outbox_channel"

	// Event processing timeouts
	eventProcessTimeout     = 30 * time.Second
	batchProcessTimeout     = 60 * time.Second
	periodicProcessInterval = 90 * time.Second

	// Health check configuration
	healthCheckStaleThreshold = 5 * time.Minute

	// Batch processing limits
	maxEventsPerBatch = 100
)

const markProcessedQuery = `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`

// Relay listens for PostgreSQL NOTIFY signals on the outbox_channel
// and publishes parcel events to the message broker.
type Relay struct {
	db            *sql.DB
	publisher     ports.ParcelEventPublisher
	listener      *pq.Listener
	dbURL         string
	dbCB          *gobreaker.CircuitBreaker
	logger        *zap.Logger
	lastProcessed atomic.Int64
	healthy       atomic.Bool
}

func NewRelay(db *sql.DB, dbURL string, publisher ports.ParcelEventPublisher, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{
		db:        db,
		dbURL:     dbURL,
		publisher: publisher,
		dbCB:      config.NewCircuitBreaker(config.BreakerRelayPostgres, logger),
		logger:    logger,
	}
	r.markProgress()
	return r
}

// IsHealthy is the liveness signal. An open breaker means degraded, not dead,
// so it is not considered here.
func (r *Relay) IsHealthy() bool {
	return r.healthy.Load()
}

// IsReady reports whether the relay can process events right now.
func (r *Relay) IsReady() bool {
	if r.dbCB.State() == gobreaker.StateOpen {
		return false
	}
	if time.Since(time.Unix(0, r.lastProcessed.Load())) > healthCheckStaleThreshold {
		return false
	}
	return r.healthy.Load()
}

func (r *Relay) markProgress() {
	r.lastProcessed.Store(time.Now().UnixNano())
	r.healthy.Store(true)
}

// Start blocks, relaying events until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.Warn("outbox listener error", zap.Error(err))
		}
	}

	r.listener = pq.NewListener(r.dbURL, listenerMinReconnectInterval, listenerMaxReconnectInterval, reportProblem)
	defer r.listener.Close()

	if err := r.listener.Listen(outboxChannelName); err != nil {
		return err
	}

	r.logger.Info("outbox relay listening", zap.String("channel", outboxChannelName))

	// Catch up on anything written while the relay was down.
	if err := r.processUnprocessedEvents(ctx); err != nil {
		r.logger.Error("processing startup backlog", zap.Error(err))
	}

	ticker := time.NewTicker(periodicProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay shutting down")
			return ctx.Err()

		case notification := <-r.listener.Notify:
			if notification == nil {
				// pq sends nil after re-establishing the connection.
				r.logger.Warn("outbox listener reconnected, sweeping backlog")
				r.healthy.Store(false)
				if err := r.processUnprocessedEvents(ctx); err == nil {
					r.markProgress()
				}
				continue
			}

			if err := r.processEventByID(ctx, notification.Extra); err != nil {
				r.logger.Error("processing outbox event",
					zap.String("event_id", notification.Extra),
					zap.Error(err),
				)
			} else {
				r.markProgress()
			}

		case <-ticker.C:
			go r.listener.Ping()

			if err := r.processUnprocessedEvents(ctx); err != nil {
				r.logger.Error("periodic outbox sweep", zap.Error(err))
			} else {
				r.markProgress()
			}
		}
	}
}

// processEventByID publishes and marks a single event.
func (r *Relay) processEventByID(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, eventProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		var id, eventType string
		var payload []byte
		err = tx.QueryRowContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE id = $1 AND processed_at IS NULL
			FOR UPDATE SKIP LOCKED`, eventID).Scan(&id, &eventType, &payload)

		if errors.Is(err, sql.ErrNoRows) {
			// Already handled by a sweep or another relay.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if err := r.publish(ctx, id, eventType, payload); err != nil {
			return nil, err
		}

		if _, err := tx.ExecContext(ctx, markProcessedQuery, id); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

// processUnprocessedEvents sweeps up to maxEventsPerBatch pending events in
// creation order. A failed publish leaves that event for the next sweep.
func (r *Relay) processUnprocessedEvents(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, batchProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE processed_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, maxEventsPerBatch)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		type record struct {
			ID        string
			EventType string
			Payload   []byte
		}

		var records []record
		for rows.Next() {
			var rec record
			if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload); err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, rec := range records {
			if err := r.publish(ctx, rec.ID, rec.EventType, rec.Payload); err != nil {
				r.logger.Warn("publish failed, will retry",
					zap.String("event_id", rec.ID),
					zap.Error(err),
				)
				continue
			}

			if _, err := tx.ExecContext(ctx, markProcessedQuery, rec.ID); err != nil {
				return nil, err
			}
			r.logger.Debug("outbox event processed", zap.String("event_id", rec.ID))
		}

		return nil, tx.Commit()
	})
	return err
}

// publish sends a known parcel event. Unknown types and undecodable payloads
// return nil so the row is marked and never retried.
func (r *Relay) publish(ctx context.Context, id, eventType string, payload []byte) error {
	switch eventType {
	case ports.EventParcelCreated, ports.EventParcelStatusChanged:
	default:
		r.logger.Warn("skipping unknown outbox event type",
			zap.String("event_id", id),
			zap.String("event_type", eventType),
		)
		return nil
	}

	var evt ports.ParcelEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		r.logger.Error("invalid outbox payload", zap.String("event_id", id), zap.Error(err))
		return nil
	}
	if evt.Type == "" {
		evt.Type = eventType
	}

	return r.publisher.PublishParcelEvent(ctx, evt)
}
