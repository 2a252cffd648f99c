package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

const consumerPrefetch = 10

// EventHandler processes one parcel event. A returned error requeues the delivery.
type EventHandler func(ctx context.Context, evt ports.ParcelEvent) error

var errMalformedEvent = errors.New("malformed parcel event")

// Consume delivers queued parcel events to handle until ctx is cancelled or
// the channel closes.
func (rmq *RabbitMQBroker) Consume(ctx context.Context, consumerTag string, handle EventHandler) error {
	if err := rmq.ch.Qos(consumerPrefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := rmq.ch.ConsumeWithContext(
		ctx,
		rmq.queueName,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", rmq.queueName, err)
	}

	rmq.logger.Info("consuming parcel events", zap.String("queue", rmq.queueName))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			dispatch(ctx, d, handle, rmq.logger)
		}
	}
}

// dispatch acks handled deliveries, drops malformed ones and requeues the
// rest unless they were already redelivered once.
func dispatch(ctx context.Context, d amqp.Delivery, handle EventHandler, logger *zap.Logger) {
	evt, err := decodeEvent(d.Body)
	if err == nil {
		err = handle(ctx, evt)
	}

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			logger.Error("ack failed", zap.Error(ackErr))
		}
	case errors.Is(err, errMalformedEvent):
		logger.Warn("dropping malformed parcel event", zap.Error(err))
		_ = d.Nack(false, false)
	default:
		logger.Warn("parcel event handler failed",
			zap.String("type", evt.Type),
			zap.String("parcel_id", evt.ParcelID),
			zap.Bool("redelivered", d.Redelivered),
			zap.Error(err),
		)
		_ = d.Nack(false, !d.Redelivered)
	}
}

func decodeEvent(body []byte) (ports.ParcelEvent, error) {
	var evt ports.ParcelEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return evt, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if evt.Type == "" || evt.ParcelID == "" {
		return evt, fmt.Errorf("%w: missing type or parcel id", errMalformedEvent)
	}
	return evt, nil
}
