package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

var _ ports.ParcelEventPublisher = (*RabbitMQBroker)(nil)

func (rmq *RabbitMQBroker) PublishParcelEvent(ctx context.Context, evt ports.ParcelEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	// Respect context deadline
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) <= 0 {
			return ctx.Err()
		}
	}

	_, err = rmq.cb.Execute(func() (interface{}, error) {
		err := rmq.ch.PublishWithContext(
			ctx,
			"",            // exchange (default)
			rmq.queueName, // routing key == queue name
			false,         // mandatory
			false,         // immediate
			newPublishing(evt, body),
		)
		return nil, err
	})
	return err
}

func newPublishing(evt ports.ParcelEvent, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         evt.Type,
		Timestamp:    evt.OccurredAt,
		Body:         body,
	}
}
