package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

type fakeAcknowledger struct {
	acks    int
	nacks   int
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func delivery(t *testing.T, ack amqp.Acknowledger, body interface{}, redelivered bool) amqp.Delivery {
	t.Helper()
	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: raw, Redelivered: redelivered}
}

func sampleEvent() ports.ParcelEvent {
	return ports.ParcelEvent{
		Type:           ports.EventParcelCreated,
		ParcelID:       "p-1",
		TrackingNumber: "CM-01",
		SenderEmail:    "alice@example.com",
		RecipientEmail: "bob@example.com",
		Status:         "pending",
		OccurredAt:     time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestDispatch(t *testing.T) {
	handlerErr := errors.New("smtp down")

	tests := []struct {
		name        string
		body        interface{}
		redelivered bool
		handlerErr  error
		wantAcks    int
		wantNacks   int
		wantRequeue bool
		wantHandled bool
	}{
		{name: "handled", body: sampleEvent(), wantAcks: 1, wantHandled: true},
		{name: "malformed json", body: []byte("{not json"), wantNacks: 1},
		{name: "missing parcel id", body: ports.ParcelEvent{Type: ports.EventParcelCreated}, wantNacks: 1},
		{name: "handler error requeues", body: sampleEvent(), handlerErr: handlerErr, wantNacks: 1, wantRequeue: true, wantHandled: true},
		{name: "handler error after redelivery drops", body: sampleEvent(), redelivered: true, handlerErr: handlerErr, wantNacks: 1, wantHandled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			var got *ports.ParcelEvent
			handle := func(ctx context.Context, evt ports.ParcelEvent) error {
				got = &evt
				return tt.handlerErr
			}

			dispatch(context.Background(), delivery(t, ack, tt.body, tt.redelivered), handle, zap.NewNop())

			assert.Equal(t, tt.wantAcks, ack.acks)
			assert.Equal(t, tt.wantNacks, ack.nacks)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
			if tt.wantHandled {
				require.NotNil(t, got)
				assert.Equal(t, "p-1", got.ParcelID)
				assert.True(t, sampleEvent().OccurredAt.Equal(got.OccurredAt))
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestNewPublishing(t *testing.T) {
	evt := sampleEvent()
	body, err := json.Marshal(evt)
	require.NoError(t, err)

	msg := newPublishing(evt, body)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, ports.EventParcelCreated, msg.Type)
	assert.Equal(t, evt.OccurredAt, msg.Timestamp)

	decoded, err := decodeEvent(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, evt.TrackingNumber, decoded.TrackingNumber)
}
