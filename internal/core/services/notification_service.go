package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/core/domain"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/ports"
)

// NotificationService emails the sender and recipient about parcel events.
// Delivery is best effort.
type NotificationService struct {
	mailer ports.Mailer
	logger *zap.Logger
}

func NewNotificationService(mailer ports.Mailer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: mailer, logger: logger}
}

type notification struct {
	to      string
	subject string
	body    string
}

// HandleParcelEvent returns an error only when no notification could be sent,
// so a partially delivered event is not redelivered.
func (s *NotificationService) HandleParcelEvent(ctx context.Context, evt ports.ParcelEvent) error {
	notes := s.compose(evt)
	if len(notes) == 0 {
		s.logger.Debug("no notifications for event", zap.String("type", evt.Type))
		return nil
	}

	var errs []error
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.mailer.SendText(n.to, n.subject, n.body); err != nil {
			s.logger.Warn("notification not sent",
				zap.String("tracking_number", evt.TrackingNumber),
				zap.String("to", n.to),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		s.logger.Info("notification sent",
			zap.String("tracking_number", evt.TrackingNumber),
			zap.String("type", evt.Type),
		)
	}

	if len(errs) == len(notes) {
		return fmt.Errorf("notify %s: %w", evt.TrackingNumber, errors.Join(errs...))
	}
	return nil
}

func (s *NotificationService) compose(evt ports.ParcelEvent) []notification {
	kind := "parcel"
	if evt.IsReturn {
		kind = "return parcel"
	}
	route := fmt.Sprintf("%s to %s", evt.Origin, evt.Destination)

	var notes []notification
	add := func(to, subject, body string) {
		if to != "" {
			notes = append(notes, notification{to: to, subject: subject, body: body})
		}
	}

	switch evt.Type {
	case ports.EventParcelCreated:
		add(evt.SenderEmail,
			fmt.Sprintf("Your %s %s has been booked", kind, evt.TrackingNumber),
			fmt.Sprintf("Hello %s,\n\nYour %s for %s (%s) is booked under tracking number %s.\n",
				evt.SenderName, kind, evt.RecipientName, route, evt.TrackingNumber))
		add(evt.RecipientEmail,
			fmt.Sprintf("A %s is on its way to you", kind),
			fmt.Sprintf("Hello %s,\n\n%s has sent you a %s (%s). Track it with %s.\n",
				evt.RecipientName, evt.SenderName, kind, route, evt.TrackingNumber))

	case ports.EventParcelStatusChanged:
		status := describeStatus(evt.Status)
		subject := fmt.Sprintf("Parcel %s is %s", evt.TrackingNumber, status)
		add(evt.SenderEmail, subject,
			fmt.Sprintf("Hello %s,\n\nYour %s to %s (%s) is now %s.\n",
				evt.SenderName, kind, evt.RecipientName, route, status))
		add(evt.RecipientEmail, subject,
			fmt.Sprintf("Hello %s,\n\nThe %s from %s (%s) is now %s.\n",
				evt.RecipientName, kind, evt.SenderName, route, status))
	}
	return notes
}

func describeStatus(label string) string {
	switch label {
	case domain.StatusInTransit.String():
		return "in transit"
	case "":
		return "updated"
	default:
		return strings.ReplaceAll(label, "_", " ")
	}
}
