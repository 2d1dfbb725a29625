// Package notify is the fire-and-forget boundary to the portal's notification
// delivery (email/SMS/push live outside this engine). Failures to notify never
// roll back the state transition that triggered them.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Notification struct {
	RecipientID   uuid.UUID
	Type          string
	Title         string
	Message       string
	AppointmentID *uuid.UUID
	RequestID     *uuid.UUID
}

type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It stands in for the portal's
// delivery pipeline in dev and in tests.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, msg Notification) error {
	ev := n.log.Info().
		Str("recipient_id", msg.RecipientID.String()).
		Str("type", msg.Type).
		Str("title", msg.Title)
	if msg.AppointmentID != nil {
		ev = ev.Str("appointment_id", msg.AppointmentID.String())
	}
	if msg.RequestID != nil {
		ev = ev.Str("request_id", msg.RequestID.String())
	}
	ev.Msg(msg.Message)
	return nil
}
