package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes one structured line per event.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Time("occurred_at", event.OccurredAt).
		RawJSON("payload", event.Payload).
		Msg("processor event")
	return nil
}
