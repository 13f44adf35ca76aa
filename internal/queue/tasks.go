package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/checkout-integrity/internal/events"
)

const (
	// TypeProcessorEvent is the asynq task type for accepted processor webhooks.
	TypeProcessorEvent = "processor:event"
	// DefaultQueue is the asynq queue processor events are enqueued on.
	DefaultQueue = "processor-events"
)

// ProcessorEventPayload is the task body for TypeProcessorEvent.
type ProcessorEventPayload struct {
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// NewProcessorEventTask wraps an emitted event in an asynq task.
func NewProcessorEventTask(ev events.Event) (*asynq.Task, error) {
	body, err := json.Marshal(ProcessorEventPayload{
		EventID:    ev.ID.String(),
		Topic:      ev.Topic,
		Payload:    ev.Payload,
		OccurredAt: ev.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("queue: encode task: %w", err)
	}
	return asynq.NewTask(TypeProcessorEvent, body), nil
}
