package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-integrity/internal/events"
	"github.com/noah-isme/checkout-integrity/internal/obs"
)

type transactionData struct {
	Transaction struct {
		ID            string `json:"id"`
		Reference     string `json:"reference"`
		Status        string `json:"status"`
		AmountInCents int64  `json:"amount_in_cents"`
		Currency      string `json:"currency"`
	} `json:"transaction"`
}

type eventBody struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EventWorker consumes processor event tasks. Webhook data is informational
// only; nothing here treats it as proof of payment.
type EventWorker struct {
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (w EventWorker) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload ProcessorEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		recordTask("unknown", "malformed")
		return fmt.Errorf("queue: decode task: %v: %w", err, asynq.SkipRetry)
	}
	logger := w.Logger.With().Str("event_id", payload.EventID).Str("topic", payload.Topic).Logger()

	switch payload.Topic {
	case events.TopicTransactionUpdated:
		var body eventBody
		var data transactionData
		if err := json.Unmarshal(payload.Payload, &body); err != nil || json.Unmarshal(body.Data, &data) != nil {
			recordTask(payload.Topic, "malformed")
			return fmt.Errorf("queue: decode transaction event: %w", asynq.SkipRetry)
		}
		tx := data.Transaction
		logger.Info().
			Str("transaction_id", tx.ID).
			Str("reference", tx.Reference).
			Str("status", tx.Status).
			Int64("amount_in_cents", tx.AmountInCents).
			Str("currency", tx.Currency).
			Msg("transaction updated")
	default:
		logger.Info().RawJSON("payload", payload.Payload).Msg("processor event received")
	}
	recordTask(payload.Topic, "processed")
	return nil
}

// NewServeMux routes processor event tasks to worker.
func NewServeMux(worker EventWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeProcessorEvent, worker)
	return mux
}

func recordTask(topic, result string) {
	if obs.QueueTasksTotal != nil {
		obs.QueueTasksTotal.WithLabelValues(topic, result).Inc()
	}
}
