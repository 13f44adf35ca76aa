package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/checkout-integrity/internal/common"
	"github.com/noah-isme/checkout-integrity/internal/events"
)

// TaskClient is the subset of *asynq.Client the enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer forwards bus events to asynq. It implements events.Notifier.
type Enqueuer struct {
	Client    TaskClient
	Queue     string
	MaxRetry  int
	Retention time.Duration
}

// Notify enqueues ev. The task id is derived from the topic and payload, so a
// redelivered processor event with identical content maps to the same task
// and is dropped while asynq still holds the earlier one.
func (e Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if e.Client == nil {
		return errors.New("queue: task client not configured")
	}
	task, err := NewProcessorEventTask(ev)
	if err != nil {
		return err
	}
	queueName := e.Queue
	if queueName == "" {
		queueName = DefaultQueue
	}
	opts := []asynq.Option{
		asynq.Queue(queueName),
		asynq.TaskID(TaskID(ev)),
	}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	if e.Retention > 0 {
		opts = append(opts, asynq.Retention(e.Retention))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("queue: enqueue %s: %w", ev.Topic, err)
	}
	return nil
}

// TaskID returns the content-derived asynq task id for ev.
func TaskID(ev events.Event) string {
	return "processor-event:" + common.Sha256Hex(append([]byte(ev.Topic+"\n"), ev.Payload...))
}
