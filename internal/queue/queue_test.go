package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-integrity/internal/events"
	"github.com/noah-isme/checkout-integrity/internal/queue"
)

type fakeClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "ok"}, nil
}

func transactionEvent() events.Event {
	return events.Event{
		ID:         uuid.MustParse("5f0b7d3c-1f7e-4c0e-9a53-1c2b3d4e5f60"),
		Topic:      events.TopicTransactionUpdated,
		Payload:    json.RawMessage(`{"event":"transaction.updated","data":{"transaction":{"id":"tx-1","reference":"order-1001","status":"APPROVED","amount_in_cents":900000,"currency":"COP"}}}`),
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestEnqueuerNotify(t *testing.T) {
	client := &fakeClient{}
	enq := queue.Enqueuer{Client: client, MaxRetry: 3}

	require.NoError(t, enq.Notify(context.Background(), transactionEvent()))
	require.Len(t, client.tasks, 1)
	require.Equal(t, queue.TypeProcessorEvent, client.tasks[0].Type())
	require.Len(t, client.opts[0], 3)

	var payload queue.ProcessorEventPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	require.Equal(t, "5f0b7d3c-1f7e-4c0e-9a53-1c2b3d4e5f60", payload.EventID)
	require.Equal(t, events.TopicTransactionUpdated, payload.Topic)
}

func taskIDOption(t *testing.T, opts []asynq.Option) string {
	t.Helper()
	for _, opt := range opts {
		if opt.Type() == asynq.TaskIDOpt {
			id, ok := opt.Value().(string)
			require.True(t, ok)
			return id
		}
	}
	t.Fatal("task id option not set")
	return ""
}

func TestEnqueuerTaskIDFollowsContent(t *testing.T) {
	client := &fakeClient{}
	enq := queue.Enqueuer{Client: client}

	first := transactionEvent()
	redelivered := transactionEvent()
	redelivered.ID = uuid.MustParse("0c6f3a8e-9d1b-4f3e-8a2c-7b5d4e3f2a10")
	redelivered.OccurredAt = first.OccurredAt.Add(time.Minute)
	other := transactionEvent()
	other.Payload = json.RawMessage(`{"event":"transaction.updated","data":{"transaction":{"id":"tx-2"}}}`)

	for _, ev := range []events.Event{first, redelivered, other} {
		require.NoError(t, enq.Notify(context.Background(), ev))
	}
	require.Equal(t, queue.TaskID(first), taskIDOption(t, client.opts[0]))
	require.Equal(t, taskIDOption(t, client.opts[0]), taskIDOption(t, client.opts[1]))
	require.NotEqual(t, taskIDOption(t, client.opts[0]), taskIDOption(t, client.opts[2]))
}

func TestEnqueuerIgnoresDuplicateTaskID(t *testing.T) {
	client := &fakeClient{err: asynq.ErrTaskIDConflict}
	require.NoError(t, queue.Enqueuer{Client: client}.Notify(context.Background(), transactionEvent()))
}

func TestEnqueuerPropagatesFailures(t *testing.T) {
	client := &fakeClient{err: errors.New("redis: connection refused")}
	err := queue.Enqueuer{Client: client}.Notify(context.Background(), transactionEvent())
	require.ErrorContains(t, err, "connection refused")

	require.Error(t, queue.Enqueuer{}.Notify(context.Background(), transactionEvent()))
}

func TestEventWorkerProcessesTransactionUpdate(t *testing.T) {
	task, err := queue.NewProcessorEventTask(transactionEvent())
	require.NoError(t, err)
	require.NoError(t, queue.EventWorker{Logger: zerolog.Nop()}.ProcessTask(context.Background(), task))
}

func TestEventWorkerAcceptsOtherTopics(t *testing.T) {
	ev := transactionEvent()
	ev.Topic = events.TopicNequiTokenUpdated
	ev.Payload = json.RawMessage(`{"event":"nequi_token.updated","data":{}}`)
	task, err := queue.NewProcessorEventTask(ev)
	require.NoError(t, err)
	require.NoError(t, queue.EventWorker{Logger: zerolog.Nop()}.ProcessTask(context.Background(), task))
}

func TestEventWorkerSkipsRetryOnMalformedTask(t *testing.T) {
	err := queue.EventWorker{Logger: zerolog.Nop()}.ProcessTask(context.Background(), asynq.NewTask(queue.TypeProcessorEvent, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	ev := transactionEvent()
	ev.Payload = json.RawMessage(`{"event":"transaction.updated"}`)
	task, err := queue.NewProcessorEventTask(ev)
	require.NoError(t, err)
	require.ErrorIs(t, queue.EventWorker{Logger: zerolog.Nop()}.ProcessTask(context.Background(), task), asynq.SkipRetry)
}

func TestNewServeMuxRoutesProcessorEvents(t *testing.T) {
	mux := queue.NewServeMux(queue.EventWorker{Logger: zerolog.Nop()})
	task, err := queue.NewProcessorEventTask(transactionEvent())
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))
}
