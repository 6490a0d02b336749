package webhooks

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inbox/core"
)

// Rescheduler re-submits an event after a delay. The processor asks for at
// most one reschedule per event; implementations do not need to track
// repeat requests.
type Rescheduler interface {
	Reschedule(ctx context.Context, event core.InboundEvent, delay time.Duration) error
}

// TimerRescheduler re-submits through an in-process timer. The deferred
// submission carries the redelivered flag so the processor never schedules
// a second deferral for the same event.
type TimerRescheduler struct {
	// Submitter is bound after construction because the coordinator that
	// receives re-submissions is itself built around the processor.
	Submitter func(ctx context.Context, event core.InboundEvent) error

	logger core.Logger
}

func NewTimerRescheduler(logger core.Logger) *TimerRescheduler {
	return &TimerRescheduler{logger: glog.Ensure(logger)}
}

func (r *TimerRescheduler) Reschedule(_ context.Context, event core.InboundEvent, delay time.Duration) error {
	if r == nil || r.Submitter == nil {
		return fmt.Errorf("webhooks: rescheduler has no submitter bound")
	}
	if delay < 0 {
		delay = 0
	}
	event.Redelivered = true

	time.AfterFunc(delay, func() {
		// The original request context is long gone by the time the timer
		// fires; the re-submission runs under its own background context.
		if err := r.Submitter(context.Background(), event); err != nil {
			r.logger.Warn("rescheduled delivery failed",
				"provider_id", event.ProviderID,
				"error", err.Error(),
			)
		}
	})
	return nil
}

// QueueRescheduler hands the deferred re-submission to a durable job
// queue instead of an in-process timer, surviving process restarts.
type QueueRescheduler struct {
	enqueuer core.JobEnqueuer
	logger   core.Logger
}

func NewQueueRescheduler(enqueuer core.JobEnqueuer, logger core.Logger) (*QueueRescheduler, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("webhooks: job enqueuer is required")
	}
	return &QueueRescheduler{
		enqueuer: enqueuer,
		logger:   glog.Ensure(logger),
	}, nil
}

func (r *QueueRescheduler) Reschedule(ctx context.Context, event core.InboundEvent, delay time.Duration) error {
	if r == nil || r.enqueuer == nil {
		return fmt.Errorf("webhooks: queue rescheduler is not configured")
	}
	event.Redelivered = true

	msg := &core.JobExecutionMessage{
		JobID:          "inbox.webhook.reschedule",
		Parameters:     eventToJobParameters(event, delay),
		IdempotencyKey: fallbackDeliveryKey(event.Body),
		DedupPolicy:    "drop",
	}
	receipt, err := r.enqueuer.Enqueue(ctx, msg)
	if err != nil {
		r.logger.Warn("reschedule enqueue failed",
			"provider_id", event.ProviderID,
			"error", err.Error(),
		)
		return err
	}
	r.logger.Debug("reschedule enqueued",
		"provider_id", event.ProviderID,
		"dispatch_id", receipt.DispatchID,
	)
	return nil
}

// eventToJobParameters serializes an event for the durable queue. The
// redelivered flag must survive the round trip: a consumer that drops it
// would let a second transient failure schedule another deferral.
func eventToJobParameters(event core.InboundEvent, delay time.Duration) map[string]any {
	return map[string]any{
		"provider_id": event.ProviderID,
		"body":        string(event.Body),
		"received_at": event.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"delay_ms":    delay.Milliseconds(),
		"redelivered": event.Redelivered,
	}
}

// EventFromJobParameters reconstructs a deferred event from queued job
// parameters. Queue consumers use it to re-submit through the coordinator.
func EventFromJobParameters(params map[string]any) (core.InboundEvent, error) {
	body, ok := params["body"].(string)
	if !ok || body == "" {
		return core.InboundEvent{}, fmt.Errorf("webhooks: reschedule parameters have no body")
	}
	event := core.InboundEvent{Body: []byte(body)}
	if providerID, ok := params["provider_id"].(string); ok {
		event.ProviderID = providerID
	}
	if raw, ok := params["received_at"].(string); ok && raw != "" {
		receivedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return core.InboundEvent{}, fmt.Errorf("webhooks: bad received_at in reschedule parameters: %w", err)
		}
		event.ReceivedAt = receivedAt
	}
	if redelivered, ok := params["redelivered"].(bool); ok {
		event.Redelivered = redelivered
	}
	return event, nil
}
