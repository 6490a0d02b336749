package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-inbox/adapters/gologger"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/webhooks"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDWebhookReschedule = "inbox.webhook.reschedule"
	JobIDErrorLogPrune     = "inbox.error_log.prune"
)

const defaultConsumerIdleDelay = 250 * time.Millisecond

// RetryPolicy bounds queue-level redelivery. The ingestion pipeline only
// ever asks for one deferred re-submission per event, so the queue is not
// allowed to turn that into an unbounded retry loop.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt clamps a nack request to the policy bounds. Retry
// requests past MaxAttempts become terminal.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == "" {
		out.Disposition = core.JobNackRetry
	}
	if out.Disposition == core.JobNackRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		if p.DeadLetterOnMax {
			out.Disposition = core.JobNackDeadLetter
		} else {
			out.Disposition = core.JobNackFailed
		}
	}
	return out
}

// ToExecutionMessage maps the inbox runtime message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message into the inbox contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Disposition: toQueueDisposition(opts.Disposition),
		Delay:       opts.Delay,
		Reason:      opts.Reason,
	}
}

func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Disposition: fromQueueDisposition(opts.Disposition),
		Delay:       opts.Delay,
		Reason:      opts.Reason,
	}
}

func toQueueDisposition(d core.JobNackDisposition) queue.NackDisposition {
	switch d {
	case core.JobNackDeadLetter:
		return queue.NackDispositionDeadLetter
	case core.JobNackFailed:
		return queue.NackDispositionFailed
	default:
		return queue.NackDispositionRetry
	}
}

func fromQueueDisposition(d queue.NackDisposition) core.JobNackDisposition {
	switch d {
	case queue.NackDispositionDeadLetter:
		return core.JobNackDeadLetter
	case queue.NackDispositionFailed, queue.NackDispositionCanceled:
		return core.JobNackFailed
	default:
		return core.JobNackRetry
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) (core.JobEnqueueReceipt, error) {
	if a == nil || a.enqueuer == nil {
		return core.JobEnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return core.JobEnqueueReceipt{}, fmt.Errorf("gojob: execution message is required")
	}
	receipt, err := a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
	if err != nil {
		return core.JobEnqueueReceipt{}, err
	}
	return core.JobEnqueueReceipt{
		DispatchID: receipt.DispatchID,
		EnqueuedAt: receipt.EnqueuedAt,
	}, nil
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, nil
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// RescheduleConsumer drains the durable reschedule queue and feeds each
// deferred delivery back into the ingestion pipeline. The reconstructed
// event carries the redelivered flag, so the processor never asks for a
// second deferral; any failure here is terminal for the delivery.
type RescheduleConsumer struct {
	dequeuer  core.JobDequeuer
	submit    func(ctx context.Context, event core.InboundEvent) error
	logger    glog.Logger
	idleDelay time.Duration
}

func NewRescheduleConsumer(
	dequeuer core.JobDequeuer,
	submit func(ctx context.Context, event core.InboundEvent) error,
	logger glog.Logger,
) (*RescheduleConsumer, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if submit == nil {
		return nil, fmt.Errorf("gojob: submit func is required")
	}
	_, resolved := gologger.Resolve("inbox:reschedule", nil, logger)
	return &RescheduleConsumer{
		dequeuer:  dequeuer,
		submit:    submit,
		logger:    resolved,
		idleDelay: defaultConsumerIdleDelay,
	}, nil
}

// ConsumeOne takes the next queued reschedule, if any, and re-submits it.
// Returns false when the queue had nothing to deliver.
func (c *RescheduleConsumer) ConsumeOne(ctx context.Context) (bool, error) {
	if c == nil || c.dequeuer == nil {
		return false, fmt.Errorf("gojob: consumer is not configured")
	}
	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}
	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDWebhookReschedule {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		return true, delivery.Nack(ctx, core.JobNackOptions{
			Disposition: core.JobNackFailed,
			Reason:      fmt.Sprintf("unexpected job id %q", jobID),
		})
	}
	event, err := webhooks.EventFromJobParameters(msg.Parameters)
	if err != nil {
		c.logger.Warn("reschedule payload rejected",
			"job_id", msg.JobID,
			"error", err.Error(),
		)
		return true, delivery.Nack(ctx, core.JobNackOptions{
			Disposition: core.JobNackFailed,
			Reason:      err.Error(),
		})
	}
	if err := c.submit(ctx, event); err != nil {
		return true, delivery.Nack(ctx, core.JobNackOptions{
			Disposition: core.JobNackDeadLetter,
			Reason:      err.Error(),
		})
	}
	return true, delivery.Ack(ctx)
}

// Run consumes until the context ends, idling between empty polls.
func (c *RescheduleConsumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := c.ConsumeOne(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.logger.Warn("reschedule consume failed", "error", err.Error())
		}
		if processed && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.idleDelay):
		}
	}
}

// WorkerOptions builds queue worker options that route worker logging and
// lifecycle reporting through the ambient logging stack.
func WorkerOptions(logger glog.Logger) []worker.Option {
	_, resolved, _, jobLogger := gologger.ResolveForJob("inbox:queue", nil, logger)
	return []worker.Option{
		worker.WithLogger(jobLogger),
		worker.WithHooks(NewWorkerHookAdapter(NewLoggingHook(resolved))),
	}
}

type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

// LoggingHook reports deferred re-submission job lifecycle through the
// ambient logger.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Debug("job started", hookFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Info("job succeeded", append(hookFields(event), "duration_ms", event.Duration.Milliseconds())...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	fields := hookFields(event)
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	h.logger.Error("job failed", fields...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.logger.Warn("job retrying", append(hookFields(event), "delay_ms", event.Delay.Milliseconds())...)
}

func hookFields(event core.JobWorkerEvent) []any {
	fields := []any{"attempt", event.Attempt}
	if event.Message != nil {
		fields = append(fields, "job_id", event.Message.JobID)
	}
	return fields
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer   = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery   = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer   = (*DequeuerAdapter)(nil)
	_ worker.Hook        = (*WorkerHookAdapter)(nil)
	_ core.JobWorkerHook = (*LoggingHook)(nil)
)
