package webhooks

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/tenant"
)

// Error log entry kinds written by the processor.
const (
	ErrorKindStructure      = "webhook.structure_invalid"
	ErrorKindTenantNotFound = "webhook.tenant_not_found"
	ErrorKindItemFailed     = "webhook.item_failed"
	ErrorKindRescheduled    = "webhook.rescheduled"
	ErrorKindDropped        = "webhook.dropped"
)

// StoreLookup resolves which store owns a channel.
type StoreLookup interface {
	FindStoreForChannel(ctx context.Context, channelID string) (core.ChannelMapping, error)
}

// TenantResolver binds a principal to tenant-scoped storage.
type TenantResolver interface {
	Resolve(ctx context.Context, principal core.Principal) (*tenant.Handle, error)
}

// Processor runs one webhook event end to end: structural validation,
// tenant attribution, then per-item application of messages and status
// updates. Item failures are isolated; top-level transient failures earn
// one deferred re-submission.
type Processor struct {
	lookup      StoreLookup
	resolver    TenantResolver
	sink        core.ErrorSink
	rescheduler Rescheduler
	cfg         core.IngestConfig
	logger      core.Logger
	now         func() time.Time
}

func NewProcessor(
	lookup StoreLookup,
	resolver TenantResolver,
	sink core.ErrorSink,
	rescheduler Rescheduler,
	cfg core.IngestConfig,
	logger core.Logger,
) (*Processor, error) {
	if lookup == nil {
		return nil, fmt.Errorf("webhooks: store lookup is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("webhooks: tenant resolver is required")
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Processor{
		lookup:      lookup,
		resolver:    resolver,
		sink:        sink,
		rescheduler: rescheduler,
		cfg:         cfg,
		logger:      glog.Ensure(logger),
		now:         time.Now,
	}, nil
}

func (p *Processor) Process(ctx context.Context, event core.InboundEvent) error {
	if p == nil || p.lookup == nil || p.resolver == nil {
		return fmt.Errorf("webhooks: processor is not configured")
	}

	envelope, err := ParseEnvelope(event)
	if err != nil {
		p.sink.Record(ctx, core.ErrorLogEntry{
			Kind:         ErrorKindStructure,
			StoreID:      core.StoreIDUnknown,
			ErrorMessage: err.Error(),
			RawPayload:   event.Body,
			OccurredAt:   p.now(),
		})
		p.logger.Error("webhook failed structural validation", "error", err.Error())
		return err
	}

	mapping, err := p.lookup.FindStoreForChannel(ctx, envelope.ChannelID)
	if err != nil {
		if core.IsTenantNotFound(err) {
			p.sink.Record(ctx, core.ErrorLogEntry{
				Kind:           ErrorKindTenantNotFound,
				ChannelID:      envelope.ChannelID,
				StoreID:        core.StoreIDUnknown,
				PayloadSummary: PayloadSummary(envelope),
				ErrorMessage:   err.Error(),
				RawPayload:     event.Body,
				OccurredAt:     p.now(),
			})
			p.logger.Error("webhook channel has no owning store", "channel_id", envelope.ChannelID)
			return err
		}
		return p.handleTopLevelFailure(ctx, event, envelope, "", err)
	}

	handle, err := p.resolver.Resolve(ctx, core.SystemPrincipal(mapping.StoreID))
	if err != nil {
		return p.handleTopLevelFailure(ctx, event, envelope, mapping.StoreID, err)
	}

	for i, msg := range envelope.Messages {
		if itemErr := p.applyMessage(ctx, handle, envelope, msg); itemErr != nil {
			p.recordItemFailure(ctx, envelope, handle.StoreID(), "message", i, msg.ProviderMessageID, itemErr)
		}
	}
	for i, status := range envelope.Statuses {
		if itemErr := p.applyStatus(ctx, handle, status); itemErr != nil {
			p.recordItemFailure(ctx, envelope, handle.StoreID(), "status", i, status.ProviderMessageID, itemErr)
		}
	}

	return nil
}

func (p *Processor) applyMessage(ctx context.Context, handle *tenant.Handle, envelope core.Envelope, msg core.InboundMessage) error {
	if _, err := handle.Customers().UpsertByPhone(ctx, core.UpsertCustomerInput{
		Phone: msg.From,
		Name:  msg.SenderName,
	}); err != nil {
		return err
	}

	conversation, err := handle.Conversations().Upsert(ctx, core.UpsertConversationInput{
		ChannelID:     envelope.ChannelID,
		CustomerPhone: msg.From,
		CustomerName:  msg.SenderName,
		LastMessageAt: msg.Timestamp,
	})
	if err != nil {
		return err
	}

	_, created, err := handle.Messages().Append(ctx, core.AppendMessageInput{
		ConversationID:    conversation.ID,
		ProviderMessageID: msg.ProviderMessageID,
		Direction:         core.MessageDirectionInbound,
		Kind:              msg.Kind,
		Body:              msg.Body,
		Status:            core.MessageStatusReceived,
		SentAt:            msg.Timestamp,
	})
	if err != nil {
		return err
	}
	if !created {
		p.logger.Debug("duplicate message append collapsed",
			"store_id", handle.StoreID(),
			"provider_message_id", msg.ProviderMessageID,
		)
	}
	return nil
}

func (p *Processor) applyStatus(ctx context.Context, handle *tenant.Handle, status core.StatusUpdate) error {
	normalized, err := normalizeStatus(status.Status)
	if err != nil {
		return err
	}
	return handle.Messages().UpdateStatus(ctx, status.ProviderMessageID, normalized, status.Timestamp)
}

func (p *Processor) recordItemFailure(ctx context.Context, envelope core.Envelope, storeID string, itemKind string, index int, providerMessageID string, err error) {
	p.sink.Record(ctx, core.ErrorLogEntry{
		Kind:           ErrorKindItemFailed,
		ChannelID:      envelope.ChannelID,
		StoreID:        storeID,
		PayloadSummary: PayloadSummary(envelope),
		ErrorMessage:   fmt.Sprintf("%s[%d] %s: %v", itemKind, index, providerMessageID, err),
		OccurredAt:     p.now(),
	})
	p.logger.Error("webhook item failed",
		"item_kind", itemKind,
		"index", index,
		"provider_message_id", providerMessageID,
		"store_id", storeID,
		"error", err.Error(),
	)
}

// handleTopLevelFailure classifies failures that escaped attribution or
// resolution. A retryable failure earns exactly one deferred
// re-submission; the redelivered flag on the event blocks a second one.
func (p *Processor) handleTopLevelFailure(ctx context.Context, event core.InboundEvent, envelope core.Envelope, storeID string, err error) error {
	if core.IsRetryable(err) && !event.Redelivered && p.rescheduler != nil {
		p.sink.Record(ctx, core.ErrorLogEntry{
			Kind:           ErrorKindRescheduled,
			ChannelID:      envelope.ChannelID,
			StoreID:        storeID,
			PayloadSummary: PayloadSummary(envelope),
			ErrorMessage:   err.Error(),
			OccurredAt:     p.now(),
		})
		p.logger.Warn("webhook rescheduled after transient failure",
			"channel_id", envelope.ChannelID,
			"delay_ms", p.cfg.RescheduleDelay().Milliseconds(),
			"error", err.Error(),
		)
		redelivery := event
		redelivery.Redelivered = true
		if scheduleErr := p.rescheduler.Reschedule(ctx, redelivery, p.cfg.RescheduleDelay()); scheduleErr != nil {
			p.logger.Error("webhook reschedule failed", "error", scheduleErr.Error())
		}
		return err
	}

	p.sink.Record(ctx, core.ErrorLogEntry{
		Kind:           ErrorKindDropped,
		ChannelID:      envelope.ChannelID,
		StoreID:        storeID,
		PayloadSummary: PayloadSummary(envelope),
		ErrorMessage:   err.Error(),
		RawPayload:     event.Body,
		OccurredAt:     p.now(),
	})
	p.logger.Error("webhook dropped",
		"channel_id", envelope.ChannelID,
		"redelivered", event.Redelivered,
		"error", err.Error(),
	)
	return err
}
