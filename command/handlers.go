package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inbox/core"
)

// WebhookSubmitter is the dedup coordinator's submit surface.
type WebhookSubmitter interface {
	Submit(ctx context.Context, event core.InboundEvent) error
}

type NotificationMutator interface {
	MarkNotificationRead(ctx context.Context, storeID string, notificationID string) error
}

type ChannelMappingMutator interface {
	Upsert(ctx context.Context, mapping core.ChannelMapping) error
}

type SubmitWebhookCommand struct {
	submitter WebhookSubmitter
}

func NewSubmitWebhookCommand(submitter WebhookSubmitter) *SubmitWebhookCommand {
	return &SubmitWebhookCommand{submitter: submitter}
}

func (c *SubmitWebhookCommand) Execute(ctx context.Context, msg SubmitWebhookMessage) error {
	if c == nil || c.submitter == nil {
		return commandDependencyError("command: webhook submitter is required")
	}
	return c.submitter.Submit(ctx, msg.Event)
}

type MarkNotificationReadCommand struct {
	service NotificationMutator
}

func NewMarkNotificationReadCommand(service NotificationMutator) *MarkNotificationReadCommand {
	return &MarkNotificationReadCommand{service: service}
}

func (c *MarkNotificationReadCommand) Execute(ctx context.Context, msg MarkNotificationReadMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: notification service is required")
	}
	return c.service.MarkNotificationRead(ctx, msg.StoreID, msg.NotificationID)
}

type UpsertChannelMappingCommand struct {
	store ChannelMappingMutator
}

func NewUpsertChannelMappingCommand(store ChannelMappingMutator) *UpsertChannelMappingCommand {
	return &UpsertChannelMappingCommand{store: store}
}

func (c *UpsertChannelMappingCommand) Execute(ctx context.Context, msg UpsertChannelMappingMessage) error {
	if c == nil || c.store == nil {
		return commandDependencyError("command: channel mapping store is required")
	}
	if err := c.store.Upsert(ctx, msg.Mapping); err != nil {
		return err
	}
	storeResult(ctx, msg.Mapping)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
