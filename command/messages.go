package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-inbox/core"
)

const (
	TypeSubmitWebhook        = "inbox.command.webhook.submit"
	TypeMarkNotificationRead = "inbox.command.notification.mark_read"
	TypeUpsertChannelMapping = "inbox.command.channel_mapping.upsert"
)

type SubmitWebhookMessage struct {
	Event core.InboundEvent
}

func (SubmitWebhookMessage) Type() string { return TypeSubmitWebhook }

func (m SubmitWebhookMessage) Validate() error {
	if len(m.Event.Body) == 0 {
		return fmt.Errorf("command: webhook event body is required")
	}
	return nil
}

type MarkNotificationReadMessage struct {
	StoreID        string
	NotificationID string
}

func (MarkNotificationReadMessage) Type() string { return TypeMarkNotificationRead }

func (m MarkNotificationReadMessage) Validate() error {
	if strings.TrimSpace(m.StoreID) == "" {
		return fmt.Errorf("command: store id is required")
	}
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("command: notification id is required")
	}
	return nil
}

type UpsertChannelMappingMessage struct {
	Mapping core.ChannelMapping
}

func (UpsertChannelMappingMessage) Type() string { return TypeUpsertChannelMapping }

func (m UpsertChannelMappingMessage) Validate() error {
	if strings.TrimSpace(m.Mapping.ChannelID) == "" {
		return fmt.Errorf("command: channel id is required")
	}
	if strings.TrimSpace(m.Mapping.StoreID) == "" {
		return fmt.Errorf("command: store id is required")
	}
	return nil
}
