package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitWebhookMessage]        = (*SubmitWebhookCommand)(nil)
	_ gocmd.Commander[MarkNotificationReadMessage] = (*MarkNotificationReadCommand)(nil)
	_ gocmd.Commander[UpsertChannelMappingMessage] = (*UpsertChannelMappingCommand)(nil)
)
