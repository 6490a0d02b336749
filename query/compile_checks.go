package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
)

var (
	_ gocmd.Querier[GetIngestHealthMessage, executor.HealthReport]    = (*GetIngestHealthQuery)(nil)
	_ gocmd.Querier[FindStoreForChannelMessage, core.ChannelMapping]  = (*FindStoreForChannelQuery)(nil)
	_ gocmd.Querier[ListConversationMessagesMessage, []core.Message]  = (*ListConversationMessagesQuery)(nil)
	_ gocmd.Querier[ListConversationsMessage, []core.Conversation]    = (*ListConversationsQuery)(nil)
)
