package query

import (
	"context"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
)

type HealthReader interface {
	Health(ctx context.Context) executor.HealthReport
}

type ChannelReader interface {
	FindStoreForChannel(ctx context.Context, channelID string) (core.ChannelMapping, error)
}

// ConversationReader reads tenant-scoped conversation data. The store id
// on the message selects the tenant; implementations resolve a fresh
// handle per call.
type ConversationReader interface {
	ListConversations(ctx context.Context, storeID string, filter core.ConversationFilter) ([]core.Conversation, error)
	ListConversationMessages(ctx context.Context, storeID string, conversationID string, limit int) ([]core.Message, error)
}

type GetIngestHealthQuery struct {
	reader HealthReader
}

func NewGetIngestHealthQuery(reader HealthReader) *GetIngestHealthQuery {
	return &GetIngestHealthQuery{reader: reader}
}

func (q *GetIngestHealthQuery) Query(ctx context.Context, _ GetIngestHealthMessage) (executor.HealthReport, error) {
	if q == nil || q.reader == nil {
		return executor.HealthReport{}, queryDependencyError("query: health reader is required")
	}
	return q.reader.Health(ctx), nil
}

type FindStoreForChannelQuery struct {
	reader ChannelReader
}

func NewFindStoreForChannelQuery(reader ChannelReader) *FindStoreForChannelQuery {
	return &FindStoreForChannelQuery{reader: reader}
}

func (q *FindStoreForChannelQuery) Query(ctx context.Context, msg FindStoreForChannelMessage) (core.ChannelMapping, error) {
	if q == nil || q.reader == nil {
		return core.ChannelMapping{}, queryDependencyError("query: channel reader is required")
	}
	return q.reader.FindStoreForChannel(ctx, msg.ChannelID)
}

type ListConversationMessagesQuery struct {
	reader ConversationReader
}

func NewListConversationMessagesQuery(reader ConversationReader) *ListConversationMessagesQuery {
	return &ListConversationMessagesQuery{reader: reader}
}

func (q *ListConversationMessagesQuery) Query(ctx context.Context, msg ListConversationMessagesMessage) ([]core.Message, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: conversation reader is required")
	}
	return q.reader.ListConversationMessages(ctx, msg.StoreID, msg.ConversationID, msg.Limit)
}

type ListConversationsQuery struct {
	reader ConversationReader
}

func NewListConversationsQuery(reader ConversationReader) *ListConversationsQuery {
	return &ListConversationsQuery{reader: reader}
}

func (q *ListConversationsQuery) Query(ctx context.Context, msg ListConversationsMessage) ([]core.Conversation, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: conversation reader is required")
	}
	return q.reader.ListConversations(ctx, msg.StoreID, core.ConversationFilter{
		ChannelID: msg.ChannelID,
		Limit:     msg.Limit,
	})
}
