package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetIngestHealth          = "inbox.query.ingest.health"
	TypeListConversationMessages = "inbox.query.conversation.messages"
	TypeFindStoreForChannel      = "inbox.query.channel.store"
	TypeListConversations        = "inbox.query.conversation.list"
)

type GetIngestHealthMessage struct{}

func (GetIngestHealthMessage) Type() string { return TypeGetIngestHealth }

func (GetIngestHealthMessage) Validate() error { return nil }

type ListConversationMessagesMessage struct {
	StoreID        string
	ConversationID string
	Limit          int
}

func (ListConversationMessagesMessage) Type() string { return TypeListConversationMessages }

func (m ListConversationMessagesMessage) Validate() error {
	if strings.TrimSpace(m.StoreID) == "" {
		return fmt.Errorf("query: store id is required")
	}
	if strings.TrimSpace(m.ConversationID) == "" {
		return fmt.Errorf("query: conversation id is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}

type FindStoreForChannelMessage struct {
	ChannelID string
}

func (FindStoreForChannelMessage) Type() string { return TypeFindStoreForChannel }

func (m FindStoreForChannelMessage) Validate() error {
	if strings.TrimSpace(m.ChannelID) == "" {
		return fmt.Errorf("query: channel id is required")
	}
	return nil
}

type ListConversationsMessage struct {
	StoreID   string
	ChannelID string
	Limit     int
}

func (ListConversationsMessage) Type() string { return TypeListConversations }

func (m ListConversationsMessage) Validate() error {
	if strings.TrimSpace(m.StoreID) == "" {
		return fmt.Errorf("query: store id is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}
