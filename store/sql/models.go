package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type channelMappingRecord struct {
	bun.BaseModel `bun:"table:inbox_channel_mappings,alias:icm"`

	ChannelID     string    `bun:"channel_id,pk"`
	StoreID       string    `bun:"store_id,notnull"`
	DisplayNumber string    `bun:"display_number"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type conversationRecord struct {
	bun.BaseModel `bun:"table:inbox_conversations,alias:ic"`

	ID            string    `bun:"id,pk"`
	StoreID       string    `bun:"store_id,notnull"`
	ChannelID     string    `bun:"channel_id,notnull"`
	CustomerPhone string    `bun:"customer_phone,notnull"`
	CustomerName  string    `bun:"customer_name"`
	LastMessageAt time.Time `bun:"last_message_at,nullzero"`
	UnreadCount   int       `bun:"unread_count,notnull,default:0"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type messageRecord struct {
	bun.BaseModel `bun:"table:inbox_messages,alias:im"`

	ID                string    `bun:"id,pk"`
	StoreID           string    `bun:"store_id,notnull"`
	ConversationID    string    `bun:"conversation_id,notnull"`
	ProviderMessageID string    `bun:"provider_message_id,notnull"`
	Direction         string    `bun:"direction,notnull"`
	Kind              string    `bun:"kind,notnull"`
	Body              string    `bun:"body"`
	Status            string    `bun:"status,notnull"`
	SentAt            time.Time `bun:"sent_at,nullzero"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderRecord struct {
	bun.BaseModel `bun:"table:inbox_orders,alias:io"`

	ID         string    `bun:"id,pk"`
	StoreID    string    `bun:"store_id,notnull"`
	CustomerID string    `bun:"customer_id"`
	Reference  string    `bun:"reference,notnull"`
	Status     string    `bun:"status,notnull"`
	TotalCents int64     `bun:"total_cents,notnull,default:0"`
	Currency   string    `bun:"currency,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type customerRecord struct {
	bun.BaseModel `bun:"table:inbox_customers,alias:icu"`

	ID        string    `bun:"id,pk"`
	StoreID   string    `bun:"store_id,notnull"`
	Phone     string    `bun:"phone,notnull"`
	Name      string    `bun:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type notificationRecord struct {
	bun.BaseModel `bun:"table:inbox_notifications,alias:in"`

	ID        string     `bun:"id,pk"`
	StoreID   string     `bun:"store_id,notnull"`
	Kind      string     `bun:"kind,notnull"`
	Subject   string     `bun:"subject,notnull"`
	Body      string     `bun:"body"`
	ReadAt    *time.Time `bun:"read_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type errorLogRecord struct {
	bun.BaseModel `bun:"table:inbox_error_logs,alias:iel"`

	ID             string    `bun:"id,pk"`
	Kind           string    `bun:"kind,notnull"`
	ChannelID      string    `bun:"channel_id"`
	StoreID        string    `bun:"store_id,notnull"`
	PayloadSummary string    `bun:"payload_summary"`
	ErrorMessage   string    `bun:"error_message,notnull"`
	RawPayload     []byte    `bun:"raw_payload"`
	OccurredAt     time.Time `bun:"occurred_at,nullzero,notnull,default:current_timestamp"`
}
