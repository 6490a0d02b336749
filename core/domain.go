package core

import (
	"strings"
	"time"
)

const (
	MessageDirectionInbound  = "inbound"
	MessageDirectionOutbound = "outbound"

	MessageStatusReceived  = "received"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusCancelled = "cancelled"
)

// StoreIDUnknown is recorded on error-log entries when an event could not
// be attributed to a tenant before failing.
const StoreIDUnknown = "unknown"

// InboundEvent is the opaque provider envelope as delivered by the
// transport. It is immutable once received; Redelivered marks the single
// deferred re-submission an event may get after a retryable failure.
type InboundEvent struct {
	ProviderID  string
	Body        []byte
	ReceivedAt  time.Time
	Redelivered bool
}

// Envelope is the validated, parsed shape of an InboundEvent body.
type Envelope struct {
	Object    string
	ChannelID string
	Messages  []InboundMessage
	Statuses  []StatusUpdate
}

type InboundMessage struct {
	ProviderMessageID string
	From              string
	SenderName        string
	Kind              string
	Body              string
	Timestamp         time.Time
}

type StatusUpdate struct {
	ProviderMessageID string
	Status            string
	RecipientID       string
	Timestamp         time.Time
}

// ChannelMapping attributes an external channel identifier (the provider's
// phone-number id) to the tenant that owns it. Read-only for this core.
type ChannelMapping struct {
	ChannelID     string
	StoreID       string
	DisplayNumber string
	CreatedAt     time.Time
}

// Principal is an already-authenticated caller. StoreID is the tenant
// partition the principal is allowed to touch; tenant.Resolver rejects
// principals without a valid one.
type Principal struct {
	Subject string
	StoreID string
}

// SystemPrincipal builds the principal the ingestion pipeline acts as once
// a channel mapping has resolved the owning store.
func SystemPrincipal(storeID string) Principal {
	return Principal{
		Subject: "system:webhook",
		StoreID: strings.TrimSpace(storeID),
	}
}

type ErrorLogEntry struct {
	Kind           string
	ChannelID      string
	StoreID        string
	PayloadSummary string
	ErrorMessage   string
	RawPayload     []byte
	OccurredAt     time.Time
}

type Conversation struct {
	ID            string
	StoreID       string
	ChannelID     string
	CustomerPhone string
	CustomerName  string
	LastMessageAt time.Time
	UnreadCount   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Message struct {
	ID                string
	StoreID           string
	ConversationID    string
	ProviderMessageID string
	Direction         string
	Kind              string
	Body              string
	Status            string
	SentAt            time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Order struct {
	ID         string
	StoreID    string
	CustomerID string
	Reference  string
	Status     string
	TotalCents int64
	Currency   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Customer struct {
	ID        string
	StoreID   string
	Phone     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Notification struct {
	ID        string
	StoreID   string
	Kind      string
	Subject   string
	Body      string
	ReadAt    *time.Time
	CreatedAt time.Time
}

type UpsertConversationInput struct {
	ChannelID     string
	CustomerPhone string
	CustomerName  string
	LastMessageAt time.Time
}

type AppendMessageInput struct {
	ConversationID    string
	ProviderMessageID string
	Direction         string
	Kind              string
	Body              string
	Status            string
	SentAt            time.Time
}

type CreateOrderInput struct {
	CustomerID string
	Reference  string
	Status     string
	TotalCents int64
	Currency   string
}

type UpsertCustomerInput struct {
	Phone string
	Name  string
}

type CreateNotificationInput struct {
	Kind    string
	Subject string
	Body    string
}

type ConversationFilter struct {
	ChannelID string
	Limit     int
}
