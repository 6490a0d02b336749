package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// ChannelMappingStore resolves which tenant owns an external channel.
// Absence is fatal for the event being processed.
type ChannelMappingStore interface {
	FindByChannelID(ctx context.Context, channelID string) (ChannelMapping, error)
}

type ConversationStore interface {
	Upsert(ctx context.Context, in UpsertConversationInput) (Conversation, error)
	Get(ctx context.Context, id string) (Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]Conversation, error)
}

type MessageStore interface {
	// Append persists an inbound message keyed by its provider message id.
	// A duplicate append is a successful no-op; created reports whether a
	// new row was written.
	Append(ctx context.Context, in AppendMessageInput) (msg Message, created bool, err error)
	UpdateStatus(ctx context.Context, providerMessageID string, status string, at time.Time) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

type OrderStore interface {
	Create(ctx context.Context, in CreateOrderInput) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	UpdateStatus(ctx context.Context, id string, status string) error
}

type CustomerStore interface {
	UpsertByPhone(ctx context.Context, in UpsertCustomerInput) (Customer, error)
	Get(ctx context.Context, id string) (Customer, error)
}

type NotificationStore interface {
	Create(ctx context.Context, in CreateNotificationInput) (Notification, error)
	MarkRead(ctx context.Context, id string) error
	ListUnread(ctx context.Context, limit int) ([]Notification, error)
}

// ErrorLogStore is append-only. Entries are never updated or deleted.
type ErrorLogStore interface {
	Append(ctx context.Context, entry ErrorLogEntry) error
}

// ErrorSink records processing failures best-effort: implementations must
// swallow their own persistence errors so an audit outage can never cascade
// into an ingestion failure.
type ErrorSink interface {
	Record(ctx context.Context, entry ErrorLogEntry)
}

// TenantStores is the storage capability bound to exactly one store id.
// Only tenant.Resolver constructs values of this contract, and none of the
// store methods accept a caller-supplied store id.
type TenantStores interface {
	StoreID() string
	Conversations() ConversationStore
	Messages() MessageStore
	Orders() OrderStore
	Customers() CustomerStore
	Notifications() NotificationStore
}

type TenantStoreProvider interface {
	TenantStores(storeID string) (TenantStores, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

// JobNackDisposition names the explicit outcome of a nacked delivery.
// Every nack states what happens next; there is no implicit requeue.
type JobNackDisposition string

const (
	JobNackRetry      JobNackDisposition = "retry"
	JobNackDeadLetter JobNackDisposition = "dead_letter"
	JobNackFailed     JobNackDisposition = "failed"
)

type JobNackOptions struct {
	Disposition JobNackDisposition
	Delay       time.Duration
	Reason      string
}

// JobEnqueueReceipt carries queue acceptance metadata for a dispatched job.
type JobEnqueueReceipt struct {
	DispatchID string
	EnqueuedAt time.Time
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) (JobEnqueueReceipt, error)
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
