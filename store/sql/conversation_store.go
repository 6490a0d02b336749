package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
)

// ConversationStore is bound to a single store id. Every query it issues is
// scoped to that partition; callers cannot reach another tenant's rows
// through it.
type ConversationStore struct {
	exec    *executor.Executor
	repo    repository.Repository[*conversationRecord]
	storeID string
	now     func() time.Time
}

// Upsert finds or creates the conversation for a channel and customer
// phone pair. Each call represents one inbound message: the unread counter
// advances and the last-message timestamp moves forward.
func (s *ConversationStore) Upsert(ctx context.Context, in core.UpsertConversationInput) (core.Conversation, error) {
	if s == nil || s.exec == nil {
		return core.Conversation{}, fmt.Errorf("sqlstore: conversation store is not configured")
	}
	channelID := strings.TrimSpace(in.ChannelID)
	phone := strings.TrimSpace(in.CustomerPhone)
	if channelID == "" {
		return core.Conversation{}, core.NewBadInputError("sqlstore: channel id is required", nil)
	}
	if phone == "" {
		return core.Conversation{}, core.NewBadInputError("sqlstore: customer phone is required", nil)
	}

	lastMessageAt := in.LastMessageAt
	if lastMessageAt.IsZero() {
		lastMessageAt = s.now()
	}

	record, err := executor.ExecuteTx(ctx, s.exec, "conversation.upsert", func(ctx context.Context, tx bun.Tx) (*conversationRecord, error) {
		// Insert-or-nothing first: two concurrent upserts for a brand new
		// partition key must not race a select into a unique violation.
		created := &conversationRecord{
			ID:            uuid.NewString(),
			StoreID:       s.storeID,
			ChannelID:     channelID,
			CustomerPhone: phone,
			CustomerName:  strings.TrimSpace(in.CustomerName),
			LastMessageAt: lastMessageAt,
			UnreadCount:   1,
			CreatedAt:     s.now(),
			UpdatedAt:     s.now(),
		}
		res, err := tx.NewInsert().
			Model(created).
			On("CONFLICT (store_id, channel_id, customer_phone) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return nil, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			return created, nil
		}

		existing := new(conversationRecord)
		if err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.store_id = ?", s.storeID).
			Where("?TableAlias.channel_id = ?", channelID).
			Where("?TableAlias.customer_phone = ?", phone).
			Limit(1).
			Scan(ctx); err != nil {
			return nil, err
		}

		if name := strings.TrimSpace(in.CustomerName); name != "" {
			existing.CustomerName = name
		}
		if lastMessageAt.After(existing.LastMessageAt) {
			existing.LastMessageAt = lastMessageAt
		}
		existing.UnreadCount++
		existing.UpdatedAt = s.now()

		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Column("customer_name", "last_message_at", "unread_count", "updated_at").
			Where("?TableAlias.id = ?", existing.ID).
			Where("?TableAlias.store_id = ?", s.storeID).
			Exec(ctx); updateErr != nil {
			return nil, updateErr
		}
		return existing, nil
	})
	if err != nil {
		return core.Conversation{}, err
	}
	return record.toDomain(), nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (core.Conversation, error) {
	if s == nil || s.repo == nil {
		return core.Conversation{}, fmt.Errorf("sqlstore: conversation store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Conversation{}, core.NewBadInputError("sqlstore: conversation id is required", nil)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectBy("store_id", "=", s.storeID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Conversation{}, err
	}
	if len(records) == 0 {
		return core.Conversation{}, core.NewNotFoundError("sqlstore: conversation not found")
	}
	return records[0].toDomain(), nil
}

func (s *ConversationStore) List(ctx context.Context, filter core.ConversationFilter) ([]core.Conversation, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: conversation store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("store_id", "=", s.storeID),
		repository.OrderBy("last_message_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if channelID := strings.TrimSpace(filter.ChannelID); channelID != "" {
		criteria = append(criteria, repository.SelectBy("channel_id", "=", channelID))
	}

	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Conversation, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
