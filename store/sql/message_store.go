package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
)

// MessageStore is bound to a single store id.
type MessageStore struct {
	exec    *executor.Executor
	repo    repository.Repository[*messageRecord]
	storeID string
	now     func() time.Time
}

// Append writes an inbound message keyed by its provider message id. The
// unique constraint on (store_id, provider_message_id) makes a duplicate
// append a successful no-op that returns the already stored row.
func (s *MessageStore) Append(ctx context.Context, in core.AppendMessageInput) (core.Message, bool, error) {
	if s == nil || s.exec == nil {
		return core.Message{}, false, fmt.Errorf("sqlstore: message store is not configured")
	}
	conversationID := strings.TrimSpace(in.ConversationID)
	providerMessageID := strings.TrimSpace(in.ProviderMessageID)
	if conversationID == "" {
		return core.Message{}, false, core.NewBadInputError("sqlstore: conversation id is required", nil)
	}
	if providerMessageID == "" {
		return core.Message{}, false, core.NewBadInputError("sqlstore: provider message id is required", nil)
	}

	direction := strings.TrimSpace(in.Direction)
	if direction == "" {
		direction = core.MessageDirectionInbound
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = core.MessageStatusReceived
	}
	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}

	type appendResult struct {
		record  *messageRecord
		created bool
	}

	result, err := executor.ExecuteTx(ctx, s.exec, "message.append", func(ctx context.Context, tx bun.Tx) (appendResult, error) {
		record := &messageRecord{
			ID:                uuid.NewString(),
			StoreID:           s.storeID,
			ConversationID:    conversationID,
			ProviderMessageID: providerMessageID,
			Direction:         direction,
			Kind:              strings.TrimSpace(in.Kind),
			Body:              in.Body,
			Status:            status,
			SentAt:            sentAt,
			CreatedAt:         s.now(),
			UpdatedAt:         s.now(),
		}
		res, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (store_id, provider_message_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return appendResult{}, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			return appendResult{record: record, created: true}, nil
		}

		existing := new(messageRecord)
		err = tx.NewSelect().
			Model(existing).
			Where("?TableAlias.store_id = ?", s.storeID).
			Where("?TableAlias.provider_message_id = ?", providerMessageID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return appendResult{}, err
		}
		return appendResult{record: existing, created: false}, nil
	})
	if err != nil {
		return core.Message{}, false, err
	}
	return result.record.toDomain(), result.created, nil
}

// UpdateStatus advances the delivery status of a previously stored
// outbound or inbound message. Unknown provider message ids are reported
// as not found so callers can treat the update as an item-level failure.
func (s *MessageStore) UpdateStatus(ctx context.Context, providerMessageID string, status string, at time.Time) error {
	if s == nil || s.exec == nil {
		return fmt.Errorf("sqlstore: message store is not configured")
	}
	providerMessageID = strings.TrimSpace(providerMessageID)
	status = strings.TrimSpace(status)
	if providerMessageID == "" {
		return core.NewBadInputError("sqlstore: provider message id is required", nil)
	}
	if status == "" {
		return core.NewBadInputError("sqlstore: status is required", nil)
	}
	if at.IsZero() {
		at = s.now()
	}

	return s.exec.Exec(ctx, "message.update_status", func(ctx context.Context, db bun.IDB) error {
		res, err := db.NewUpdate().
			Model((*messageRecord)(nil)).
			Set("status = ?", status).
			Set("updated_at = ?", at).
			Where("?TableAlias.store_id = ?", s.storeID).
			Where("?TableAlias.provider_message_id = ?", providerMessageID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if affected == 0 {
			return core.NewNotFoundError("sqlstore: message not found for status update")
		}
		return nil
	})
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: message store is not configured")
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, core.NewBadInputError("sqlstore: conversation id is required", nil)
	}
	if limit <= 0 {
		limit = 100
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("store_id", "=", s.storeID),
		repository.SelectBy("conversation_id", "=", conversationID),
		repository.OrderBy("sent_at ASC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
