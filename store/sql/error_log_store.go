package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
)

// ErrorLogStore is append-only and tenant-agnostic: entries for events that
// never resolved a tenant are recorded against the unknown store id.
type ErrorLogStore struct {
	exec *executor.Executor
	now  func() time.Time
}

func NewErrorLogStore(exec *executor.Executor) (*ErrorLogStore, error) {
	if exec == nil {
		return nil, fmt.Errorf("sqlstore: executor is required")
	}
	return &ErrorLogStore{exec: exec, now: time.Now}, nil
}

func (s *ErrorLogStore) Append(ctx context.Context, entry core.ErrorLogEntry) error {
	if s == nil || s.exec == nil {
		return fmt.Errorf("sqlstore: error log store is not configured")
	}
	kind := strings.TrimSpace(entry.Kind)
	if kind == "" {
		return core.NewBadInputError("sqlstore: error log kind is required", nil)
	}
	storeID := strings.TrimSpace(entry.StoreID)
	if storeID == "" {
		storeID = core.StoreIDUnknown
	}
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}

	return s.exec.Exec(ctx, "error_log.append", func(ctx context.Context, db bun.IDB) error {
		record := &errorLogRecord{
			ID:             uuid.NewString(),
			Kind:           kind,
			ChannelID:      strings.TrimSpace(entry.ChannelID),
			StoreID:        storeID,
			PayloadSummary: entry.PayloadSummary,
			ErrorMessage:   entry.ErrorMessage,
			RawPayload:     entry.RawPayload,
			OccurredAt:     occurredAt,
		}
		_, err := db.NewInsert().Model(record).Exec(ctx)
		return err
	})
}

// ListRecent exists for operational inspection and tests.
func (s *ErrorLogStore) ListRecent(ctx context.Context, limit int) ([]core.ErrorLogEntry, error) {
	if s == nil || s.exec == nil {
		return nil, fmt.Errorf("sqlstore: error log store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	records, err := executor.Execute(ctx, s.exec, "error_log.list", func(ctx context.Context, db bun.IDB) ([]*errorLogRecord, error) {
		var records []*errorLogRecord
		err := db.NewSelect().
			Model(&records).
			Order("occurred_at DESC").
			Limit(limit).
			Scan(ctx)
		return records, err
	})
	if err != nil {
		return nil, err
	}

	out := make([]core.ErrorLogEntry, 0, len(records))
	for _, record := range records {
		out = append(out, core.ErrorLogEntry{
			Kind:           record.Kind,
			ChannelID:      record.ChannelID,
			StoreID:        record.StoreID,
			PayloadSummary: record.PayloadSummary,
			ErrorMessage:   record.ErrorMessage,
			RawPayload:     record.RawPayload,
			OccurredAt:     record.OccurredAt,
		})
	}
	return out, nil
}
