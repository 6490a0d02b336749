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

// NotificationStore is bound to a single store id.
type NotificationStore struct {
	exec    *executor.Executor
	repo    repository.Repository[*notificationRecord]
	storeID string
	now     func() time.Time
}

func (s *NotificationStore) Create(ctx context.Context, in core.CreateNotificationInput) (core.Notification, error) {
	if s == nil || s.repo == nil {
		return core.Notification{}, fmt.Errorf("sqlstore: notification store is not configured")
	}
	kind := strings.TrimSpace(in.Kind)
	subject := strings.TrimSpace(in.Subject)
	if kind == "" {
		return core.Notification{}, core.NewBadInputError("sqlstore: notification kind is required", nil)
	}
	if subject == "" {
		return core.Notification{}, core.NewBadInputError("sqlstore: notification subject is required", nil)
	}

	record := &notificationRecord{
		ID:        uuid.NewString(),
		StoreID:   s.storeID,
		Kind:      kind,
		Subject:   subject,
		Body:      in.Body,
		CreatedAt: s.now(),
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Notification{}, err
	}
	return created.toDomain(), nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	if s == nil || s.exec == nil {
		return fmt.Errorf("sqlstore: notification store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewBadInputError("sqlstore: notification id is required", nil)
	}

	return s.exec.Exec(ctx, "notification.mark_read", func(ctx context.Context, db bun.IDB) error {
		res, err := db.NewUpdate().
			Model((*notificationRecord)(nil)).
			Set("read_at = ?", s.now()).
			Where("?TableAlias.id = ?", id).
			Where("?TableAlias.store_id = ?", s.storeID).
			Where("?TableAlias.read_at IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return core.NewNotFoundError("sqlstore: unread notification not found")
		}
		return nil
	})
}

func (s *NotificationStore) ListUnread(ctx context.Context, limit int) ([]core.Notification, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: notification store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("store_id", "=", s.storeID),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.read_at IS NULL")
		}),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Notification, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
