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

// OrderStore is bound to a single store id.
type OrderStore struct {
	exec    *executor.Executor
	repo    repository.Repository[*orderRecord]
	storeID string
	now     func() time.Time
}

func (s *OrderStore) Create(ctx context.Context, in core.CreateOrderInput) (core.Order, error) {
	if s == nil || s.exec == nil || s.repo == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		return core.Order{}, core.NewBadInputError("sqlstore: order reference is required", nil)
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = core.OrderStatusPending
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	record, err := executor.ExecuteTx(ctx, s.exec, "order.create", func(ctx context.Context, tx bun.Tx) (*orderRecord, error) {
		record := &orderRecord{
			ID:         uuid.NewString(),
			StoreID:    s.storeID,
			CustomerID: strings.TrimSpace(in.CustomerID),
			Reference:  reference,
			Status:     status,
			TotalCents: in.TotalCents,
			Currency:   currency,
			CreatedAt:  s.now(),
			UpdatedAt:  s.now(),
		}
		return s.repo.CreateTx(ctx, tx, record)
	})
	if err != nil {
		return core.Order{}, err
	}
	return record.toDomain(), nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (core.Order, error) {
	if s == nil || s.repo == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Order{}, core.NewBadInputError("sqlstore: order id is required", nil)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectBy("store_id", "=", s.storeID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Order{}, err
	}
	if len(records) == 0 {
		return core.Order{}, core.NewNotFoundError("sqlstore: order not found")
	}
	return records[0].toDomain(), nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status string) error {
	if s == nil || s.exec == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	id = strings.TrimSpace(id)
	status = strings.TrimSpace(status)
	if id == "" {
		return core.NewBadInputError("sqlstore: order id is required", nil)
	}
	if status == "" {
		return core.NewBadInputError("sqlstore: order status is required", nil)
	}

	return s.exec.Exec(ctx, "order.update_status", func(ctx context.Context, db bun.IDB) error {
		res, err := db.NewUpdate().
			Model((*orderRecord)(nil)).
			Set("status = ?", status).
			Set("updated_at = ?", s.now()).
			Where("?TableAlias.id = ?", id).
			Where("?TableAlias.store_id = ?", s.storeID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return core.NewNotFoundError("sqlstore: order not found")
		}
		return nil
	})
}
