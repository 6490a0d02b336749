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

// CustomerStore is bound to a single store id. Customers are keyed by
// phone number within the tenant partition.
type CustomerStore struct {
	exec    *executor.Executor
	repo    repository.Repository[*customerRecord]
	storeID string
	now     func() time.Time
}

func (s *CustomerStore) UpsertByPhone(ctx context.Context, in core.UpsertCustomerInput) (core.Customer, error) {
	if s == nil || s.exec == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return core.Customer{}, core.NewBadInputError("sqlstore: customer phone is required", nil)
	}

	record, err := executor.ExecuteTx(ctx, s.exec, "customer.upsert", func(ctx context.Context, tx bun.Tx) (*customerRecord, error) {
		// Insert-or-nothing first so concurrent first-contact events for
		// the same phone cannot race into a unique violation.
		created := &customerRecord{
			ID:        uuid.NewString(),
			StoreID:   s.storeID,
			Phone:     phone,
			Name:      strings.TrimSpace(in.Name),
			CreatedAt: s.now(),
			UpdatedAt: s.now(),
		}
		res, err := tx.NewInsert().
			Model(created).
			On("CONFLICT (store_id, phone) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return nil, err
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			return created, nil
		}

		existing := new(customerRecord)
		if err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.store_id = ?", s.storeID).
			Where("?TableAlias.phone = ?", phone).
			Limit(1).
			Scan(ctx); err != nil {
			return nil, err
		}

		if name := strings.TrimSpace(in.Name); name != "" && name != existing.Name {
			existing.Name = name
			existing.UpdatedAt = s.now()
			if _, updateErr := tx.NewUpdate().
				Model(existing).
				Column("name", "updated_at").
				Where("?TableAlias.id = ?", existing.ID).
				Where("?TableAlias.store_id = ?", s.storeID).
				Exec(ctx); updateErr != nil {
				return nil, updateErr
			}
		}
		return existing, nil
	})
	if err != nil {
		return core.Customer{}, err
	}
	return record.toDomain(), nil
}

func (s *CustomerStore) Get(ctx context.Context, id string) (core.Customer, error) {
	if s == nil || s.repo == nil {
		return core.Customer{}, fmt.Errorf("sqlstore: customer store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Customer{}, core.NewBadInputError("sqlstore: customer id is required", nil)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", id),
		repository.SelectBy("store_id", "=", s.storeID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Customer{}, err
	}
	if len(records) == 0 {
		return core.Customer{}, core.NewNotFoundError("sqlstore: customer not found")
	}
	return records[0].toDomain(), nil
}
