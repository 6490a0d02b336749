package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
)

// ChannelMappingStore resolves channel ownership through the retrying
// executor so transient database trouble during attribution gets the same
// bounded-retry treatment as the rest of the ingest path.
type ChannelMappingStore struct {
	exec *executor.Executor
}

func NewChannelMappingStore(exec *executor.Executor) (*ChannelMappingStore, error) {
	if exec == nil {
		return nil, fmt.Errorf("sqlstore: executor is required")
	}
	return &ChannelMappingStore{exec: exec}, nil
}

func (s *ChannelMappingStore) FindByChannelID(ctx context.Context, channelID string) (core.ChannelMapping, error) {
	if s == nil || s.exec == nil {
		return core.ChannelMapping{}, fmt.Errorf("sqlstore: channel mapping store is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return core.ChannelMapping{}, core.NewBadInputError("sqlstore: channel id is required", nil)
	}

	record, err := executor.Execute(ctx, s.exec, "channel_mapping.find", func(ctx context.Context, db bun.IDB) (*channelMappingRecord, error) {
		record := new(channelMappingRecord)
		err := db.NewSelect().
			Model(record).
			Where("?TableAlias.channel_id = ?", channelID).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewTenantNotFoundError(channelID)
		}
		if err != nil {
			return nil, err
		}
		return record, nil
	})
	if err != nil {
		return core.ChannelMapping{}, err
	}
	return record.toDomain(), nil
}

// Upsert registers or refreshes a channel's owning store. Attribution data
// is administrative; it does not pass through the webhook pipeline.
func (s *ChannelMappingStore) Upsert(ctx context.Context, mapping core.ChannelMapping) error {
	if s == nil || s.exec == nil {
		return fmt.Errorf("sqlstore: channel mapping store is not configured")
	}
	channelID := strings.TrimSpace(mapping.ChannelID)
	storeID := strings.TrimSpace(mapping.StoreID)
	if channelID == "" || storeID == "" {
		return core.NewBadInputError("sqlstore: channel id and store id are required", nil)
	}

	return s.exec.Exec(ctx, "channel_mapping.upsert", func(ctx context.Context, db bun.IDB) error {
		record := &channelMappingRecord{
			ChannelID:     channelID,
			StoreID:       storeID,
			DisplayNumber: strings.TrimSpace(mapping.DisplayNumber),
		}
		_, err := db.NewInsert().
			Model(record).
			On("CONFLICT (channel_id) DO UPDATE").
			Set("store_id = EXCLUDED.store_id").
			Set("display_number = EXCLUDED.display_number").
			Exec(ctx)
		return err
	})
}
