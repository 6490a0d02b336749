package tenant

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inbox/core"
)

// MappingService answers which store owns an external channel. It sits in
// front of the channel mapping store so callers get consistent validation
// and logging whether the backing lookup is cached or not.
type MappingService struct {
	mappings core.ChannelMappingStore
	logger   core.Logger
}

func NewMappingService(mappings core.ChannelMappingStore, logger core.Logger) (*MappingService, error) {
	if mappings == nil {
		return nil, fmt.Errorf("tenant: channel mapping store is required")
	}
	return &MappingService{
		mappings: mappings,
		logger:   glog.Ensure(logger),
	}, nil
}

// FindStoreForChannel resolves channel ownership. An unmapped channel is a
// tenant-not-found failure, fatal for the event that triggered the lookup.
func (s *MappingService) FindStoreForChannel(ctx context.Context, channelID string) (core.ChannelMapping, error) {
	if s == nil || s.mappings == nil {
		return core.ChannelMapping{}, fmt.Errorf("tenant: mapping service is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return core.ChannelMapping{}, core.NewBadInputError("tenant: channel id is required", nil)
	}

	mapping, err := s.mappings.FindByChannelID(ctx, channelID)
	if err != nil {
		if core.IsTenantNotFound(err) {
			s.logger.Warn("channel has no owning store", "channel_id", channelID)
		}
		return core.ChannelMapping{}, err
	}
	return mapping, nil
}
