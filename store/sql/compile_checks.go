package sqlstore

import "github.com/goliatone/go-inbox/core"

var (
	_ core.ChannelMappingStore = (*ChannelMappingStore)(nil)
	_ core.ChannelMappingStore = (*CachedChannelMappingStore)(nil)
	_ core.ConversationStore   = (*ConversationStore)(nil)
	_ core.MessageStore        = (*MessageStore)(nil)
	_ core.OrderStore          = (*OrderStore)(nil)
	_ core.CustomerStore       = (*CustomerStore)(nil)
	_ core.NotificationStore   = (*NotificationStore)(nil)
	_ core.ErrorLogStore       = (*ErrorLogStore)(nil)
	_ core.TenantStores        = (*tenantStores)(nil)
	_ core.TenantStoreProvider = (*RepositoryFactory)(nil)
)
