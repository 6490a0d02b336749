package tenant

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inbox/core"
)

// Resolver turns a principal into a tenant storage handle. The handle's
// stores are already bound to the principal's store id; nothing reachable
// through it accepts a caller-supplied tenant.
type Resolver struct {
	provider core.TenantStoreProvider
	logger   core.Logger
}

func NewResolver(provider core.TenantStoreProvider, logger core.Logger) (*Resolver, error) {
	if provider == nil {
		return nil, fmt.Errorf("tenant: store provider is required")
	}
	return &Resolver{
		provider: provider,
		logger:   glog.Ensure(logger),
	}, nil
}

func (r *Resolver) Resolve(ctx context.Context, principal core.Principal) (*Handle, error) {
	if r == nil || r.provider == nil {
		return nil, fmt.Errorf("tenant: resolver is not configured")
	}
	storeID := strings.TrimSpace(principal.StoreID)
	if storeID == "" {
		return nil, core.NewAuthorizationError("tenant: principal has no store binding", map[string]any{
			"subject": strings.TrimSpace(principal.Subject),
		})
	}

	stores, err := r.provider.TenantStores(storeID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("tenant resolved",
		"subject", principal.Subject,
		"store_id", storeID,
	)
	return &Handle{stores: stores}, nil
}

// Handle is the tenant-scoped storage surface for one resolution. Handles
// are single-use values; callers resolve again for each unit of work.
type Handle struct {
	stores core.TenantStores
}

func (h *Handle) StoreID() string {
	if h == nil || h.stores == nil {
		return ""
	}
	return h.stores.StoreID()
}

func (h *Handle) Conversations() core.ConversationStore {
	if h == nil || h.stores == nil {
		return nil
	}
	return h.stores.Conversations()
}

func (h *Handle) Messages() core.MessageStore {
	if h == nil || h.stores == nil {
		return nil
	}
	return h.stores.Messages()
}

func (h *Handle) Orders() core.OrderStore {
	if h == nil || h.stores == nil {
		return nil
	}
	return h.stores.Orders()
}

func (h *Handle) Customers() core.CustomerStore {
	if h == nil || h.stores == nil {
		return nil
	}
	return h.stores.Customers()
}

func (h *Handle) Notifications() core.NotificationStore {
	if h == nil || h.stores == nil {
		return nil
	}
	return h.stores.Notifications()
}
