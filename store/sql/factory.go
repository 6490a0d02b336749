package sqlstore

import (
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
)

// RepositoryFactory owns the shared database handle and executor and hands
// out tenant-scoped store bundles. The cross-tenant stores (channel
// mappings, error log) are built once; tenant bundles are cheap and built
// per resolution so no tenant handle outlives its request.
type RepositoryFactory struct {
	db   *bun.DB
	exec *executor.Executor

	channelMappingStore *ChannelMappingStore
	errorLogStore       *ErrorLogStore

	conversationRepo repository.Repository[*conversationRecord]
	messageRepo      repository.Repository[*messageRecord]
	orderRepo        repository.Repository[*orderRecord]
	customerRepo     repository.Repository[*customerRecord]
	notificationRepo repository.Repository[*notificationRecord]

	now func() time.Time
}

func NewRepositoryFactory(persistenceClient any, exec *executor.Executor) (*RepositoryFactory, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("sqlstore: executor is required")
	}
	factory := &RepositoryFactory{
		db:   db,
		exec: exec,
		now:  time.Now,
	}
	if err := factory.initStores(); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) initStores() error {
	conversationRepo := repository.NewRepository[*conversationRecord](f.db, conversationHandlers())
	if validator, ok := conversationRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid conversation repository wiring: %w", err)
		}
	}
	messageRepo := repository.NewRepository[*messageRecord](f.db, messageHandlers())
	if validator, ok := messageRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}
	orderRepo := repository.NewRepository[*orderRecord](f.db, orderHandlers())
	if validator, ok := orderRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	customerRepo := repository.NewRepository[*customerRecord](f.db, customerHandlers())
	if validator, ok := customerRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid customer repository wiring: %w", err)
		}
	}
	notificationRepo := repository.NewRepository[*notificationRecord](f.db, notificationHandlers())
	if validator, ok := notificationRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid notification repository wiring: %w", err)
		}
	}

	f.conversationRepo = conversationRepo
	f.messageRepo = messageRepo
	f.orderRepo = orderRepo
	f.customerRepo = customerRepo
	f.notificationRepo = notificationRepo

	channelMappingStore, err := NewChannelMappingStore(f.exec)
	if err != nil {
		return err
	}
	f.channelMappingStore = channelMappingStore

	errorLogStore, err := NewErrorLogStore(f.exec)
	if err != nil {
		return err
	}
	f.errorLogStore = errorLogStore

	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) Executor() *executor.Executor {
	if f == nil {
		return nil
	}
	return f.exec
}

func (f *RepositoryFactory) ChannelMappingStore() core.ChannelMappingStore {
	if f == nil {
		return nil
	}
	return f.channelMappingStore
}

func (f *RepositoryFactory) ErrorLogStore() core.ErrorLogStore {
	if f == nil {
		return nil
	}
	return f.errorLogStore
}

// TenantStores binds every tenant-scoped store to the given store id.
func (f *RepositoryFactory) TenantStores(storeID string) (core.TenantStores, error) {
	if f == nil || f.db == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is not configured")
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, core.NewAuthorizationError("sqlstore: store id is required for tenant stores", nil)
	}

	return &tenantStores{
		storeID: storeID,
		conversations: &ConversationStore{
			exec:    f.exec,
			repo:    f.conversationRepo,
			storeID: storeID,
			now:     f.now,
		},
		messages: &MessageStore{
			exec:    f.exec,
			repo:    f.messageRepo,
			storeID: storeID,
			now:     f.now,
		},
		orders: &OrderStore{
			exec:    f.exec,
			repo:    f.orderRepo,
			storeID: storeID,
			now:     f.now,
		},
		customers: &CustomerStore{
			exec:    f.exec,
			repo:    f.customerRepo,
			storeID: storeID,
			now:     f.now,
		},
		notifications: &NotificationStore{
			exec:    f.exec,
			repo:    f.notificationRepo,
			storeID: storeID,
			now:     f.now,
		},
	}, nil
}

type tenantStores struct {
	storeID       string
	conversations *ConversationStore
	messages      *MessageStore
	orders        *OrderStore
	customers     *CustomerStore
	notifications *NotificationStore
}

func (t *tenantStores) StoreID() string {
	if t == nil {
		return ""
	}
	return t.storeID
}

func (t *tenantStores) Conversations() core.ConversationStore {
	if t == nil {
		return nil
	}
	return t.conversations
}

func (t *tenantStores) Messages() core.MessageStore {
	if t == nil {
		return nil
	}
	return t.messages
}

func (t *tenantStores) Orders() core.OrderStore {
	if t == nil {
		return nil
	}
	return t.orders
}

func (t *tenantStores) Customers() core.CustomerStore {
	if t == nil {
		return nil
	}
	return t.customers
}

func (t *tenantStores) Notifications() core.NotificationStore {
	if t == nil {
		return nil
	}
	return t.notifications
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case *persistence.Client:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
