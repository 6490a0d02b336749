package inbox

import (
	"context"
	"fmt"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inbox/adapters/gojob"
	"github.com/goliatone/go-inbox/adapters/gologger"
	inboxcommand "github.com/goliatone/go-inbox/command"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
	inboxquery "github.com/goliatone/go-inbox/query"
	sqlstore "github.com/goliatone/go-inbox/store/sql"
	"github.com/goliatone/go-inbox/tenant"
	"github.com/goliatone/go-inbox/webhooks"
)

type Commands struct {
	SubmitWebhook        *inboxcommand.SubmitWebhookCommand
	MarkNotificationRead *inboxcommand.MarkNotificationReadCommand
	UpsertChannelMapping *inboxcommand.UpsertChannelMappingCommand
}

type Queries struct {
	GetIngestHealth          *inboxquery.GetIngestHealthQuery
	FindStoreForChannel      *inboxquery.FindStoreForChannelQuery
	ListConversations        *inboxquery.ListConversationsQuery
	ListConversationMessages *inboxquery.ListConversationMessagesQuery
}

// Service wires the executor, tenant resolution, and the webhook pipeline
// over one persistence client. Construct it with New; the zero value is not
// usable.
type Service struct {
	cfg    core.Config
	logger core.Logger

	exec        *executor.Executor
	factory     *sqlstore.RepositoryFactory
	mappings    *tenant.MappingService
	resolver    *tenant.Resolver
	sink        core.ErrorSink
	rescheduler webhooks.Rescheduler
	processor   *webhooks.Processor
	coordinator *webhooks.Coordinator

	commands Commands
	queries  Queries
}

type Option func(*serviceOptions)

type serviceOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	configProvider core.ConfigProvider
	resolver       core.OptionsResolver
	cacheService   repositorycache.CacheService
	enqueuer       core.JobEnqueuer
	sink           core.ErrorSink
	rescheduler    webhooks.Rescheduler
}

func WithLogger(logger core.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *serviceOptions) { o.loggerProvider = provider }
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(o *serviceOptions) { o.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *serviceOptions) { o.resolver = resolver }
}

// WithCacheService enables the read-through cache on channel mapping
// lookups.
func WithCacheService(cacheService repositorycache.CacheService) Option {
	return func(o *serviceOptions) { o.cacheService = cacheService }
}

// WithJobEnqueuer routes deferred webhook re-submissions through a durable
// queue instead of the in-process timer.
func WithJobEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(o *serviceOptions) { o.enqueuer = enqueuer }
}

func WithErrorSink(sink core.ErrorSink) Option {
	return func(o *serviceOptions) { o.sink = sink }
}

func WithRescheduler(rescheduler webhooks.Rescheduler) Option {
	return func(o *serviceOptions) { o.rescheduler = rescheduler }
}

// New builds a Service on an existing persistence client. The client must
// already be migrated; see the migrations package for registering the
// embedded DDL. cfg acts as runtime overrides layered over loaded and
// default configuration.
func New(client any, cfg core.Config, opts ...Option) (*Service, error) {
	options := serviceOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	_, logger := gologger.Resolve("inbox", options.loggerProvider, options.logger)

	resolved, err := core.ResolveConfig(context.Background(), options.configProvider, options.resolver, cfg)
	if err != nil {
		return nil, err
	}

	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}

	exec := executor.New(
		executor.NewBunPool(db, resolved.Retry.AcquireTimeout()),
		resolved.Retry,
		logger,
	)

	factory, err := sqlstore.NewRepositoryFactory(client, exec)
	if err != nil {
		return nil, err
	}

	mappingStore := factory.ChannelMappingStore()
	if options.cacheService != nil {
		cached, cacheErr := sqlstore.NewCachedChannelMappingStore(mappingStore, options.cacheService)
		if cacheErr != nil {
			return nil, cacheErr
		}
		mappingStore = cached
	}

	mappings, err := tenant.NewMappingService(mappingStore, logger)
	if err != nil {
		return nil, err
	}
	resolver, err := tenant.NewResolver(factory, logger)
	if err != nil {
		return nil, err
	}

	sink := options.sink
	if sink == nil {
		sink = webhooks.NewLogSink(factory.ErrorLogStore(), logger)
	}

	rescheduler := options.rescheduler
	var timer *webhooks.TimerRescheduler
	if rescheduler == nil {
		if options.enqueuer != nil {
			queued, queueErr := webhooks.NewQueueRescheduler(options.enqueuer, logger)
			if queueErr != nil {
				return nil, queueErr
			}
			rescheduler = queued
		} else {
			timer = webhooks.NewTimerRescheduler(logger)
			rescheduler = timer
		}
	}

	processor, err := webhooks.NewProcessor(mappings, resolver, sink, rescheduler, resolved.Ingest, logger)
	if err != nil {
		return nil, err
	}
	coordinator, err := webhooks.NewCoordinator(processor.Process, resolved.Ingest, logger)
	if err != nil {
		return nil, err
	}
	if timer != nil {
		timer.Submitter = coordinator.Submit
	}

	service := &Service{
		cfg:         resolved,
		logger:      logger,
		exec:        exec,
		factory:     factory,
		mappings:    mappings,
		resolver:    resolver,
		sink:        sink,
		rescheduler: rescheduler,
		processor:   processor,
		coordinator: coordinator,
	}

	service.commands = Commands{
		SubmitWebhook:        inboxcommand.NewSubmitWebhookCommand(coordinator),
		MarkNotificationRead: inboxcommand.NewMarkNotificationReadCommand(service),
	}
	// The mutator goes through the same store the reads use; with the
	// cache enabled an upsert invalidates the cached entry.
	if mutator, ok := mappingStore.(inboxcommand.ChannelMappingMutator); ok {
		service.commands.UpsertChannelMapping = inboxcommand.NewUpsertChannelMappingCommand(mutator)
	}
	service.queries = Queries{
		GetIngestHealth:          inboxquery.NewGetIngestHealthQuery(exec),
		FindStoreForChannel:      inboxquery.NewFindStoreForChannelQuery(mappings),
		ListConversations:        inboxquery.NewListConversationsQuery(service),
		ListConversationMessages: inboxquery.NewListConversationMessagesQuery(service),
	}

	return service, nil
}

// Submit runs one inbound webhook delivery through dedup and processing.
func (s *Service) Submit(ctx context.Context, event core.InboundEvent) error {
	if s == nil || s.coordinator == nil {
		return fmt.Errorf("inbox: service is not configured")
	}
	return s.coordinator.Submit(ctx, event)
}

// NewRescheduleConsumer binds a durable-queue dequeuer to this service's
// ingestion pipeline. Pair it with WithJobEnqueuer: the enqueuer defers the
// re-submission, the consumer drains it back through dedup and processing.
func (s *Service) NewRescheduleConsumer(dequeuer core.JobDequeuer) (*gojob.RescheduleConsumer, error) {
	if s == nil || s.coordinator == nil {
		return nil, fmt.Errorf("inbox: service is not configured")
	}
	return gojob.NewRescheduleConsumer(dequeuer, s.coordinator.Submit, s.logger)
}

// Health probes database connectivity through the resilience executor.
func (s *Service) Health(ctx context.Context) executor.HealthReport {
	if s == nil || s.exec == nil {
		return executor.HealthReport{}
	}
	return s.exec.Health(ctx)
}

func (s *Service) FindStoreForChannel(ctx context.Context, channelID string) (core.ChannelMapping, error) {
	if s == nil || s.mappings == nil {
		return core.ChannelMapping{}, fmt.Errorf("inbox: service is not configured")
	}
	return s.mappings.FindStoreForChannel(ctx, channelID)
}

func (s *Service) MarkNotificationRead(ctx context.Context, storeID string, notificationID string) error {
	handle, err := s.handleFor(ctx, storeID)
	if err != nil {
		return err
	}
	return handle.Notifications().MarkRead(ctx, notificationID)
}

func (s *Service) ListConversations(ctx context.Context, storeID string, filter core.ConversationFilter) ([]core.Conversation, error) {
	handle, err := s.handleFor(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return handle.Conversations().List(ctx, filter)
}

func (s *Service) ListConversationMessages(ctx context.Context, storeID string, conversationID string, limit int) ([]core.Message, error) {
	handle, err := s.handleFor(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return handle.Messages().ListByConversation(ctx, conversationID, limit)
}

func (s *Service) handleFor(ctx context.Context, storeID string) (*tenant.Handle, error) {
	if s == nil || s.resolver == nil {
		return nil, fmt.Errorf("inbox: service is not configured")
	}
	return s.resolver.Resolve(ctx, core.Principal{
		Subject: "system:api",
		StoreID: storeID,
	})
}

func (s *Service) Commands() Commands {
	if s == nil {
		return Commands{}
	}
	return s.commands
}

func (s *Service) Queries() Queries {
	if s == nil {
		return Queries{}
	}
	return s.queries
}

func (s *Service) Config() core.Config {
	if s == nil {
		return core.Config{}
	}
	return s.cfg
}

func (s *Service) Repositories() *sqlstore.RepositoryFactory {
	if s == nil {
		return nil
	}
	return s.factory
}

func (s *Service) Executor() *executor.Executor {
	if s == nil {
		return nil
	}
	return s.exec
}

func resolveBunDB(client any) (*bun.DB, error) {
	switch c := client.(type) {
	case nil:
		return nil, fmt.Errorf("inbox: persistence client is required")
	case *bun.DB:
		return c, nil
	case interface{ DB() *bun.DB }:
		db := c.DB()
		if db == nil {
			return nil, fmt.Errorf("inbox: persistence client returned a nil database")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("inbox: unsupported persistence client %T", client)
	}
}
