package webhooks_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/tenant"
	"github.com/goliatone/go-inbox/webhooks"
)

type memSink struct {
	mu      sync.Mutex
	entries []core.ErrorLogEntry
}

func (s *memSink) Record(_ context.Context, entry core.ErrorLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *memSink) byKind(kind string) []core.ErrorLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ErrorLogEntry
	for _, entry := range s.entries {
		if entry.Kind == kind {
			out = append(out, entry)
		}
	}
	return out
}

type memConversationStore struct {
	mu    sync.Mutex
	seq   int
	byKey map[string]core.Conversation
}

func (s *memConversationStore) Upsert(_ context.Context, in core.UpsertConversationInput) (core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byKey == nil {
		s.byKey = map[string]core.Conversation{}
	}
	key := in.ChannelID + "|" + in.CustomerPhone
	if conv, ok := s.byKey[key]; ok {
		conv.UnreadCount++
		if in.LastMessageAt.After(conv.LastMessageAt) {
			conv.LastMessageAt = in.LastMessageAt
		}
		s.byKey[key] = conv
		return conv, nil
	}
	s.seq++
	conv := core.Conversation{
		ID:            fmt.Sprintf("conv-%d", s.seq),
		ChannelID:     in.ChannelID,
		CustomerPhone: in.CustomerPhone,
		CustomerName:  in.CustomerName,
		LastMessageAt: in.LastMessageAt,
		UnreadCount:   1,
	}
	s.byKey[key] = conv
	return conv, nil
}

func (s *memConversationStore) Get(_ context.Context, id string) (core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.byKey {
		if conv.ID == id {
			return conv, nil
		}
	}
	return core.Conversation{}, core.NewNotFoundError("conversation not found")
}

func (s *memConversationStore) List(context.Context, core.ConversationFilter) ([]core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Conversation, 0, len(s.byKey))
	for _, conv := range s.byKey {
		out = append(out, conv)
	}
	return out, nil
}

type memMessageStore struct {
	mu       sync.Mutex
	byProvID map[string]core.Message
	statuses map[string]string
	failOn   map[string]error
}

func (s *memMessageStore) Append(_ context.Context, in core.AppendMessageInput) (core.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[in.ProviderMessageID]; ok {
		return core.Message{}, false, err
	}
	if s.byProvID == nil {
		s.byProvID = map[string]core.Message{}
	}
	if existing, ok := s.byProvID[in.ProviderMessageID]; ok {
		return existing, false, nil
	}
	msg := core.Message{
		ID:                "msg-" + in.ProviderMessageID,
		ConversationID:    in.ConversationID,
		ProviderMessageID: in.ProviderMessageID,
		Direction:         in.Direction,
		Kind:              in.Kind,
		Body:              in.Body,
		Status:            in.Status,
		SentAt:            in.SentAt,
	}
	s.byProvID[in.ProviderMessageID] = msg
	return msg, true, nil
}

func (s *memMessageStore) UpdateStatus(_ context.Context, providerMessageID string, status string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byProvID[providerMessageID]; !ok {
		return core.NewNotFoundError("message not found for status update")
	}
	if s.statuses == nil {
		s.statuses = map[string]string{}
	}
	s.statuses[providerMessageID] = status
	return nil
}

func (s *memMessageStore) ListByConversation(context.Context, string, int) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Message, 0, len(s.byProvID))
	for _, msg := range s.byProvID {
		out = append(out, msg)
	}
	return out, nil
}

func (s *memMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byProvID)
}

type memCustomerStore struct {
	mu      sync.Mutex
	byPhone map[string]core.Customer
}

func (s *memCustomerStore) UpsertByPhone(_ context.Context, in core.UpsertCustomerInput) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byPhone == nil {
		s.byPhone = map[string]core.Customer{}
	}
	if customer, ok := s.byPhone[in.Phone]; ok {
		return customer, nil
	}
	customer := core.Customer{ID: "cust-" + in.Phone, Phone: in.Phone, Name: in.Name}
	s.byPhone[in.Phone] = customer
	return customer, nil
}

func (s *memCustomerStore) Get(_ context.Context, id string) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, customer := range s.byPhone {
		if customer.ID == id {
			return customer, nil
		}
	}
	return core.Customer{}, core.NewNotFoundError("customer not found")
}

type memTenantStores struct {
	storeID       string
	conversations *memConversationStore
	messages      *memMessageStore
	customers     *memCustomerStore
}

func newMemTenantStores(storeID string) *memTenantStores {
	return &memTenantStores{
		storeID:       storeID,
		conversations: &memConversationStore{},
		messages:      &memMessageStore{},
		customers:     &memCustomerStore{},
	}
}

func (t *memTenantStores) StoreID() string                       { return t.storeID }
func (t *memTenantStores) Conversations() core.ConversationStore { return t.conversations }
func (t *memTenantStores) Messages() core.MessageStore           { return t.messages }
func (t *memTenantStores) Orders() core.OrderStore               { return nil }
func (t *memTenantStores) Customers() core.CustomerStore         { return t.customers }
func (t *memTenantStores) Notifications() core.NotificationStore { return nil }

type memStoreProvider struct {
	mu     sync.Mutex
	stores map[string]*memTenantStores
}

func (p *memStoreProvider) TenantStores(storeID string) (core.TenantStores, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stores == nil {
		p.stores = map[string]*memTenantStores{}
	}
	if stores, ok := p.stores[storeID]; ok {
		return stores, nil
	}
	stores := newMemTenantStores(storeID)
	p.stores[storeID] = stores
	return stores, nil
}

func (p *memStoreProvider) tenant(storeID string) *memTenantStores {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stores[storeID]
}

type stubLookup struct {
	mu      sync.Mutex
	mapping core.ChannelMapping
	err     error
	calls   int
}

func (l *stubLookup) FindStoreForChannel(_ context.Context, channelID string) (core.ChannelMapping, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return core.ChannelMapping{}, l.err
	}
	mapping := l.mapping
	if mapping.ChannelID == "" {
		mapping.ChannelID = channelID
	}
	return mapping, nil
}

type countingRescheduler struct {
	mu        sync.Mutex
	calls     int
	lastDelay time.Duration
	lastEvent core.InboundEvent
}

func (r *countingRescheduler) Reschedule(_ context.Context, event core.InboundEvent, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastDelay = delay
	r.lastEvent = event
	return nil
}

func (r *countingRescheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func samplePayload(channelID string, messageIDs ...string) []byte {
	var messages []string
	for i, id := range messageIDs {
		messages = append(messages, fmt.Sprintf(
			`{"id":%q,"from":"15550002222","timestamp":"1756700000","type":"text","text":{"body":"hello %d"}}`,
			id, i,
		))
	}
	return []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "entry-1", "changes": [{"field": "messages", "value": {
			"metadata": {"phone_number_id": %q, "display_phone_number": "+1 555 000 1111"},
			"contacts": [{"wa_id": "15550002222", "profile": {"name": "Dana"}}],
			"messages": [%s]
		}}]}]
	}`, channelID, strings.Join(messages, ",")))
}

func statusPayload(channelID string, messageID string, status string) []byte {
	return []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "entry-1", "changes": [{"field": "messages", "value": {
			"metadata": {"phone_number_id": %q},
			"statuses": [{"id": %q, "status": %q, "timestamp": "1756700100", "recipient_id": "15550002222"}]
		}}]}]
	}`, channelID, messageID, status))
}

func newTestPipeline(t *testing.T, lookup webhooks.StoreLookup, sink core.ErrorSink, rescheduler webhooks.Rescheduler) (*webhooks.Processor, *memStoreProvider) {
	t.Helper()
	provider := &memStoreProvider{}
	resolver, err := tenant.NewResolver(provider, nil)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	cfg := core.DefaultConfig().Ingest
	processor, err := webhooks.NewProcessor(lookup, resolver, sink, rescheduler, cfg, nil)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return processor, provider
}

func TestProcessorAppliesMessagesAndStatuses(t *testing.T) {
	sink := &memSink{}
	lookup := &stubLookup{mapping: core.ChannelMapping{StoreID: "store-1"}}
	processor, provider := newTestPipeline(t, lookup, sink, nil)

	event := core.InboundEvent{
		ProviderID: "whatsapp",
		Body:       samplePayload("1555000111", "wamid.1", "wamid.2"),
		ReceivedAt: time.Now(),
	}
	if err := processor.Process(context.Background(), event); err != nil {
		t.Fatalf("process: %v", err)
	}

	stores := provider.tenant("store-1")
	if stores == nil {
		t.Fatal("expected tenant stores for store-1")
	}
	if got := stores.messages.count(); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
	if len(stores.conversations.byKey) != 1 {
		t.Fatalf("expected one conversation, got %d", len(stores.conversations.byKey))
	}

	statusEvent := core.InboundEvent{
		ProviderID: "whatsapp",
		Body:       statusPayload("1555000111", "wamid.1", "delivered"),
		ReceivedAt: time.Now(),
	}
	if err := processor.Process(context.Background(), statusEvent); err != nil {
		t.Fatalf("process status: %v", err)
	}
	if got := stores.messages.statuses["wamid.1"]; got != core.MessageStatusDelivered {
		t.Fatalf("expected delivered status, got %q", got)
	}
	if len(sink.entries) != 0 {
		t.Fatalf("expected clean run, got entries %+v", sink.entries)
	}
}

func TestProcessorStructureErrorIsFatalAndLoggedOnce(t *testing.T) {
	sink := &memSink{}
	lookup := &stubLookup{mapping: core.ChannelMapping{StoreID: "store-1"}}
	rescheduler := &countingRescheduler{}
	processor, _ := newTestPipeline(t, lookup, sink, rescheduler)

	event := core.InboundEvent{Body: []byte(`{"object":"whatsapp_business_account","entry":[]}`), ReceivedAt: time.Now()}
	err := processor.Process(context.Background(), event)
	if !core.IsStructureInvalid(err) {
		t.Fatalf("expected structure error, got %v", err)
	}
	if lookup.calls != 0 {
		t.Fatal("structurally invalid events must not reach tenant lookup")
	}
	if rescheduler.count() != 0 {
		t.Fatal("structure errors must never reschedule")
	}
	if got := len(sink.byKind(webhooks.ErrorKindStructure)); got != 1 {
		t.Fatalf("expected exactly one structure entry, got %d", got)
	}
}

func TestProcessorTenantNotFoundIsFatal(t *testing.T) {
	sink := &memSink{}
	lookup := &stubLookup{err: core.NewTenantNotFoundError("1555000999")}
	rescheduler := &countingRescheduler{}
	processor, _ := newTestPipeline(t, lookup, sink, rescheduler)

	event := core.InboundEvent{Body: samplePayload("1555000999", "wamid.9"), ReceivedAt: time.Now()}
	err := processor.Process(context.Background(), event)
	if !core.IsTenantNotFound(err) {
		t.Fatalf("expected tenant-not-found, got %v", err)
	}
	if rescheduler.count() != 0 {
		t.Fatal("unattributable events must never reschedule")
	}
	entries := sink.byKind(webhooks.ErrorKindTenantNotFound)
	if len(entries) != 1 {
		t.Fatalf("expected one tenant-not-found entry, got %d", len(entries))
	}
	if entries[0].StoreID != core.StoreIDUnknown {
		t.Fatalf("expected unknown store attribution, got %q", entries[0].StoreID)
	}
}

func TestProcessorPartialFailureIsolation(t *testing.T) {
	sink := &memSink{}
	lookup := &stubLookup{mapping: core.ChannelMapping{StoreID: "store-1"}}
	processor, provider := newTestPipeline(t, lookup, sink, nil)

	// Seed the tenant so the failing message can be injected up front.
	stores, err := provider.TenantStores("store-1")
	if err != nil {
		t.Fatalf("tenant stores: %v", err)
	}
	mem := stores.(*memTenantStores)
	mem.messages.failOn = map[string]error{
		"wamid.2": errors.New("simulated persistence failure"),
	}

	event := core.InboundEvent{
		Body:       samplePayload("1555000111", "wamid.1", "wamid.2", "wamid.3"),
		ReceivedAt: time.Now(),
	}
	if err := processor.Process(context.Background(), event); err != nil {
		t.Fatalf("item failures must not fail the event: %v", err)
	}

	if got := mem.messages.count(); got != 2 {
		t.Fatalf("expected siblings 1 and 3 persisted, got %d rows", got)
	}
	if _, ok := mem.messages.byProvID["wamid.1"]; !ok {
		t.Fatal("expected wamid.1 persisted")
	}
	if _, ok := mem.messages.byProvID["wamid.3"]; !ok {
		t.Fatal("expected wamid.3 persisted")
	}
	failures := sink.byKind(webhooks.ErrorKindItemFailed)
	if len(failures) != 1 {
		t.Fatalf("expected exactly one item failure entry, got %d", len(failures))
	}
	if !strings.Contains(failures[0].ErrorMessage, "wamid.2") {
		t.Fatalf("expected failure entry for wamid.2, got %q", failures[0].ErrorMessage)
	}
}

func TestProcessorReschedulesRetryableFailureOnce(t *testing.T) {
	sink := &memSink{}
	lookup := &stubLookup{err: core.NewRetryableInfraError(errors.New("pool exhausted"), "lookup failed")}
	rescheduler := &countingRescheduler{}
	processor, _ := newTestPipeline(t, lookup, sink, rescheduler)

	event := core.InboundEvent{Body: samplePayload("1555000111", "wamid.1"), ReceivedAt: time.Now()}
	if err := processor.Process(context.Background(), event); err == nil {
		t.Fatal("expected the transient error to surface")
	}
	if rescheduler.count() != 1 {
		t.Fatalf("expected exactly one reschedule, got %d", rescheduler.count())
	}
	if rescheduler.lastDelay != 5*time.Second {
		t.Fatalf("expected 5s delay, got %v", rescheduler.lastDelay)
	}
	if !rescheduler.lastEvent.Redelivered {
		t.Fatal("rescheduled event must carry the redelivered flag")
	}

	// The redelivered copy failing again is dropped, not rescheduled.
	if err := processor.Process(context.Background(), rescheduler.lastEvent); err == nil {
		t.Fatal("expected the transient error to surface on redelivery")
	}
	if rescheduler.count() != 1 {
		t.Fatalf("redelivered events must not reschedule again, got %d", rescheduler.count())
	}
	if got := len(sink.byKind(webhooks.ErrorKindDropped)); got != 1 {
		t.Fatalf("expected one dropped entry, got %d", got)
	}
}

func TestProcessorStatusForUnknownMessageIsItemFailure(t *testing.T) {
	sink := &memSink{}
	lookup := &stubLookup{mapping: core.ChannelMapping{StoreID: "store-1"}}
	processor, _ := newTestPipeline(t, lookup, sink, nil)

	event := core.InboundEvent{
		Body:       statusPayload("1555000111", "wamid.unknown", "read"),
		ReceivedAt: time.Now(),
	}
	if err := processor.Process(context.Background(), event); err != nil {
		t.Fatalf("status item failures must not fail the event: %v", err)
	}
	if got := len(sink.byKind(webhooks.ErrorKindItemFailed)); got != 1 {
		t.Fatalf("expected one item failure, got %d", got)
	}
}

func TestCoordinatorCollapsesConcurrentDuplicates(t *testing.T) {
	var runs int32
	started := make(chan struct{})
	release := make(chan struct{})
	var runsMu sync.Mutex

	process := func(ctx context.Context, event core.InboundEvent) error {
		runsMu.Lock()
		runs++
		runsMu.Unlock()
		close(started)
		<-release
		return nil
	}

	coordinator, err := webhooks.NewCoordinator(process, core.DefaultConfig().Ingest, nil)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	body := samplePayload("1555000111", "wamid.dup")
	receivedAt := time.Now()
	event := func() core.InboundEvent {
		return core.InboundEvent{ProviderID: "whatsapp", Body: body, ReceivedAt: receivedAt}
	}

	const submitters = 5
	var wg sync.WaitGroup
	results := make([]error, submitters)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = coordinator.Submit(context.Background(), event())
	}()
	<-started

	for i := 1; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = coordinator.Submit(context.Background(), event())
		}(i)
	}
	// Give the joiners time to land on the in-flight entry before release.
	deadline := time.After(2 * time.Second)
	for coordinator.InFlight() != 1 {
		select {
		case <-deadline:
			t.Fatal("expected one in-flight run")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	runsMu.Lock()
	got := runs
	runsMu.Unlock()
	if got != 1 {
		t.Fatalf("expected exactly one underlying run, got %d", got)
	}
	for i, result := range results {
		if result != nil {
			t.Fatalf("submitter %d got %v", i, result)
		}
	}
	if coordinator.InFlight() != 0 {
		t.Fatalf("expected registry cleanup, %d entries remain", coordinator.InFlight())
	}
}

func TestCoordinatorDistinctKeysRunIndependently(t *testing.T) {
	var mu sync.Mutex
	var runs int

	process := func(ctx context.Context, event core.InboundEvent) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}
	coordinator, err := webhooks.NewCoordinator(process, core.DefaultConfig().Ingest, nil)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	now := time.Now()
	if err := coordinator.Submit(context.Background(), core.InboundEvent{Body: samplePayload("1555000111", "wamid.a"), ReceivedAt: now}); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if err := coordinator.Submit(context.Background(), core.InboundEvent{Body: samplePayload("1555000111", "wamid.b"), ReceivedAt: now}); err != nil {
		t.Fatalf("submit b: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if runs != 2 {
		t.Fatalf("expected 2 independent runs, got %d", runs)
	}
}

func TestCoordinatorRegistryCleanupOnFailure(t *testing.T) {
	wantErr := errors.New("processing failed")
	process := func(context.Context, core.InboundEvent) error { return wantErr }

	coordinator, err := webhooks.NewCoordinator(process, core.DefaultConfig().Ingest, nil)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	event := core.InboundEvent{Body: samplePayload("1555000111", "wamid.fail"), ReceivedAt: time.Now()}
	if got := coordinator.Submit(context.Background(), event); !errors.Is(got, wantErr) {
		t.Fatalf("expected processing error, got %v", got)
	}
	if coordinator.InFlight() != 0 {
		t.Fatal("failed runs must still leave the registry")
	}

	// A later identical delivery starts a fresh run.
	if got := coordinator.Submit(context.Background(), event); !errors.Is(got, wantErr) {
		t.Fatalf("expected fresh run to fail the same way, got %v", got)
	}
}

func TestDuplicateDeliveriesCreateOneMessageRow(t *testing.T) {
	sink := &memSink{}
	lookup := &stubLookup{mapping: core.ChannelMapping{StoreID: "store-1"}}
	processor, provider := newTestPipeline(t, lookup, sink, nil)

	coordinator, err := webhooks.NewCoordinator(processor.Process, core.DefaultConfig().Ingest, nil)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	body := samplePayload("1555000111", "wamid.once")
	receivedAt := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = coordinator.Submit(context.Background(), core.InboundEvent{
				ProviderID: "whatsapp",
				Body:       body,
				ReceivedAt: receivedAt,
			})
		}()
	}
	wg.Wait()

	stores := provider.tenant("store-1")
	if stores == nil {
		t.Fatal("expected tenant stores")
	}
	if got := stores.messages.count(); got != 1 {
		t.Fatalf("expected exactly one message row, got %d", got)
	}
}

type capturingEnqueuer struct {
	mu   sync.Mutex
	last *core.JobExecutionMessage
}

func (e *capturingEnqueuer) Enqueue(_ context.Context, msg *core.JobExecutionMessage) (core.JobEnqueueReceipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = msg
	return core.JobEnqueueReceipt{DispatchID: "dispatch-1", EnqueuedAt: time.Now()}, nil
}

func TestQueueReschedulerPreservesRedeliveryAcrossQueue(t *testing.T) {
	enqueuer := &capturingEnqueuer{}
	rescheduler, err := webhooks.NewQueueRescheduler(enqueuer, nil)
	if err != nil {
		t.Fatalf("new queue rescheduler: %v", err)
	}

	event := core.InboundEvent{
		ProviderID: "whatsapp",
		Body:       samplePayload("1555000111", "wamid.deferred"),
		ReceivedAt: time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC),
	}
	if err := rescheduler.Reschedule(context.Background(), event, 5*time.Second); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	msg := enqueuer.last
	if msg == nil {
		t.Fatal("expected an enqueued job message")
	}
	if msg.DedupPolicy != "drop" {
		t.Fatalf("expected drop dedup policy, got %q", msg.DedupPolicy)
	}
	if msg.IdempotencyKey == "" {
		t.Fatal("expected idempotency key on the enqueued message")
	}

	restored, err := webhooks.EventFromJobParameters(msg.Parameters)
	if err != nil {
		t.Fatalf("restore event: %v", err)
	}
	if !restored.Redelivered {
		t.Fatal("expected redelivered flag to survive the queue round trip")
	}
	if restored.ProviderID != event.ProviderID {
		t.Fatalf("expected provider id %q, got %q", event.ProviderID, restored.ProviderID)
	}
	if string(restored.Body) != string(event.Body) {
		t.Fatal("expected body to survive the queue round trip")
	}
	if !restored.ReceivedAt.Equal(event.ReceivedAt) {
		t.Fatalf("expected received_at %s, got %s", event.ReceivedAt, restored.ReceivedAt)
	}
}
