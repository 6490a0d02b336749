package command

import (
	"context"
	"errors"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inbox/core"
)

type stubSubmitter struct {
	submitFn func(ctx context.Context, event core.InboundEvent) error
}

func (s stubSubmitter) Submit(ctx context.Context, event core.InboundEvent) error {
	return s.submitFn(ctx, event)
}

type stubNotificationMutator struct {
	markFn func(ctx context.Context, storeID string, notificationID string) error
}

func (s stubNotificationMutator) MarkNotificationRead(ctx context.Context, storeID string, notificationID string) error {
	return s.markFn(ctx, storeID, notificationID)
}

type stubMappingMutator struct {
	upsertFn func(ctx context.Context, mapping core.ChannelMapping) error
}

func (s stubMappingMutator) Upsert(ctx context.Context, mapping core.ChannelMapping) error {
	return s.upsertFn(ctx, mapping)
}

func TestSubmitWebhookCommand_DelegatesToSubmitter(t *testing.T) {
	called := false
	submitter := stubSubmitter{
		submitFn: func(_ context.Context, event core.InboundEvent) error {
			called = true
			if event.ProviderID != "whatsapp" {
				t.Fatalf("expected provider whatsapp, got %q", event.ProviderID)
			}
			return nil
		},
	}

	cmd := NewSubmitWebhookCommand(submitter)
	msg := SubmitWebhookMessage{Event: core.InboundEvent{
		ProviderID: "whatsapp",
		Body:       []byte(`{"object":"whatsapp_business_account"}`),
		ReceivedAt: time.Now(),
	}}
	if err := msg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !called {
		t.Fatal("expected submitter invocation")
	}
}

func TestSubmitWebhookCommand_ErrorsPassThrough(t *testing.T) {
	wantErr := errors.New("queue full")
	cmd := NewSubmitWebhookCommand(stubSubmitter{
		submitFn: func(context.Context, core.InboundEvent) error { return wantErr },
	})
	err := cmd.Execute(context.Background(), SubmitWebhookMessage{Event: core.InboundEvent{Body: []byte("{}")}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected submitter error, got %v", err)
	}
}

func TestSubmitWebhookMessage_RequiresBody(t *testing.T) {
	if err := (SubmitWebhookMessage{}).Validate(); err == nil {
		t.Fatal("expected empty body to fail validation")
	}
}

func TestMarkNotificationReadCommand_DelegatesToService(t *testing.T) {
	called := false
	svc := stubNotificationMutator{
		markFn: func(_ context.Context, storeID string, notificationID string) error {
			called = true
			if storeID != "store-1" || notificationID != "notif-1" {
				t.Fatalf("unexpected payload: %q %q", storeID, notificationID)
			}
			return nil
		},
	}

	cmd := NewMarkNotificationReadCommand(svc)
	msg := MarkNotificationReadMessage{StoreID: "store-1", NotificationID: "notif-1"}
	if err := msg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !called {
		t.Fatal("expected notification service invocation")
	}
}

func TestMarkNotificationReadMessage_Validation(t *testing.T) {
	if err := (MarkNotificationReadMessage{NotificationID: "n1"}).Validate(); err == nil {
		t.Fatal("expected missing store id to fail")
	}
	if err := (MarkNotificationReadMessage{StoreID: "s1"}).Validate(); err == nil {
		t.Fatal("expected missing notification id to fail")
	}
}

func TestUpsertChannelMappingCommand_StoresResult(t *testing.T) {
	mapping := core.ChannelMapping{ChannelID: "1555000111", StoreID: "store-1"}
	cmd := NewUpsertChannelMappingCommand(stubMappingMutator{
		upsertFn: func(_ context.Context, got core.ChannelMapping) error {
			if got.ChannelID != mapping.ChannelID {
				t.Fatalf("unexpected mapping %+v", got)
			}
			return nil
		},
	})

	collector := gocmd.NewResult[core.ChannelMapping]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, UpsertChannelMappingMessage{Mapping: mapping}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatal("expected result to be stored")
	}
	if result.StoreID != "store-1" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCommands_RequireDependencies(t *testing.T) {
	if err := (&SubmitWebhookCommand{}).Execute(context.Background(), SubmitWebhookMessage{}); err == nil {
		t.Fatal("expected dependency error")
	}
	if err := (&MarkNotificationReadCommand{}).Execute(context.Background(), MarkNotificationReadMessage{}); err == nil {
		t.Fatal("expected dependency error")
	}
}
