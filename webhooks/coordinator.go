package webhooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inbox/core"
)

// ProcessFunc is the underlying per-event processing run the coordinator
// serializes.
type ProcessFunc func(ctx context.Context, event core.InboundEvent) error

type inflightRun struct {
	done chan struct{}
	err  error
}

// Coordinator guarantees at most one processing run per idempotency key
// inside this process. Concurrent submitters for the same key join the
// running task and observe its outcome instead of starting a second run.
// The guarantee is per-process; replicas do not share the registry.
type Coordinator struct {
	mu   sync.Mutex
	runs map[string]*inflightRun

	process ProcessFunc
	logger  core.Logger
	bucket  time.Duration
	now     func() time.Time
}

func NewCoordinator(process ProcessFunc, cfg core.IngestConfig, logger core.Logger) (*Coordinator, error) {
	if process == nil {
		return nil, fmt.Errorf("webhooks: process func is required")
	}
	bucket := cfg.DedupBucket()
	if bucket <= 0 {
		bucket = time.Second
	}
	return &Coordinator{
		runs:    map[string]*inflightRun{},
		process: process,
		logger:  glog.Ensure(logger),
		bucket:  bucket,
		now:     time.Now,
	}, nil
}

// Submit runs the event through the dedup registry. The returned error is
// the outcome of the single underlying run, shared by every submitter that
// joined it.
func (c *Coordinator) Submit(ctx context.Context, event core.InboundEvent) error {
	if c == nil || c.process == nil {
		return fmt.Errorf("webhooks: coordinator is not configured")
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = c.now()
	}
	key := c.keyFor(event)

	c.mu.Lock()
	if existing, ok := c.runs[key]; ok {
		c.mu.Unlock()
		c.logger.Debug("joining in-flight delivery", "key", key)
		select {
		case <-existing.done:
			return existing.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	run := &inflightRun{done: make(chan struct{})}
	c.runs[key] = run
	c.mu.Unlock()

	// Registry cleanup is unconditional: the entry leaves the map whether
	// the run succeeded, failed, or panicked.
	defer func() {
		c.mu.Lock()
		delete(c.runs, key)
		c.mu.Unlock()
		close(run.done)
	}()

	run.err = c.process(ctx, event)
	return run.err
}

// InFlight reports the current registry size, for tests and health
// inspection.
func (c *Coordinator) InFlight() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

func (c *Coordinator) keyFor(event core.InboundEvent) string {
	envelope, err := ParseEnvelope(event)
	if err != nil {
		return fallbackDeliveryKey(event.Body)
	}
	return DeliveryKey(envelope, event.ReceivedAt, c.bucket)
}
