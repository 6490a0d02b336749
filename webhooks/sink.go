package webhooks

import (
	"context"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-inbox/core"
)

// LogSink persists processing failures best-effort. Storage errors are
// swallowed after a warning: an audit outage must never cascade into an
// ingestion failure.
type LogSink struct {
	store  core.ErrorLogStore
	logger core.Logger
	now    func() time.Time
}

func NewLogSink(store core.ErrorLogStore, logger core.Logger) *LogSink {
	return &LogSink{
		store:  store,
		logger: glog.Ensure(logger),
		now:    time.Now,
	}
}

func (s *LogSink) Record(ctx context.Context, entry core.ErrorLogEntry) {
	if s == nil || s.store == nil {
		return
	}
	if strings.TrimSpace(entry.StoreID) == "" {
		entry.StoreID = core.StoreIDUnknown
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now()
	}

	if err := s.store.Append(ctx, entry); err != nil {
		s.logger.Warn("error log write failed",
			"kind", entry.Kind,
			"channel_id", entry.ChannelID,
			"store_id", entry.StoreID,
			"error", err.Error(),
		)
	}
}

// NopSink drops every entry. Used when no audit storage is wired.
type NopSink struct{}

func (NopSink) Record(context.Context, core.ErrorLogEntry) {}
