package webhooks

import (
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/tenant"
)

var (
	_ core.ErrorSink = (*LogSink)(nil)
	_ core.ErrorSink = NopSink{}
	_ Rescheduler    = (*TimerRescheduler)(nil)
	_ Rescheduler    = (*QueueRescheduler)(nil)
	_ StoreLookup    = (*tenant.MappingService)(nil)
	_ TenantResolver = (*tenant.Resolver)(nil)
)
