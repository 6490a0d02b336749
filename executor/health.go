package executor

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// HealthReport describes database reachability and pool pressure at the
// time of the probe.
type HealthReport struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Pool      PoolStats     `json:"pool"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Health probes the database through the same retry and timeout machinery
// as regular operations, so the report reflects what callers would see.
func (x *Executor) Health(ctx context.Context) HealthReport {
	report := HealthReport{CheckedAt: x.now()}
	if x == nil || x.pool == nil {
		report.Error = "executor: pool is not configured"
		return report
	}

	started := x.now()
	_, err := Execute(ctx, x, "health.ping", func(ctx context.Context, db bun.IDB) (int, error) {
		var one int
		if err := db.NewSelect().ColumnExpr("1").Scan(ctx, &one); err != nil {
			return 0, err
		}
		return one, nil
	})
	report.Latency = x.now().Sub(started)
	report.Pool = x.pool.Stats()
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Healthy = true
	return report
}

func (x *Executor) now() time.Time {
	if x != nil && x.Now != nil {
		return x.Now()
	}
	return time.Now()
}
