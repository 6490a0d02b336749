package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// PoolStats is a point-in-time snapshot of the underlying connection pool.
type PoolStats struct {
	Open    int
	InUse   int
	Idle    int
	WaitDur time.Duration
}

// PooledConn is a single checked-out connection. Release returns it to the
// pool and must be called exactly once per Acquire.
type PooledConn interface {
	DB() bun.IDB
	BeginTx(ctx context.Context, opts *sql.TxOptions) (bun.Tx, error)
	Release() error
}

// Pool hands out connections with a bounded acquisition wait.
type Pool interface {
	Acquire(ctx context.Context) (PooledConn, error)
	Stats() PoolStats
}

// BunPool adapts a *bun.DB into the Pool contract. Acquisition waits at
// most AcquireTimeout for a free connection before giving up.
type BunPool struct {
	db             *bun.DB
	acquireTimeout time.Duration
}

func NewBunPool(db *bun.DB, acquireTimeout time.Duration) *BunPool {
	return &BunPool{db: db, acquireTimeout: acquireTimeout}
}

func (p *BunPool) Acquire(ctx context.Context) (PooledConn, error) {
	if p == nil || p.db == nil {
		return nil, fmt.Errorf("executor: pool is not configured")
	}
	acquireCtx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}
	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		return nil, err
	}
	return &bunPooledConn{conn: conn}, nil
}

func (p *BunPool) Stats() PoolStats {
	if p == nil || p.db == nil {
		return PoolStats{}
	}
	stats := p.db.DB.Stats()
	return PoolStats{
		Open:    stats.OpenConnections,
		InUse:   stats.InUse,
		Idle:    stats.Idle,
		WaitDur: stats.WaitDuration,
	}
}

type bunPooledConn struct {
	conn bun.Conn
}

func (c *bunPooledConn) DB() bun.IDB {
	return c.conn
}

func (c *bunPooledConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (bun.Tx, error) {
	return c.conn.BeginTx(ctx, opts)
}

func (c *bunPooledConn) Release() error {
	return c.conn.Close()
}
