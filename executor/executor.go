package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inbox/core"
)

// Executor coordinates pooled database access with bounded retry. Each
// attempt checks out its own connection, runs under the per-operation
// timeout, and releases the connection exactly once before the next attempt
// is considered.
type Executor struct {
	pool   Pool
	cfg    core.RetryConfig
	logger core.Logger

	// Sleep and Now are swappable so tests can run the retry schedule
	// without waiting on wall-clock time.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func New(pool Pool, cfg core.RetryConfig, logger core.Logger) *Executor {
	return &Executor{
		pool:   pool,
		cfg:    cfg,
		logger: glog.Ensure(logger),
		Sleep:  sleepContext,
		Now:    time.Now,
	}
}

// Execute runs fn with bounded retry on a pooled connection. Fatal errors
// and exhausted retries surface the last attempt's error unchanged.
func Execute[T any](ctx context.Context, x *Executor, operation string, fn func(ctx context.Context, db bun.IDB) (T, error)) (T, error) {
	var result T
	err := x.run(ctx, operation, func(ctx context.Context, conn PooledConn) error {
		value, err := fn(ctx, conn.DB())
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// ExecuteTx runs fn inside a transaction on a pooled connection. The
// transaction commits only when fn returns nil; any failure rolls back and
// feeds the retry schedule like a plain operation failure.
func ExecuteTx[T any](ctx context.Context, x *Executor, operation string, fn func(ctx context.Context, tx bun.Tx) (T, error)) (T, error) {
	var result T
	err := x.run(ctx, operation, func(ctx context.Context, conn PooledConn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		// The deferred rollback also covers a panicking fn: the pooled
		// conn must never be released with a transaction still open.
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		value, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		result = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Exec is the error-only form of Execute.
func (x *Executor) Exec(ctx context.Context, operation string, fn func(ctx context.Context, db bun.IDB) error) error {
	return x.run(ctx, operation, func(ctx context.Context, conn PooledConn) error {
		return fn(ctx, conn.DB())
	})
}

func (x *Executor) run(ctx context.Context, operation string, attempt func(ctx context.Context, conn PooledConn) error) error {
	if x == nil || x.pool == nil {
		return fmt.Errorf("executor: pool is not configured")
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}

	maxAttempts := x.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := x.cfg.InitialBackoff()
	factor := x.cfg.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return Classify(err, operation)
		}

		err := x.attemptOnce(ctx, operation, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !core.IsRetryable(err) {
			return err
		}
		if n == maxAttempts {
			break
		}

		x.logger.Warn("operation retrying",
			"operation", operation,
			"attempt", n,
			"max_attempts", maxAttempts,
			"backoff_ms", backoff.Milliseconds(),
			"error", err.Error(),
		)
		if sleepErr := x.sleep(ctx, backoff); sleepErr != nil {
			return lastErr
		}
		backoff = time.Duration(float64(backoff) * factor)
	}

	x.logger.Error("operation exhausted retries",
		"operation", operation,
		"attempts", maxAttempts,
		"error", lastErr.Error(),
	)
	return lastErr
}

// attemptOnce owns the connection lifecycle for a single attempt. Release
// happens in exactly one place, on every exit path.
func (x *Executor) attemptOnce(ctx context.Context, operation string, attempt func(ctx context.Context, conn PooledConn) error) error {
	conn, err := x.pool.Acquire(ctx)
	if err != nil {
		return core.NewRetryableInfraError(err, "executor: "+operation+" could not acquire connection")
	}
	defer func() {
		if releaseErr := conn.Release(); releaseErr != nil {
			x.logger.Warn("connection release failed",
				"operation", operation,
				"error", releaseErr.Error(),
			)
		}
	}()

	opCtx := ctx
	if timeout := x.cfg.OperationTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return Classify(attempt(opCtx, conn), operation)
}

func (x *Executor) sleep(ctx context.Context, d time.Duration) error {
	if x.Sleep != nil {
		return x.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
