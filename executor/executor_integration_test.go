package executor_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/executor"
)

type executorProbe struct {
	bun.BaseModel `bun:"table:executor_probe,alias:ep"`

	ID    string `bun:"id,pk"`
	Label string `bun:"label,notnull"`
}

func newSQLiteExecutor(t *testing.T) (*executor.Executor, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:executor-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	if _, err := bunDB.ExecContext(
		context.Background(),
		"CREATE TABLE executor_probe (id TEXT PRIMARY KEY, label TEXT NOT NULL)",
	); err != nil {
		_ = bunDB.Close()
		t.Fatalf("create probe table: %v", err)
	}

	pool := executor.NewBunPool(bunDB, 5*time.Second)
	x := executor.New(pool, testRetryConfig(), nil)
	x.Sleep = func(context.Context, time.Duration) error { return nil }

	return x, func() {
		_ = bunDB.Close()
	}
}

func countProbes(t *testing.T, x *executor.Executor) int {
	t.Helper()
	count, err := executor.Execute(context.Background(), x, "probe.count", func(ctx context.Context, db bun.IDB) (int, error) {
		return db.NewSelect().Model((*executorProbe)(nil)).Count(ctx)
	})
	if err != nil {
		t.Fatalf("count probes: %v", err)
	}
	return count
}

func TestExecuteTxRollsBackOnFailure(t *testing.T) {
	x, cleanup := newSQLiteExecutor(t)
	defer cleanup()

	_, err := executor.ExecuteTx(context.Background(), x, "probe.write", func(ctx context.Context, tx bun.Tx) (int, error) {
		if _, err := tx.NewInsert().Model(&executorProbe{ID: "p-1", Label: "first"}).Exec(ctx); err != nil {
			return 0, err
		}
		return 0, errors.New("forced failure after partial write")
	})
	if err == nil {
		t.Fatal("expected transaction failure")
	}
	if got := countProbes(t, x); got != 0 {
		t.Fatalf("expected rollback to discard partial write, found %d rows", got)
	}
}

func TestExecuteTxRollsBackOnPanic(t *testing.T) {
	x, cleanup := newSQLiteExecutor(t)
	defer cleanup()

	func() {
		defer func() {
			if recovered := recover(); recovered == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = executor.ExecuteTx(context.Background(), x, "probe.write", func(ctx context.Context, tx bun.Tx) (int, error) {
			if _, err := tx.NewInsert().Model(&executorProbe{ID: "p-1", Label: "first"}).Exec(ctx); err != nil {
				return 0, err
			}
			panic("boom mid transaction")
		})
	}()

	// The single sqlite connection would wedge here if the panic had left
	// its transaction open.
	if got := countProbes(t, x); got != 0 {
		t.Fatalf("expected panic to roll back partial write, found %d rows", got)
	}
}

func TestExecuteTxCommitsOnSuccess(t *testing.T) {
	x, cleanup := newSQLiteExecutor(t)
	defer cleanup()

	inserted, err := executor.ExecuteTx(context.Background(), x, "probe.write", func(ctx context.Context, tx bun.Tx) (string, error) {
		row := &executorProbe{ID: "p-1", Label: "first"}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return "", err
		}
		return row.ID, nil
	})
	if err != nil {
		t.Fatalf("execute tx: %v", err)
	}
	if inserted != "p-1" {
		t.Fatalf("expected inserted id, got %q", inserted)
	}
	if got := countProbes(t, x); got != 1 {
		t.Fatalf("expected committed row, found %d", got)
	}
}

func TestExecuteTxDuplicateKeyIsFatal(t *testing.T) {
	x, cleanup := newSQLiteExecutor(t)
	defer cleanup()

	insert := func() error {
		_, err := executor.ExecuteTx(context.Background(), x, "probe.write", func(ctx context.Context, tx bun.Tx) (int, error) {
			_, err := tx.NewInsert().Model(&executorProbe{ID: "p-dup", Label: "same"}).Exec(ctx)
			return 0, err
		})
		return err
	}

	if err := insert(); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insert()
	if err == nil {
		t.Fatal("expected duplicate key failure")
	}
	if core.IsRetryable(err) {
		t.Fatalf("duplicate key must not retry: %v", err)
	}
	if got := countProbes(t, x); got != 1 {
		t.Fatalf("expected single row, found %d", got)
	}
}

func TestHealthReportsReachableDatabase(t *testing.T) {
	x, cleanup := newSQLiteExecutor(t)
	defer cleanup()

	report := x.Health(context.Background())
	if !report.Healthy {
		t.Fatalf("expected healthy report, got error %q", report.Error)
	}
	if report.CheckedAt.IsZero() {
		t.Fatal("expected probe timestamp")
	}
	if report.Latency < 0 {
		t.Fatalf("expected non-negative latency, got %v", report.Latency)
	}
}
