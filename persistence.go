package inbox

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// PersistenceConfig is the subset of connection settings the persistence
// client needs. DSN goes in GetServer; GetDriver selects the dialect.
type PersistenceConfig interface {
	GetDebug() bool
	GetDriver() string
	GetServer() string
	GetPingTimeout() time.Duration
	GetOtelIdentifier() string
}

// NewPersistenceClient opens the database named by cfg and wraps it in a
// persistence client. Migrations are not applied here; register the
// embedded DDL through the migrations package and call Migrate on the
// returned client.
func NewPersistenceClient(cfg PersistenceConfig) (*persistence.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("inbox: persistence config is required")
	}

	driver := strings.TrimSpace(strings.ToLower(cfg.GetDriver()))
	var dialect schema.Dialect
	switch driver {
	case "postgres", "pq":
		driver = "postgres"
		dialect = pgdialect.New()
	case "sqlite", "sqlite3":
		driver = "sqlite3"
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("inbox: unsupported database driver %q", cfg.GetDriver())
	}

	sqlDB, err := sql.Open(driver, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("inbox: open database: %w", err)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}
