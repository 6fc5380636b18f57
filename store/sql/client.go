package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-webhooks/core"
	webhookmigrations "github.com/goliatone/go-webhooks/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ClientConfig adapts core.DatabaseConfig to the go-persistence-bun config
// contract.
type ClientConfig struct {
	Database    core.DatabaseConfig
	PingTimeout time.Duration
	ServiceName string
}

func (c ClientConfig) GetDebug() bool {
	return c.Database.Debug
}

func (c ClientConfig) GetDriver() string {
	return strings.TrimSpace(c.Database.Driver)
}

func (c ClientConfig) GetServer() string {
	return strings.TrimSpace(c.Database.DSN)
}

func (c ClientConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c ClientConfig) GetOtelIdentifier() string {
	if name := strings.TrimSpace(c.ServiceName); name != "" {
		return name
	}
	return "go-webhooks"
}

// OpenClient opens the configured database, registers the embedded webhook
// migrations for its dialect, and applies them.
func OpenClient(ctx context.Context, cfg ClientConfig) (*persistence.Client, error) {
	driver := cfg.GetDriver()
	var (
		dialect         schema.Dialect
		migrationTarget string
	)
	switch driver {
	case DriverSQLite:
		dialect = sqlitedialect.New()
		migrationTarget = webhookmigrations.DialectSQLite
	case DriverPostgres:
		dialect = pgdialect.New()
		migrationTarget = webhookmigrations.DialectPostgres
	default:
		return nil, fmt.Errorf("sqlstore: unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: persistence client: %w", err)
	}

	_, err = webhookmigrations.Register(ctx, func(_ context.Context, target string, fsys fs.FS) error {
		if target != migrationTarget {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, webhookmigrations.WithDialects(migrationTarget))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}
