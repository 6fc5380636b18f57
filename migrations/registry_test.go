package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	webhooks "github.com/goliatone/go-webhooks"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ReturnsMatchingDialects(t *testing.T) {
	sources, err := Sources(nil)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Dialect != DialectPostgres || sources[1].Dialect != DialectSQLite {
		t.Fatalf("expected postgres then sqlite, got %s/%s", sources[0].Dialect, sources[1].Dialect)
	}
	want := []string{"00001_webhooks_registries", "00002_webhooks_configs", "00003_webhooks_deliveries"}
	for _, source := range sources {
		if strings.Join(source.Versions, ",") != strings.Join(want, ",") {
			t.Fatalf("expected %s versions %v, got %v", source.Dialect, want, source.Versions)
		}
	}
	if sources[1].Path != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected sqlite path %q", sources[1].Path)
	}
}

func TestSources_RejectsDialectDrift(t *testing.T) {
	root := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_a.down.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00002_b.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00002_b.down.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Sources(root); err == nil {
		t.Fatalf("expected drift between dialects to be rejected")
	}
}

func TestSources_RequiresDownMigrations(t *testing.T) {
	root := fstest.MapFS{
		"00001_a.up.sql":          {Data: []byte("SELECT 1;")},
		"sqlite/00001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"sqlite/00001_a.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Sources(root); err == nil || !strings.Contains(err.Error(), "down migration") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}
}

func TestRegister_SelectsDialects(t *testing.T) {
	var calls []string
	registered, err := Register(context.Background(), func(_ context.Context, dialect string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithDialects("sqlite3"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite {
		t.Fatalf("expected a single sqlite registration, got %v", calls)
	}
	if len(registered) != 1 || registered[0].Dialect != DialectSQLite {
		t.Fatalf("expected sqlite source returned, got %#v", registered)
	}
}

func TestRegister_DefaultsToBothDialects(t *testing.T) {
	var calls []string
	if _, err := Register(context.Background(), func(_ context.Context, dialect string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected both dialects registered, got %v", calls)
	}
}

func TestRegister_RejectsUnknownDialectAndNilFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected nil register func to be rejected")
	}
	noop := func(context.Context, string, fs.FS) error { return nil }
	if _, err := Register(context.Background(), noop, WithDialects("mysql")); err == nil {
		t.Fatalf("expected unsupported dialect to be rejected")
	}
}

func TestRegister_WrapsRegistrationErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Register(context.Background(), func(context.Context, string, fs.FS) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped registration error, got %v", err)
	}
}

func TestWebhookMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := webhooks.GetMigrationsFS()
	names := []string{
		"00001_webhooks_registries",
		"00002_webhooks_configs",
		"00003_webhooks_deliveries",
	}
	for _, name := range names {
		for _, dir := range []string{"data/sql/migrations", "data/sql/migrations/sqlite"} {
			for _, suffix := range []string{".up.sql", ".down.sql"} {
				migrationPath := dir + "/" + name + suffix
				content, err := fs.ReadFile(root, migrationPath)
				if err != nil {
					t.Fatalf("read migration %s: %v", migrationPath, err)
				}
				if strings.TrimSpace(string(content)) == "" {
					t.Fatalf("expected migration %s to have SQL content", migrationPath)
				}
			}
		}
	}
}

func TestSQLiteWebhookMigrations_ApplyCascadeAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-webhooks?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)
	ctx := context.Background()

	sqliteMigrations, err := fs.Sub(webhooks.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ups := []string{
		"00001_webhooks_registries.up.sql",
		"00002_webhooks_configs.up.sql",
		"00003_webhooks_deliveries.up.sql",
	}
	for _, migration := range ups {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply migration %s: %v", migration, err)
		}
	}

	seed := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO webhook_registries (id, name, hostname) VALUES (?, ?, ?)`, []any{"reg_1", "primary", "registry.example.com"}},
		{`INSERT INTO webhook_namespaces (id, registry_id, name) VALUES (?, ?, ?)`, []any{"ns_1", "reg_1", "team"}},
		{`INSERT INTO webhooks (id, namespace_id, url, enabled) VALUES (?, ?, ?, ?)`, []any{"wh_1", "ns_1", "http://hooks.example.com", true}},
		{`INSERT INTO webhooks (id, namespace_id, url, enabled) VALUES (?, ?, ?, ?)`, []any{"wh_2", "ns_1", "http://hooks.example.com", true}},
		{`INSERT INTO webhook_headers (id, webhook_id, name, value) VALUES (?, ?, ?, ?)`, []any{"hdr_1", "wh_1", "X-Token", "abc"}},
		{`INSERT INTO webhook_deliveries (id, webhook_id, token) VALUES (?, ?, ?)`, []any{"dlv_1", "wh_1", "tok"}},
		{`INSERT INTO webhook_deliveries (id, webhook_id, token) VALUES (?, ?, ?)`, []any{"dlv_2", "wh_2", "tok"}},
	}
	for _, row := range seed {
		if _, err := db.ExecContext(ctx, row.query, row.args...); err != nil {
			t.Fatalf("seed %q: %v", row.query, err)
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, webhook_id, token) VALUES (?, ?, ?)`,
		"dlv_3", "wh_1", "tok",
	); err == nil {
		t.Fatalf("expected (webhook_id, token) unique violation")
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, "wh_1"); err != nil {
		t.Fatalf("delete webhook: %v", err)
	}
	for _, check := range []struct {
		table string
		want  int
	}{
		{"webhook_headers", 0},
		{"webhook_deliveries", 1},
	} {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+check.table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", check.table, err)
		}
		if count != check.want {
			t.Fatalf("expected %d rows in %s after cascade, got %d", check.want, check.table, count)
		}
	}

	downs := []string{
		"00003_webhooks_deliveries.down.sql",
		"00002_webhooks_configs.down.sql",
		"00001_webhooks_registries.down.sql",
	}
	for _, migration := range downs {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("rollback migration %s: %v", migration, err)
		}
	}
	var tables int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name LIKE 'webhook%'`,
	).Scan(&tables); err != nil {
		t.Fatalf("count tables after rollback: %v", err)
	}
	if tables != 0 {
		t.Fatalf("expected all webhook tables dropped, got %d", tables)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
