// Package migrations exposes the embedded webhook schema per SQL dialect and
// registers it with a migration runner such as go-persistence-bun.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"

	webhooks "github.com/goliatone/go-webhooks"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	// SourceLabel identifies these migrations to runners that track sources.
	SourceLabel = "go-webhooks"
)

// Source is one dialect's migration directory.
type Source struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

// RegisterFunc receives each selected dialect's filesystem.
type RegisterFunc func(ctx context.Context, dialect string, fsys fs.FS) error

type settings struct {
	dialects []string
	root     fs.FS
}

type Option func(*settings)

// WithDialects limits registration to the given dialects. Unknown names are
// rejected by Register.
func WithDialects(dialects ...string) Option {
	return func(s *settings) {
		var next []string
		for _, dialect := range dialects {
			dialect = normalizeDialect(dialect)
			if dialect != "" && !slices.Contains(next, dialect) {
				next = append(next, dialect)
			}
		}
		if len(next) > 0 {
			s.dialects = next
		}
	}
}

// WithRoot reads migrations from fsys instead of the embedded tree. fsys
// must contain data/sql/migrations or the *.sql files at its root.
func WithRoot(fsys fs.FS) Option {
	return func(s *settings) {
		if fsys != nil {
			s.root = fsys
		}
	}
}

// Sources returns the postgres and sqlite migration directories. Every
// up migration needs a down migration and both dialects must ship the same
// versions, so a schema change cannot land for one database only.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = webhooks.GetMigrationsFS()
	}
	base, basePath, err := migrationsRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite directory: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: path.Join(basePath, "sqlite"), FS: sqliteFS},
	}
	for i := range sources {
		versions, err := versionsOf(sources[i])
		if err != nil {
			return nil, err
		}
		sources[i].Versions = versions
	}
	if !slices.Equal(sources[0].Versions, sources[1].Versions) {
		return nil, fmt.Errorf(
			"migrations: postgres versions %v differ from sqlite versions %v",
			sources[0].Versions, sources[1].Versions,
		)
	}
	return sources, nil
}

// Register hands each selected dialect's migrations to fn. Both dialects
// are selected by default.
func Register(ctx context.Context, fn RegisterFunc, opts ...Option) ([]Source, error) {
	if fn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	cfg := settings{dialects: []string{DialectPostgres, DialectSQLite}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	for _, dialect := range cfg.dialects {
		if dialect != DialectPostgres && dialect != DialectSQLite {
			return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
	}

	sources, err := Sources(cfg.root)
	if err != nil {
		return nil, err
	}
	registered := make([]Source, 0, len(cfg.dialects))
	for _, source := range sources {
		if !slices.Contains(cfg.dialects, source.Dialect) {
			continue
		}
		if err := fn(ctx, source.Dialect, source.FS); err != nil {
			return registered, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered = append(registered, source)
	}
	return registered, nil
}

func versionsOf(source Source) ([]string, error) {
	ups, err := fs.Glob(source.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", source.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s directory %q has no *.up.sql files", source.Dialect, source.Path)
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(source.FS, version+".down.sql"); err != nil {
			return nil, fmt.Errorf("migrations: %s %s has no down migration", source.Dialect, version)
		}
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}

func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	const dir = "data/sql/migrations"
	if info, err := fs.Stat(root, dir); err == nil && info.IsDir() {
		sub, err := fs.Sub(root, dir)
		if err != nil {
			return nil, "", fmt.Errorf("migrations: resolve %s: %w", dir, err)
		}
		return sub, dir, nil
	}
	if matches, _ := fs.Glob(root, "*.sql"); len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", dir)
}

func normalizeDialect(dialect string) string {
	switch dialect = strings.ToLower(strings.TrimSpace(dialect)); dialect {
	case "sqlite3":
		return DialectSQLite
	case "pg", "postgresql":
		return DialectPostgres
	default:
		return dialect
	}
}
