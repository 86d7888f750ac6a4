// Package migrate applies the embedded per-dialect SQL migrations that create
// the commerce tables, unique indexes and foreign keys. Migrations are run by
// goose and tracked in its version table.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/satishbabariya/commerce-client/internal/logger"
	"github.com/satishbabariya/commerce-client/query/dialect"
)

//go:embed migrations
var migrations embed.FS

// Migration describes one migration and its state in the database.
type Migration struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
	Duration  time.Duration
}

// Engine is the main migration engine
type Engine struct {
	db       *sql.DB
	d        dialect.Dialect
	provider *goose.Provider
}

// NewEngine creates a migration engine for db using the migrations written
// for the dialect.
func NewEngine(db *sql.DB, d dialect.Dialect) (*Engine, error) {
	gd, dir, err := gooseDialect(d)
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(migrations, path.Join("migrations", dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", dir, err)
	}
	provider, err := goose.NewProvider(gd, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return &Engine{db: db, d: d, provider: provider}, nil
}

func gooseDialect(d dialect.Dialect) (goose.Dialect, string, error) {
	switch d.GooseDialect() {
	case "postgres":
		return goose.DialectPostgres, "postgres", nil
	case "mysql":
		return goose.DialectMySQL, "mysql", nil
	case "sqlite3":
		return goose.DialectSQLite3, "sqlite", nil
	}
	return "", "", fmt.Errorf("no migrations for dialect %s", d.Name())
}

// Up applies every pending migration and returns the applied ones.
func (e *Engine) Up(ctx context.Context) ([]Migration, error) {
	results, err := e.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return e.fromResults(results), nil
}

// Down rolls back the most recent migration. It returns nil when nothing
// is applied.
func (e *Engine) Down(ctx context.Context) (*Migration, error) {
	result, err := e.provider.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to roll back migration: %w", err)
	}
	applied := e.fromResults([]*goose.MigrationResult{result})
	return &applied[0], nil
}

// Reset rolls back every applied migration.
func (e *Engine) Reset(ctx context.Context) ([]Migration, error) {
	results, err := e.provider.DownTo(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to reset migrations: %w", err)
	}
	return e.fromResults(results), nil
}

// Status lists every known migration with its applied state.
func (e *Engine) Status(ctx context.Context) ([]Migration, error) {
	statuses, err := e.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}
	out := make([]Migration, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Migration{
			Version:   s.Source.Version,
			Name:      path.Base(s.Source.Path),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// Version returns the current database version, 0 when nothing is applied.
func (e *Engine) Version(ctx context.Context) (int64, error) {
	v, err := e.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read database version: %w", err)
	}
	return v, nil
}

func (e *Engine) fromResults(results []*goose.MigrationResult) []Migration {
	out := make([]Migration, 0, len(results))
	for _, r := range results {
		m := Migration{
			Version:  r.Source.Version,
			Name:     path.Base(r.Source.Path),
			Applied:  r.Direction == "up",
			Duration: r.Duration,
		}
		logger.Info("migration", "dialect", e.d.Name(), "version", m.Version, "name", m.Name, "direction", r.Direction, "duration", r.Duration)
		out = append(out, m)
	}
	return out
}
