// Package db opens the permit database and applies its schema.
// "postgres" goes through pgx/v5 with embedded SQL migrations; "sqlite" is
// pure Go and uses AutoMigrate (local runs and tests).
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mohammed-shakir/food-facility-search/internal/core/config"
	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Handle owns the gorm DB and, for postgres, the pgx pool behind it.
type Handle struct {
	Gorm *gorm.DB
	pool *pgxpool.Pool
}

func Open(ctx context.Context, cfg config.DBCfg) (*Handle, error) {
	switch cfg.Driver {
	case "postgres":
		return openPostgres(ctx, cfg)
	case "sqlite":
		g, err := OpenSQLite(cfg.File)
		if err != nil {
			return nil, err
		}
		return &Handle{Gorm: g}, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// OpenSQLite opens (or creates) a sqlite database. Use
// "file:<name>?mode=memory&cache=shared" for an in-memory one.
func OpenSQLite(file string) (*gorm.DB, error) {
	g, err := gorm.Open(sqlite.Open(file), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := g.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := g.AutoMigrate(&model.Permit{}); err != nil {
		return nil, fmt.Errorf("sqlite automigrate: %w", err)
	}
	return g, nil
}

func openPostgres(ctx context.Context, cfg config.DBCfg) (*Handle, error) {
	dsn := cfg.PostgresDSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	if cfg.MaxConns > math.MaxInt32 {
		return nil, fmt.Errorf("DB_MAX_CONNS %d exceeds maximum value (%d)", cfg.MaxConns, math.MaxInt32)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migratePostgres(poolCfg); err != nil {
		pool.Close()
		return nil, err
	}

	g, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm/postgres: %w", err)
	}
	return &Handle{Gorm: g, pool: pool}, nil
}

func migratePostgres(poolCfg *pgxpool.Config) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	sqlDB := stdlib.OpenDB(*poolCfg.ConnConfig)
	defer func() { _ = sqlDB.Close() }()

	driver, err := migratepostgres.WithInstance(sqlDB, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Ping satisfies health.Pinger.
func (h *Handle) Ping(ctx context.Context) error {
	sqlDB, err := h.Gorm.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (h *Handle) Close() error {
	sqlDB, err := h.Gorm.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if h.pool != nil {
		h.pool.Close()
	}
	return err
}

// MigrationNames lists the embedded migration files.
func MigrationNames() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out, nil
}
