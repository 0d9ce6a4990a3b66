package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func New(cfg config.DatabaseConfig) (*bun.DB, error) {
	var (
		database *bun.DB
		err      error
	)

	switch cfg.Driver {
	case DriverPostgres, "":
		database, err = NewPostgres(postgresDSN(cfg))
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:university.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		}
		database, err = NewSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	// In-memory SQLite is per connection; keep the single connection NewSQLite set up.
	if !isMemorySQLite(cfg.Driver, cfg.DSN) {
		configurePool(database, cfg)
	}
	return database, nil
}

func postgresDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		sslMode,
	)
}

// NewPostgres creates a new database connection with a custom DSN (useful for testing)
func NewPostgres(dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	database := bun.NewDB(sqldb, pgdialect.New())

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	slog.Info("database connected successfully", "driver", DriverPostgres)
	return database, nil
}

func NewSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if isMemorySQLite(DriverSQLite, dsn) {
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		sqldb.SetConnMaxLifetime(0)
		sqldb.SetConnMaxIdleTime(0)
	}

	database := bun.NewDB(sqldb, sqlitedialect.New())
	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	slog.Info("database connected successfully", "driver", DriverSQLite)
	return database, nil
}

func isMemorySQLite(driver, dsn string) bool {
	return driver == DriverSQLite &&
		(strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory"))
}

func configurePool(database *bun.DB, cfg config.DatabaseConfig) {
	sqlDB := database.DB

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 25
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 10
	}
	sqlDB.SetMaxIdleConns(maxIdle)

	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime == 0 {
		connMaxLifetime = 300
	}
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 60
	}
	sqlDB.SetConnMaxIdleTime(time.Duration(connMaxIdleTime) * time.Second)

	slog.Info("database pool configured",
		"max_open_conns", maxOpen,
		"max_idle_conns", maxIdle,
		"conn_max_lifetime_seconds", connMaxLifetime,
		"conn_max_idle_time_seconds", connMaxIdleTime,
	)
}

func Close(database *bun.DB) {
	if database != nil {
		_ = database.Close()
	}
}

// RunMigrations creates the tables for models in the given order. Models may
// add constraints and indexes through bun's create-table hooks.
func RunMigrations(ctx context.Context, database *bun.DB, models ...interface{}) error {
	for _, model := range models {
		_, err := database.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model %T: %w", model, err)
		}
	}
	slog.Info("database migrations completed successfully")
	return nil
}
