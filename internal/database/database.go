package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"journal-backend/internal/config"
)

type Database struct {
	DB     *sql.DB
	logger *zap.Logger
}

// NewConnection opens a pgx-backed database/sql pool and pings it.
func NewConnection(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Database, error) {
	db, err := sql.Open("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	logger.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName),
	)
	return New(db, logger), nil
}

// New wraps an existing handle, which lets tests pass a sqlmock connection.
func New(db *sql.DB, logger *zap.Logger) *Database {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{DB: db, logger: logger}
}

func (db *Database) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

func (db *Database) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

// RunMigrations applies every schema statement in order. Statements are
// idempotent so the function is safe to call on every start.
func (db *Database) RunMigrations(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.DB.ExecContext(ctx, migration.sql); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", i+1, migration.name, err)
		}
	}
	db.logger.Info("database migrations completed", zap.Int("count", len(migrations)))
	return nil
}

// TableCounts reports row counts for the main tables.
func (db *Database) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(Tables))
	for _, table := range Tables {
		var n int64
		if err := db.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
