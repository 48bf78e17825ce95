// Package postgres stores bot data in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oatsaysai/budgetbuddy/internal/config"
	"github.com/oatsaysai/budgetbuddy/internal/store"
	"go.uber.org/zap"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Connect creates the connection pool described by cfg.
func Connect(ctx context.Context, cfg config.PostgreSQLConfig, log *zap.Logger) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable search_path=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.Schema,
	)

	connectConf, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse PostgreSQL config: %w", err)
	}

	if cfg.PoolMaxConns > 0 {
		connectConf.MaxConns = int32(cfg.PoolMaxConns)
	}
	connectConf.HealthCheckPeriod = 15 * time.Second
	connectConf.ConnConfig.ConnectTimeout = 5 * time.Second

	// Set timezone to PGX runtime
	if s := os.Getenv("TZ"); s != "" {
		connectConf.ConnConfig.RuntimeParams["timezone"] = s
	}

	pool, err := pgxpool.NewWithConfig(ctx, connectConf)
	if err != nil {
		return nil, fmt.Errorf("unable to create PostgreSQL connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach PostgreSQL: %w", err)
	}

	log.Info("connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return &Store{pool: pool, log: log}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var migrations = []struct {
	name string
	sql  string
}{
	{"update_modified_column function", `
    CREATE OR REPLACE FUNCTION update_modified_column()
    RETURNS TRIGGER AS $$
    BEGIN
       NEW.updated_at = NOW();
       RETURN NEW;
    END;
    $$ language 'plpgsql';`},
	{"users table", `
    CREATE TABLE IF NOT EXISTS users (
        id VARCHAR(24) PRIMARY KEY,
        chat_id VARCHAR(64) UNIQUE,
        name TEXT NOT NULL DEFAULT '',
        email TEXT UNIQUE,
        mobile VARCHAR(10) UNIQUE,
        is_verified BOOLEAN NOT NULL DEFAULT FALSE,
        status VARCHAR(16) NOT NULL DEFAULT 'active',
        currency_preference VARCHAR(3),
        curr_state TEXT NOT NULL DEFAULT '',
        in_progress_data JSONB NOT NULL DEFAULT '{}',
        transaction_ids TEXT[] NOT NULL DEFAULT '{}',
        split_ids TEXT[] NOT NULL DEFAULT '{}',
        group_ids TEXT[] NOT NULL DEFAULT '{}',
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    );`},
	{"users trigger", `
    DROP TRIGGER IF EXISTS update_users_modtime ON users;
    CREATE TRIGGER update_users_modtime
    BEFORE UPDATE ON users
    FOR EACH ROW
    EXECUTE FUNCTION update_modified_column();`},
	{"groups table", `
    CREATE TABLE IF NOT EXISTS expense_groups (
        id VARCHAR(24) PRIMARY KEY,
        name VARCHAR(50) NOT NULL,
        description VARCHAR(200) NOT NULL DEFAULT '',
        members TEXT[] NOT NULL,
        created_by VARCHAR(24) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_expense_groups_members ON expense_groups USING GIN (members);`},
	{"groups trigger", `
    DROP TRIGGER IF EXISTS update_expense_groups_modtime ON expense_groups;
    CREATE TRIGGER update_expense_groups_modtime
    BEFORE UPDATE ON expense_groups
    FOR EACH ROW
    EXECUTE FUNCTION update_modified_column();`},
	{"transactions table", `
    CREATE TABLE IF NOT EXISTS transactions (
        id VARCHAR(24) PRIMARY KEY,
        user_id VARCHAR(24) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
        amount NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
        currency VARCHAR(3) NOT NULL,
        category TEXT NOT NULL,
        description TEXT,
        type VARCHAR(8) NOT NULL,
        split_type VARCHAR(8) NOT NULL DEFAULT 'personal',
        group_id VARCHAR(24),
        date TIMESTAMPTZ NOT NULL,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date DESC);`},
	{"splits tables", `
    CREATE TABLE IF NOT EXISTS splits (
        id VARCHAR(24) PRIMARY KEY,
        transaction_id VARCHAR(24) NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
        paid_by VARCHAR(24) NOT NULL,
        group_id VARCHAR(24),
        split_type VARCHAR(10) NOT NULL,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS split_participants (
        split_id VARCHAR(24) NOT NULL REFERENCES splits(id) ON DELETE CASCADE,
        position INT NOT NULL,
        user_id VARCHAR(24) NOT NULL,
        share NUMERIC(14, 2) NOT NULL,
        settled BOOLEAN NOT NULL DEFAULT FALSE,
        settlement_method TEXT,
        PRIMARY KEY (split_id, position)
    );
    CREATE INDEX IF NOT EXISTS idx_split_participants_user_id ON split_participants(user_id);`},
	{"one_time_codes table", `
    CREATE TABLE IF NOT EXISTS one_time_codes (
        id VARCHAR(24) PRIMARY KEY,
        email TEXT NOT NULL UNIQUE,
        code VARCHAR(6) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    );`},
}

// Migrate sets up the database schema
func (s *Store) Migrate(ctx context.Context) error {
	s.log.Info("starting database migration")
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", m.name, err)
		}
	}
	s.log.Info("database migration completed")
	return nil
}

// notFound maps pgx.ErrNoRows to store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// nullable stores empty strings as NULL so unique columns allow many blanks.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
