package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/common"
)

// PostgresDB manages the PostgreSQL database connection
type PostgresDB struct {
	db     *sql.DB
	logger arbor.ILogger
	config *common.DatabaseConfig
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(logger arbor.ILogger, config *common.DatabaseConfig) (*PostgresDB, error) {
	// pgx stdlib registers itself under the "pgx" driver name
	db, err := sql.Open("pgx", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	p := &PostgresDB{
		db:     db,
		logger: logger,
		config: config,
	}

	if err := p.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("PostgreSQL database initialized")
	return p, nil
}

// DB returns the underlying database connection
func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// BeginTx starts a new transaction
func (p *PostgresDB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return p.db.BeginTx(ctx, nil)
}

// Ping verifies the database connection
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
