package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"gatekeeper/internal/config"
	"gatekeeper/internal/logger"
)

// Open builds the shared bun handle over PostgreSQL. The handle is the
// single storage dependency injected into every store; there is no
// ambient singleton.
func Open(cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode)

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.LogDatabase("CONNECT", cfg.Database, "PostgreSQL connection successful")

	return bun.NewDB(sqldb, pgdialect.New()), nil
}
