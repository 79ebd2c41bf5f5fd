package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"twin-data/common/config"

	_ "github.com/lib/pq"
)

const (
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// NewPostgresDB 打开 PostgreSQL 连接池并探活
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := Configure(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Configure 应用连接池参数并 Ping；失败时由调用方关闭 db
func Configure(ctx context.Context, db *sql.DB, cfg *config.DatabaseConfig) error {
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database %s/%s: %w", cfg.Host, cfg.Database, err)
	}
	return nil
}

// Close 关闭数据库连接
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
