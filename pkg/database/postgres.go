package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/session-auth-api/pkg/config"
)

// DSN renders a lib/pq connection string for the given host and port.
func DSN(cfg config.DatabaseConfig, host string, port int) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host,
		port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// URL renders the same connection as a postgres:// URL for golang-migrate.
func URL(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		cfg.SSLMode,
	)
}

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return open(cfg, DSN(cfg, cfg.Host, cfg.Port))
}

// NewReplica connects to the read replica, or returns nil when none is configured.
func NewReplica(cfg config.DatabaseConfig, replica config.ReplicaConfig) (*sqlx.DB, error) {
	if replica.Host == "" {
		return nil, nil
	}
	port := replica.Port
	if port == 0 {
		port = cfg.Port
	}
	return open(cfg, DSN(cfg, replica.Host, port))
}

func open(cfg config.DatabaseConfig, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
