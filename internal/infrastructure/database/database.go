// Package database owns the chat schema connection: one gorm handle over
// PostgreSQL shared by the message, notification and push repositories.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Config controls connectivity to the chat database.
type Config struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        gormlogger.LogLevel
	// AutoCreate creates the target database on first boot when it does not
	// exist yet. Disable when the DSN role lacks CREATEDB.
	AutoCreate bool
}

// Connect opens the gorm handle and applies the pool limits. Statements are
// prepared and cached; entity structs carry explicit TableName methods, so the
// naming strategy never guesses a table name.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("chat database DSN is empty")
	}

	if cfg.AutoCreate {
		if err := createDatabaseIfMissing(cfg.DSN); err != nil {
			return nil, fmt.Errorf("create database: %w", err)
		}
	}

	level := cfg.LogLevel
	if level == 0 {
		level = gormlogger.Warn
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		PrepareStmt:    true,
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
		Logger:         gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open chat database: %w", err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql pool: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// LogLevelFromString maps the service log level onto gorm's logger so SQL
// noise tracks the global verbosity: debug traces every statement, everything
// else surfaces only slow queries and errors.
func LogLevelFromString(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return gormlogger.Info
	case "error", "fatal", "panic":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// createDatabaseIfMissing connects to the admin database on the DSN's host
// and creates the target database when it is absent. Non-URL DSN formats are
// left to the server to validate.
func createDatabaseIfMissing(dsn string) error {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil
	}

	target := strings.TrimPrefix(parsed.Path, "/")
	if target == "" || target == "postgres" {
		return nil
	}

	adminDSN := *parsed
	adminDSN.Path = "/postgres"
	admin, err := sql.Open("postgres", adminDSN.String())
	if err != nil {
		return err
	}
	defer admin.Close()

	var exists bool
	row := admin.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", target)
	if err := row.Scan(&exists); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if exists {
		return nil
	}

	quoted := `"` + strings.ReplaceAll(target, `"`, `""`) + `"`
	_, err = admin.Exec("CREATE DATABASE " + quoted)
	return err
}
