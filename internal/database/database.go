// Package database opens the bun connection for the configured driver and
// prepares its schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"campus-events/internal/config"
	"campus-events/internal/logger"
	"campus-events/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultDepartments seeds a fresh database.
var DefaultDepartments = []string{
	"Arts and Humanities",
	"Business Administration",
	"Computer Science",
	"Electrical Engineering",
	"Mechanical Engineering",
	"Student Affairs",
}

// Open connects with retries and returns a bun DB for the configured dialect.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	driverName := DriverPostgres
	if cfg.Driver == DriverSQLite {
		driverName = sqliteshim.ShimName
	} else if cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	var sqldb *sql.DB
	var err error
	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, maxRetries))
		sqldb, err = sql.Open(driverName, cfg.URL)
		if err == nil {
			if err = sqldb.PingContext(ctx); err == nil {
				break
			}
			sqldb.Close()
		}
		log.Error("DATABASE", fmt.Sprintf("Connection failed: %v", err))
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Driver, maxRetries, err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer; a single connection keeps transactions
		// from failing with SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

var schemaModels = []interface{}{
	(*models.User)(nil),
	(*models.Department)(nil),
	(*models.Event)(nil),
	(*models.Registration)(nil),
	(*models.Notification)(nil),
	(*models.Feedback)(nil),
	(*models.UserProfile)(nil),
}

// CreateSchema builds the tables from the bun models. Used for SQLite, where
// the Postgres migrations do not apply.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		name    string
		model   interface{}
		columns []string
	}{
		{"idx_events_starts_at", (*models.Event)(nil), []string{"starts_at"}},
		{"idx_registrations_event_status", (*models.Registration)(nil), []string{"event_id", "status", "registered_at"}},
		{"idx_notifications_user", (*models.Notification)(nil), []string{"user_id", "created_at"}},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return SeedDepartments(ctx, db)
}

// SeedDepartments inserts DefaultDepartments when the table is empty.
func SeedDepartments(ctx context.Context, db bun.IDB) error {
	count, err := db.NewSelect().Model((*models.Department)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count departments: %w", err)
	}
	if count > 0 {
		return nil
	}
	depts := make([]models.Department, len(DefaultDepartments))
	for i, name := range DefaultDepartments {
		depts[i] = models.Department{Name: name}
	}
	if _, err := db.NewInsert().Model(&depts).Exec(ctx); err != nil {
		return fmt.Errorf("seed departments: %w", err)
	}
	return nil
}
