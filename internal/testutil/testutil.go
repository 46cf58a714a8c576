// Package testutil builds in-memory databases and fixtures for service tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/database"
	"campus-events/internal/models"
	"campus-events/internal/utils"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewTestDB returns a private in-memory SQLite database with the full schema
// and the default departments. A single connection serializes transactions
// the same way row locks do in Postgres.
func NewTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.CreateSchema(context.Background(), db))
	return db
}

func CreateUser(t *testing.T, db bun.IDB, name string, role actor.Role) *models.User {
	t.Helper()
	u := &models.User{
		ID:           utils.NewID(),
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@campus.test", name, utils.NewID()[:8]),
		PasswordHash: "x",
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := db.NewInsert().Model(u).Exec(context.Background())
	require.NoError(t, err)
	return u
}

// FirstDepartment returns the ID of a seeded department.
func FirstDepartment(t *testing.T, db bun.IDB) int64 {
	t.Helper()
	var d models.Department
	err := db.NewSelect().Model(&d).Order("d.id ASC").Limit(1).Scan(context.Background())
	require.NoError(t, err)
	return d.ID
}

type EventOption func(*models.Event)

func WithCapacity(n int) EventOption {
	return func(e *models.Event) { e.MaxParticipants = &n }
}

func WithStatus(s models.EventStatus) EventOption {
	return func(e *models.Event) { e.Status = s }
}

func StartingAt(t time.Time) EventOption {
	return func(e *models.Event) {
		e.StartsAt = t.UTC().Truncate(time.Second)
		e.Date = e.StartsAt.Format(models.DateLayout)
		e.Time = e.StartsAt.Format("15:04:05")
	}
}

func WithType(typ string) EventOption {
	return func(e *models.Event) { e.Type = typ }
}

// CreateEvent inserts an approved event one week out, owned by creator.
func CreateEvent(t *testing.T, db bun.IDB, creator *models.User, title string, opts ...EventOption) *models.Event {
	t.Helper()
	now := time.Now().UTC()
	e := &models.Event{
		ID:        utils.NewID(),
		Title:     title,
		Location:  "Main Hall",
		DeptID:    FirstDepartment(t, db),
		CreatedBy: creator.ID,
		Type:      "workshop",
		Status:    models.EventApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	StartingAt(now.Add(7 * 24 * time.Hour))(e)
	for _, opt := range opts {
		opt(e)
	}
	_, err := db.NewInsert().Model(e).Exec(context.Background())
	require.NoError(t, err)
	return e
}

// Clock is a settable time source for services under test.
type Clock struct {
	T time.Time
}

func (c *Clock) Now() time.Time {
	return c.T
}

func (c *Clock) Set(t time.Time) {
	c.T = t
}
