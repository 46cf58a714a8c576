package analytics_test

import (
	"context"
	"testing"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/analytics"
	"campus-events/internal/apperr"
	"campus-events/internal/models"
	"campus-events/internal/testutil"
	"campus-events/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func register(t *testing.T, db bun.IDB, e *models.Event, u *models.User, status models.RegistrationStatus, at time.Time) {
	_, err := db.NewInsert().Model(&models.Registration{
		ID: utils.NewID(), EventID: e.ID, UserID: u.ID, Status: status, RegisteredAt: at,
	}).Exec(context.Background())
	require.NoError(t, err)
}

func TestSystemAndHomeStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	svc := analytics.NewService(db, analytics.WithClock(func() time.Time { return now }))

	admin := testutil.CreateUser(t, db, "admin", actor.RoleAdmin)
	org := testutil.CreateUser(t, db, "org", actor.RoleOrganizer)
	student := testutil.CreateUser(t, db, "student", actor.RoleStudent)
	testutil.CreateUser(t, db, "student2", actor.RoleStudent)

	upcoming := testutil.CreateEvent(t, db, org, "Upcoming", testutil.WithType("workshop"))
	testutil.CreateEvent(t, db, org, "Talk", testutil.WithType("talk"))
	testutil.CreateEvent(t, db, org, "Past", testutil.StartingAt(now.Add(-48*time.Hour)))
	testutil.CreateEvent(t, db, org, "Pending", testutil.WithStatus(models.EventPending), testutil.WithType("social"))
	register(t, db, upcoming, student, models.RegistrationConfirmed, now)

	stats, err := svc.SystemStats(ctx, admin.Actor())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalEvents)
	assert.Equal(t, 3, stats.UpcomingEvents)
	assert.Equal(t, 1, stats.PendingEvents)
	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 2, stats.Students)
	assert.Equal(t, 1, stats.Organizers)
	assert.Equal(t, 1, stats.Admins)
	assert.Positive(t, stats.Departments)
	assert.Equal(t, 1, stats.TotalRegistrations)

	_, err = svc.SystemStats(ctx, org.Actor())
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	_, err = svc.SystemStats(ctx, actor.Anonymous())
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	home, err := svc.HomeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, home.UpcomingEvents)
	assert.Equal(t, 2, home.EventTypes, "pending event types are not counted")
	assert.Equal(t, 4, home.Users)
}

func TestEventStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := analytics.NewService(db)

	org := testutil.CreateUser(t, db, "org", actor.RoleOrganizer)
	e := testutil.CreateEvent(t, db, org, "Workshop", testutil.WithCapacity(4))
	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	students := make([]*models.User, 3)
	for i := range students {
		students[i] = testutil.CreateUser(t, db, "student", actor.RoleStudent)
	}
	register(t, db, e, students[0], models.RegistrationConfirmed, day1)
	register(t, db, e, students[1], models.RegistrationConfirmed, day1.Add(time.Hour))
	register(t, db, e, students[2], models.RegistrationWaitlisted, day2)

	stats, err := svc.EventStats(ctx, org.Actor(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Confirmed)
	assert.Equal(t, 1, stats.Waitlisted)
	require.NotNil(t, stats.FillRate)
	assert.InDelta(t, 0.5, *stats.FillRate, 1e-9)
	assert.Equal(t, []analytics.DailyRegistrations{
		{Date: "2026-03-01", Registrations: 2},
		{Date: "2026-03-02", Registrations: 1},
	}, stats.Daily)

	_, err = svc.EventStats(ctx, students[0].Actor(), e.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	_, err = svc.EventStats(ctx, org.Actor(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
