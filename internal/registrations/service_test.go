package registrations_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/kafka"
	"campus-events/internal/lock"
	"campus-events/internal/logger"
	"campus-events/internal/metrics"
	"campus-events/internal/models"
	"campus-events/internal/passes"
	"campus-events/internal/registrations"
	"campus-events/internal/store"
	"campus-events/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type fixture struct {
	db      *bun.DB
	store   *store.Store
	svc     *registrations.Service
	pub     *testutil.RecordingPublisher
	metrics *metrics.Metrics
	clock   *testutil.Clock
	creator *models.User
}

func newFixture(t *testing.T, locker lock.Locker) *fixture {
	db := testutil.NewTestDB(t)
	st := store.New(db)
	gen, err := passes.NewGenerator("test-secret")
	require.NoError(t, err)

	f := &fixture{
		db:      db,
		store:   st,
		pub:     &testutil.RecordingPublisher{},
		metrics: metrics.New(),
		clock:   &testutil.Clock{T: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)},
		creator: testutil.CreateUser(t, db, "organizer", actor.RoleOrganizer),
	}
	f.svc = registrations.NewService(st, locker,
		kafka.NewEmitter(f.pub, kafka.NewTopics("campus"), logger.Discard()),
		f.metrics, logger.Discard(),
		registrations.WithClock(f.clock.Now),
		registrations.WithPasses(gen),
	)
	return f
}

func (f *fixture) event(t *testing.T, capacity int, opts ...testutil.EventOption) *models.Event {
	opts = append([]testutil.EventOption{testutil.StartingAt(f.clock.Now().Add(72 * time.Hour))}, opts...)
	if capacity > 0 {
		opts = append(opts, testutil.WithCapacity(capacity))
	}
	return testutil.CreateEvent(t, f.db, f.creator, "Capacity Test", opts...)
}

func (f *fixture) students(t *testing.T, n int) []*models.User {
	out := make([]*models.User, n)
	for i := range out {
		out[i] = testutil.CreateUser(t, f.db, fmt.Sprintf("student%d", i), actor.RoleStudent)
	}
	return out
}

func (f *fixture) statusOf(t *testing.T, eventID, userID string) models.RegistrationStatus {
	r, err := f.store.RegistrationFor(context.Background(), eventID, userID)
	require.NoError(t, err)
	return r.Status
}

func (f *fixture) messagesFor(t *testing.T, userID string) []string {
	var notes []models.Notification
	err := f.db.NewSelect().Model(&notes).Where("n.user_id = ?", userID).Order("n.created_at ASC", "n.id ASC").Scan(context.Background())
	require.NoError(t, err)
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Message
	}
	return out
}

func TestRegister_ConfirmsThenWaitlists(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, 2)
	users := f.students(t, 3)

	var got []models.RegistrationStatus
	for _, u := range users {
		r, err := f.svc.Register(ctx, u.Actor(), e.ID)
		require.NoError(t, err)
		got = append(got, r.Status)
		f.clock.Set(f.clock.Now().Add(time.Second))
	}
	assert.Equal(t, []models.RegistrationStatus{
		models.RegistrationConfirmed, models.RegistrationConfirmed, models.RegistrationWaitlisted,
	}, got)

	msgs := f.messagesFor(t, f.creator.ID)
	require.Len(t, msgs, 3)
	assert.Equal(t, `A new user has registered for your event "Capacity Test"`, msgs[0])

	assert.Equal(t, 2.0, prom.ToFloat64(f.metrics.Registrations.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, prom.ToFloat64(f.metrics.Registrations.WithLabelValues("waitlisted")))
	assert.Len(t, f.pub.OnTopic("campus.registrations"), 3)
}

func TestRegister_UnlimitedCapacity(t *testing.T) {
	f := newFixture(t, nil)
	e := f.event(t, 0)
	for _, u := range f.students(t, 5) {
		r, err := f.svc.Register(context.Background(), u.Actor(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RegistrationConfirmed, r.Status)
	}
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, 5)
	pending := f.event(t, 5, testutil.WithStatus(models.EventPending))
	rejected := f.event(t, 5, testutil.WithStatus(models.EventRejected))
	u := f.students(t, 1)[0]

	_, err := f.svc.Register(ctx, u.Actor(), e.ID)
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, u.Actor(), e.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "duplicate: %v", err)

	_, err = f.svc.Register(ctx, u.Actor(), pending.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Register(ctx, u.Actor(), rejected.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Register(ctx, u.Actor(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Register(ctx, actor.Anonymous(), e.ID)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	confirmed, err := f.store.CountConfirmed(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed)
}

func TestCancel_PromotesWaitlistInArrivalOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, 1)
	users := f.students(t, 4)

	for _, u := range users {
		_, err := f.svc.Register(ctx, u.Actor(), e.ID)
		require.NoError(t, err)
		f.clock.Set(f.clock.Now().Add(time.Minute))
	}

	for i := 0; i < 3; i++ {
		res, err := f.svc.Cancel(ctx, users[i].Actor(), e.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Promoted, "cancel %d should promote", i)
		assert.Equal(t, users[i+1].ID, res.Promoted.UserID)
		assert.Equal(t, models.RegistrationConfirmed, f.statusOf(t, e.ID, users[i+1].ID))

		confirmed, err := f.store.CountConfirmed(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, confirmed)
	}

	assert.Equal(t, []string{
		`You have been moved from the waitlist to confirmed for the event "Capacity Test"`,
	}, f.messagesFor(t, users[1].ID))

	msgs := testutil.Decode[models.RegistrationMessage](f.pub, "campus.registrations")
	var promoted int
	for _, m := range msgs {
		if m.Action == models.ActionPromoted {
			promoted++
		}
	}
	assert.Equal(t, 3, promoted)
	assert.Equal(t, 3.0, prom.ToFloat64(f.metrics.Promotions))
}

func TestCancel_WaitlistedDoesNotPromote(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, 1)
	users := f.students(t, 3)
	for _, u := range users {
		_, err := f.svc.Register(ctx, u.Actor(), e.ID)
		require.NoError(t, err)
	}

	res, err := f.svc.Cancel(ctx, users[1].Actor(), e.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Promoted)
	assert.Equal(t, models.RegistrationWaitlisted, res.Cancelled.Status)
	assert.Equal(t, models.RegistrationConfirmed, f.statusOf(t, e.ID, users[0].ID))
	assert.Equal(t, models.RegistrationWaitlisted, f.statusOf(t, e.ID, users[2].ID))
}

func TestCancel_ConfirmedWithEmptyWaitlist(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, 3)
	u := f.students(t, 1)[0]
	_, err := f.svc.Register(ctx, u.Actor(), e.ID)
	require.NoError(t, err)

	res, err := f.svc.Cancel(ctx, u.Actor(), e.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Promoted)

	_, err = f.store.RegistrationFor(ctx, e.ID, u.ID)
	assert.True(t, store.IsNotFound(err))
}

func TestCancel_TimeBoundary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	start := f.clock.Now().Add(time.Hour)
	e := f.event(t, 5, testutil.StartingAt(start))
	users := f.students(t, 2)
	for _, u := range users {
		_, err := f.svc.Register(ctx, u.Actor(), e.ID)
		require.NoError(t, err)
	}

	f.clock.Set(start)
	_, err := f.svc.Cancel(ctx, users[0].Actor(), e.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState), "at start: %v", err)

	f.clock.Set(start.Add(time.Minute))
	_, err = f.svc.Cancel(ctx, users[0].Actor(), e.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	f.clock.Set(start.Add(-time.Second))
	_, err = f.svc.Cancel(ctx, users[1].Actor(), e.ID)
	assert.NoError(t, err)

	assert.Equal(t, models.RegistrationConfirmed, f.statusOf(t, e.ID, users[0].ID), "rejected cancel leaves the row")
}

func TestCancel_NoRegistration(t *testing.T) {
	f := newFixture(t, nil)
	e := f.event(t, 5)
	u := f.students(t, 1)[0]

	_, err := f.svc.Cancel(context.Background(), u.Actor(), e.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Cancel(context.Background(), u.Actor(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func runConcurrentRegistrations(t *testing.T, f *fixture, capacity, attempts int) {
	ctx := context.Background()
	e := f.event(t, capacity)
	users := f.students(t, attempts)

	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for _, u := range users {
		wg.Add(1)
		go func(a actor.Actor) {
			defer wg.Done()
			if _, err := f.svc.Register(ctx, a, e.ID); err != nil {
				errs <- err
			}
		}(u.Actor())
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("register failed: %v", err)
	}

	confirmed, err := f.store.CountConfirmed(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, confirmed, "confirmed registrations must equal capacity")

	total, err := f.db.NewSelect().Model((*models.Registration)(nil)).Where("event_id = ?", e.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, attempts, total)
}

func TestConcurrentRegistrations_NeverExceedCapacity(t *testing.T) {
	f := newFixture(t, nil)
	runConcurrentRegistrations(t, f, 5, 50)
}

func TestConcurrentRegistrations_WithRedisLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := lock.NewRedisLocker(client, 10*time.Second, logger.Discard())
	locker.Retry = time.Millisecond
	f := newFixture(t, locker)
	runConcurrentRegistrations(t, f, 5, 30)
}

func TestConcurrentCancelAndRegister_OnePromotionPerSeat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, 5)
	initial := f.students(t, 10)
	for _, u := range initial {
		_, err := f.svc.Register(ctx, u.Actor(), e.ID)
		require.NoError(t, err)
	}
	newcomers := make([]*models.User, 5)
	for i := range newcomers {
		newcomers[i] = testutil.CreateUser(t, f.db, fmt.Sprintf("late%d", i), actor.RoleStudent)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	promoted := map[string]int{}
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(a actor.Actor) {
			defer wg.Done()
			res, err := f.svc.Cancel(ctx, a, e.ID)
			if assert.NoError(t, err) && res.Promoted != nil {
				mu.Lock()
				promoted[res.Promoted.UserID]++
				mu.Unlock()
			}
		}(initial[i].Actor())
		go func(a actor.Actor) {
			defer wg.Done()
			_, err := f.svc.Register(ctx, a, e.ID)
			assert.NoError(t, err)
		}(newcomers[i].Actor())
	}
	wg.Wait()

	confirmed, err := f.store.CountConfirmed(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, confirmed)
	for userID, n := range promoted {
		assert.Equal(t, 1, n, "user %s promoted more than once", userID)
	}
	for _, u := range initial[5:] {
		assert.Equal(t, models.RegistrationConfirmed, f.statusOf(t, e.ID, u.ID), "original waitlist is served first")
	}
}

func TestListForUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e1 := f.event(t, 1)
	e2 := f.event(t, 1)
	users := f.students(t, 2)

	_, err := f.svc.Register(ctx, users[1].Actor(), e2.ID)
	require.NoError(t, err)
	for _, id := range []string{e1.ID, e2.ID} {
		_, err := f.svc.Register(ctx, users[0].Actor(), id)
		require.NoError(t, err)
	}

	rows, err := f.svc.ListForUser(ctx, users[0].Actor())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byEvent := map[string]models.RegistrationStatus{}
	for _, r := range rows {
		byEvent[r.ID] = r.RegistrationStatus
		assert.NotEmpty(t, r.DepartmentName)
	}
	assert.Equal(t, models.RegistrationConfirmed, byEvent[e1.ID])
	assert.Equal(t, models.RegistrationWaitlisted, byEvent[e2.ID])

	_, err = f.svc.ListForUser(ctx, actor.Anonymous())
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestPass(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	e := f.event(t, 1)
	users := f.students(t, 3)
	for _, u := range users[:2] {
		_, err := f.svc.Register(ctx, u.Actor(), e.ID)
		require.NoError(t, err)
	}

	png, err := f.svc.Pass(ctx, users[0].Actor(), e.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	_, err = f.svc.Pass(ctx, users[1].Actor(), e.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	_, err = f.svc.Pass(ctx, users[2].Actor(), e.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
