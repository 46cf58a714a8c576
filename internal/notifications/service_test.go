package notifications_test

import (
	"context"
	"testing"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
	"campus-events/internal/models"
	"campus-events/internal/notifications"
	"campus-events/internal/store"
	"campus-events/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAndMarkSeen(t *testing.T) {
	db := testutil.NewTestDB(t)
	st := store.New(db)
	svc := notifications.NewService(st)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner", actor.RoleOrganizer)
	other := testutil.CreateUser(t, db, "other", actor.RoleStudent)
	e := testutil.CreateEvent(t, db, owner, "Hackathon")

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	older := models.NewNotification(owner.ID, e.ID, "first", base)
	newer := models.NewNotification(owner.ID, "", "second", base.Add(time.Minute))
	foreign := models.NewNotification(other.ID, e.ID, "not yours", base)
	for _, n := range []*models.Notification{&older, &newer, &foreign} {
		require.NoError(t, st.InsertNotification(ctx, n))
	}

	list, err := svc.List(ctx, owner.Actor())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)
	assert.Empty(t, list[0].EventTitle)
	assert.Equal(t, "Hackathon", list[1].EventTitle)
	assert.False(t, list[1].Seen)

	require.NoError(t, svc.MarkSeen(ctx, owner.Actor(), older.ID))
	list, err = svc.List(ctx, owner.Actor())
	require.NoError(t, err)
	assert.True(t, list[1].Seen)

	err = svc.MarkSeen(ctx, owner.Actor(), foreign.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = svc.MarkSeen(ctx, owner.Actor(), "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.List(ctx, actor.Anonymous())
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}
