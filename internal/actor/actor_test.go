package actor

import (
	"context"
	"testing"

	"campus-events/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("superuser")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCapabilityMatrix(t *testing.T) {
	create := NewCapability("create events", RoleOrganizer, RoleAdmin)
	updateStatus := NewCapability("change event status", RoleAdmin)
	register := AnyUser("register for events")

	student := Actor{UserID: "s1", Role: RoleStudent}
	organizer := Actor{UserID: "o1", Role: RoleOrganizer}
	admin := Actor{UserID: "a1", Role: RoleAdmin}
	anon := Anonymous()

	tests := []struct {
		name string
		cap  Capability
		who  Actor
		kind apperr.Kind
	}{
		{"student cannot create", create, student, apperr.KindAuthorization},
		{"organizer creates", create, organizer, ""},
		{"admin creates", create, admin, ""},
		{"anonymous cannot create", create, anon, apperr.KindUnauthenticated},
		{"organizer cannot change status", updateStatus, organizer, apperr.KindAuthorization},
		{"admin changes status", updateStatus, admin, ""},
		{"student registers", register, student, ""},
		{"anonymous cannot register", register, anon, apperr.KindUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cap.Check(tt.who)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestOwnership(t *testing.T) {
	admin := Actor{UserID: "a1", Role: RoleAdmin}
	organizer := Actor{UserID: "o1", Role: RoleOrganizer}

	assert.True(t, organizer.OwnsOrAdmin("o1"))
	assert.False(t, organizer.OwnsOrAdmin("o2"))
	assert.True(t, admin.OwnsOrAdmin("o2"))
	assert.False(t, Anonymous().OwnsOrAdmin(""))
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "u1", Role: RoleStudent})
	assert.Equal(t, "u1", FromContext(ctx).UserID)
	assert.False(t, FromContext(context.Background()).Authenticated())
}
