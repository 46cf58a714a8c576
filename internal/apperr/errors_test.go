package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("event %s not found", "e1")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", Conflict("dup"))))
	assert.Equal(t, KindPersistence, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindNotFound))
}

func TestPersistenceKeepsClassifiedErrors(t *testing.T) {
	notFound := NotFound("registration not found")
	assert.Same(t, notFound, Persistence("cancel registration", notFound))

	err := Persistence("delete event", errors.New("disk full"))
	assert.True(t, Is(err, KindPersistence))
	assert.Equal(t, "delete event: disk full", err.Error())
	assert.Equal(t, "delete event", Message(err))
	assert.Nil(t, Persistence("noop", nil))
}

func TestMessageHidesUnclassifiedCauses(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("pq: connection refused")))
}
