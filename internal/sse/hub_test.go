package sse

import (
	"context"
	"testing"
	"time"

	"campus-events/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToRecipientOnly(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := hub.Subscribe(ctx, "alice")
	bob := hub.Subscribe(ctx, "bob")

	hub.Deliver(models.Notification{ID: "n1", UserID: "alice", Message: "approved"})

	select {
	case n := <-alice:
		assert.Equal(t, "n1", n.ID)
	case <-time.After(time.Second):
		t.Fatal("alice did not receive notification")
	}
	select {
	case n := <-bob:
		t.Fatalf("bob received %v", n)
	default:
	}
}

func TestHub_UnsubscribesOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.Subscribe(ctx, "alice")
	require.Equal(t, 1, hub.Clients("alice"))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	assert.Equal(t, 0, hub.Clients("alice"))
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx, "alice")
	for i := 0; i < clientBuffer+5; i++ {
		hub.Deliver(models.Notification{UserID: "alice"})
	}
	assert.Len(t, ch, clientBuffer)
}
