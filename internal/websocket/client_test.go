package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAfterShutdownIsSafe(t *testing.T) {
	c := NewClient(nil, nil, TopicEvents)

	require.True(t, c.Enqueue([]byte("hello")))

	c.shutdown()
	c.shutdown() // idempotent

	// A reply racing the hub's eviction must be dropped, not panic.
	assert.False(t, c.Enqueue([]byte("late reply")))
}

func TestEnqueueReportsFullBuffer(t *testing.T) {
	c := NewClient(nil, nil, TopicEvents)
	for i := 0; i < cap(c.Send); i++ {
		require.True(t, c.Enqueue([]byte("fill")))
	}
	assert.False(t, c.Enqueue([]byte("overflow")))
}

func TestHubEvictsSlowClientWithoutClosingSend(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := NewClient(h, nil, TopicEvents)
	h.Register <- c

	// Fill the client's buffer so the next broadcast marks it as slow.
	for i := 0; i < cap(c.Send); i++ {
		require.True(t, c.Enqueue([]byte("fill")))
	}
	h.Broadcast <- []byte("evict")
	// A second broadcast is only received once the first was processed.
	h.Broadcast <- []byte("drain")

	select {
	case <-c.done:
	default:
		t.Fatal("expected slow client to be shut down")
	}
	assert.False(t, c.Enqueue([]byte("late")))
}
