package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugferro/identity-be/internal/database"
)

func newTestEventService(t *testing.T) *EventService {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewEventService(db, nil)
}

func TestCreateAndGetRecentEvents(t *testing.T) {
	svc := newTestEventService(t)

	userID := "u1"
	require.NoError(t, svc.CreateEvent("user.register", "info", "first", &userID))
	require.NoError(t, svc.CreateEvent("system.alert.cpu", "warn", "second", nil))

	events, err := svc.GetRecentEvents(1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "second", events[0].Message)
	assert.Nil(t, events[0].UserID)

	events, err = svc.GetRecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotNil(t, events[1].UserID)
	assert.Equal(t, "u1", *events[1].UserID)
}

func TestPurgeOlderThan(t *testing.T) {
	svc := newTestEventService(t)

	require.NoError(t, svc.CreateEvent("user.register", "info", "recent", nil))
	_, err := svc.db.Exec("UPDATE events SET created_at = ? WHERE message = ?",
		time.Now().UTC().Add(-48*time.Hour), "recent")
	require.NoError(t, err)
	require.NoError(t, svc.CreateEvent("user.register", "info", "fresh", nil))

	purged, err := svc.PurgeOlderThan(time.Now().UTC().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	events, err := svc.GetRecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Message)
}
