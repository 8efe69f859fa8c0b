package services

import (
	"fmt"
	"testing"

	"github.com/isdelr/pteroctrl-be/internal/models"
	"github.com/isdelr/pteroctrl-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastNotifier(t *testing.T) {
	hub := &fakeHub{}
	events := NewEventService(newTestDB(t), NewBroadcastNotifier(hub))

	serverID := "srv-1"
	require.NoError(t, events.CreateEvent("server.start", models.LevelInfo, "started", &serverID))
	require.NoError(t, events.CreateEvent("server.sync", models.LevelInfo, "synced", nil))

	require.Len(t, hub.messages, 3)
	require.Equal(t, "srv-1", hub.messages[1].serverID)
	require.Equal(t, []string{websocket.ActionEvent, websocket.ActionEvent}, hub.actions())
}

func TestEventService_GetServerEvents(t *testing.T) {
	events := NewEventService(newTestDB(t))
	a, b := "srv-a", "srv-b"
	for i := 0; i < 5; i++ {
		require.NoError(t, events.CreateEvent("server.start", models.LevelInfo, fmt.Sprintf("a-%d", i), &a))
	}
	require.NoError(t, events.CreateEventWithDetails("automation", models.LevelInfo, "b-0", `{"k":1}`, &b))

	page, err := events.GetServerEvents(a, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a-4", page[0].Message)
	assert.Equal(t, "a-3", page[1].Message)

	page, err = events.GetServerEvents(a, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a-0", page[0].Message)

	onlyB, err := events.GetServerEvents(b, 10, 0)
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, `{"k":1}`, onlyB[0].Details)

	recent, err := events.GetRecentEvents(3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
	assert.Equal(t, "b-0", recent[0].Message)
}
