package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyplanner/core/internal/infrastructure/logger"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, logger.NewNop())
	hub.Start()

	e := echo.New()
	e.GET("/ws", hub.Handle)
	srv := httptest.NewServer(e)

	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsTimetableUpdates(t *testing.T) {
	hub, url := startHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.Dial(ctx, url, nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "")
		assert.Equal(t, MessageTypeHello, readMessage(t, ctx, conn).Type)
		conns = append(conns, conn)
	}
	assert.Equal(t, 3, hub.ClientCount())

	hub.TimetableUpdated(4)

	for _, conn := range conns {
		msg := readMessage(t, ctx, conn)
		assert.Equal(t, MessageTypeTimetableUpdated, msg.Type)
		assert.Equal(t, 4, msg.Version)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestHub_RemovesDisconnectedClients(t *testing.T) {
	hub, url := startHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	readMessage(t, ctx, conn)
	require.Equal(t, 1, hub.ClientCount())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CollectionReloaded(t *testing.T) {
	hub, url := startHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	readMessage(t, ctx, conn)

	hub.CollectionReloaded("tasks")

	msg := readMessage(t, ctx, conn)
	assert.Equal(t, MessageTypeCollectionReloaded, msg.Type)
	assert.Equal(t, "tasks", msg.Collection)
}
