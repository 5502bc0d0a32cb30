package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/logger"
)

func init() {
	logger.Silence()
}

// connect поднимает сервер, который регистрирует соединение за userID.
func connect(t *testing.T, hub *Hub, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, userID)
		hub.Register(client)
		client.Run()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.ConnectedUsers() > 0 }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg.Type, msg.Data
}

func TestHub_DeliversOnlyToTargetUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx)
	go hub.Run()

	alice, bob := uuid.New(), uuid.New()
	aliceConn := connect(t, hub, alice)
	bobConn := connect(t, hub, bob)
	require.Eventually(t, func() bool { return hub.ConnectedUsers() == 2 }, time.Second, 10*time.Millisecond)

	hub.NotifyUser(alice, "report.claimed", map[string]any{"report_id": "r-1"})

	event, data := readEvent(t, aliceConn)
	assert.Equal(t, "report.claimed", event)
	assert.Equal(t, "r-1", data["report_id"])

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bobConn.ReadMessage()
	assert.Error(t, err)
}

// capturePublisher сохраняет события вместо отправки в Redis.
type capturePublisher struct {
	mu   sync.Mutex
	envs []Envelope
	fail bool
}

func (p *capturePublisher) Publish(_ context.Context, env Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("redis down")
	}
	p.envs = append(p.envs, env)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.envs)
}

func TestHub_UsesPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx)
	go hub.Run()

	pub := &capturePublisher{}
	hub.SetPublisher(pub)

	user := uuid.New()
	hub.NotifyUser(user, "reward.credited", map[string]any{"points": 20})
	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 10*time.Millisecond)

	pub.mu.Lock()
	env := pub.envs[0]
	pub.mu.Unlock()
	assert.Equal(t, user, env.UserID)
	assert.Equal(t, "reward.credited", env.Event)
	assert.JSONEq(t, `{"points":20}`, string(env.Payload))
}

func TestHub_PublisherFailureFallsBackToLocal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx)
	go hub.Run()
	hub.SetPublisher(&capturePublisher{fail: true})

	user := uuid.New()
	conn := connect(t, hub, user)

	hub.NotifyUser(user, "report.status_changed", map[string]any{"to": "completed"})
	event, data := readEvent(t, conn)
	assert.Equal(t, "report.status_changed", event)
	assert.Equal(t, "completed", data["to"])
}
