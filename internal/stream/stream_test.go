package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/internal/physics/physicstest"
	"github.com/Faultbox/physbox/internal/scene"
	"github.com/Faultbox/physbox/internal/simulation"
	"github.com/Faultbox/physbox/pkg/math"
)

func newSim(t *testing.T) *simulation.Simulation {
	t.Helper()
	sim, err := simulation.New(physicstest.New(-10), simulation.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(sim.Close)
	return sim
}

func serve(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snap Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	return snap
}

func TestCapture(t *testing.T) {
	sim := newSim(t)
	_, err := sim.Spawn(scene.TemplateFor(scene.Sphere), math.Vec3{X: 2, Y: 4})
	require.NoError(t, err)

	snap := Capture(sim, 3)
	assert.Equal(t, uint64(3), snap.Frame)
	assert.False(t, snap.Paused)
	require.Len(t, snap.Objects, 2)

	floor, sphere := snap.Objects[0], snap.Objects[1]
	assert.Equal(t, "floor", floor.Type)
	assert.Equal(t, int(physics.Frozen), floor.Freeze)
	assert.Equal(t, 1, sphere.ID)
	assert.Equal(t, "sphere", sphere.Type)
	assert.Equal(t, 0, sphere.Depth)
	assert.InDelta(t, 2, sphere.Position[0], 1e-5)
	assert.InDelta(t, 0.5, sphere.Position[1], 1e-5)

	m, err := math.ParseMat4(sphere.Matrix)
	require.NoError(t, err)
	node, _ := sim.Root().Node(1)
	assert.Equal(t, node.Matrix(), m)
}

func TestApply(t *testing.T) {
	sim := newSim(t)

	require.NoError(t, Apply(sim, Command{Type: "pause"}))
	assert.True(t, sim.Paused())
	require.NoError(t, Apply(sim, Command{Type: "pause"}))
	assert.True(t, sim.Paused(), "pause is idempotent")
	require.NoError(t, Apply(sim, Command{Type: "resume"}))
	assert.False(t, sim.Paused())
	require.NoError(t, Apply(sim, Command{Type: "toggle"}))
	assert.True(t, sim.Paused())

	require.NoError(t, Apply(sim, Command{Type: "spawn", Object: "Box", Position: [3]float32{0, 3, 0}}))
	assert.Equal(t, 2, sim.ObjectCount())

	assert.ErrorIs(t, Apply(sim, Command{Type: "spawn", Object: "teapot"}), scene.ErrUnknownType)
	assert.ErrorIs(t, Apply(sim, Command{Type: "explode"}), ErrUnknownCommand)

	require.NoError(t, Apply(sim, Command{Type: "reset"}))
	assert.Equal(t, 1, sim.ObjectCount())
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	url := serve(t, hub)

	first := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(Snapshot{Frame: 7}))
	assert.Equal(t, uint64(7), readSnapshot(t, first).Frame)

	late := dial(t, url)
	assert.Equal(t, uint64(7), readSnapshot(t, late).Frame, "new clients get the latest state")
	assert.Equal(t, 2, hub.Clients())

	require.NoError(t, late.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCommands(t *testing.T) {
	hub := NewHub()
	conn := dial(t, serve(t, hub))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(Command{Type: "spawn", Object: "sphere", Position: [3]float32{1, 2, 3}}))

	select {
	case cmd := <-hub.Commands():
		assert.Equal(t, Command{Type: "spawn", Object: "sphere", Position: [3]float32{1, 2, 3}}, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered")
	}
	assert.Empty(t, hub.Commands(), "malformed messages are skipped")
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	url := serve(t, hub)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestRun(t *testing.T) {
	sim := newSim(t)
	hub := NewHub()
	conn := dial(t, serve(t, hub))
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type result struct {
		frames uint64
		err    error
	}
	done := make(chan result, 1)
	go func() {
		frames, err := Run(ctx, sim, hub, 5*time.Millisecond)
		done <- result{frames, err}
	}()

	first := readSnapshot(t, conn)
	assert.False(t, first.Paused)
	require.NoError(t, conn.WriteJSON(Command{Type: "pause"}))

	for snap := first; !snap.Paused; {
		snap = readSnapshot(t, conn)
	}

	cancel()
	res := <-done
	require.NoError(t, res.err)
	assert.Greater(t, res.frames, uint64(1))
	assert.True(t, sim.Paused())
}

func TestRunRejectsInterval(t *testing.T) {
	_, err := Run(context.Background(), newSim(t), NewHub(), 0)
	assert.ErrorIs(t, err, ErrInterval)
}
