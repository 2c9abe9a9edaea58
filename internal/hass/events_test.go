package hass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

// fakeUpstream speaks enough of the websocket API for the event stream.
type fakeUpstream struct {
	token    string
	sessions atomic.Int32
	events   []map[string]any
	// hold keeps the connection open after the events are sent.
	hold bool
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	f.sessions.Add(1)
	ctx := r.Context()

	if err := wsjson.Write(ctx, conn, map[string]any{"type": "auth_required"}); err != nil {
		return
	}
	var auth wsMessage
	if err := wsjson.Read(ctx, conn, &auth); err != nil {
		return
	}
	if auth.Type != "auth" || auth.AccessToken != f.token {
		_ = wsjson.Write(ctx, conn, map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
		return
	}
	_ = wsjson.Write(ctx, conn, map[string]any{"type": "auth_ok"})

	var sub wsMessage
	if err := wsjson.Read(ctx, conn, &sub); err != nil {
		return
	}
	if sub.Type != "subscribe_events" || sub.EventType != "state_changed" {
		return
	}
	_ = wsjson.Write(ctx, conn, map[string]any{"id": sub.ID, "type": "result", "success": true})
	for _, ev := range f.events {
		_ = wsjson.Write(ctx, conn, map[string]any{"id": sub.ID, "type": "event", "event": ev})
	}
	if f.hold {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func stateChanged(entityID, state string) map[string]any {
	return map[string]any{
		"event_type": "state_changed",
		"time_fired": "2025-03-01T12:00:00.5+00:00",
		"data": map[string]any{
			"entity_id": entityID,
			"new_state": map[string]any{"entity_id": entityID, "state": state, "attributes": map[string]any{"unit_of_measurement": "mm"}},
		},
	}
}

func TestEventStreamDeliversStateChanges(t *testing.T) {
	up := &fakeUpstream{
		token: "tok",
		hold:  true,
		events: []map[string]any{
			{"event_type": "call_service", "data": map[string]any{}},
			stateChanged("sensor.ep1_target_1_x", "-250"),
		},
	}
	srv := httptest.NewServer(up)
	defer srv.Close()

	s := NewEventStream(wsURL(srv), "tok", nil)
	id, ch := s.Subscribe()
	defer s.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case ev := <-ch:
		assert.Equal(t, "sensor.ep1_target_1_x", ev.EntityID)
		require.NotNil(t, ev.NewState)
		assert.Equal(t, "-250", ev.NewState.State)
		assert.Equal(t, "mm", ev.NewState.Unit())
		assert.True(t, ev.At.Equal(time.Date(2025, 3, 1, 12, 0, 0, 5e8, time.UTC)), ev.At)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEventStreamAuthInvalid(t *testing.T) {
	srv := httptest.NewServer(&fakeUpstream{token: "right"})
	defer srv.Close()

	s := NewEventStream(wsURL(srv), "wrong", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, ErrAuthInvalid)
	assert.ErrorContains(t, err, "Invalid access token")
}

func TestEventStreamReconnectsAfterBackoff(t *testing.T) {
	up := &fakeUpstream{token: "tok"}
	srv := httptest.NewServer(up)
	defer srv.Close()

	clock := timeutil.NewMockClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	s := NewEventStream(wsURL(srv), "tok", clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.True(t, clock.BlockUntil(1, 5*time.Second), "no backoff timer after first drop")
	assert.EqualValues(t, 1, up.sessions.Load())

	clock.Advance(DefaultBackoff)
	require.Eventually(t, func() bool { return up.sessions.Load() == 2 }, 5*time.Second, 5*time.Millisecond)

	require.True(t, clock.BlockUntil(1, 5*time.Second))
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	clock.Advance(DefaultBackoff)
	assert.EqualValues(t, 2, up.sessions.Load())
}

func TestEventStreamClose(t *testing.T) {
	s := NewEventStream("ws://unused", "", nil)
	_, ch := s.Subscribe()
	s.Close()
	_, open := <-ch
	assert.False(t, open)

	_, late := s.Subscribe()
	_, open = <-late
	assert.False(t, open)
}
