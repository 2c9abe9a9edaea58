package hass

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/timeutil"
)

// DefaultBackoff is the delay between upstream reconnect attempts.
const DefaultBackoff = 3 * time.Second

// maxMessageSize bounds a single upstream frame. Result payloads of large
// installations exceed the library default of 32 KiB.
const maxMessageSize = 4 << 20

var ErrAuthInvalid = errors.New("home assistant rejected the access token")

// StateChange is one state_changed event.
type StateChange struct {
	EntityID string    `json:"entity_id"`
	OldState *State    `json:"old_state,omitempty"`
	NewState *State    `json:"new_state,omitempty"`
	At       time.Time `json:"time_fired"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsEvent struct {
	EventType string      `json:"event_type"`
	Data      StateChange `json:"data"`
	TimeFired time.Time   `json:"time_fired"`
}

// wsMessage covers every frame exchanged with the websocket API.
type wsMessage struct {
	ID          int      `json:"id,omitempty"`
	Type        string   `json:"type"`
	AccessToken string   `json:"access_token,omitempty"`
	EventType   string   `json:"event_type,omitempty"`
	Success     *bool    `json:"success,omitempty"`
	Error       *wsError `json:"error,omitempty"`
	Event       *wsEvent `json:"event,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// EventStream keeps one upstream websocket subscribed to state_changed and
// fans the events out to any number of subscribers.
type EventStream struct {
	url   string
	token string
	clock timeutil.Clock

	Backoff time.Duration
	Metrics *monitoring.Metrics

	subscribers  map[string]chan StateChange
	subscriberMu sync.Mutex
	closing      bool
}

// NewEventStream returns a stream for the websocket API at url. A nil clock
// uses the real clock.
func NewEventStream(url, token string, clock timeutil.Clock) *EventStream {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &EventStream{
		url:         url,
		token:       token,
		clock:       clock,
		Backoff:     DefaultBackoff,
		subscribers: make(map[string]chan StateChange),
	}
}

// Subscribe registers a new receiver. Events are dropped for subscribers
// that fall behind.
func (s *EventStream) Subscribe() (string, <-chan StateChange) {
	id := uuid.NewString()
	ch := make(chan StateChange, 64)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *EventStream) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Close closes every subscriber channel.
func (s *EventStream) Close() {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.closing = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *EventStream) publish(ev StateChange) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Run holds the upstream connection open until ctx is cancelled,
// reconnecting after Backoff whenever it drops. A rejected token stops the
// loop with ErrAuthInvalid.
func (s *EventStream) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrAuthInvalid) {
			return err
		}
		monitoring.Logf("[hass] event stream dropped: %v; reconnecting in %s", err, s.Backoff)
		s.Metrics.Reconnect("hass")

		t := s.clock.NewTimer(s.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C():
		}
	}
}

func (s *EventStream) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	if err := s.authenticate(ctx, conn); err != nil {
		return err
	}

	const subID = 1
	if err := wsjson.Write(ctx, conn, wsMessage{ID: subID, Type: "subscribe_events", EventType: "state_changed"}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		switch msg.Type {
		case "result":
			if msg.Success != nil && !*msg.Success {
				detail := "unknown error"
				if msg.Error != nil {
					detail = msg.Error.Code + ": " + msg.Error.Message
				}
				return fmt.Errorf("subscription %d failed: %s", msg.ID, detail)
			}
		case "event":
			if msg.Event == nil || msg.Event.EventType != "state_changed" {
				continue
			}
			ev := msg.Event.Data
			if ev.At.IsZero() {
				ev.At = msg.Event.TimeFired
			}
			if ev.At.IsZero() {
				ev.At = s.clock.Now()
			}
			s.publish(ev)
		}
	}
}

func (s *EventStream) authenticate(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg wsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		switch msg.Type {
		case "auth_required":
			if err := wsjson.Write(ctx, conn, wsMessage{Type: "auth", AccessToken: s.token}); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		case "auth_ok":
			return nil
		case "auth_invalid":
			if msg.Message != "" {
				return fmt.Errorf("%w: %s", ErrAuthInvalid, msg.Message)
			}
			return ErrAuthInvalid
		default:
			return fmt.Errorf("auth: unexpected %q message", msg.Type)
		}
	}
}
