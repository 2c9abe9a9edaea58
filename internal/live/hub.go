package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/timeutil"
)

// StateSource lists the current entity states.
type StateSource interface {
	States(ctx context.Context) ([]hass.State, error)
}

// EventSource fans out state_changed events.
type EventSource interface {
	Subscribe() (string, <-chan hass.StateChange)
	Unsubscribe(id string)
}

// Hub serves the live protocol: one websocket per editor, each subscribed
// to the entities of one device.
type Hub struct {
	states StateSource
	events EventSource
	clock  timeutil.Clock

	// AcceptOptions are passed to websocket.Accept.
	AcceptOptions *websocket.AcceptOptions
	Metrics       *monitoring.Metrics
}

// NewHub returns a hub reading from states and events. A nil clock uses
// the real clock.
func NewHub(states StateSource, events EventSource, clock timeutil.Clock) *Hub {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Hub{states: states, events: events, clock: clock}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.AcceptOptions)
	if err != nil {
		monitoring.Logf("[live] accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	h.Metrics.SubscriberAdded()
	defer h.Metrics.SubscriberRemoved()

	err = h.serve(r.Context(), conn)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		conn.Close(websocket.StatusNormalClosure, "")
	case websocket.CloseStatus(err) != -1:
		// peer closed
	default:
		monitoring.Logf("[live] subscription ended: %v", err)
		conn.Close(websocket.StatusInternalError, "subscription failed")
	}
}

func (h *Hub) serve(ctx context.Context, conn *websocket.Conn) error {
	var sub Message
	if err := wsjson.Read(ctx, conn, &sub); err != nil {
		return err
	}
	prefix := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(sub.EntityPrefix)), "_")
	if sub.Type != TypeSubscribe || prefix == "" {
		_ = wsjson.Write(ctx, conn, Message{Type: TypeError, Message: "expected a subscribe message with an entity_prefix"})
		return nil
	}

	// Subscribe before listing states so no change between the two is lost.
	id, events := h.events.Subscribe()
	defer h.events.Unsubscribe(id)

	states, err := h.states.States(ctx)
	if err != nil {
		_ = wsjson.Write(ctx, conn, Message{Type: TypeError, Message: "could not load device state: " + err.Error()})
		return fmt.Errorf("load states: %w", err)
	}
	matched := hass.WithPrefix(states, prefix)

	if len(matched) == 0 {
		msg := fmt.Sprintf("No entities found for prefix %q on device %q. Run entity discovery for this device and reconnect.", prefix, sub.DeviceID)
		if err := wsjson.Write(ctx, conn, Message{Type: TypeWarning, Message: msg}); err != nil {
			return err
		}
	} else {
		ack := Message{Type: TypeSubscribed, SubscriptionID: uuid.NewString(), Entities: len(matched)}
		if err := wsjson.Write(ctx, conn, ack); err != nil {
			return err
		}
		now := h.clock.Now()
		for _, s := range matched {
			if err := wsjson.Write(ctx, conn, stateUpdate(s, now)); err != nil {
				return err
			}
		}
	}
	monitoring.Logf("[live] %s subscribed to %q (%d entities)", sub.DeviceID, prefix, len(matched))

	// The client sends nothing further; CloseRead notices when it goes away.
	ctx = conn.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.NewState == nil || !hass.HasPrefix(ev.EntityID, prefix) {
				continue
			}
			if err := wsjson.Write(ctx, conn, stateUpdate(*ev.NewState, ev.At)); err != nil {
				return err
			}
		}
	}
}
