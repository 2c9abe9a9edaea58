// Package live carries device state updates to editors over a websocket:
// the Hub serves subscriptions backed by Home Assistant, the Client folds
// the updates it receives into a signal snapshot.
package live

import (
	"time"

	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/signal"
)

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeSubscribed  = "subscribed"
	TypeStateUpdate = "state_update"
	TypeWarning     = "warning"
	TypeError       = "error"
)

// Message is one frame of the live protocol in either direction.
type Message struct {
	Type string `json:"type"`

	// subscribe
	DeviceID     string `json:"device_id,omitempty"`
	ProfileID    string `json:"profile_id,omitempty"`
	EntityPrefix string `json:"entity_prefix,omitempty"`

	// subscribed
	SubscriptionID string `json:"subscription_id,omitempty"`
	Entities       int    `json:"entities,omitempty"`

	// state_update
	EntityID   string         `json:"entity_id,omitempty"`
	State      string         `json:"state,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`

	// warning, error
	Message string `json:"message,omitempty"`
}

// Target identifies what a client subscribes to.
type Target struct {
	DeviceID     string `json:"device_id"`
	ProfileID    string `json:"profile_id"`
	EntityPrefix string `json:"entity_prefix"`
}

func subscribeMessage(t Target) Message {
	return Message{Type: TypeSubscribe, DeviceID: t.DeviceID, ProfileID: t.ProfileID, EntityPrefix: t.EntityPrefix}
}

func stateUpdate(s hass.State, at time.Time) Message {
	if s.LastUpdated != nil {
		at = *s.LastUpdated
	}
	return Message{
		Type:       TypeStateUpdate,
		EntityID:   s.EntityID,
		State:      s.State,
		Attributes: s.Attributes,
		Timestamp:  &at,
	}
}

// Signal converts a state_update into a parser signal.
func (m Message) Signal() signal.Signal {
	unit, _ := m.Attributes["unit_of_measurement"].(string)
	return signal.Signal{Identifier: m.EntityID, Value: m.State, Unit: unit}
}
