package stream

import (
	"context"
	"sort"
	"sync"

	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/signal"
)

// EventSource fans out Home Assistant state changes.
type EventSource interface {
	Subscribe() (string, <-chan hass.StateChange)
	Unsubscribe(id string)
}

// Resolver maps an entity id to the device that owns it.
type Resolver func(entityID string) (deviceID string, ok bool)

// PrefixResolver resolves entities by their device entity prefix. The map
// is keyed by prefix with device ids as values; the longest matching prefix
// wins.
func PrefixResolver(prefixes map[string]string) Resolver {
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return func(entityID string) (string, bool) {
		for _, k := range keys {
			if hass.HasPrefix(entityID, k) {
				return prefixes[k], true
			}
		}
		return "", false
	}
}

// Relay folds state changes into per-device snapshots and publishes one
// frame per recognised change.
type Relay struct {
	pub     *Publisher
	resolve Resolver

	mu      sync.Mutex
	folders map[string]*signal.Folder
}

// NewRelay returns a relay publishing to pub.
func NewRelay(pub *Publisher, resolve Resolver) *Relay {
	return &Relay{pub: pub, resolve: resolve, folders: make(map[string]*signal.Folder)}
}

// Run consumes events until ctx is cancelled or the source closes.
func (r *Relay) Run(ctx context.Context, events EventSource) error {
	id, ch := events.Subscribe()
	defer events.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			r.Handle(ev)
		}
	}
}

// Handle folds one change. It reports whether a frame was published.
func (r *Relay) Handle(ev hass.StateChange) bool {
	if ev.NewState == nil || signal.Classify(ev.EntityID) == "" {
		return false
	}
	deviceID, ok := r.resolve(ev.EntityID)
	if !ok {
		return false
	}
	sig := signal.Signal{Identifier: ev.EntityID, Value: ev.NewState.State, Unit: ev.NewState.Unit()}

	r.mu.Lock()
	f, ok := r.folders[deviceID]
	if !ok {
		f = &signal.Folder{}
		r.folders[deviceID] = f
	}
	snap := f.Apply(sig, ev.At)
	r.mu.Unlock()

	r.pub.Publish(deviceID, snap)
	return true
}

// Snapshot returns a copy of the folded state of deviceID, or nil.
func (r *Relay) Snapshot(deviceID string) *signal.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.folders[deviceID]
	if !ok || f.Snapshot() == nil {
		return nil
	}
	return f.Snapshot().Clone()
}
