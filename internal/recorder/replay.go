package recorder

import (
	"context"
	"time"

	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
)

// Replay folds entries through the signal parser in order, calling fn (if
// set) after each one, and returns the final snapshot.
func Replay(entries []Entry, fn func(Entry, *signal.Snapshot)) *signal.Snapshot {
	var f signal.Folder
	for _, e := range entries {
		snap := f.Apply(e.Signal, e.At)
		if fn != nil {
			fn(e, snap)
		}
	}
	return f.Snapshot()
}

// Replay loads the entries matching q and folds them.
func (db *DB) Replay(ctx context.Context, q Query, fn func(Entry, *signal.Snapshot)) (*signal.Snapshot, error) {
	entries, err := db.Signals(ctx, q)
	if err != nil {
		return nil, err
	}
	return Replay(entries, fn), nil
}

// EventSource fans out Home Assistant state changes.
type EventSource interface {
	Subscribe() (string, <-chan hass.StateChange)
	Unsubscribe(id string)
}

// Follow records every state change that the signal parser recognises
// until ctx is cancelled or the source closes.
func (db *DB) Follow(ctx context.Context, source string, events EventSource) error {
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
			if ev.NewState == nil || signal.Classify(ev.EntityID) == "" {
				continue
			}
			at := ev.At
			if at.IsZero() {
				at = time.Now()
			}
			sig := signal.Signal{Identifier: ev.EntityID, Value: ev.NewState.State, Unit: ev.NewState.Unit()}
			if err := db.Record(ctx, source, sig, at); err != nil {
				monitoring.Logf("[recorder] %v", err)
			}
		}
	}
}
