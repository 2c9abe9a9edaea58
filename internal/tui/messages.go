package tui

import (
	"time"

	"github.com/banshee-data/presence.report/internal/signal"
)

// TickMsg drives the zone animations.
type TickMsg time.Time

// SavedMsg reports the outcome of persisting one commit.
type SavedMsg struct {
	CommitID string
	Err      error
}

// SnapshotMsg carries a live device snapshot.
type SnapshotMsg struct {
	Snapshot *signal.Snapshot
}
