// Package store holds room layouts: the drawn room outline, where the device
// sits in it and the zone set being edited.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

var (
	ErrNotFound  = errors.New("room not found")
	ErrInvalidID = errors.New("room id must not be empty")
)

// Room is one configured space and the device placed in it.
type Room struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Shell        geometry.Shell     `json:"shell,omitempty"`
	Placement    geometry.Placement `json:"placement"`
	DeviceID     string             `json:"device_id,omitempty"`
	ProfileID    string             `json:"profile_id,omitempty"`
	EntityPrefix string             `json:"entity_prefix,omitempty"`
	Zones        zones.Set          `json:"zones"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	out := r
	if r.Shell != nil {
		out.Shell = append(geometry.Shell(nil), r.Shell...)
	}
	out.Zones = r.Zones.Clone()
	return out
}

// RoomStore persists rooms.
type RoomStore interface {
	Get(ctx context.Context, roomID string) (Room, error)
	Put(ctx context.Context, room Room) error
	List(ctx context.Context) ([]Room, error)
	Delete(ctx context.Context, roomID string) error
}

// Memory is a RoomStore kept in process memory.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]Room
	now   func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]Room), now: time.Now}
}

// Get returns a copy of the stored room.
func (m *Memory) Get(ctx context.Context, roomID string) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return Room{}, fmt.Errorf("get %q: %w", roomID, ErrNotFound)
	}
	return r.Clone(), nil
}

// Put stores a copy of room, replacing any previous version.
func (m *Memory) Put(ctx context.Context, room Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(room.ID) == "" {
		return ErrInvalidID
	}
	room = room.Clone()
	room.Placement = room.Placement.Normalized()
	room.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	return nil
}

// List returns every room ordered by ID.
func (m *Memory) List(ctx context.Context) ([]Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes a room.
func (m *Memory) Delete(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return fmt.Errorf("delete %q: %w", roomID, ErrNotFound)
	}
	delete(m.rooms, roomID)
	return nil
}
