package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/presence.report/internal/store"
	"github.com/banshee-data/presence.report/internal/zones"
)

// loadRooms reads a JSON file holding either one room or a list of rooms.
func loadRooms(path string) ([]store.Room, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var rooms []store.Room
		if err := json.Unmarshal(data, &rooms); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return rooms, nil
	}
	var room store.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []store.Room{room}, nil
}

// loadRoom reads the single room in path. A missing file yields a new room
// named after the file with every default slot disabled.
func loadRoom(path string) (store.Room, error) {
	rooms, err := loadRooms(path)
	if errors.Is(err, fs.ErrNotExist) {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return store.Room{
			ID:    id,
			Name:  id,
			Zones: zones.NewSet(zones.DefaultCapabilities(), nil, nil),
		}, nil
	}
	if err != nil {
		return store.Room{}, err
	}
	if len(rooms) != 1 {
		return store.Room{}, fmt.Errorf("%s holds %d rooms, expected one", path, len(rooms))
	}
	room := rooms[0]
	if room.Zones.Rects == nil && room.Zones.Polygons == nil {
		room.Zones = zones.NewSet(zones.DefaultCapabilities(), nil, nil)
	}
	return room, nil
}

// saveRoom writes room to path as indented JSON.
func saveRoom(path string, room store.Room) error {
	data, err := json.MarshalIndent(room, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), append(data, '\n'), 0o644)
}

// seedStore loads the rooms in path into st.
func seedStore(ctx context.Context, st store.RoomStore, path string) (int, error) {
	rooms, err := loadRooms(path)
	if err != nil {
		return 0, err
	}
	for _, r := range rooms {
		if err := st.Put(ctx, r); err != nil {
			return 0, fmt.Errorf("room %q: %w", r.ID, err)
		}
	}
	return len(rooms), nil
}

// devicePrefixes maps entity prefixes to device ids for every room that
// has both.
func devicePrefixes(ctx context.Context, st store.RoomStore) (map[string]string, error) {
	rooms, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, r := range rooms {
		if r.EntityPrefix != "" && r.DeviceID != "" {
			out[r.EntityPrefix] = r.DeviceID
		}
	}
	return out, nil
}
