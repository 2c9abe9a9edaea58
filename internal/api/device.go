package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/banshee-data/presence.report/internal/device"
	"github.com/banshee-data/presence.report/internal/httputil"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/store"
	"github.com/banshee-data/presence.report/internal/zones"
)

// deviceFor loads the room and builds a client for its device. It writes
// the error response itself and returns ok=false when either step fails.
func (s *Server) deviceFor(w http.ResponseWriter, r *http.Request, id string) (store.Room, *device.Client, bool) {
	room, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return store.Room{}, nil, false
	}
	if room.EntityPrefix == "" {
		httputil.Conflict(w, "room has no device assigned; set entity_prefix first")
		return store.Room{}, nil, false
	}
	c := device.New(s.backend, room.EntityPrefix)
	c.Placement = room.Placement
	c.Metrics = s.metrics
	return room, c, true
}

func writeDeviceError(w http.ResponseWriter, err error) {
	if errors.Is(err, device.ErrNoZoneEntities) {
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.BadGateway(w, err.Error())
}

type deviceResponse struct {
	device.Reading
	Availability map[string]zones.Availability `json:"availability"`
}

func (s *Server) showDevice(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	_, c, ok := s.deviceFor(w, r, id)
	if !ok {
		return
	}
	reading, err := c.Read(r.Context())
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	resp := deviceResponse{Reading: reading, Availability: make(map[string]zones.Availability, len(reading.Availability))}
	for ref, a := range reading.Availability {
		resp.Availability[ref.String()] = a
	}
	httputil.WriteJSONOK(w, resp)
}

// pullZones replaces the room's zones with what the device reports. Local
// labels survive the pull.
func (s *Server) pullZones(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	room, c, ok := s.deviceFor(w, r, id)
	if !ok {
		return
	}
	set, err := c.ReadZones(r.Context())
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	labels := make(map[zones.Ref]string)
	for _, z := range room.Zones.Rects {
		if z.Label != "" {
			labels[z.Ref()] = z.Label
		}
	}
	for _, p := range room.Zones.Polygons {
		if p.Label != "" {
			labels[p.Ref()] = p.Label
		}
	}
	for i := range set.Rects {
		set.Rects[i].Label = labels[set.Rects[i].Ref()]
	}
	for i := range set.Polygons {
		set.Polygons[i].Label = labels[set.Polygons[i].Ref()]
	}
	room.Zones = set
	s.putRoom(w, r, room, http.StatusOK)
}

// pushZones writes the room's zones to the device. Entities that fail are
// reported as warnings with a 200; only a failure to reach the device at
// all is an error.
func (s *Server) pushZones(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	room, c, ok := s.deviceFor(w, r, id)
	if !ok {
		return
	}
	_, avail, err := c.Capabilities(r.Context())
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	res, err := c.PushZones(r.Context(), room.Zones, avail)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	if s.rec != nil {
		if err := s.rec.RecordPush(r.Context(), room.ID, room.EntityPrefix, res, s.clock.Now()); err != nil {
			monitoring.Logf("[api] failed to record push for room %s: %v", room.ID, err)
		}
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req struct {
		Polygon bool `json:"polygon"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	room, c, ok := s.deviceFor(w, r, id)
	if !ok {
		return
	}
	if err := c.SetPolygonMode(r.Context(), req.Polygon); err != nil {
		writeDeviceError(w, err)
		return
	}
	switch {
	case req.Polygon && room.Zones.Mode != zones.PolygonMode:
		room.Zones.ToPolygonMode()
	case !req.Polygon && room.Zones.Mode == zones.PolygonMode:
		room.Zones.ToRectMode()
	}
	s.putRoom(w, r, room, http.StatusOK)
}

// writeConfig writes device tunables. Only fields present in the body are
// written; lengths are in mm.
func (s *Server) writeConfig(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var cfg signal.Config
	if !decodeBody(w, r, &cfg) {
		return
	}
	if cfg.MaxDistance != nil && (*cfg.MaxDistance <= 0 || *cfg.MaxDistance > s.cfg.GetDetectionRange()) {
		httputil.BadRequest(w, "max_distance must be within the detection range")
		return
	}
	if cfg.MinDistance != nil && *cfg.MinDistance < 0 {
		httputil.BadRequest(w, "min_distance must not be negative")
		return
	}
	if cfg.MinDistance != nil && cfg.MaxDistance != nil && *cfg.MinDistance >= *cfg.MaxDistance {
		httputil.BadRequest(w, "min_distance must be below max_distance")
		return
	}
	_, c, ok := s.deviceFor(w, r, id)
	if !ok {
		return
	}
	res, err := c.WriteConfig(r.Context(), cfg)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) listPushes(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.rec == nil {
		httputil.NotFound(w, "recorder disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	pushes, err := s.rec.Pushes(r.Context(), id, limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, pushes)
}

// snapshotFor returns the live state of the room's device, or nil when
// nothing has been received yet.
func (s *Server) snapshotFor(room store.Room) *signal.Snapshot {
	if s.snapshots == nil || room.DeviceID == "" {
		return nil
	}
	return s.snapshots.Snapshot(room.DeviceID)
}

func (s *Server) showSnapshot(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	room, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	snap := s.snapshotFor(room)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"snapshot": snap,
		"targets":  snap.RoomTargets(room.Placement),
	})
}
