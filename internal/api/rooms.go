package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/httputil"
	"github.com/banshee-data/presence.report/internal/store"
	"github.com/banshee-data/presence.report/internal/zones"
)

// maxBodySize bounds room and zone request bodies.
const maxBodySize = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

// writeStoreError maps store lookups to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, store.ErrInvalidID):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

// validateRoom rejects zone geometry outside the detection range.
func (s *Server) validateRoom(room store.Room) error {
	b := geometry.RangeBounds(s.cfg.GetDetectionRange())
	inside := func(p geometry.Point) bool {
		return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
	}
	for _, r := range room.Zones.Rects {
		if !r.Enabled {
			continue
		}
		for _, c := range r.Corners() {
			if !inside(c) {
				return fmt.Errorf("zone %s lies outside the detection range", r.Ref())
			}
		}
	}
	for _, p := range room.Zones.Polygons {
		if !p.Enabled {
			continue
		}
		if !p.Valid() {
			return fmt.Errorf("zone %s: %w", p.Ref(), zones.ErrTooFewVertices)
		}
		for _, v := range p.Vertices {
			if !inside(v) {
				return fmt.Errorf("zone %s lies outside the detection range", p.Ref())
			}
		}
	}
	return nil
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rooms, err := s.rooms.List(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, rooms)
	case http.MethodPost:
		var room store.Room
		if !decodeBody(w, r, &room) {
			return
		}
		if room.Zones.Rects == nil && room.Zones.Polygons == nil {
			room.Zones = zones.NewSet(zones.DefaultCapabilities(), nil, nil)
		}
		s.putRoom(w, r, room, http.StatusCreated)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		room, err := s.rooms.Get(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.WriteJSONOK(w, room)
	case http.MethodPut:
		var room store.Room
		if !decodeBody(w, r, &room) {
			return
		}
		room.ID = id
		s.putRoom(w, r, room, http.StatusOK)
	case http.MethodDelete:
		if err := s.rooms.Delete(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) putRoom(w http.ResponseWriter, r *http.Request, room store.Room, status int) {
	if err := s.validateRoom(room); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := s.rooms.Put(r.Context(), room); err != nil {
		writeStoreError(w, err)
		return
	}
	stored, err := s.rooms.Get(r.Context(), room.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSON(w, status, stored)
}

// parseRef reads a zone identity from /{kind}/{slot}.
func parseRef(parts []string) (zones.Ref, error) {
	if len(parts) != 2 {
		return zones.Ref{}, errors.New("expected /zones/{kind}/{slot}")
	}
	kind, err := zones.ParseKind(parts[0])
	if err != nil {
		return zones.Ref{}, err
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 1 {
		return zones.Ref{}, fmt.Errorf("invalid zone slot %q", parts[1])
	}
	return zones.Ref{ID: zones.SlotName(n), Kind: kind}, nil
}

// writeZoneError maps zone mutation failures to status codes.
func writeZoneError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, zones.ErrUnknownSlot):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, zones.ErrSlotOccupied), errors.Is(err, zones.ErrModeMismatch):
		httputil.Conflict(w, err.Error())
	default:
		httputil.BadRequest(w, err.Error())
	}
}

// handleZone serves /api/rooms/{id}/zones[/{kind}/{slot}].
//
//	GET                      list the zone set
//	POST   /{kind}/{slot}    enable the slot, centred on the room
//	PUT    /{kind}/{slot}    replace its geometry
//	DELETE /{kind}/{slot}    disable it
func (s *Server) handleZone(w http.ResponseWriter, r *http.Request, id string, parts []string) {
	room, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		httputil.WriteJSONOK(w, room.Zones)
		return
	}

	ref, err := parseRef(parts)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	switch r.Method {
	case http.MethodPost:
		err = room.Zones.Enable(ref, room.Shell, geometry.RangeBounds(s.cfg.GetDetectionRange()))
	case http.MethodDelete:
		err = room.Zones.Disable(ref)
	case http.MethodPut:
		err = s.replaceZone(w, r, &room, ref)
		if err == errBodyWritten {
			return
		}
	default:
		httputil.MethodNotAllowed(w)
		return
	}
	if err != nil {
		writeZoneError(w, err)
		return
	}
	s.putRoom(w, r, room, http.StatusOK)
}

var errBodyWritten = errors.New("response already written")

func (s *Server) replaceZone(w http.ResponseWriter, r *http.Request, room *store.Room, ref zones.Ref) error {
	if room.Zones.Mode == zones.PolygonMode {
		var p zones.Polygon
		if !decodeBody(w, r, &p) {
			return errBodyWritten
		}
		p.ID, p.Kind = ref.ID, ref.Kind
		if old, ok := room.Zones.Polygon(ref); ok {
			p.Revision = old.Revision + 1
		}
		return room.Zones.PutPolygon(p)
	}
	var rect zones.Rect
	if !decodeBody(w, r, &rect) {
		return errBodyWritten
	}
	rect.ID, rect.Kind = ref.ID, ref.Kind
	if old, ok := room.Zones.Rect(ref); ok {
		rect.Revision = old.Revision + 1
	}
	return room.Zones.PutRect(rect)
}
