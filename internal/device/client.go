package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/zones"
)

var ErrNoZoneEntities = errors.New("no zone entities found for device; run entity discovery for this device first")

// Backend is the part of the Home Assistant client the device layer uses.
type Backend interface {
	States(ctx context.Context) ([]hass.State, error)
	SetNumber(ctx context.Context, entityID string, v float64) error
	SetText(ctx context.Context, entityID, v string) error
	SetSwitch(ctx context.Context, entityID string, on bool) error
	SelectOption(ctx context.Context, entityID, option string) error
}

// Reading is everything learned about a device's zones in one pass.
type Reading struct {
	Capabilities zones.Capabilities               `json:"capabilities"`
	Availability map[zones.Ref]zones.Availability `json:"-"`
	Set          zones.Set                        `json:"zones"`
}

// PushWarning reports one entity that could not be written, or one zone
// that was skipped.
type PushWarning struct {
	EntityID    string `json:"entity_id,omitempty"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

// PushResult is the outcome of a zone push. Partial failure is not an
// error: the failed entities are listed and the rest stay written.
type PushResult struct {
	OK       bool          `json:"ok"`
	Warnings []PushWarning `json:"warnings,omitempty"`
}

// Client reads and writes the zones of one device. The firmware stores
// zones in its own frame; the client converts to and from room space with
// Placement. In rect mode a rotated zone is written as the axis-aligned
// bounds of its corners.
type Client struct {
	ha       Backend
	entities Entities

	Placement geometry.Placement
	Metrics   *monitoring.Metrics
}

func (c *Client) toRoom(p geometry.Point) geometry.Point { return geometry.ToRoom(p, c.Placement) }

func (c *Client) toDevice(p geometry.Point) geometry.Point { return geometry.ToDevice(p, c.Placement) }

// New returns a client for the device whose entities start with prefix.
func New(ha Backend, prefix string) *Client {
	return &Client{ha: ha, entities: Entities{Prefix: prefix}}
}

// Entities returns the entity naming of the device.
func (c *Client) Entities() Entities { return c.entities }

func (c *Client) states(ctx context.Context) (map[string]hass.State, error) {
	all, err := c.ha.States(ctx)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	byID := make(map[string]hass.State)
	for _, s := range hass.WithPrefix(all, c.entities.Prefix) {
		byID[s.EntityID] = s
	}
	return byID, nil
}

// Read detects capabilities and availability and decodes the stored zones
// into room space.
func (c *Client) Read(ctx context.Context) (Reading, error) {
	byID, err := c.states(ctx)
	if err != nil {
		return Reading{}, err
	}

	caps := zones.Capabilities{}
	sw, ok := byID[c.entities.PolygonSwitch()]
	caps.PolygonSupported = ok
	caps.PolygonEnabled = ok && sw.State == "on"

	defaults := zones.DefaultCapabilities()
	highest := map[zones.Kind]int{}
	for _, k := range zones.Kinds {
		for n := 1; n <= defaults.Max(k); n++ {
			ref := zones.Ref{ID: zones.SlotName(n), Kind: k}
			_, rect := byID[c.entities.Number(ref, "begin_x")]
			_, poly := byID[c.entities.Points(ref)]
			if rect || poly {
				highest[k] = n
			}
		}
	}
	caps.MaxZones = highest[zones.Regular]
	caps.MaxExclusionZones = highest[zones.Exclusion]
	caps.MaxEntryZones = highest[zones.Entry]
	if caps.MaxZones+caps.MaxExclusionZones+caps.MaxEntryZones == 0 {
		return Reading{}, ErrNoZoneEntities
	}

	mode := caps.Mode()
	avail := make(map[zones.Ref]zones.Availability)
	var rects []zones.Rect
	var polys []zones.Polygon
	for _, ref := range zones.GenerateSlots(caps) {
		primary := c.entities.Number(ref, "begin_x")
		if mode == zones.PolygonMode {
			primary = c.entities.Points(ref)
		}
		st, found := byID[primary]
		avail[ref] = availability(st.State, found)

		if r, ok := c.readRect(byID, ref); ok {
			rects = append(rects, r.Transform(c.toRoom))
		}
		if mode == zones.PolygonMode {
			if p, ok := c.readPolygon(byID, ref); ok {
				polys = append(polys, p.Transform(c.toRoom))
			}
		}
	}

	return Reading{
		Capabilities: caps,
		Availability: avail,
		Set:          zones.NewSet(caps, rects, polys),
	}, nil
}

// ReadZones returns the merged zone set stored on the device.
func (c *Client) ReadZones(ctx context.Context) (zones.Set, error) {
	r, err := c.Read(ctx)
	return r.Set, err
}

// Capabilities returns the slot counts, polygon support and per-slot
// availability of the device.
func (c *Client) Capabilities(ctx context.Context) (zones.Capabilities, map[zones.Ref]zones.Availability, error) {
	r, err := c.Read(ctx)
	return r.Capabilities, r.Availability, err
}

// readRect decodes a rect slot. All-zero coordinates mean the firmware
// slot is unused.
func (c *Client) readRect(byID map[string]hass.State, ref zones.Ref) (zones.Rect, bool) {
	var v [4]float64
	for i, f := range cornerFields {
		st, ok := byID[c.entities.Number(ref, f)]
		if !ok {
			return zones.Rect{}, false
		}
		x, err := strconv.ParseFloat(st.State, 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			return zones.Rect{}, false
		}
		v[i] = x
	}
	if v == [4]float64{} {
		return zones.Rect{}, false
	}
	r := zones.RectFromCorners(geometry.Point{X: v[0], Y: v[1]}, geometry.Point{X: v[2], Y: v[3]})
	r.ID, r.Kind, r.Enabled = ref.ID, ref.Kind, true
	return r, true
}

func (c *Client) readPolygon(byID map[string]hass.State, ref zones.Ref) (zones.Polygon, bool) {
	st, ok := byID[c.entities.Points(ref)]
	if !ok {
		return zones.Polygon{}, false
	}
	pts := ParsePoints(st.State)
	if len(pts) < zones.MinVertices {
		return zones.Polygon{}, false
	}
	return zones.Polygon{ID: ref.ID, Kind: ref.Kind, Vertices: pts, Enabled: true}, true
}

// SetPolygonMode flips the firmware between rect and polygon zones.
func (c *Client) SetPolygonMode(ctx context.Context, on bool) error {
	return c.ha.SetSwitch(ctx, c.entities.PolygonSwitch(), on)
}

// PushZones writes the zones of set's mode to the device, converting them
// from room space into the device frame. Slots disabled
// locally are zeroed. Zones whose slot is disabled or unavailable on the
// device, and entities that fail to write, are reported as warnings.
func (c *Client) PushZones(ctx context.Context, set zones.Set, avail map[zones.Ref]zones.Availability) (PushResult, error) {
	plan := zones.PlanPush(set, avail)
	var res PushResult

	for _, w := range plan.Warnings {
		entity := c.entities.Number(w.Ref, "begin_x")
		if plan.Mode == zones.PolygonMode {
			entity = c.entities.Points(w.Ref)
		}
		res.Warnings = append(res.Warnings, PushWarning{EntityID: entity, Description: w.Message})
	}

	number := func(ref zones.Ref, field string, v float64) {
		id := c.entities.Number(ref, field)
		if err := c.ha.SetNumber(ctx, id, math.Round(v)); err != nil {
			res.Warnings = append(res.Warnings, PushWarning{
				EntityID:    id,
				Description: fmt.Sprintf("%s %s %s", ref.Kind, ref.ID, field),
				Error:       err.Error(),
			})
		}
	}
	text := func(ref zones.Ref, v string) {
		id := c.entities.Points(ref)
		if err := c.ha.SetText(ctx, id, v); err != nil {
			res.Warnings = append(res.Warnings, PushWarning{
				EntityID:    id,
				Description: fmt.Sprintf("%s %s points", ref.Kind, ref.ID),
				Error:       err.Error(),
			})
		}
	}

	if plan.Mode == zones.PolygonMode {
		for _, p := range plan.Polygons {
			text(p.Ref(), FormatPoints(p.Transform(c.toDevice).Vertices))
		}
		for _, ref := range plan.Clear {
			text(ref, "")
		}
	} else {
		for _, r := range plan.Rects {
			r = r.Transform(c.toDevice)
			number(r.Ref(), "begin_x", r.X)
			number(r.Ref(), "begin_y", r.Y)
			number(r.Ref(), "end_x", r.X+r.Width)
			number(r.Ref(), "end_y", r.Y+r.Height)
		}
		for _, ref := range plan.Clear {
			for _, f := range cornerFields {
				number(ref, f, 0)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.OK = true
	if len(res.Warnings) > 0 {
		monitoring.Logf("[device] push to %s finished with %d warnings", c.entities.Prefix, len(res.Warnings))
	}
	c.Metrics.PushWarnings(len(res.Warnings))
	return res, nil
}
