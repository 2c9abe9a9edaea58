package editor

import (
	"fmt"

	"github.com/banshee-data/presence.report/internal/zones"
)

// DeleteVertex removes vertex idx from a polygon zone. It refuses to go
// below the minimum vertex count and leaves the polygon unchanged.
func (e *Editor) DeleteVertex(ref zones.Ref, idx int) (Commit, error) {
	if e.set.Mode != zones.PolygonMode {
		return Commit{}, fmt.Errorf("delete vertex of %s: %w", ref, zones.ErrModeMismatch)
	}
	i := e.set.PolygonIndex(ref)
	if i < 0 {
		return Commit{}, fmt.Errorf("delete vertex of %s: %w", ref, zones.ErrUnknownSlot)
	}
	p := e.set.Polygons[i]
	if idx < 0 || idx >= len(p.Vertices) {
		return Commit{}, fmt.Errorf("delete vertex %d of %s: index out of range", idx, ref)
	}
	if len(p.Vertices) <= zones.MinVertices {
		return Commit{}, fmt.Errorf("delete vertex %d of %s: %w", idx, ref, zones.ErrTooFewVertices)
	}

	before := subset(e.set, ref)
	p = p.Clone()
	p.Vertices = append(p.Vertices[:idx], p.Vertices[idx+1:]...)
	e.set.Polygons[i] = p
	c, _ := e.commit(before, ref)
	return c, nil
}

// SetLabel renames a zone.
func (e *Editor) SetLabel(ref zones.Ref, label string) (Commit, error) {
	before := subset(e.set, ref)
	if e.set.Mode == zones.PolygonMode {
		i := e.set.PolygonIndex(ref)
		if i < 0 {
			return Commit{}, fmt.Errorf("label %s: %w", ref, zones.ErrUnknownSlot)
		}
		e.set.Polygons[i].Label = label
	} else {
		i := e.set.RectIndex(ref)
		if i < 0 {
			return Commit{}, fmt.Errorf("label %s: %w", ref, zones.ErrUnknownSlot)
		}
		e.set.Rects[i].Label = label
	}
	c, _ := e.commit(before, ref)
	return c, nil
}

// Enable turns a slot on, centred on the room shell.
func (e *Editor) Enable(ref zones.Ref) (Commit, error) {
	before := subset(e.set, ref)
	if err := e.set.Enable(ref, e.shell, e.cfg.Bounds); err != nil {
		return Commit{}, err
	}
	e.appearing[ref] = e.clock.Now().Add(e.cfg.AppearAnimation)
	return e.newCommit(before, subset(e.set, ref)), nil
}
