package editor

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/zones"
)

// Commit is one applied edit. Before and After hold only the zones the edit
// touched, in the active mode.
type Commit struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
	Before zones.Set `json:"before"`
	After  zones.Set `json:"after"`

	ShellChanged bool           `json:"shell_changed,omitempty"`
	ShellBefore  geometry.Shell `json:"shell_before,omitempty"`
	ShellAfter   geometry.Shell `json:"shell_after,omitempty"`
}

// Refs lists the zones touched by the commit.
func (c Commit) Refs() []zones.Ref {
	var refs []zones.Ref
	for _, r := range c.After.Rects {
		refs = append(refs, r.Ref())
	}
	for _, p := range c.After.Polygons {
		refs = append(refs, p.Ref())
	}
	return refs
}

// subset copies the zones named by refs out of set, in the active mode.
func subset(set zones.Set, refs ...zones.Ref) zones.Set {
	out := zones.Set{Mode: set.Mode}
	for _, ref := range refs {
		if set.Mode == zones.PolygonMode {
			if p, ok := set.Polygon(ref); ok {
				out.Polygons = append(out.Polygons, p.Clone())
			}
			continue
		}
		if r, ok := set.Rect(ref); ok {
			out.Rects = append(out.Rects, r)
		}
	}
	return out
}

// overlay writes every zone of part over the zone with the same identity.
func overlay(set zones.Set, part zones.Set) zones.Set {
	for _, r := range part.Rects {
		if i := set.RectIndex(r.Ref()); i >= 0 {
			set.Rects[i] = r
		}
	}
	for _, p := range part.Polygons {
		if i := set.PolygonIndex(p.Ref()); i >= 0 {
			set.Polygons[i] = p.Clone()
		}
	}
	return set
}

// commit bumps the revision of every zone that changed since before and
// returns the resulting Commit. It reports false when nothing changed.
func (e *Editor) commit(before zones.Set, refs ...zones.Ref) (Commit, bool) {
	if reflect.DeepEqual(before, subset(e.set, refs...)) {
		return Commit{}, false
	}
	for _, ref := range refs {
		if i := e.set.RectIndex(ref); i >= 0 && e.set.Mode == zones.RectMode {
			e.set.Rects[i].Revision++
		}
		if i := e.set.PolygonIndex(ref); i >= 0 && e.set.Mode == zones.PolygonMode {
			e.set.Polygons[i].Revision++
		}
	}
	return e.newCommit(before, subset(e.set, refs...)), true
}

func (e *Editor) newCommit(before, after zones.Set) Commit {
	c := Commit{ID: uuid.NewString(), At: e.clock.Now(), Before: before, After: after}
	if len(c.Refs()) > 0 {
		logCommit(c)
	}
	return c
}

// Rollback restores the Before state of c for every zone whose revision is
// still the one c produced. Zones edited again since are left alone. The
// shell is restored only if it still equals c.ShellAfter.
func (e *Editor) Rollback(c Commit) []zones.Ref {
	var restored []zones.Ref
	busy := func(ref zones.Ref) bool { return e.drag != nil && e.drag.Ref == ref }

	for _, after := range c.After.Rects {
		ref := after.Ref()
		i := e.set.RectIndex(ref)
		if i < 0 || busy(ref) || e.set.Rects[i].Revision != after.Revision {
			continue
		}
		prev, ok := c.Before.Rect(ref)
		if !ok {
			continue
		}
		prev.Revision = e.set.Rects[i].Revision + 1
		e.set.Rects[i] = prev
		restored = append(restored, ref)
	}
	for _, after := range c.After.Polygons {
		ref := after.Ref()
		i := e.set.PolygonIndex(ref)
		if i < 0 || busy(ref) || e.set.Polygons[i].Revision != after.Revision {
			continue
		}
		prev, ok := c.Before.Polygon(ref)
		if !ok {
			continue
		}
		prev = prev.Clone()
		prev.Revision = e.set.Polygons[i].Revision + 1
		e.set.Polygons[i] = prev
		restored = append(restored, ref)
	}

	if c.ShellChanged && reflect.DeepEqual(e.shell, c.ShellAfter) {
		e.shell = append(geometry.Shell(nil), c.ShellBefore...)
	}
	return restored
}

// Journal tracks commits whose persistence has not completed yet. Save
// calls run asynchronously; their outcome is reported back with Succeed or
// Fail, and Fail rolls the editor back.
type Journal struct {
	mu      sync.Mutex
	pending map[string]Commit
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{pending: make(map[string]Commit)}
}

// Record registers a commit as in flight.
func (j *Journal) Record(c Commit) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending[c.ID] = c
}

// Pending returns the number of commits still in flight.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Succeed forgets a persisted commit.
func (j *Journal) Succeed(id string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.pending[id]
	delete(j.pending, id)
	return ok
}

// Fail reverts a commit whose persistence failed. It must be called from
// the goroutine that owns the editor.
func (j *Journal) Fail(id string, e *Editor) []zones.Ref {
	j.mu.Lock()
	c, ok := j.pending[id]
	delete(j.pending, id)
	j.mu.Unlock()
	if !ok {
		return nil
	}
	restored := e.Rollback(c)
	monitoring.Logf("[editor] rolled back commit %s: %d zone(s) restored", id, len(restored))
	return restored
}
