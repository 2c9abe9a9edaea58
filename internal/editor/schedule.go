package editor

import (
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/presence.report/internal/zones"
)

// ConfirmDelete starts the disappear animation of an enabled zone. The zone
// stays in the set, and is still drawn, until Tick reaches the end of the
// animation.
func (e *Editor) ConfirmDelete(ref zones.Ref) Result {
	if !e.set.IsEnabled(ref) {
		return Result{Ref: ref, Err: fmt.Errorf("delete %s: %w", ref, zones.ErrUnknownSlot)}
	}
	if _, ok := e.vanishing[ref]; ok {
		return Result{}
	}
	if e.drag != nil && e.drag.Ref == ref {
		e.cancelGesture()
	}
	if e.hover != nil && e.hover.Ref == ref {
		e.state, e.hover = Idle, nil
	}
	e.vanishing[ref] = e.clock.Now().Add(e.cfg.DeleteAnimation)
	return Result{Effect: EffectDeleteScheduled, Ref: ref}
}

// CancelDelete aborts a pending deletion.
func (e *Editor) CancelDelete(ref zones.Ref) bool {
	if _, ok := e.vanishing[ref]; !ok {
		return false
	}
	delete(e.vanishing, ref)
	return true
}

// Vanishing reports whether ref is animating out and how far along it is,
// from 0 to 1.
func (e *Editor) Vanishing(ref zones.Ref) (float64, bool) {
	due, ok := e.vanishing[ref]
	if !ok {
		return 0, false
	}
	return e.progress(due, e.cfg.DeleteAnimation), true
}

// Appearing reports whether ref was just created and its animation progress.
func (e *Editor) Appearing(ref zones.Ref) (float64, bool) {
	due, ok := e.appearing[ref]
	if !ok {
		return 0, false
	}
	return e.progress(due, e.cfg.AppearAnimation), true
}

// Animating reports whether any animation is scheduled.
func (e *Editor) Animating() bool {
	return len(e.vanishing) > 0 || len(e.appearing) > 0
}

func (e *Editor) progress(due time.Time, d time.Duration) float64 {
	left := due.Sub(e.clock.Now())
	if left <= 0 || d <= 0 {
		return 1
	}
	return 1 - float64(left)/float64(d)
}

// Tick performs every deferred mutation that is due at now. Deletions are
// applied in due order and each returns its own commit.
func (e *Editor) Tick(now time.Time) []Result {
	for ref, due := range e.appearing {
		if !now.Before(due) {
			delete(e.appearing, ref)
		}
	}

	type pending struct {
		ref zones.Ref
		due time.Time
	}
	var ready []pending
	for ref, due := range e.vanishing {
		if !now.Before(due) {
			ready = append(ready, pending{ref, due})
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if !ready[i].due.Equal(ready[j].due) {
			return ready[i].due.Before(ready[j].due)
		}
		return ready[i].ref.String() < ready[j].ref.String()
	})

	var out []Result
	for _, p := range ready {
		delete(e.vanishing, p.ref)
		before := subset(e.set, p.ref)
		if err := e.set.Disable(p.ref); err != nil {
			out = append(out, Result{Ref: p.ref, Err: err})
			continue
		}
		c := e.newCommit(before, subset(e.set, p.ref))
		out = append(out, Result{Effect: EffectCommitted, Ref: p.ref, Commit: &c})
	}
	return out
}
