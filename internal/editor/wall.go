package editor

import (
	"fmt"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

// BeginWall enters room outline drawing. Each primary click appends a
// corner; clicking the first corner again or pressing Enter closes the
// outline, Escape abandons it.
func (e *Editor) BeginWall() error {
	if e.state == Dragging {
		return ErrBusy
	}
	e.Reset()
	e.state = DrawingWallSegment
	return nil
}

// WallDraft returns the corners placed so far and the pointer position used
// to preview the next segment.
func (e *Editor) WallDraft() ([]geometry.Point, *geometry.Point) {
	return append([]geometry.Point(nil), e.wallDraft...), e.wallCursor
}

func (e *Editor) wallClick(pos geometry.Point) Result {
	if len(e.wallDraft) >= 3 && e.view.ToScreen(e.wallDraft[0]).Dist(pos) <= e.cfg.HoverHandleRadius {
		return e.closeWall()
	}
	p := e.snapPoint(e.cfg.Bounds.ClampPoint(e.view.ToRoom(pos)))
	if n := len(e.wallDraft); n > 0 && e.wallDraft[n-1] == p {
		return Result{}
	}
	e.wallDraft = append(e.wallDraft, p)
	return Result{Effect: EffectRedraw}
}

func (e *Editor) closeWall() Result {
	if len(e.wallDraft) < 3 {
		return Result{Err: fmt.Errorf("close room outline: %w", zones.ErrTooFewVertices)}
	}
	c := e.newCommit(zones.Set{Mode: e.set.Mode}, zones.Set{Mode: e.set.Mode})
	c.ShellChanged = true
	c.ShellBefore = e.Shell()
	c.ShellAfter = append(geometry.Shell(nil), e.wallDraft...)
	e.shell = c.ShellAfter
	e.cancelWall()
	logCommit(c)
	return Result{Effect: EffectCommitted, Commit: &c}
}

func (e *Editor) cancelWall() {
	e.wallDraft = nil
	e.wallCursor = nil
	e.state = Idle
}
