package tui

import (
	"strconv"

	"github.com/banshee-data/presence.report/internal/editor"
	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/zones"
)

var kindInk = map[zones.Kind]ink{
	zones.Regular:   inkRegular,
	zones.Exclusion: inkExclusion,
	zones.Entry:     inkEntry,
}

var kindRune = map[zones.Kind]rune{
	zones.Regular:   '█',
	zones.Exclusion: '▒',
	zones.Entry:     '▓',
}

func screen(ed *editor.Editor, pts []geometry.Point) []geometry.Point {
	v := ed.Viewport()
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = v.ToScreen(p)
	}
	return out
}

// drawEditor paints the room, the zones, the device and its targets.
// Later layers overwrite earlier ones.
func drawEditor(c *canvas, ed *editor.Editor, pl geometry.Placement, targets []signal.RoomTarget) {
	c.ring(screen(ed, ed.Shell()), true, '·', inkShell)

	hover, hovering := ed.Hover()
	drag, dragging := ed.Drag()
	set := ed.Set()

	zoneInk := func(ref zones.Ref) ink {
		if _, ok := ed.Vanishing(ref); ok {
			return inkVanishing
		}
		if hovering && hover.Ref == ref || dragging && drag.Ref == ref {
			return inkHover
		}
		return kindInk[ref.Kind]
	}

	if set.Mode == zones.PolygonMode {
		for _, p := range set.Polygons {
			if !p.Enabled {
				continue
			}
			k := zoneInk(p.Ref())
			pts := screen(ed, p.Vertices)
			c.ring(pts, true, kindRune[p.Kind], k)
			if k == inkHover {
				for _, v := range pts {
					c.plot(v, '●', inkHandle)
				}
			}
			label(c, ed, p.Label, p.Ref(), geometry.Centroid(p.Vertices), k)
		}
	} else {
		for _, r := range set.Rects {
			if !r.Enabled {
				continue
			}
			k := zoneInk(r.Ref())
			pts := screen(ed, r.Corners())
			c.ring(pts, true, kindRune[r.Kind], k)
			if k == inkHover {
				for _, v := range pts {
					c.plot(v, '●', inkHandle)
				}
			}
			label(c, ed, r.Label, r.Ref(), r.Center(), k)
		}
	}

	if g, ok := ed.Ghost(); ok {
		c.ring(screen(ed, g.Corners()), true, '+', inkGhost)
	}

	if draft, cursor := ed.WallDraft(); len(draft) > 0 {
		pts := screen(ed, draft)
		c.ring(pts, false, '─', inkDraft)
		if cursor != nil {
			c.line(pts[len(pts)-1], ed.Viewport().ToScreen(*cursor), '┄', inkDraft)
		}
		for _, p := range pts {
			c.plot(p, '○', inkDraft)
		}
	}

	c.plot(ed.Viewport().ToScreen(pl.Origin()), '▲', inkDevice)
	for _, t := range targets {
		c.plot(ed.Viewport().ToScreen(t.Position), '◉', inkTarget)
	}
}

var kindLabel = map[zones.Kind]string{
	zones.Exclusion: "Mask ",
	zones.Entry:     "Entry ",
}

func label(c *canvas, ed *editor.Editor, text string, ref zones.Ref, at geometry.Point, k ink) {
	if text == "" {
		text = ref.ID
		if n, ok := zones.SlotNumber(ref.ID); ok && kindLabel[ref.Kind] != "" {
			text = kindLabel[ref.Kind] + strconv.Itoa(n)
		}
	}
	col, row := toCell(ed.Viewport().ToScreen(at))
	c.text(col-len([]rune(text))/2, row, text, k)
}
