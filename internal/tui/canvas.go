package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/presence.report/internal/geometry"
)

// cellAspect is how many editor pixels one terminal row spans. Terminal
// cells are roughly twice as tall as they are wide.
const cellAspect = 2.0

type ink int

const (
	inkBlank ink = iota
	inkShell
	inkDraft
	inkRegular
	inkExclusion
	inkEntry
	inkHover
	inkVanishing
	inkGhost
	inkHandle
	inkDevice
	inkTarget
)

type cell struct {
	r   rune
	ink ink
}

// canvas is a character raster addressed in editor pixels.
type canvas struct {
	w, h  int
	cells []cell
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([]cell, w*h)}
	for i := range c.cells {
		c.cells[i] = cell{r: ' '}
	}
	return c
}

// toCell converts an editor pixel position to a column and row.
func toCell(p geometry.Point) (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y / cellAspect))
}

// fromCell is the inverse of toCell for the centre of a cell.
func fromCell(col, row int) geometry.Point {
	return geometry.Point{X: float64(col), Y: float64(row) * cellAspect}
}

func (c *canvas) set(col, row int, r rune, k ink) {
	if col < 0 || row < 0 || col >= c.w || row >= c.h {
		return
	}
	c.cells[row*c.w+col] = cell{r: r, ink: k}
}

func (c *canvas) plot(p geometry.Point, r rune, k ink) {
	col, row := toCell(p)
	c.set(col, row, r, k)
}

// line draws a Bresenham segment between two editor pixel positions.
func (c *canvas) line(a, b geometry.Point, r rune, k ink) {
	x0, y0 := toCell(a)
	x1, y1 := toCell(b)
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	// Segments far outside the canvas are skipped rather than walked.
	if dx-dy > 4*(c.w+c.h) {
		return
	}
	e := dx + dy
	for {
		c.set(x0, y0, r, k)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func (c *canvas) ring(pts []geometry.Point, closed bool, r rune, k ink) {
	for i := 1; i < len(pts); i++ {
		c.line(pts[i-1], pts[i], r, k)
	}
	if closed && len(pts) > 2 {
		c.line(pts[len(pts)-1], pts[0], r, k)
	}
}

func (c *canvas) text(col, row int, s string, k ink) {
	for i, r := range []rune(s) {
		c.set(col+i, row, r, k)
	}
}

// render joins the cells into styled lines, one style run at a time.
func (c *canvas) render(styles map[ink]lipgloss.Style) string {
	var out strings.Builder
	var run strings.Builder
	for row := 0; row < c.h; row++ {
		if row > 0 {
			out.WriteByte('\n')
		}
		cur := inkBlank
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if st, ok := styles[cur]; ok {
				out.WriteString(st.Render(run.String()))
			} else {
				out.WriteString(run.String())
			}
			run.Reset()
		}
		for col := 0; col < c.w; col++ {
			cl := c.cells[row*c.w+col]
			if cl.ink != cur {
				flush()
				cur = cl.ink
			}
			run.WriteRune(cl.r)
		}
		flush()
	}
	return out.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
