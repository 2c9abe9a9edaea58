// Package tui is a terminal front end for the zone editor. Mouse events are
// fed to the editor state machine and the room is drawn on a character grid.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/banshee-data/presence.report/internal/editor"
	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/store"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/units"
	"github.com/banshee-data/presence.report/internal/viewport"
	"github.com/banshee-data/presence.report/internal/zones"
)

const (
	frameRate   = 30
	saveTimeout = 5 * time.Second

	menuHeight   = 1
	statusHeight = 1
)

// Options configures a Model.
type Options struct {
	Room  store.Room
	Store store.RoomStore
	// Editor tunables. Handle radii are in editor pixels, where one
	// terminal column is one pixel.
	Editor editor.Config
	Clock  timeutil.Clock
	// Snapshots, if set, feeds live targets into the view.
	Snapshots <-chan *signal.Snapshot
	// DisplayUnit and SpeedUnit format the status line, defaulting to mm
	// and m/s.
	DisplayUnit string
	SpeedUnit   string
}

// DefaultEditorConfig scales the pointer tolerances to terminal cells.
func DefaultEditorConfig() editor.Config {
	cfg := editor.DefaultConfig()
	cfg.HandleRadius = 1.5
	cfg.HoverHandleRadius = 2.5
	return cfg
}

// shared holds state common to every copy of the Model. Bubble Tea passes
// models by value, so the editor and journal live behind a pointer.
type shared struct {
	ed      *editor.Editor
	journal *editor.Journal
	room    store.Room
	store   store.RoomStore
	clock   timeutil.Clock
	snaps   <-chan *signal.Snapshot
	targets []signal.RoomTarget
	fitted  bool

	lengthUnit string
	speedUnit  string
}

// Model is the Bubble Tea model of the zone editor.
type Model struct {
	width  int
	height int

	status  string
	confirm *zones.Ref

	shared *shared
}

// New creates the editor model for one room.
func New(opts Options) Model {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	cfg := opts.Editor
	if cfg == (editor.Config{}) {
		cfg = DefaultEditorConfig()
	}
	if opts.DisplayUnit == "" {
		opts.DisplayUnit = units.MM
	}
	if opts.SpeedUnit == "" {
		opts.SpeedUnit = units.MPS
	}
	room := opts.Room.Clone()
	ed := editor.New(cfg, clock, room.Zones, room.Shell, viewport.New(0, 0))
	return Model{
		status: "tab: arm a zone slot, then drag to draw it",
		shared: &shared{
			ed:      ed,
			journal: editor.NewJournal(),
			room:    room,
			store:   opts.Store,
			clock:   clock,
			snaps:   opts.Snapshots,

			lengthUnit: opts.DisplayUnit,
			speedUnit:  opts.SpeedUnit,
		},
	}
}

// Editor exposes the underlying state machine.
func (m Model) Editor() *editor.Editor { return m.shared.ed }

// Status returns the status line text.
func (m Model) Status() string { return m.status }

func (m Model) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m Model) waitForSnapshot() tea.Cmd {
	ch := m.shared.snaps
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case TickMsg:
		var cmds []tea.Cmd
		for _, r := range m.shared.ed.Tick(m.shared.clock.Now()) {
			cmds = append(cmds, m.handleResult(r))
		}
		if m.shared.ed.Animating() {
			cmds = append(cmds, tickCmd())
		}
		return m, tea.Batch(cmds...)

	case SavedMsg:
		if msg.Err != nil {
			restored := m.shared.journal.Fail(msg.CommitID, m.shared.ed)
			m.status = fmt.Sprintf("save failed, %d zone(s) restored: %v", len(restored), msg.Err)
			return m, nil
		}
		m.shared.journal.Succeed(msg.CommitID)
		if m.shared.journal.Pending() == 0 {
			m.status = "saved"
		}
		return m, nil

	case SnapshotMsg:
		m.shared.targets = msg.Snapshot.RoomTargets(m.shared.room.Placement)
		return m, m.waitForSnapshot()
	}
	return m, nil
}

// resize keeps pan and zoom and fits the room the first time the canvas
// has a size.
func (m *Model) resize() {
	w, h := m.canvasSize()
	v := m.shared.ed.Viewport()
	v.Width, v.Height = float64(w), float64(h)*cellAspect
	m.shared.ed.SetViewport(v)
	if !m.shared.fitted && w > 0 && h > 0 {
		m.shared.ed.AutoFit()
		m.shared.fitted = true
	}
}

func (m Model) canvasSize() (int, int) {
	h := m.height - menuHeight - statusHeight
	if h < 0 {
		h = 0
	}
	return m.width, h
}

// pointer converts terminal coordinates to editor pixels.
func pointer(msg tea.MouseMsg) geometry.Point {
	return fromCell(msg.X, msg.Y-menuHeight)
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	ed := m.shared.ed
	var r editor.Result
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		r = ed.Wheel(-1, false)
	case msg.Button == tea.MouseButtonWheelDown:
		r = ed.Wheel(1, false)
	case msg.Action == tea.MouseActionMotion:
		r = ed.PointerMove(pointer(msg))
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		r = ed.PointerDown(editor.Pointer{Pos: pointer(msg), Button: editor.Primary})
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonRight:
		r = ed.PointerDown(editor.Pointer{Pos: pointer(msg), Button: editor.Secondary})
	case msg.Action == tea.MouseActionRelease:
		button := editor.Primary
		if msg.Button == tea.MouseButtonRight {
			button = editor.Secondary
		}
		r = ed.PointerUp(editor.Pointer{Pos: pointer(msg), Button: button})
	default:
		return m, nil
	}
	cmd := m.handleResult(r)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ed := m.shared.ed

	if m.confirm != nil {
		ref := *m.confirm
		switch msg.String() {
		case "y", "Y", "enter":
			m.confirm = nil
			return m, m.handleResult(ed.ConfirmDelete(ref))
		case "n", "N", "esc":
			m.confirm = nil
			m.status = "delete cancelled"
			return m, nil
		}
	}

	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		return m, m.handleResult(ed.Key(editor.KeyEscape))
	case "enter":
		return m, m.handleResult(ed.Key(editor.KeyEnter))
	case "delete", "backspace", "x":
		return m, m.handleResult(ed.Key(editor.KeyDelete))
	case "f":
		ed.AutoFit()
	case "+", "=":
		ed.Wheel(-1, false)
	case "-":
		ed.Wheel(1, false)
	case "w":
		if err := ed.BeginWall(); err != nil {
			m.status = err.Error()
		} else {
			m.status = "click the room corners, enter closes the outline"
		}
	case "tab":
		m.armNext()
	}
	return m, nil
}

// armNext cycles the creation slot through the free slots of the set.
func (m *Model) armNext() {
	ed := m.shared.ed
	set := ed.Set()
	var free []zones.Ref
	if set.Mode == zones.PolygonMode {
		for _, p := range set.Polygons {
			if !p.Enabled {
				free = append(free, p.Ref())
			}
		}
	} else {
		for _, r := range set.Rects {
			if !r.Enabled {
				free = append(free, r.Ref())
			}
		}
	}
	if len(free) == 0 {
		m.status = "every zone slot is in use"
		return
	}
	next := free[0]
	if cur, ok := ed.Armed(); ok {
		for i, ref := range free {
			if ref == cur {
				next = free[(i+1)%len(free)]
				break
			}
		}
	}
	if err := ed.Arm(next); err != nil {
		m.status = err.Error()
		return
	}
	m.status = "drag to draw " + next.String()
}

// handleResult applies the side effects an editor result asks for.
func (m *Model) handleResult(r editor.Result) tea.Cmd {
	if r.Err != nil {
		m.status = r.Err.Error()
		return nil
	}
	var cmd tea.Cmd
	switch r.Effect {
	case editor.EffectCommitted:
		cmd = m.save(*r.Commit)
	case editor.EffectConfirmDelete:
		ref := r.Ref
		m.confirm = &ref
		m.status = ""
	case editor.EffectDeleteScheduled:
		m.status = "deleting " + r.Ref.String()
	}
	if m.shared.ed.Animating() && r.Effect != editor.EffectNone {
		return tea.Batch(cmd, tickCmd())
	}
	return cmd
}

// save records c in the journal and persists the editor's current data.
// Without a store the commit is accepted immediately.
func (m *Model) save(c editor.Commit) tea.Cmd {
	ed := m.shared.ed
	m.shared.journal.Record(c)
	room := m.shared.room.Clone()
	room.Zones = ed.Set()
	room.Shell = ed.Shell()
	m.shared.room = room
	m.status = "saving"

	st := m.shared.store
	if st == nil {
		return func() tea.Msg { return SavedMsg{CommitID: c.ID} }
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		err := st.Put(ctx, room)
		if err != nil {
			monitoring.Logf("[tui] save room %s: %v", room.ID, err)
		}
		return SavedMsg{CommitID: c.ID, Err: err}
	}
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing zone editor..."
	}
	w, h := m.canvasSize()
	c := newCanvas(w, h)
	drawEditor(c, m.shared.ed, m.shared.room.Placement, m.shared.targets)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.menuBar(),
		c.render(canvasStyles),
		m.statusBar(),
	)
}

func (m Model) menuBar() string {
	name := m.shared.room.Name
	if name == "" {
		name = m.shared.room.ID
	}
	keys := []string{"tab", "arm", "w", "walls", "f", "fit", "x", "delete", "q", "quit"}
	var b strings.Builder
	b.WriteString(name + "  ")
	for i := 0; i < len(keys); i += 2 {
		b.WriteString(styleBarKey.Render(keys[i]) + " " + keys[i+1] + "  ")
	}
	return styleBar.Width(m.width).MaxHeight(menuHeight).Render(b.String())
}

// hoverSize describes the rect under the pointer in the display unit.
func (m Model) hoverSize() string {
	h, ok := m.shared.ed.Hover()
	if !ok {
		return ""
	}
	r, ok := m.shared.ed.Set().Rect(h.Ref)
	if !ok {
		return ""
	}
	u := m.shared.lengthUnit
	w, _ := units.FromMillimetres(r.Width, u)
	d, _ := units.FromMillimetres(r.Height, u)
	return fmt.Sprintf("%s %.4gx%.4g %s", h.Ref, w, d, u)
}

// fastest returns the largest absolute target speed in m/s.
func fastest(targets []signal.RoomTarget) (float64, bool) {
	var best float64
	var found bool
	for _, t := range targets {
		if t.Speed == nil {
			continue
		}
		if v := math.Abs(*t.Speed); !found || v > best {
			best, found = v, true
		}
	}
	return best, found
}

func (m Model) statusBar() string {
	ed := m.shared.ed
	status := m.status
	if m.confirm != nil {
		status = styleWarning.Render(fmt.Sprintf("delete %s? y/n", m.confirm.String()))
	}
	info := fmt.Sprintf("%s  zoom %.1f  targets %d", ed.State(), ed.Viewport().Zoom, len(m.shared.targets))
	if size := m.hoverSize(); size != "" {
		info = size + "  " + info
	}
	if v, ok := fastest(m.shared.targets); ok {
		info += fmt.Sprintf("  max %.2f %s", units.ConvertSpeed(v, m.shared.speedUnit), m.shared.speedUnit)
	}
	if n := m.shared.journal.Pending(); n > 0 {
		info += fmt.Sprintf("  unsaved %d", n)
	}
	gap := m.width - lipgloss.Width(status) - lipgloss.Width(info) - 2
	return styleBar.Width(m.width).MaxHeight(statusHeight).Render(status + strings.Repeat(" ", int(math.Max(1, float64(gap)))) + info)
}
