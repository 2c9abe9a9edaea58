package api

import (
	"bytes"
	"net/http"
	"strconv"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/presence.report/internal/httputil"
	"github.com/banshee-data/presence.report/internal/render"
)

const (
	defaultChartWidth  = 900
	defaultChartHeight = 700
	maxChartSide       = 4096
)

// sizeParams reads width and height query parameters, falling back to the
// given defaults.
func sizeParams(r *http.Request, defW, defH int) (int, int, bool) {
	read := func(key string, def int) (int, bool) {
		v := r.URL.Query().Get(key)
		if v == "" {
			return def, true
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxChartSide {
			return 0, false
		}
		return n, true
	}
	w, okW := read("width", defW)
	h, okH := read("height", defH)
	return w, h, okW && okH
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request, id string) (render.Scene, bool) {
	room, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return render.Scene{}, false
	}
	return render.NewScene(room, s.snapshotFor(room), s.cfg.GetDetectionRange()), true
}

// showChart serves an interactive chart of the room, its zones and the
// live targets.
func (s *Server) showChart(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	width, height, ok := sizeParams(r, defaultChartWidth, defaultChartHeight)
	if !ok {
		httputil.BadRequest(w, "width and height must be positive integers")
		return
	}
	scene, ok := s.scene(w, r, id)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.ChartHTML(&buf, scene, width, height); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// showPlot serves a static PNG of the same scene. Sizes are in points.
func (s *Server) showPlot(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	width, height, ok := sizeParams(r, 480, 360)
	if !ok {
		httputil.BadRequest(w, "width and height must be positive integers")
		return
	}
	scene, ok := s.scene(w, r, id)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.PlotPNG(&buf, scene, vg.Points(float64(width)), vg.Points(float64(height))); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
