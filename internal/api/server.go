package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/device"
	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/httputil"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/recorder"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/store"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const healthTimeout = 5 * time.Second

// SnapshotSource returns the latest folded live state of a device.
type SnapshotSource interface {
	Snapshot(deviceID string) *signal.Snapshot
}

// Pinger checks that the device backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Rooms and Backend are required; the rest
// may be left nil.
type Options struct {
	Rooms     store.RoomStore
	Backend   device.Backend
	Health    Pinger
	Live      http.Handler
	Snapshots SnapshotSource
	Recorder  *recorder.DB
	Registry  *prometheus.Registry
	Metrics   *monitoring.Metrics
	Config    *config.Config
	Clock     timeutil.Clock
}

type Server struct {
	rooms     store.RoomStore
	backend   device.Backend
	health    Pinger
	live      http.Handler
	snapshots SnapshotSource
	rec       *recorder.DB
	registry  *prometheus.Registry
	metrics   *monitoring.Metrics
	cfg       *config.Config
	clock     timeutil.Clock
}

func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Config == nil {
		opts.Config = &config.Config{}
	}
	return &Server{
		rooms:     opts.Rooms,
		backend:   opts.Backend,
		health:    opts.Health,
		live:      opts.Live,
		snapshots: opts.Snapshots,
		rec:       opts.Recorder,
		registry:  opts.Registry,
		metrics:   opts.Metrics,
		cfg:       opts.Config,
		clock:     opts.Clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the websocket upgrade on /api/live needs.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms", s.handleRooms)
	mux.HandleFunc("/api/rooms/", s.handleRoomPath)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/health", s.showHealth)
	if s.live != nil {
		mux.Handle("/api/live", s.live)
	}
	if s.registry != nil {
		mux.Handle("/metrics", monitoring.Handler(s.registry))
	}
	return mux
}

// handleRoomPath dispatches /api/rooms/{id}[/action[/...]].
func (s *Server) handleRoomPath(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/rooms/"), "/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		httputil.BadRequest(w, "missing room id")
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleRoom(w, r, id)
		return
	}

	switch parts[1] {
	case "zones":
		s.handleZone(w, r, id, parts[2:])
		return
	}
	if len(parts) > 2 {
		httputil.NotFound(w, "unknown endpoint")
		return
	}
	switch parts[1] {
	case "device":
		s.showDevice(w, r, id)
	case "pull":
		s.pullZones(w, r, id)
	case "push":
		s.pushZones(w, r, id)
	case "mode":
		s.setMode(w, r, id)
	case "config":
		s.writeConfig(w, r, id)
	case "pushes":
		s.listPushes(w, r, id)
	case "snapshot":
		s.showSnapshot(w, r, id)
	case "chart":
		s.showChart(w, r, id)
	case "plot.png":
		s.showPlot(w, r, id)
	default:
		httputil.NotFound(w, "unknown endpoint")
	}
}

// redacted is the configuration as reported by /api/config.
type redacted struct {
	config.Config
	HassToken *string `json:"hass_token,omitempty"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	out := redacted{Config: *s.cfg}
	if s.cfg.GetHassToken() != "" {
		masked := "********"
		out.HassToken = &masked
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

type healthResponse struct {
	Status          string `json:"status"`
	HassURL         string `json:"hass_url"`
	HassReachable   bool   `json:"hass_reachable"`
	HassError       string `json:"hass_error,omitempty"`
	TokenConfigured bool   `json:"token_configured"`
	Supervisor      bool   `json:"supervisor"`
}

// showHealth reports whether Home Assistant answers with the configured
// token. An unreachable backend is a 503.
func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	out := healthResponse{
		Status:          "ok",
		HassURL:         s.cfg.GetHassURL(),
		HassReachable:   true,
		TokenConfigured: s.cfg.GetHassToken() != "",
		Supervisor:      s.cfg.GetHassURL() == hass.SupervisorURL,
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			out.Status = "degraded"
			out.HassReachable = false
			out.HassError = err.Error()
			httputil.WriteJSON(w, http.StatusServiceUnavailable, out)
			return
		}
	}
	httputil.WriteJSONOK(w, out)
}
