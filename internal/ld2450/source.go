package ld2450

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"tailscale.com/tsweb"

	"github.com/banshee-data/presence.report/internal/httputil"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/timeutil"
)

var ErrWriteFailed = errors.New("ld2450: short write to serial port")

// Report is a decoded frame with its arrival time.
type Report struct {
	Frame Frame     `json:"frame"`
	At    time.Time `json:"at"`
}

// Source reads report frames from one module and fans them out to
// subscribers. Slow subscribers miss reports rather than stall the port.
type Source[T Porter] struct {
	port  T
	clock timeutil.Clock

	subscribers  map[string]chan Report
	subscriberMu sync.Mutex
	commandMu    sync.Mutex

	latestMu sync.Mutex
	latest   *Report
	frames   uint64
	dropped  uint64

	closing   bool
	closingMu sync.Mutex
}

// NewSource wraps port. A nil clock uses the real clock.
func NewSource[T Porter](port T, clock timeutil.Clock) *Source[T] {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Source[T]{
		port:        port,
		clock:       clock,
		subscribers: make(map[string]chan Report),
	}
}

// Subscribe returns a channel receiving every decoded report. The id is
// passed to Unsubscribe.
func (s *Source[T]) Subscribe() (string, <-chan Report) {
	id := uuid.NewString()
	ch := make(chan Report, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Source[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Send writes command frames in order.
func (s *Source[T]) Send(cmds [][]byte) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	for _, cmd := range cmds {
		n, err := s.port.Write(cmd)
		if err != nil {
			return fmt.Errorf("write command: %w", err)
		}
		if n != len(cmd) {
			return ErrWriteFailed
		}
	}
	return nil
}

// Latest returns the most recent report, if any.
func (s *Source[T]) Latest() (Report, bool) {
	s.latestMu.Lock()
	defer s.latestMu.Unlock()
	if s.latest == nil {
		return Report{}, false
	}
	return *s.latest, true
}

// Monitor reads frames until ctx is cancelled, the port reaches EOF or
// Close is called. Command acknowledgements and noise are skipped.
func (s *Source[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)
	scan.Split(SplitFrames)

	frameChan := make(chan []byte)
	scanErrChan := make(chan error, 1)

	// Scan blocks on the port, so it runs apart from the ctx select below.
	go func() {
		defer close(frameChan)
		for scan.Scan() {
			b := append([]byte(nil), scan.Bytes()...)
			select {
			case frameChan <- b:
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErrChan:
			return err
		case b, ok := <-frameChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if s.isClosing() {
				return nil
			}
			f, err := Decode(b)
			if err != nil {
				monitoring.Logf("[ld2450] %v", err)
				continue
			}
			s.publish(Report{Frame: f, At: s.clock.Now()})
		}
	}
}

func (s *Source[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

func (s *Source[T]) publish(r Report) {
	s.latestMu.Lock()
	s.latest = &r
	s.frames++
	s.latestMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- r:
		default:
			s.latestMu.Lock()
			s.dropped++
			s.latestMu.Unlock()
		}
	}
}

// Close closes every subscriber channel and the port.
func (s *Source[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

// Fold subscribes to the source and feeds every report through a signal
// folder, calling fn with the resulting snapshot.
func (s *Source[T]) Fold(ctx context.Context, f *signal.Folder, fn func(*signal.Snapshot)) error {
	id, ch := s.Subscribe()
	defer s.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-ch:
			if !ok {
				return nil
			}
			var snap *signal.Snapshot
			for _, sig := range r.Frame.Signals() {
				snap = f.Apply(sig, r.At)
			}
			if fn != nil {
				fn(snap)
			}
		}
	}
}

// AttachAdminRoutes mounts the module's debug endpoints under /debug/ on
// mux: the latest report as JSON and a server-sent event tail of reports.
func (s *Source[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleSilentFunc("ld2450", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		s.latestMu.Lock()
		stats := map[string]uint64{"frames": s.frames, "dropped": s.dropped}
		s.latestMu.Unlock()
		latest, ok := s.Latest()
		resp := map[string]interface{}{"stats": stats}
		if ok {
			resp["latest"] = latest
		}
		httputil.WriteJSONOK(w, resp)
	})

	debug.HandleSilentFunc("ld2450-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httputil.InternalServerError(w, "streaming unsupported")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case rep, ok := <-c:
				if !ok {
					return
				}
				b, err := json.Marshal(rep)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
