package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/presence.report/internal/api"
	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/live"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/recorder"
	"github.com/banshee-data/presence.report/internal/store"
	"github.com/banshee-data/presence.report/internal/stream"
)

func newServeCmd() *cobra.Command {
	var roomsFile string
	var noRecord bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live websocket hub and snapshot stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), roomsFile, !noRecord)
		},
	}
	cmd.Flags().StringVar(&roomsFile, "rooms", "", "JSON file of rooms to load at start")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not record device signals")
	return cmd
}

// roomResolver maps entities to devices using the rooms currently stored,
// so rooms added through the API are picked up without a restart.
func roomResolver(rooms store.RoomStore) stream.Resolver {
	return func(entityID string) (string, bool) {
		prefixes, err := devicePrefixes(context.Background(), rooms)
		if err != nil {
			return "", false
		}
		return stream.PrefixResolver(prefixes)(entityID)
	}
}

func serve(parent context.Context, roomsFile string, record bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	rooms := store.NewMemory()
	if roomsFile != "" {
		n, err := seedStore(ctx, rooms, roomsFile)
		if err != nil {
			return err
		}
		monitoring.Logf("loaded %d rooms from %s", n, roomsFile)
	}

	ha := hass.NewClient(cfg.GetHassURL(), cfg.GetHassToken(), nil)
	if err := ha.Ping(ctx); err != nil {
		monitoring.Logf("[hass] %s is not reachable yet: %v", cfg.GetHassURL(), err)
	}

	events := hass.NewEventStream(ha.WebsocketURL(), ha.Token(), nil)
	events.Backoff = cfg.GetReconnectBackoff()
	events.Metrics = metrics
	defer events.Close()

	hub := live.NewHub(ha, events, nil)
	hub.Metrics = metrics

	pub := stream.NewPublisher()
	pub.MaxClients = cfg.GetGRPCMaxClients()
	if err := pub.Start(cfg.GetGRPCAddr()); err != nil {
		return err
	}
	defer pub.Stop()
	relay := stream.NewRelay(pub, roomResolver(rooms))

	var rec *recorder.DB
	if record {
		var err error
		rec, err = recorder.Open(cfg.GetRecorderDB())
		if err != nil {
			return err
		}
		defer rec.Close()
		rec.Metrics = metrics
	}

	srv := api.NewServer(api.Options{
		Rooms:     rooms,
		Backend:   ha,
		Health:    ha,
		Live:      hub,
		Snapshots: relay,
		Recorder:  rec,
		Registry:  reg,
		Metrics:   metrics,
		Config:    cfg,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := events.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("[hass] event stream stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := relay.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("[stream] relay stopped: %v", err)
		}
	}()

	if rec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.Follow(ctx, "hass", events); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Logf("[recorder] follow stopped: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		apiMux := srv.ServeMux()
		mux.Handle("/api/", apiMux)
		mux.Handle("/metrics", apiMux)

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		if rec != nil {
			if err := rec.AttachAdminRoutes(mux); err != nil {
				monitoring.Logf("failed to attach recorder admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    cfg.GetListenAddr(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			monitoring.Logf("HTTP server listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Logf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		monitoring.Logf("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
		}
		monitoring.Logf("HTTP server routine stopped")
	}()

	wg.Wait()
	monitoring.Logf("Graceful shutdown complete")
	return nil
}
