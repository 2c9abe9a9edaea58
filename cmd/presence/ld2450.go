package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/presence.report/internal/api"
	"github.com/banshee-data/presence.report/internal/ld2450"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/recorder"
	presence "github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/stream"
)

type ld2450Options struct {
	port     string
	deviceID string
	roomFile string
	multi    bool
	tracking bool
	listen   string
	record   bool
	list     bool
}

func newLD2450Cmd() *cobra.Command {
	var o ld2450Options
	cmd := &cobra.Command{
		Use:   "ld2450",
		Short: "Read an HLK-LD2450 module over UART and stream its targets",
		Long: `ld2450 reads target frames from an HLK-LD2450 connected to a serial
port, folds them into snapshots and publishes them on the snapshot stream
under --device-id. With --room the enabled zones of the room file are
programmed into the module's region filter first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.list {
				return listPorts(cmd.OutOrStdout())
			}
			if o.port == "" {
				o.port = cfg.GetSerialPort()
			}
			if o.port == "" {
				return errors.New("serial port is required: pass --port or set serial_port")
			}
			return runLD2450(cmd.Context(), o)
		},
	}
	cmd.Flags().StringVar(&o.port, "port", "", "Serial port, default from config")
	cmd.Flags().StringVar(&o.deviceID, "device-id", "ld2450", "Device id to publish snapshots under")
	cmd.Flags().StringVar(&o.roomFile, "room", "", "Room file whose zones are programmed as region filters")
	cmd.Flags().BoolVar(&o.tracking, "set-tracking", false, "Set the tracking mode given by --multi")
	cmd.Flags().BoolVar(&o.multi, "multi", true, "Multi target tracking (with --set-tracking)")
	cmd.Flags().StringVar(&o.listen, "listen", "", "Serve debug routes and metrics on this address")
	cmd.Flags().BoolVar(&o.record, "record", false, "Record the decoded signals")
	cmd.Flags().BoolVar(&o.list, "list", false, "List serial ports and exit")
	return cmd
}

func listPorts(w io.Writer) error {
	ports, err := ld2450.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

// setupCommands lists the command frames to send before reading.
func setupCommands(o ld2450Options) ([][]byte, error) {
	var cmds [][]byte
	if o.tracking {
		cmds = append(cmds, ld2450.TrackingCommands(o.multi)...)
	}
	if o.roomFile != "" {
		room, err := loadRoom(o.roomFile)
		if err != nil {
			return nil, err
		}
		filter, err := ld2450.ZoneFilterCommands(ld2450.FilterFromSet(room.Zones, room.Placement))
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, filter...)
	}
	return cmds, nil
}

func runLD2450(parent context.Context, o ld2450Options) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmds, err := setupCommands(o)
	if err != nil {
		return err
	}

	port, err := ld2450.OpenPort(o.port, cfg.GetSerial())
	if err != nil {
		return err
	}
	src := ld2450.NewSource(port, nil)
	defer src.Close()

	if len(cmds) > 0 {
		if err := src.Send(cmds); err != nil {
			return err
		}
		monitoring.Logf("[ld2450] sent %d command frames to %s", len(cmds), o.port)
	}

	reg := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	pub := stream.NewPublisher()
	pub.MaxClients = cfg.GetGRPCMaxClients()
	if err := pub.Start(cfg.GetGRPCAddr()); err != nil {
		return err
	}
	defer pub.Stop()

	var rec *recorder.DB
	if o.record {
		rec, err = recorder.Open(cfg.GetRecorderDB())
		if err != nil {
			return err
		}
		defer rec.Close()
		rec.Metrics = metrics
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := src.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("[ld2450] monitor stopped: %v", err)
		}
		stop()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		folder := &presence.Folder{Metrics: metrics}
		err := src.Fold(ctx, folder, func(s *presence.Snapshot) {
			pub.Publish(o.deviceID, s)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("[ld2450] fold stopped: %v", err)
		}
	}()

	if rec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recordReports(ctx, src, rec, "ld2450:"+o.deviceID)
		}()
	}

	if o.listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, o.listen, debugMux(src, rec, reg))
		}()
	}

	wg.Wait()
	return nil
}

// recordReports stores every decoded target signal of src.
func recordReports[T ld2450.Porter](ctx context.Context, src *ld2450.Source[T], rec *recorder.DB, source string) {
	id, ch := src.Subscribe()
	defer src.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-ch:
			if !ok {
				return
			}
			for _, sig := range r.Frame.Signals() {
				if err := rec.Record(ctx, source, sig, r.At); err != nil {
					monitoring.Logf("[ld2450] failed to record %s: %v", sig.Identifier, err)
				}
			}
		}
	}
}

// debugMux mounts the module and recorder debug routes plus metrics.
func debugMux[T ld2450.Porter](src *ld2450.Source[T], rec *recorder.DB, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	src.AttachAdminRoutes(mux)
	if rec != nil {
		if err := rec.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("failed to attach recorder admin routes: %v", err)
		}
	}
	mux.Handle("/metrics", monitoring.Handler(reg))
	return mux
}

func serveDebug(ctx context.Context, addr string, handler http.Handler) {
	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(handler),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("failed to start debug server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("debug server shutdown error: %v", err)
	}
}
