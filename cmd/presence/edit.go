package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/store"
	"github.com/banshee-data/presence.report/internal/stream"
	"github.com/banshee-data/presence.report/internal/tui"
)

func newEditCmd() *cobra.Command {
	var streamAddr string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "edit ROOM_FILE",
		Short: "Edit the zones of a room in the terminal",
		Long: `edit opens the room in ROOM_FILE in a mouse driven terminal editor and
writes the result back when the editor exits. A missing file starts a new
room. With --stream the live targets of the room's device are drawn from a
running "presence serve".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd.Context(), args[0], streamAddr, !dryRun)
		},
	}
	cmd.Flags().StringVar(&streamAddr, "stream", "", "Snapshot stream address of a running server, e.g. localhost:50051")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not write the room back on exit")
	return cmd
}

// editorOptions combines the configured editor tunables with the handle
// sizes of the terminal canvas.
func editorOptions(room store.Room, st store.RoomStore) tui.Options {
	ec := cfg.Editor()
	cells := tui.DefaultEditorConfig()
	ec.HandleRadius = cells.HandleRadius
	ec.HoverHandleRadius = cells.HoverHandleRadius
	return tui.Options{
		Room:        room,
		Store:       st,
		Editor:      ec,
		DisplayUnit: cfg.GetDisplayUnit(),
		SpeedUnit:   cfg.GetSpeedUnit(),
	}
}

// followSnapshots feeds frames for deviceID into the returned channel,
// keeping only the newest when the editor falls behind.
func followSnapshots(ctx context.Context, addr, deviceID string) (<-chan *signal.Snapshot, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	out := make(chan *signal.Snapshot, 1)
	go func() {
		defer conn.Close()
		err := stream.Subscribe(ctx, conn, deviceID, func(f stream.Frame) error {
			select {
			case <-out:
			default:
			}
			out <- f.Snapshot
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("[stream] subscription ended: %v", err)
		}
	}()
	return out, nil
}

func edit(ctx context.Context, path, streamAddr string, write bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	room, err := loadRoom(path)
	if err != nil {
		return err
	}
	st := store.NewMemory()
	if err := st.Put(ctx, room); err != nil {
		return err
	}

	// Log lines would tear the alternate screen.
	if flagLogFile == "" {
		monitoring.SetLogger(nil)
	}

	opts := editorOptions(room, st)
	if streamAddr != "" && room.DeviceID != "" {
		snaps, err := followSnapshots(ctx, streamAddr, room.DeviceID)
		if err != nil {
			return err
		}
		opts.Snapshots = snaps
	}

	p := tea.NewProgram(
		tui.New(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithFPS(30),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		return err
	}

	if !write {
		return nil
	}
	final, err := st.Get(ctx, room.ID)
	if err != nil {
		return err
	}
	return saveRoom(path, final)
}
