package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/recorder"
	"github.com/banshee-data/presence.report/internal/render"
	"github.com/banshee-data/presence.report/internal/signal"
)

type plotOptions struct {
	out    string
	width  float64
	height float64
	db     string
	source string
}

func newPlotCmd() *cobra.Command {
	var o plotOptions
	cmd := &cobra.Command{
		Use:   "plot ROOM_FILE",
		Short: "Render a room and its zones to PNG or HTML",
		Long: `plot draws the room outline, the device and the enabled zones of
ROOM_FILE. The output format follows the extension of --out: .png for a
static image, .html for an interactive chart. With --db the recorded
signals of the room's device are replayed and the final targets drawn.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return plotRoom(cmd.Context(), args[0], o)
		},
	}
	cmd.Flags().StringVarP(&o.out, "out", "o", "room.png", "Output file (.png or .html)")
	cmd.Flags().Float64Var(&o.width, "width", 800, "Width in points (png) or pixels (html)")
	cmd.Flags().Float64Var(&o.height, "height", 600, "Height in points (png) or pixels (html)")
	cmd.Flags().StringVar(&o.db, "db", "", "Recorder database to replay targets from")
	cmd.Flags().StringVar(&o.source, "source", "", "Recorder source to replay, default all")
	return cmd
}

func plotRoom(ctx context.Context, path string, o plotOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.width <= 0 || o.height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	room, err := loadRoom(path)
	if err != nil {
		return err
	}

	var snap *signal.Snapshot
	if o.db != "" {
		db, err := recorder.Open(o.db)
		if err != nil {
			return err
		}
		defer db.Close()
		snap, err = db.Replay(ctx, recorder.Query{Source: o.source, Prefix: room.EntityPrefix}, nil)
		if err != nil {
			return err
		}
	}

	scene := render.NewScene(room, snap, cfg.GetDetectionRange())
	switch ext := strings.ToLower(filepath.Ext(o.out)); ext {
	case ".png":
		err = render.SavePlot(o.out, scene, vg.Points(o.width), vg.Points(o.height))
	case ".html", ".htm":
		var f *os.File
		f, err = os.Create(filepath.Clean(o.out))
		if err != nil {
			return err
		}
		err = render.ChartHTML(f, scene, int(o.width), int(o.height))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	default:
		return fmt.Errorf("unsupported output format %q: use .png or .html", ext)
	}
	if err != nil {
		return err
	}
	monitoring.Logf("wrote %s (%d zones, %d targets)", o.out, len(scene.Outlines()), len(scene.Targets))
	return nil
}
