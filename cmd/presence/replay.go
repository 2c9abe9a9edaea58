package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/presence.report/internal/recorder"
	"github.com/banshee-data/presence.report/internal/signal"
)

type replayOptions struct {
	db     string
	source string
	prefix string
	from   string
	to     string
	limit  int
	final  bool
}

func newReplayCmd() *cobra.Command {
	var o replayOptions
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Fold recorded signals through the parser and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.db == "" {
				o.db = cfg.GetRecorderDB()
			}
			return replay(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&o.db, "db", "", "Recorder database, default from config")
	cmd.Flags().StringVar(&o.source, "source", "", "Only replay this source")
	cmd.Flags().StringVar(&o.prefix, "prefix", "", "Only replay entities of this device prefix")
	cmd.Flags().StringVar(&o.from, "from", "", "Start time (RFC 3339)")
	cmd.Flags().StringVar(&o.to, "to", "", "End time (RFC 3339)")
	cmd.Flags().IntVar(&o.limit, "limit", 0, "Maximum number of signals, 0 for all")
	cmd.Flags().BoolVar(&o.final, "final", false, "Only print the final snapshot as JSON")
	return cmd
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func optBool(b *bool) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatBool(*b)
}

// summary is one line describing a snapshot.
func summary(s *signal.Snapshot) string {
	return fmt.Sprintf("presence=%s targets=%d zones=%d",
		optBool(s.Presence), len(s.RenderedTargets()), len(s.ZoneOccupancy))
}

func replay(ctx context.Context, w io.Writer, o replayOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	from, err := parseTime(o.from)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := parseTime(o.to)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	db, err := recorder.Open(o.db)
	if err != nil {
		return err
	}
	defer db.Close()

	q := recorder.Query{Source: o.source, Prefix: o.prefix, From: from, To: to, Limit: o.limit}
	var step func(recorder.Entry, *signal.Snapshot)
	if !o.final {
		step = func(e recorder.Entry, s *signal.Snapshot) {
			fmt.Fprintf(w, "%s %s=%s %s\n", e.At.Format(time.RFC3339Nano), e.Signal.Identifier, e.Signal.Value, summary(s))
		}
	}
	snap, err := db.Replay(ctx, q, step)
	if err != nil {
		return err
	}
	if !o.final {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
