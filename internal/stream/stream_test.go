package stream

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
)

func init() {
	monitoring.SetLogger(nil)
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var errDone = errors.New("done")

func startPublisher(t *testing.T, opts ...func(*Publisher)) (*Publisher, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	pub := NewPublisher()
	pub.now = func() time.Time { return t0 }
	for _, o := range opts {
		o(pub)
	}
	require.NoError(t, pub.Serve(lis))
	t.Cleanup(pub.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return pub, conn
}

func waitForClients(t *testing.T, pub *Publisher, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return pub.Stats().ClientCount == n },
		2*time.Second, 5*time.Millisecond)
}

func snapshotWithTarget(x float64) *signal.Snapshot {
	var f signal.Folder
	f.Apply(signal.Signal{Identifier: "sensor.ep1_target_1_x", Value: "0", Unit: "mm"}, t0)
	s := f.Apply(signal.Signal{Identifier: "sensor.ep1_target_1_y", Value: "1", Unit: "m"}, t0)
	s.Targets[1] = signal.Target{ID: 1, X: &x, Y: s.Targets[1].Y}
	return s
}

func TestSubscribeReceivesFilteredFrames(t *testing.T) {
	pub, conn := startPublisher(t)

	frames := make(chan Frame, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- Subscribe(context.Background(), conn, "living", func(f Frame) error {
			frames <- f
			return errDone
		})
	}()
	waitForClients(t, pub, 1)

	pub.Publish("office", snapshotWithTarget(5))
	pub.Publish("living", snapshotWithTarget(250))

	select {
	case f := <-frames:
		assert.Equal(t, "living", f.DeviceID)
		assert.EqualValues(t, 2, f.Seq)
		assert.True(t, f.SentAt.Equal(t0))
		require.NotNil(t, f.Snapshot)
		tg := f.Snapshot.Targets[1]
		require.NotNil(t, tg.X)
		assert.InDelta(t, 250, *tg.X, 1e-9)
		assert.InDelta(t, 1000, *tg.Y, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
	assert.ErrorIs(t, <-errc, errDone)
	waitForClients(t, pub, 0)
}

func TestPublishCopiesSnapshot(t *testing.T) {
	pub, conn := startPublisher(t)

	frames := make(chan Frame, 1)
	go Subscribe(context.Background(), conn, "", func(f Frame) error {
		frames <- f
		return errDone
	})
	waitForClients(t, pub, 1)

	snap := snapshotWithTarget(10)
	pub.Publish("living", snap)
	delete(snap.Targets, 1)

	select {
	case f := <-frames:
		assert.Contains(t, f.Snapshot.Targets, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
}

func TestMaxClients(t *testing.T) {
	pub, conn := startPublisher(t, func(p *Publisher) { p.MaxClients = 1 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Subscribe(ctx, conn, "", func(Frame) error { return nil })
	waitForClients(t, pub, 1)

	err := Subscribe(context.Background(), conn, "", func(Frame) error { return nil })
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestStopEndsStreams(t *testing.T) {
	pub, conn := startPublisher(t)

	errc := make(chan error, 1)
	go func() {
		errc <- Subscribe(context.Background(), conn, "", func(Frame) error { return nil })
	}()
	waitForClients(t, pub, 1)

	pub.Stop()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed by Stop")
	}
	assert.False(t, pub.Stats().Running)

	// Publishing after Stop is a no-op.
	pub.Publish("living", snapshotWithTarget(1))
	pub.Stop()
}

func TestPrefixResolver(t *testing.T) {
	resolve := PrefixResolver(map[string]string{
		"ep1":       "living",
		"ep1_annex": "annex",
		"ep10":      "office",
	})
	for id, want := range map[string]string{
		"sensor.ep1_target_1_x":       "living",
		"sensor.ep1_annex_target_1_x": "annex",
		"sensor.ep10_target_1_x":      "office",
	} {
		got, ok := resolve(id)
		assert.True(t, ok, id)
		assert.Equal(t, want, got, id)
	}
	_, ok := resolve("light.kitchen")
	assert.False(t, ok)
}

type chanEvents struct{ ch chan hass.StateChange }

func (c chanEvents) Subscribe() (string, <-chan hass.StateChange) { return "x", c.ch }
func (c chanEvents) Unsubscribe(string)                           {}

func TestRelayFoldsPerDevice(t *testing.T) {
	pub, conn := startPublisher(t)
	relay := NewRelay(pub, PrefixResolver(map[string]string{"ep1": "living", "ep2": "office"}))

	frames := make(chan Frame, 4)
	go Subscribe(context.Background(), conn, "office", func(f Frame) error {
		frames <- f
		return nil
	})
	waitForClients(t, pub, 1)

	state := func(id, v, unit string) *hass.State {
		s := &hass.State{EntityID: id, State: v}
		if unit != "" {
			s.Attributes = map[string]any{"unit_of_measurement": unit}
		}
		return s
	}
	events := chanEvents{ch: make(chan hass.StateChange, 8)}
	for _, s := range []*hass.State{
		state("sensor.ep1_target_1_x", "100", "mm"),
		state("sensor.ep2_target_1_x", "2", "m"),
		state("light.kitchen", "on", ""),
		state("sensor.ep9_target_1_x", "1", "mm"),
	} {
		events.ch <- hass.StateChange{EntityID: s.EntityID, NewState: s, At: t0}
	}
	events.ch <- hass.StateChange{EntityID: "sensor.ep2_target_1_y"}
	close(events.ch)

	require.NoError(t, relay.Run(context.Background(), events))

	living := relay.Snapshot("living")
	require.NotNil(t, living)
	assert.InDelta(t, 100, *living.Targets[1].X, 1e-9)
	assert.Nil(t, relay.Snapshot("ep9"))

	select {
	case f := <-frames:
		assert.Equal(t, "office", f.DeviceID)
		assert.InDelta(t, 2000, *f.Snapshot.Targets[1].X, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
}
