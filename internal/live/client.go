package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/timeutil"
)

// ReconnectBackoff is the delay before reconnecting a dropped subscription.
const ReconnectBackoff = 3 * time.Second

// StatusDisconnected is reported when the connection drops and a
// reconnect is scheduled.
const StatusDisconnected = "disconnected"

var errClosedByServer = errors.New("closed by server")

// Status is a connection event for the user, e.g. a banner.
type Status struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Client keeps one live subscription open and folds its updates into a
// snapshot. Changing the target or closing the client stops the old
// connection for good; only the current target is ever reconnected.
type Client struct {
	url   string
	clock timeutil.Clock

	Backoff time.Duration
	Metrics *monitoring.Metrics
	// OnSnapshot and OnStatus are called from the connection goroutine.
	OnSnapshot func(*signal.Snapshot)
	OnStatus   func(Status)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	folder signal.Folder
	target *Target
	closed bool
	wg     sync.WaitGroup
}

// NewClient returns a client for the hub at url. A nil clock uses the real
// clock.
func NewClient(url string, clock timeutil.Clock) *Client {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Client{url: url, clock: clock, Backoff: ReconnectBackoff}
}

// SetTarget switches the subscription to t. The previous connection is
// closed without reconnecting and the snapshot is discarded.
func (c *Client) SetTarget(t Target) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.gen++
	if c.cancel != nil {
		c.cancel()
	}
	c.folder.Reset()
	c.folder.Metrics = c.Metrics
	c.target = &t
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	gen := c.gen
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(ctx, gen, t)
}

// Target returns the current subscription target, if any.
func (c *Client) Target() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return Target{}, false
	}
	return *c.target, true
}

// Snapshot returns the current snapshot, or nil before the first update.
func (c *Client) Snapshot() *signal.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.folder.Snapshot()
}

// Close stops the subscription and waits for the connection goroutine.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	if c.cancel != nil {
		c.cancel()
	}
	c.target = nil
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *Client) run(ctx context.Context, gen uint64, t Target) {
	defer c.wg.Done()
	for {
		err := c.session(ctx, gen, t)
		if ctx.Err() != nil || !c.current(gen) {
			return
		}
		monitoring.Logf("[live] connection to %s lost: %v; reconnecting in %s", c.url, err, c.Backoff)
		c.status(gen, Status{Type: StatusDisconnected, Message: err.Error()})
		c.Metrics.Reconnect("live")

		timer := c.clock.NewTimer(c.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
		if !c.current(gen) {
			return
		}
	}
}

func (c *Client) session(ctx context.Context, gen uint64, t Target) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	if err := wsjson.Write(ctx, conn, subscribeMessage(t)); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	for {
		var m Message
		if err := wsjson.Read(ctx, conn, &m); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return errClosedByServer
			}
			return err
		}
		c.handle(gen, m)
	}
}

func (c *Client) handle(gen uint64, m Message) {
	switch m.Type {
	case TypeStateUpdate:
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		at := c.clock.Now()
		if m.Timestamp != nil {
			at = *m.Timestamp
		}
		snap := c.folder.Apply(m.Signal(), at)
		cb := c.OnSnapshot
		c.mu.Unlock()
		if cb != nil {
			cb(snap)
		}
	case TypeSubscribed:
		c.status(gen, Status{Type: m.Type, Message: fmt.Sprintf("%d entities", m.Entities)})
	case TypeWarning, TypeError:
		monitoring.Logf("[live] %s: %s", m.Type, m.Message)
		c.status(gen, Status{Type: m.Type, Message: m.Message})
	}
}

func (c *Client) status(gen uint64, s Status) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	cb := c.OnStatus
	c.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}
