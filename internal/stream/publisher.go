package stream

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
)

// Publisher runs the gRPC server and fans frames out to connected clients.
// Slow clients drop frames rather than block Publish.
type Publisher struct {
	// MaxClients limits concurrent streams; zero means unlimited.
	MaxClients int
	now        func() time.Time

	server   *grpc.Server
	listener net.Listener

	frameChan chan Frame
	clients   map[string]*clientStream
	clientsMu sync.RWMutex

	seq           atomic.Uint64
	clientCount   atomic.Int32
	droppedFrames atomic.Uint64

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type clientStream struct {
	id       string
	deviceID string
	frameCh  chan Frame
}

// NewPublisher returns a stopped publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		now:       time.Now,
		frameChan: make(chan Frame, 100),
		clients:   make(map[string]*clientStream),
		stopCh:    make(chan struct{}),
	}
}

// Start listens on addr and serves in the background.
func (p *Publisher) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Serve serves on lis in the background. The publisher owns lis from now on.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis

	const maxMsgSize = 4 * 1024 * 1024
	p.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	p.server.RegisterService(&serviceDesc, p)

	p.wg.Add(1)
	go p.broadcastLoop()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		monitoring.Logf("[gRPC] snapshot stream listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Logf("[gRPC] server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Serve.
func (p *Publisher) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Stop ends every stream and shuts the server down.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	if p.server != nil {
		p.server.GracefulStop()
	}
	p.wg.Wait()
	monitoring.Logf("[gRPC] snapshot stream stopped")
}

// Publish queues a snapshot of deviceID for every interested client. The
// snapshot is copied, so the caller may keep mutating its own.
func (p *Publisher) Publish(deviceID string, snap *signal.Snapshot) {
	if !p.running.Load() || snap == nil {
		return
	}
	frame := Frame{
		Seq:      p.seq.Add(1),
		DeviceID: deviceID,
		SentAt:   p.now(),
		Snapshot: snap.Clone(),
	}
	select {
	case p.frameChan <- frame:
	default:
		p.droppedFrames.Add(1)
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case frame := <-p.frameChan:
			p.clientsMu.RLock()
			for _, client := range p.clients {
				if client.deviceID != "" && client.deviceID != frame.DeviceID {
					continue
				}
				select {
				case client.frameCh <- frame:
				default:
					p.droppedFrames.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

func (p *Publisher) subscribe(req *structpb.Struct, stream grpc.ServerStream) error {
	if p.MaxClients > 0 && int(p.clientCount.Load()) >= p.MaxClients {
		return status.Errorf(codes.ResourceExhausted, "too many clients (max %d)", p.MaxClients)
	}
	deviceID := req.GetFields()[deviceIDField].GetStringValue()
	client := p.addClient(uuid.NewString(), deviceID)
	defer p.removeClient(client.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopCh:
			return nil
		case frame := <-client.frameCh:
			msg, err := encodeFrame(frame)
			if err != nil {
				monitoring.Logf("[gRPC] encode frame %d: %v", frame.Seq, err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				monitoring.Logf("[gRPC] send to %s failed: %v", client.id, err)
				return err
			}
		}
	}
}

func (p *Publisher) addClient(id, deviceID string) *clientStream {
	client := &clientStream{
		id:       id,
		deviceID: deviceID,
		frameCh:  make(chan Frame, defaultClientBuf),
	}
	p.clientsMu.Lock()
	p.clients[id] = client
	p.clientsMu.Unlock()

	p.clientCount.Add(1)
	monitoring.Logf("[gRPC] client connected: %s device=%q (total: %d)", id, deviceID, p.clientCount.Load())
	return client
}

func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	_, ok := p.clients[id]
	delete(p.clients, id)
	p.clientsMu.Unlock()
	if ok {
		p.clientCount.Add(-1)
		monitoring.Logf("[gRPC] client disconnected: %s (remaining: %d)", id, p.clientCount.Load())
	}
}

// Stats is a point-in-time view of the publisher.
type Stats struct {
	FrameCount    uint64
	ClientCount   int32
	DroppedFrames uint64
	Running       bool
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() Stats {
	return Stats{
		FrameCount:    p.seq.Load(),
		ClientCount:   p.clientCount.Load(),
		DroppedFrames: p.droppedFrames.Load(),
		Running:       p.running.Load(),
	}
}
