// Package stream publishes live sensor snapshots to gRPC streaming clients.
//
// The service carries google.protobuf.Struct messages so no generated code
// is needed on either side:
//
//	service SnapshotStream {
//	  rpc Subscribe(google.protobuf.Struct) returns (stream google.protobuf.Struct);
//	}
//
// The request may set "device_id" to filter frames; each response is a
// Frame encoded as a Struct.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/presence.report/internal/signal"
)

const (
	serviceName      = "presence.v1.SnapshotStream"
	subscribeMethod  = "/" + serviceName + "/Subscribe"
	deviceIDField    = "device_id"
	defaultClientBuf = 10
)

// Frame is one snapshot of one device.
type Frame struct {
	Seq      uint64           `json:"seq"`
	DeviceID string           `json:"device_id"`
	SentAt   time.Time        `json:"sent_at"`
	Snapshot *signal.Snapshot `json:"snapshot"`
}

// snapshotServer is implemented by Publisher.
type snapshotServer interface {
	subscribe(req *structpb.Struct, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*snapshotServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "presence/v1/stream.proto",
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(snapshotServer).subscribe(req, stream)
}

func encodeFrame(f Frame) (*structpb.Struct, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func decodeFrame(s *structpb.Struct) (Frame, error) {
	var f Frame
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(b, &f)
	return f, err
}

// Subscribe opens a snapshot stream on conn and calls fn for every frame
// until the server ends the stream, ctx is cancelled or fn returns an
// error. An empty deviceID receives every device.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, deviceID string, fn func(Frame) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cs, err := conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	req, err := structpb.NewStruct(map[string]interface{}{deviceIDField: deviceID})
	if err != nil {
		return err
	}
	if err := cs.SendMsg(req); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	if err := cs.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.Struct)
		if err := cs.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		frame, err := decodeFrame(msg)
		if err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}
