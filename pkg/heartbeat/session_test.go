package heartbeat

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/liveness"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

// fakeStream implements protocol.HeartbeatService_HeartbeatServer over
// in-memory channels, standing in for a real gRPC transport.
type fakeStream struct {
	ctx  context.Context
	in   chan *protocol.HeartbeatRequest
	out  chan *protocol.HeartbeatResponse
	once sync.Once
}

func newFakeStream(ctx context.Context) *fakeStream {
	return &fakeStream{ctx: ctx, in: make(chan *protocol.HeartbeatRequest, 8), out: make(chan *protocol.HeartbeatResponse, 8)}
}

func (f *fakeStream) Send(m *protocol.HeartbeatResponse) error {
	f.out <- m
	return nil
}

func (f *fakeStream) Recv() (*protocol.HeartbeatRequest, error) {
	req, ok := <-f.in
	if !ok {
		return nil, io.EOF
	}
	return req, nil
}

func (f *fakeStream) close() { f.once.Do(func() { close(f.in) }) }

func (f *fakeStream) SetHeader(metadata.MD) error { return nil }
func (f *fakeStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeStream) SetTrailer(metadata.MD)       {}
func (f *fakeStream) Context() context.Context     { return f.ctx }
func (f *fakeStream) SendMsg(m interface{}) error  { return nil }
func (f *fakeStream) RecvMsg(m interface{}) error  { return nil }

func newTestService(t *testing.T) (*Service, *registry.Registry, string) {
	t.Helper()
	fc := clock.NewFake(time.Unix(0, 0))
	reg := registry.New(registry.NewMemStore(), fc)
	tracker := liveness.New(fc, time.Second)

	id, err := reg.Register(context.Background(), "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)

	return NewService(reg, tracker, nil), reg, id
}

func TestHeartbeatUnknownDeviceRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	stream := newFakeStream(context.Background())
	stream.in <- &protocol.HeartbeatRequest{DeviceId: "missing", Sequence: 1}
	stream.close()

	err := svc.Heartbeat(stream)
	require.Error(t, err)
}

func TestHeartbeatAcksWithNoPendingCommand(t *testing.T) {
	svc, _, id := newTestService(t)
	stream := newFakeStream(context.Background())
	stream.in <- &protocol.HeartbeatRequest{DeviceId: id, Sequence: 1}
	stream.close()

	done := make(chan error, 1)
	go func() { done <- svc.Heartbeat(stream) }()

	resp := <-stream.out
	assert.Equal(t, protocol.CommandAck, resp.Command)

	require.NoError(t, <-done)
}

func TestHeartbeatDeliversQueuedCommand(t *testing.T) {
	svc, _, id := newTestService(t)
	svc.liveness.PushCommand(id, protocol.Command{Type: protocol.CommandStartTraining, Parameters: map[string]string{"job_id": "j1"}})

	stream := newFakeStream(context.Background())
	stream.in <- &protocol.HeartbeatRequest{DeviceId: id, Sequence: 1}
	stream.close()

	done := make(chan error, 1)
	go func() { done <- svc.Heartbeat(stream) }()

	resp := <-stream.out
	assert.Equal(t, protocol.CommandStartTraining, resp.Command)
	assert.Equal(t, "j1", resp.Parameters["job_id"])
	assert.Equal(t, uint64(1), resp.AckSequence)

	require.NoError(t, <-done)
}
