package registry

import (
	"context"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

// fakeListStream implements protocol.DeviceRegistry_ListDevicesServer
// over a plain slice, standing in for a real gRPC transport the way
// heartbeat's session_test.go does for its duplex stream.
type fakeListStream struct {
	ctx context.Context
	out []*protocol.Device
}

func (f *fakeListStream) Send(d *protocol.Device) error {
	f.out = append(f.out, d)
	return nil
}

func (f *fakeListStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeListStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeListStream) SetTrailer(metadata.MD)       {}
func (f *fakeListStream) Context() context.Context     { return f.ctx }
func (f *fakeListStream) SendMsg(m interface{}) error  { return nil }
func (f *fakeListStream) RecvMsg(m interface{}) error  { return nil }

func newTestServiceAndRegistry() (*Service, *Registry) {
	fc := clock.NewFake(time.Unix(0, 0))
	reg := New(NewMemStore(), fc)
	return NewService(reg), reg
}

func TestServiceRegisterAssignsID(t *testing.T) {
	svc, _ := newTestServiceAndRegistry()

	resp, err := svc.Register(context.Background(), &protocol.RegisterRequest{
		Name:        "phone",
		DeviceModel: "Pixel",
		OsVersion:   "Android",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.DeviceId)
}

func TestServiceUnregisterUnknownDeviceReturnsError(t *testing.T) {
	svc, _ := newTestServiceAndRegistry()

	_, err := svc.Unregister(context.Background(), &protocol.UnregisterRequest{DeviceId: "missing"})

	assert.Error(t, err)
}

func TestServiceListDevicesStreamsEveryMatch(t *testing.T) {
	svc, reg := newTestServiceAndRegistry()

	id, err := reg.Register(context.Background(), "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)

	stream := &fakeListStream{ctx: context.Background()}
	err = svc.ListDevices(&protocol.ListDevicesFilter{}, stream)

	require.NoError(t, err)
	require.Len(t, stream.out, 1)
	assert.Equal(t, id, stream.out[0].DeviceId)
	assert.Equal(t, string(StatusOnline), string(stream.out[0].Status))
}

func TestServiceListDevicesFiltersByStatus(t *testing.T) {
	svc, reg := newTestServiceAndRegistry()

	id, err := reg.Register(context.Background(), "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)
	require.NoError(t, reg.Unregister(context.Background(), id))

	stream := &fakeListStream{ctx: context.Background()}
	err = svc.ListDevices(&protocol.ListDevicesFilter{Status: []Status{StatusOnline}}, stream)

	require.NoError(t, err)
	assert.Empty(t, stream.out)
}
