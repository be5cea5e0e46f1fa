// Package heartbeat is the heartbeat session manager (spec.md §4.3): one
// duplex gRPC stream per connected device, read and write concurrency
// grounded on grpc_service_worker.go's GetInstructions loop (there, a
// worker's build-instruction stream; here, a device's heartbeat
// stream).
package heartbeat

import (
	"context"
	"io"

	"github.com/edgeorchestra/orchestrator/pkg/liveness"
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

// Telemetry supplies the server-side metadata a heartbeat response
// stamps into every message (spec.md §4.3(iv)): the coordinator's most
// recent aggregate, surfaced to the worker so it can display training
// progress. Implemented by pkg/coordinator; seamed here so heartbeat
// has no import-time dependency on it.
type Telemetry interface {
	LastAggregateMetadata() map[string]string
}

type noTelemetry struct{}

func (noTelemetry) LastAggregateMetadata() map[string]string { return nil }

// Service implements protocol.HeartbeatServiceServer.
type Service struct {
	protocol.UnimplementedHeartbeatServiceServer

	registry  *registry.Registry
	liveness  *liveness.Tracker
	telemetry Telemetry
}

func NewService(reg *registry.Registry, tracker *liveness.Tracker, telemetry Telemetry) *Service {
	if telemetry == nil {
		telemetry = noTelemetry{}
	}
	return &Service{registry: reg, liveness: tracker, telemetry: telemetry}
}

// Heartbeat handles one device's duplex stream for its lifetime.
// Initial exchange identifies the device; unknown ids terminate with
// not_found (spec.md §4.3). One read goroutine feeds a channel; the
// select loop below is the single write path, keeping responses
// strictly ordered with respect to the requests that produced them.
func (s *Service) Heartbeat(stream protocol.HeartbeatService_HeartbeatServer) error {
	ctx := stream.Context()

	first, err := stream.Recv()
	if err != nil {
		return utils.GrpcError(err)
	}

	if _, err := s.registry.Get(ctx, first.DeviceId); err != nil {
		return utils.GrpcError(err)
	}

	requests := make(chan *protocol.HeartbeatRequest, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(requests)

		requests <- first

		for {
			req, err := stream.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				log.Trace("heartbeat read error:", err)
				errs <- err
				return
			}
			requests <- req
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return utils.GrpcError(ctx.Err())

		case err := <-errs:
			return utils.GrpcError(err)

		case req, ok := <-requests:
			if !ok {
				// Client half-closed; nothing left to drain since every
				// request already produced its response synchronously.
				return nil
			}

			resp, err := s.handle(ctx, req)
			if err != nil {
				return utils.GrpcError(err)
			}
			if err := stream.Send(resp); err != nil {
				log.Trace("heartbeat write error:", err)
				return utils.GrpcError(err)
			}
		}
	}
}

func (s *Service) handle(ctx context.Context, req *protocol.HeartbeatRequest) (*protocol.HeartbeatResponse, error) {
	if err := s.registry.Touch(ctx, req.DeviceId, req.Metrics, registry.StatusOnline); err != nil {
		return nil, err
	}
	s.liveness.Ingest(req.DeviceId, req.Sequence, req.Metrics)

	resp := &protocol.HeartbeatResponse{
		Command:  protocol.CommandAck,
		Metadata: s.telemetry.LastAggregateMetadata(),
	}

	if cmd, ok := s.liveness.PopCommand(req.DeviceId); ok {
		resp.Command = cmd.Type
		resp.Parameters = cmd.Parameters
		resp.AckSequence = req.Sequence
	}

	return resp, nil
}
