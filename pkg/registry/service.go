package registry

import (
	"context"

	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

// Service implements protocol.DeviceRegistryServer over a Registry,
// the gRPC-facing counterpart to heartbeat.Service's wrapping of
// liveness/registry (spec.md §6's DeviceRegistry service).
type Service struct {
	protocol.UnimplementedDeviceRegistryServer

	registry *Registry
}

func NewService(reg *Registry) *Service {
	return &Service{registry: reg}
}

func (s *Service) Register(ctx context.Context, req *protocol.RegisterRequest) (*protocol.RegisterResponse, error) {
	id, err := s.registry.Register(ctx, req.Name, req.DeviceModel, req.OsVersion, req.Capabilities, req.InitialMetrics)
	if err != nil {
		return nil, utils.GrpcError(err)
	}
	return &protocol.RegisterResponse{DeviceId: id}, nil
}

func (s *Service) Unregister(ctx context.Context, req *protocol.UnregisterRequest) (*protocol.Ack, error) {
	if err := s.registry.Unregister(ctx, req.DeviceId); err != nil {
		return nil, utils.GrpcError(err)
	}
	return &protocol.Ack{}, nil
}

func (s *Service) ListDevices(filter *protocol.ListDevicesFilter, stream protocol.DeviceRegistry_ListDevicesServer) error {
	devices, err := s.registry.List(stream.Context(), Filter{Status: filter.Status})
	if err != nil {
		return utils.GrpcError(err)
	}
	for _, d := range devices {
		if err := stream.Send(toWireDevice(d)); err != nil {
			return err
		}
	}
	return nil
}

func toWireDevice(d Device) *protocol.Device {
	return &protocol.Device{
		DeviceId:     d.DeviceID,
		Name:         d.Name,
		DeviceModel:  d.DeviceModel,
		OsVersion:    d.OsVersion,
		Capabilities: d.Capabilities,
		Status:       d.Status,
		LastMetrics:  d.LastMetrics,
		RegisteredAt: d.RegisteredAt,
		LastSeenAt:   d.LastSeenAt,
	}
}
