// Package protocol defines the wire messages and gRPC service
// descriptors for the three services spec.md §6 names: DeviceRegistry,
// HeartbeatService, and ModelService. There is no .proto file or
// protoc-generated stub anywhere in this lineage — the message types and
// grpc.ServiceDesc values below are hand-written directly against
// google.golang.org/grpc, registered under a JSON wire codec instead of
// the default protobuf one. See DESIGN.md for why.
package protocol

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

const CodecName = "edgeorchestra-json"

// jsonCodec implements encoding.Codec (formerly encoding.Codec's
// Marshal/Unmarshal/Name trio) over plain JSON. Registered under a
// private name so it never shadows the process-wide default ("proto")
// codec other libraries linked into the same binary may still rely on.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("protocol: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
