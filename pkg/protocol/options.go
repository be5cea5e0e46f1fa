package protocol

import "google.golang.org/grpc"

// ServerOption forces every RPC on a server to use the JSON wire codec
// above, regardless of the client's declared content-type.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(jsonCodec{})
}

// CallOption forces a client call to use the JSON wire codec, bypassing
// the usual "proto" content-type negotiation.
func CallOption() grpc.CallOption {
	return grpc.ForceCodec(jsonCodec{})
}
