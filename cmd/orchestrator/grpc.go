package main

import (
	"fmt"
	"net"
	"net/url"

	"github.com/edgeorchestra/orchestrator/pkg/heartbeat"
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/modelstore"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"google.golang.org/grpc"
)

// serveGrpc sets up a gRPC server on a specific listening address and
// starts it, registering the three wire-facing services (spec.md §6).
func serveGrpc(registrySvc *registry.Service, heartbeatSvc *heartbeat.Service, modelSvc *modelstore.Service, address string) {
	uri, err := url.Parse(address)
	if err != nil {
		log.Fatal(err)
	}

	host := uri.Host

	switch uri.Scheme {
	case "tcp", "tcp4", "tcp6":
		if uri.Port() == "" {
			host = fmt.Sprintf("%s:9090", uri.Host)
		}
	case "unix":
	default:
		log.Fatalf("Unsupported protocol: %s", uri.Scheme)
	}

	socket, err := net.Listen(uri.Scheme, host)
	if err != nil {
		log.Fatal(err)
	}

	if uri.Scheme == "unix" {
		socket.(*net.UnixListener).SetUnlinkOnClose(true)
		log.Info("Listening on", uri.Scheme, uri.Path)
	} else {
		log.Info("Listening on", uri.Scheme, socket.Addr())
	}

	opts := config.GRPCOptions.ToServerOptions()
	opts = append(opts, protocol.ServerOption())

	server := grpc.NewServer(opts...)
	protocol.RegisterDeviceRegistryServer(server, registrySvc)
	protocol.RegisterHeartbeatServiceServer(server, heartbeatSvc)
	protocol.RegisterModelServiceServer(server, modelSvc)

	if err := server.Serve(socket); err != nil {
		log.Fatal(err)
	}
}
