package core

import (
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// StartHealthServer serves the standard gRPC health service on its own
// port for external liveness probes. A failed bind is fatal to the caller:
// the coordinator must not run in a degraded state.
func StartHealthServer(port int) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("health listener bind failed: %w", err)
	}

	srv := grpc.NewServer()
	h := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, h)
	h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		log.Printf("[Health] gRPC health service listening on :%d", port)
		if err := srv.Serve(lis); err != nil {
			log.Printf("[Health] Serve stopped: %v", err)
		}
	}()
	return srv, nil
}
