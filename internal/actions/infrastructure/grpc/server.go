package grpc

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported besides the overall "".
const ServiceName = "shop.ActionServer"

type Server struct {
	log    *slog.Logger
	gs     *grpc.Server
	health *health.Server
	lis    net.Listener
}

// Run starts a gRPC server exposing only the standard health service,
// reporting SERVING.
func Run(log *slog.Logger, addr string) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	s := &Server{log: log, gs: gs, health: hs, lis: lis}
	go func() {
		if err := gs.Serve(lis); err != nil {
			log.Error("grpc server error", "err", err)
		}
	}()
	log.Info("grpc listening", "addr", lis.Addr().String())
	return s, nil
}

func (s *Server) Addr() string { return s.lis.Addr().String() }

// Drain flips every service to NOT_SERVING so load balancers stop routing.
func (s *Server) Drain() {
	s.health.Shutdown()
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.gs.GracefulStop()
}
