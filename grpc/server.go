package grpc

import (
	"fmt"
	"github.com/kingland/kingland-website/certs"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/status"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"net"
	"strconv"
	"time"
)

import _ "google.golang.org/grpc/encoding/gzip"

const healthSyncInterval = 5 * time.Second

type Server struct {
	grpcServer   *grpc.Server
	health       *healthSync
	log          log.Logger
	conf         *config.Config
	errorChannel chan error
}

// NewServer creates the gRPC server that publishes the health of the site. The transport is
// secured with the certificates of certStore when it is not nil.
func NewServer(conf *config.Config, telemetryReporter telemetry.Reporter, statusReporter status.Reporter, certStore *certs.Store, logger log.Logger, errorChan chan error) *Server {
	grpcLog := logger.WithLevel(conf.Grpc.Log.GetLevel()).WithPrefix("grpc")
	opts := make([]grpc.ServerOption, 0)
	if certStore != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(certStore.ServerTlsConfig())))
		grpcLog.Reportf("using TLS version: %.1f", conf.Tls.MinVersion)
	}
	if grpcLog.Level() == log.Debug {
		opts = append(opts, grpc.ChainUnaryInterceptor(DebugLogUnaryInterceptor(grpcLog)), grpc.ChainStreamInterceptor(DebugLogStreamInterceptor(grpcLog)))
	}
	opts = telemetryReporter.InstrumentGrpc(opts)

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	if conf.Grpc.ServerReflectionEnabled {
		reflection.Register(grpcServer)
		grpcLog.Reportf("server reflection enabled")
	}

	return &Server{
		grpcServer:   grpcServer,
		health:       newHealthSync(healthServer, statusReporter, healthSyncInterval),
		log:          grpcLog,
		errorChannel: errorChan,
		conf:         conf,
	}
}

func (s *Server) Listen() {
	s.log.Reportf("GRPC server listening on port: %d", s.conf.Grpc.Port)

	go func() {
		listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.conf.Grpc.Port))
		if err != nil {
			s.errorChannel <- fmt.Errorf("error starting GRPC server on port: %d  %s", s.conf.Grpc.Port, err)
			return
		}
		err = s.grpcServer.Serve(listener)
		if err != nil {
			s.errorChannel <- fmt.Errorf("error starting GRPC server on port: %d  %s", s.conf.Grpc.Port, err)
			return
		}
	}()
}

func (s *Server) Shutdown() {
	s.log.Reportf("initiating server shutdown")
	s.health.Close()
	s.grpcServer.GracefulStop()
	s.log.Reportf("server shutdown complete")
}
