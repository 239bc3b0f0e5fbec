package web

import (
	"context"
	"errors"
	"fmt"
	"github.com/kingland/kingland-website/certs"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/status"
	"github.com/kingland/kingland-website/log"
	"github.com/kingland/kingland-website/site"
	"net"
	"net/http"
	"strconv"
	"time"
)

type Server struct {
	log            log.Logger
	proto          site.Protocol
	port           int
	httpServer     *http.Server
	statusReporter status.Reporter
	errorChannel   chan error
}

// NewServer creates the listener of proto. An HTTPS listener requires a non-nil certStore.
func NewServer(handler http.Handler, proto site.Protocol, conf *config.Config, certStore *certs.Store, statusReporter status.Reporter, log log.Logger, errorChan chan error) (*Server, error) {
	srvLog := log.WithPrefix(proto.String())
	port := conf.Http.Port
	if proto == site.Https {
		port = conf.Https.Port
	}
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          srvLog.ErrorLog(),
	}
	if proto == site.Https {
		if certStore == nil {
			return nil, fmt.Errorf("HTTPS listener on port %d has no certificates", port)
		}
		httpServer.TLSConfig = certStore.ServerTlsConfig()
		srvLog.Reportf("using TLS version: %.1f", conf.Tls.MinVersion)
	}
	return &Server{
		log:            srvLog,
		proto:          proto,
		port:           port,
		httpServer:     httpServer,
		statusReporter: statusReporter,
		errorChannel:   errorChan,
	}, nil
}

func (s *Server) Listen() {
	go func() {
		ln, err := net.Listen("tcp", s.httpServer.Addr)
		if err != nil {
			s.fail(err)
			return
		}
		s.log.Reportf("%s server listening on port: %d", s.component(), s.port)
		s.statusReporter.ReportOk(s.component(), fmt.Sprintf("listening on port %d", s.port))

		var httpErr error
		if s.proto == site.Https {
			httpErr = s.httpServer.ServeTLS(ln, "", "")
		} else {
			httpErr = s.httpServer.Serve(ln)
		}

		if !errors.Is(httpErr, http.ErrServerClosed) {
			s.fail(httpErr)
		}
	}()
}

func (s *Server) fail(err error) {
	s.statusReporter.ReportError(s.component(), err.Error())
	s.errorChannel <- fmt.Errorf("error starting %s server on port: %d  %s", s.component(), s.port, err)
}

func (s *Server) Shutdown() {
	s.log.Reportf("initiating server shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.log.Errorf("shutdown error: %v", err)
	}
	s.log.Reportf("server shutdown complete")
}

func (s *Server) component() string {
	if s.proto == site.Https {
		return status.Https
	}
	return status.Http
}
