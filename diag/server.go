package diag

import (
	"context"
	"errors"
	"fmt"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/status"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/log"
	"net/http"
	"strconv"
	"time"
)

type Server struct {
	httpServer   *http.Server
	log          log.Logger
	conf         *config.DiagConfig
	errorChannel chan error
}

// NewServer builds the diagnostics server. Any of the reporters and the stats handler may be nil,
// in which case the related endpoint is not mounted.
func NewServer(conf *config.DiagConfig, telemetryReporter telemetry.Reporter, statusReporter status.Reporter, statsHandler http.Handler, log log.Logger, errorChan chan error) *Server {
	diagLog := log.WithPrefix("diag")
	mux := http.NewServeMux()

	if telemetryReporter != nil && conf.IsPrometheusExporterEnabled() {
		mux.Handle("/metrics", telemetryReporter.GetPrometheusHttpHandler())
		diagLog.Reportf("metrics enabled, accepting requests on path: /metrics")
	}

	if statusReporter != nil && conf.IsStatusEnabled() {
		mux.Handle("/status", statusReporter.HttpHandler())
		diagLog.Reportf("status enabled, accepting requests on path: /status")
	}

	if statsHandler != nil {
		mux.Handle("/stats", statsHandler)
		diagLog.Reportf("visit counters enabled, accepting requests on path: /stats")
	}

	setupDebugEndpoints(mux)

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(conf.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     diagLog.ErrorLog(),
	}

	return &Server{
		log:          diagLog,
		httpServer:   httpServer,
		conf:         conf,
		errorChannel: errorChan,
	}
}

func (s *Server) Listen() {
	s.log.Reportf("diag HTTP server listening on port: %d", s.conf.Port)

	go func() {
		httpErr := s.httpServer.ListenAndServe()

		if !errors.Is(httpErr, http.ErrServerClosed) {
			s.errorChannel <- fmt.Errorf("error starting diag HTTP server on port: %d  %s", s.conf.Port, httpErr)
		}
	}()
}

func (s *Server) Shutdown() {
	s.log.Reportf("initiating server shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.log.Errorf("shutdown error: %s", err)
	}

	s.log.Reportf("server shutdown complete")
}
