package main

import (
	"context"
	"flag"
	"github.com/kingland/kingland-website/certs"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag"
	"github.com/kingland/kingland-website/diag/status"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/flags"
	"github.com/kingland/kingland-website/grpc"
	"github.com/kingland/kingland-website/log"
	"github.com/kingland/kingland-website/site"
	"github.com/kingland/kingland-website/stats"
	"github.com/kingland/kingland-website/web"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

const (
	exitOk = iota
	exitFailure
)

var version = "0.0.0-dev"

type server interface {
	Listen()
	Shutdown()
}

type closer interface {
	Close()
}

func main() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)

	os.Exit(run(sigChan))
}

func run(closeSignal chan os.Signal) int {
	logger := log.NewLogger(os.Stderr, os.Stdout, log.Warn)
	logger.Reportf("service starting...")
	var configFile string
	flag.StringVar(&configFile, "c", "", "path to the configuration file")
	flag.Parse()

	conf, err := config.LoadConfigFromFileAndEnvironment(configFile)
	if err != nil {
		logger.Errorf("%s", err)
		return exitFailure
	}
	if conf.FallbackToHttp() {
		logger.Warnf("no TLS certificates configured, serving plain HTTP only without HTTPS redirects")
	}
	err = conf.Validate()
	if err != nil {
		logger.Errorf("%s", err)
		return exitFailure
	}

	logger = logger.WithLevel(conf.Log.GetLevel())

	errorChan := make(chan error)

	statusReporter := status.NewReporter(&conf)
	telemetryReporter := telemetry.NewReporter(&conf.Diag, version, logger)

	var closers []closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
		telemetryReporter.Shutdown()
	}

	flagsProvider := flags.NewProvider(&conf.Flags, telemetryReporter, statusReporter, logger)
	closers = append(closers, flagsProvider)

	var content *site.Source
	if conf.Site.PublicDir != "" {
		content, err = site.NewDirSource(conf.Site.PublicDir, logger)
	} else {
		content, err = site.NewEmbeddedSource(logger)
	}
	if err != nil {
		logger.Errorf("failed to load the site content: %s", err)
		closeAll()
		return exitFailure
	}
	closers = append(closers, content)

	var visits site.VisitRecorder
	var recorder *stats.Recorder
	if conf.Stats.Enabled {
		store, err := stats.SetupStore(context.Background(), &conf.Stats, telemetryReporter, logger)
		if err != nil {
			logger.Errorf("failed to set up the visit store: %s", err)
			closeAll()
			return exitFailure
		}
		statusReporter.ReportOk(status.Stats, "visit store ready")
		recorder = stats.NewRecorder(store, statusReporter, logger)
		visits = recorder
		closers = append(closers, recorder)
	}

	var certStore *certs.Store
	if conf.Https.Enabled {
		certStore, err = certs.NewStore(&conf.Tls, statusReporter, logger)
		if err != nil {
			logger.Errorf("%s", err)
			closeAll()
			return exitFailure
		}
		closers = append(closers, certStore)
	}

	siteHandler := site.NewHandler(&conf.Site, content, flagsProvider, visits, telemetryReporter, logger)

	var servers []server
	if conf.Http.Enabled {
		router := web.NewRouter(siteHandler, site.Http, telemetryReporter, &conf, logger)
		httpServer, err := web.NewServer(router, site.Http, &conf, nil, statusReporter, logger, errorChan)
		if err != nil {
			logger.Errorf("%s", err)
			closeAll()
			return exitFailure
		}
		servers = append(servers, httpServer)
	}
	if conf.Https.Enabled {
		router := web.NewRouter(siteHandler, site.Https, telemetryReporter, &conf, logger)
		httpsServer, err := web.NewServer(router, site.Https, &conf, certStore, statusReporter, logger, errorChan)
		if err != nil {
			logger.Errorf("%s", err)
			closeAll()
			return exitFailure
		}
		servers = append(servers, httpsServer)
	}
	if conf.Diag.Enabled {
		var statsHandler http.Handler
		if recorder != nil {
			statsHandler = recorder.HttpHandler(site.Routes)
		}
		servers = append(servers, diag.NewServer(&conf.Diag, telemetryReporter, statusReporter, statsHandler, logger, errorChan))
	}
	if conf.Grpc.Enabled {
		var grpcCerts *certs.Store
		if conf.Grpc.UseTls {
			grpcCerts = certStore
		}
		servers = append(servers, grpc.NewServer(&conf, telemetryReporter, statusReporter, grpcCerts, logger, errorChan))
	}

	for _, srv := range servers {
		srv.Listen()
	}

	shutdown := func() {
		wg := sync.WaitGroup{}
		wg.Add(len(servers))
		for _, srv := range servers {
			go func() {
				srv.Shutdown()
				wg.Done()
			}()
		}
		wg.Wait()
		closeAll()
	}

	select {
	case <-closeSignal:
		shutdown()
		return exitOk
	case err = <-errorChan:
		logger.Errorf("%s", err)
		go drain(errorChan)
		shutdown()
		return exitFailure
	}
}

// drain keeps late listener errors from blocking their goroutines during shutdown.
func drain(errorChan chan error) {
	for range errorChan {
	}
}
