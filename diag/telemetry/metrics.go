package telemetry

import (
	"context"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	otelhost "go.opentelemetry.io/contrib/instrumentation/host"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"time"
)

type metricsHandler struct {
	redirects      otelmetric.Int64Counter
	faviconsServed otelmetric.Int64Counter
	provider       *metric.MeterProvider
	registry       *prometheus.Registry
	log            log.Logger

	ctx       context.Context
	ctxCancel func()
}

const (
	meterName = "github.com/kingland/kingland-website"
)

func newMetricsHandler(ctx context.Context, resource *resource.Resource, conf *config.MetricsConfig, log log.Logger) *metricsHandler {
	if !conf.Prometheus.Enabled && !conf.Otlp.Enabled {
		return nil
	}
	logger := log.WithPrefix("metrics")
	providerOpts := []metric.Option{metric.WithResource(resource)}
	var registry *prometheus.Registry
	if conf.Prometheus.Enabled {
		registry = prometheus.NewRegistry()
		exporter, err := promexporter.New(
			promexporter.WithRegisterer(registry),
			promexporter.WithNamespace("kingland"),
			promexporter.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes))
		if err != nil {
			logger.Errorf("failed to configure Prometheus exporter: %s", err)
			return nil
		}
		providerOpts = append(providerOpts, metric.WithReader(exporter))
		logger.Reportf("prometheus exporter enabled on /metrics")
	}
	if conf.Otlp.Enabled {
		exporter, err := newMetricExporter(ctx, &conf.Otlp)
		if err != nil {
			logger.Errorf("failed to configure OTLP %s exporter: %s", conf.Otlp.Protocol, err)
			return nil
		}
		providerOpts = append(providerOpts, metric.WithReader(metric.NewPeriodicReader(exporter)))
		target := conf.Otlp.Protocol
		if conf.Otlp.Endpoint != "" {
			target += " to " + conf.Otlp.Endpoint
		}
		logger.Reportf("otlp exporter enabled over %s", target)
	}
	handler := newMetricsHandlerWithOpts(providerOpts, logger)
	if handler != nil {
		handler.registry = registry
	}
	return handler
}

func newMetricExporter(ctx context.Context, conf *config.OtlpExporterConfig) (metric.Exporter, error) {
	if conf.Protocol == "grpc" {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if conf.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(conf.Endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}
	var opts []otlpmetrichttp.Option
	if conf.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpoint(conf.Endpoint))
	}
	if conf.Protocol == "http" {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

func newMetricsHandlerWithOpts(opts []metric.Option, logger log.Logger) *metricsHandler {
	provider := metric.NewMeterProvider(opts...)
	meter := provider.Meter(meterName)

	err := otelruntime.Start(otelruntime.WithMeterProvider(provider))
	if err != nil {
		logger.Errorf("failed to start runtime metrics: %s", err)
	}
	err = otelhost.Start(otelhost.WithMeterProvider(provider))
	if err != nil {
		logger.Errorf("failed to start host metrics: %s", err)
	}

	redirects, err := meter.Int64Counter("redirects.total",
		otelmetric.WithDescription("Total number of redirects issued by the site."))
	if err != nil {
		logger.Errorf("failed to configure redirects counter: %s", err)
		return nil
	}

	faviconsServed, err := meter.Int64Counter("favicons.served.total",
		otelmetric.WithDescription("Total number of favicons served by the site."))
	if err != nil {
		logger.Errorf("failed to configure favicons served counter: %s", err)
		return nil
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	return &metricsHandler{
		redirects:      redirects,
		faviconsServed: faviconsServed,
		provider:       provider,
		log:            logger,
		ctx:            ctx,
		ctxCancel:      ctxCancel,
	}
}

func (r *metricsHandler) addRedirect(reason string) {
	r.redirects.Add(r.ctx, 1, otelmetric.WithAttributes(
		attribute.Key("reason").String(reason),
	))
}

func (r *metricsHandler) addFaviconServed(favicon string) {
	r.faviconsServed.Add(r.ctx, 1, otelmetric.WithAttributes(
		attribute.Key("type").String(favicon),
	))
}

func (r *metricsHandler) shutdown() {
	r.ctxCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.provider.Shutdown(ctx); err != nil {
		r.log.Errorf("failed to flush pending metrics: %s", err)
		return
	}
	r.log.Reportf("meter provider shut down")
}
