package telemetry

import (
	"context"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/log"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"time"
)

type traceHandler struct {
	provider *trace.TracerProvider
	log      log.Logger
}

// newTraceHandler returns nil when no span exporter is configured or the exporter can't be created.
func newTraceHandler(ctx context.Context, resource *resource.Resource, conf *config.TraceConfig, log log.Logger) *traceHandler {
	if !conf.Otlp.Enabled {
		return nil
	}
	logger := log.WithPrefix("traces")
	exporter, err := newSpanExporter(ctx, &conf.Otlp)
	if err != nil {
		logger.Errorf("failed to configure OTLP %s exporter: %s", conf.Otlp.Protocol, err)
		return nil
	}
	target := conf.Otlp.Protocol
	if conf.Otlp.Endpoint != "" {
		target += " to " + conf.Otlp.Endpoint
	}
	logger.Reportf("otlp exporter enabled over %s", target)

	return &traceHandler{
		provider: trace.NewTracerProvider(trace.WithResource(resource), trace.WithBatcher(exporter)),
		log:      logger,
	}
}

func newSpanExporter(ctx context.Context, conf *config.OtlpExporterConfig) (trace.SpanExporter, error) {
	if conf.Protocol == "grpc" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if conf.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(conf.Endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	}
	var opts []otlptracehttp.Option
	if conf.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(conf.Endpoint))
	}
	if conf.Protocol == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func (r *traceHandler) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.provider.Shutdown(ctx); err != nil {
		r.log.Errorf("failed to flush pending spans: %s", err)
		return
	}
	r.log.Reportf("tracer provider shut down")
}
