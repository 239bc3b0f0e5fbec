package telemetry

import (
	"compress/gzip"
	"context"
	"github.com/stretchr/testify/require"
	otlpmpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	otlptpb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	mpb "go.opentelemetry.io/proto/otlp/metrics/v1"
	tpb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
)

// otlpCollector keeps the spans and metric names it receives over OTLP gRPC or HTTP.
type otlpCollector struct {
	addr string

	mu       sync.RWMutex
	spans    []*tpb.Span
	services []string
	metrics  []string
}

type traceService struct {
	otlptpb.UnimplementedTraceServiceServer
	c *otlpCollector
}

type metricsService struct {
	otlpmpb.UnimplementedMetricsServiceServer
	c *otlpCollector
}

func newGrpcCollector(t *testing.T) *otlpCollector {
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	c := &otlpCollector{addr: listener.Addr().String()}
	srv := grpc.NewServer()
	otlptpb.RegisterTraceServiceServer(srv, traceService{c: c})
	otlpmpb.RegisterMetricsServiceServer(srv, metricsService{c: c})
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)
	return c
}

func newHttpCollector(t *testing.T) *otlpCollector {
	c := &otlpCollector{}
	srv := httptest.NewServer(c)
	c.addr = srv.Listener.Addr().String()
	t.Cleanup(srv.Close)
	return c
}

func (s traceService) Export(_ context.Context, req *otlptpb.ExportTraceServiceRequest) (*otlptpb.ExportTraceServiceResponse, error) {
	s.c.addSpans(req.ResourceSpans)
	return &otlptpb.ExportTraceServiceResponse{}, nil
}

func (s metricsService) Export(_ context.Context, req *otlpmpb.ExportMetricsServiceRequest) (*otlpmpb.ExportMetricsServiceResponse, error) {
	s.c.addMetrics(req.ResourceMetrics)
	return &otlpmpb.ExportMetricsServiceResponse{}, nil
}

func (c *otlpCollector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reader := io.ReadCloser(r.Body)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reader = gz
	}
	defer func() { _ = reader.Close() }()
	body, err := io.ReadAll(reader)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch r.URL.Path {
	case "/v1/traces":
		var req otlptpb.ExportTraceServiceRequest
		if err = proto.Unmarshal(body, &req); err == nil {
			c.addSpans(req.ResourceSpans)
		}
	case "/v1/metrics":
		var req otlpmpb.ExportMetricsServiceRequest
		if err = proto.Unmarshal(body, &req); err == nil {
			c.addMetrics(req.ResourceMetrics)
		}
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *otlpCollector) addSpans(resourceSpans []*tpb.ResourceSpans) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rs := range resourceSpans {
		for _, attr := range rs.GetResource().GetAttributes() {
			if attr.Key == "service.name" {
				c.services = append(c.services, attr.GetValue().GetStringValue())
			}
		}
		for _, ss := range rs.ScopeSpans {
			c.spans = append(c.spans, ss.Spans...)
		}
	}
}

func (c *otlpCollector) addMetrics(resourceMetrics []*mpb.ResourceMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rm := range resourceMetrics {
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				c.metrics = append(c.metrics, m.Name)
			}
		}
	}
}

// span returns the last received span named name, or nil.
func (c *otlpCollector) span(name string) *tpb.Span {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.spans) - 1; i >= 0; i-- {
		if c.spans[i].Name == name {
			return c.spans[i]
		}
	}
	return nil
}

func (c *otlpCollector) hasSpan(name string) bool {
	return c.span(name) != nil
}

func (c *otlpCollector) hasService(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Contains(c.services, name)
}

func (c *otlpCollector) hasMetric(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Contains(c.metrics, name)
}

func spanAttribute(span *tpb.Span, key string) string {
	for _, attr := range span.Attributes {
		if attr.Key == key {
			return attr.GetValue().GetStringValue()
		}
	}
	return ""
}
