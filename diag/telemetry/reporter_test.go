package telemetry

import (
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(r Reporter) string {
	rec := httptest.NewRecorder()
	r.GetPrometheusHttpHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestReporter_Prometheus(t *testing.T) {
	conf := config.DiagConfig{
		Enabled: true,
		Metrics: config.MetricsConfig{Enabled: true, Prometheus: config.PrometheusExporterConfig{Enabled: true}},
	}
	r := NewReporter(&conf, "1.2.3", log.NewNullLogger())
	defer r.Shutdown()

	t.Run("routes", func(t *testing.T) {
		h := r.InstrumentHttp("https", func(w http.ResponseWriter, req *http.Request) {
			LabelRoute(req.Context(), "favicon")
			r.AddFaviconServed("favicon32")
			w.WriteHeader(http.StatusOK)
		})
		srv := httptest.NewServer(h)
		defer srv.Close()
		resp, err := http.Get(srv.URL + "/favicon?t=favicon32")
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Eventually(t, func() bool {
			return strings.Contains(scrape(r), `http_route="favicon"`)
		}, 5*time.Second, 50*time.Millisecond)
		body := scrape(r)
		assert.Contains(t, body, "kingland_http_server_request_duration_seconds_bucket{")
		assert.Contains(t, body, `kingland_favicons_served_total{`)
		assert.Contains(t, body, `type="favicon32"`)
	})
	t.Run("redirects", func(t *testing.T) {
		r.AddRedirect("domain")
		r.AddRedirect("invite")

		body := scrape(r)
		assert.Contains(t, body, `reason="domain"`)
		assert.Contains(t, body, `reason="invite"`)
	})
	t.Run("flags client", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		client := http.Client{Transport: r.InstrumentHttpClient(http.DefaultTransport, K("component").V("flags"))}
		resp, err := client.Get(srv.URL + "/configuration-files/key/config_v6.json")
		require.NoError(t, err)
		_ = resp.Body.Close()

		body := scrape(r)
		assert.Contains(t, body, "kingland_http_client_request_duration_seconds_bucket{")
		assert.Contains(t, body, `component="flags"`)
	})
	t.Run("redis store", func(t *testing.T) {
		s := miniredis.RunT(t)
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
		defer func() { _ = rdb.Close() }()
		r.InstrumentRedis(rdb)

		assert.Contains(t, scrape(r), `db_system="redis"`)
	})
}

func TestReporter_Otlp_Metrics(t *testing.T) {
	collector := newGrpcCollector(t)
	conf := config.DiagConfig{
		Enabled: true,
		Metrics: config.MetricsConfig{Enabled: true, Otlp: config.OtlpExporterConfig{Enabled: true, Protocol: "grpc", Endpoint: collector.addr}},
	}
	r := NewReporter(&conf, "1.2.3", log.NewNullLogger())
	defer r.Shutdown()

	h := r.InstrumentHttp("http", func(w http.ResponseWriter, req *http.Request) {
		LabelRoute(req.Context(), "redirect")
		r.AddRedirect("www")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	srv := httptest.NewServer(h)
	defer srv.Close()
	client := http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	r.AddFaviconServed("apple-touch")

	assert.Eventually(t, func() bool {
		r.ForceFlush(t.Context())
		return collector.hasMetric("http.server.request.duration")
	}, 5*time.Second, 50*time.Millisecond)
	assert.True(t, collector.hasMetric("redirects.total"))
	assert.True(t, collector.hasMetric("favicons.served.total"))
}

func TestReporter_Traces_StoreInstrumentation(t *testing.T) {
	collector := newGrpcCollector(t)
	r := newTracingReporter(t, collector, "grpc")

	t.Run("redis", func(t *testing.T) {
		s := miniredis.RunT(t)
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
		defer func() { _ = rdb.Close() }()
		r.InstrumentRedis(rdb)
		rdb.Incr(t.Context(), "kingland:visits:index")

		r.ForceFlush(t.Context())

		assert.True(t, collector.hasSpan("incr"))
	})
	t.Run("mongodb", func(t *testing.T) {
		opts := options.Client()
		r.InstrumentMongoDb(opts)
		assert.NotNil(t, opts.Monitor)
	})
	t.Run("dynamodb", func(t *testing.T) {
		conf := aws.Config{}
		r.InstrumentAws(&conf)
		assert.NotEmpty(t, conf.APIOptions)
	})
	t.Run("grpc", func(t *testing.T) {
		assert.Len(t, r.InstrumentGrpc(nil), 1)
	})
}

func TestReporter_Empty(t *testing.T) {
	r := NewEmptyReporter()

	assert.Nil(t, r.InstrumentHttp("t", nil))
	assert.Equal(t, http.DefaultTransport, r.InstrumentHttpClient(http.DefaultTransport))
	assert.Empty(t, r.InstrumentGrpc([]grpc.ServerOption{}))
	_, span := r.StartSpan(t.Context(), "site.serve")
	assert.Equal(t, noop.Span{}, span)

	r.ForceFlush(t.Context())
	r.AddRedirect("www")
	r.AddFaviconServed("favicon16")
	LabelRoute(t.Context(), "index")
	r.InstrumentRedis(nil)

	opts := &options.ClientOptions{}
	r.InstrumentMongoDb(opts)
	assert.Nil(t, opts.Monitor)

	conf := &aws.Config{}
	r.InstrumentAws(conf)
	assert.Empty(t, conf.APIOptions)

	rec := httptest.NewRecorder()
	r.GetPrometheusHttpHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	r.Shutdown()
}

func TestKV(t *testing.T) {
	assert.Equal(t, KV{Key: "k", Value: "v"}, NewKV("k", "v"))
	assert.Equal(t, KV{Key: "k", Value: "v"}, K("k").V("v"))
	assert.Equal(t, "v", toAttributeArray(NewKV("k", "v"))[0].Value.AsString())
}
