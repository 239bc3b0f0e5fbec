package config

import (
	"encoding/json"
	"os"
	"strconv"
)

var envPrefix = "KINGLAND"

var toInt = func(s string) (int, error) { return strconv.Atoi(s) }
var toBool = func(s string) (bool, error) { return strconv.ParseBool(s) }
var toFloat = func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
var toStringSlice = func(s string) ([]string, error) {
	var r []string
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}
var toCertConfigSlice = func(s string) ([]CertConfig, error) {
	var r []CertConfig
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}
var toStringMap = func(s string) (map[string]string, error) {
	var r map[string]string
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Config) loadEnv() {
	c.Log.loadEnv(envPrefix)
	c.Http.loadEnv(envPrefix)
	c.Https.loadEnv(envPrefix)
	c.Tls.loadEnv(envPrefix)
	c.Site.loadEnv(envPrefix)
	c.Flags.loadEnv(envPrefix)
	c.Stats.loadEnv(envPrefix)
	c.Diag.loadEnv(envPrefix)
	c.Grpc.loadEnv(envPrefix)
}

func (h *HttpConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "HTTP")
	readEnv(prefix, "ENABLED", &h.Enabled, toBool)
	readEnv(prefix, "PORT", &h.Port, toInt)
	h.Log.loadEnv(prefix)
}

func (h *HttpsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "HTTPS")
	readEnv(prefix, "ENABLED", &h.Enabled, toBool)
	readEnv(prefix, "PORT", &h.Port, toInt)
}

func (t *TlsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "TLS")
	readEnv(prefix, "MIN_VERSION", &t.MinVersion, toFloat)
	readEnv(prefix, "WATCH", &t.Watch, toBool)
	readEnv(prefix, "CERTIFICATES", &t.Certificates, toCertConfigSlice)
}

func (s *SiteConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "SITE")
	readEnvString(prefix, "DOMAIN", &s.Domain)
	readEnv(prefix, "CANONICAL_REDIRECTS", &s.CanonicalRedirects, toBool)
	readEnv(prefix, "FORCE_HTTPS", &s.ForceHttps, toBool)
	readEnvString(prefix, "INVITE_URL", &s.InviteUrl)
	readEnvString(prefix, "PUBLIC_DIR", &s.PublicDir)
	readEnv(prefix, "HEADERS", &s.Headers, toStringMap)
}

func (f *FlagsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "FLAGS")
	readEnv(prefix, "ENABLED", &f.Enabled, toBool)
	readEnvString(prefix, "SDK_KEY", &f.SdkKey)
	readEnvString(prefix, "BASE_URL", &f.BaseUrl)
	readEnv(prefix, "POLL_INTERVAL", &f.PollInterval, toInt)
	f.Log.loadEnv(prefix)
}

func (s *StatsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "STATS")
	readEnv(prefix, "ENABLED", &s.Enabled, toBool)
	s.Redis.loadEnv(prefix)
	s.MongoDb.loadEnv(prefix)
	s.DynamoDb.loadEnv(prefix)
}

func (r *RedisConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "REDIS")
	readEnv(prefix, "ENABLED", &r.Enabled, toBool)
	readEnv(prefix, "ADDRESSES", &r.Addresses, toStringSlice)
	readEnv(prefix, "DB", &r.DB, toInt)
	readEnvString(prefix, "USER", &r.User)
	readEnvString(prefix, "PASSWORD", &r.Password)
	r.Tls.loadEnv(prefix)
}

func (m *MongoDbConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "MONGODB")
	readEnv(prefix, "ENABLED", &m.Enabled, toBool)
	readEnvString(prefix, "URL", &m.Url)
	readEnvString(prefix, "DATABASE", &m.Database)
	readEnvString(prefix, "COLLECTION", &m.Collection)
	m.Tls.loadEnv(prefix)
}

func (d *DynamoDbConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "DYNAMODB")
	readEnv(prefix, "ENABLED", &d.Enabled, toBool)
	readEnvString(prefix, "TABLE", &d.Table)
	readEnvString(prefix, "URL", &d.Url)
}

func (t *ClientTlsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "TLS")
	readEnv(prefix, "ENABLED", &t.Enabled, toBool)
	readEnv(prefix, "MIN_VERSION", &t.MinVersion, toFloat)
	readEnvString(prefix, "SERVER_NAME", &t.ServerName)
	readEnv(prefix, "CERTIFICATES", &t.Certificates, toCertConfigSlice)
}

func (d *DiagConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "DIAG")
	readEnv(prefix, "ENABLED", &d.Enabled, toBool)
	readEnv(prefix, "PORT", &d.Port, toInt)
	readEnv(concatPrefix(prefix, "STATUS"), "ENABLED", &d.Status.Enabled, toBool)
	d.Metrics.loadEnv(prefix)
	d.Traces.loadEnv(prefix)
}

func (m *MetricsConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "METRICS")
	readEnv(prefix, "ENABLED", &m.Enabled, toBool)
	readEnv(concatPrefix(prefix, "PROMETHEUS"), "ENABLED", &m.Prometheus.Enabled, toBool)
	m.Otlp.loadEnv(prefix)
}

func (t *TraceConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "TRACES")
	readEnv(prefix, "ENABLED", &t.Enabled, toBool)
	t.Otlp.loadEnv(prefix)
}

func (o *OtlpExporterConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "OTLP")
	readEnv(prefix, "ENABLED", &o.Enabled, toBool)
	readEnvString(prefix, "PROTOCOL", &o.Protocol)
	readEnvString(prefix, "ENDPOINT", &o.Endpoint)
}

func (g *GrpcConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "GRPC")
	readEnv(prefix, "ENABLED", &g.Enabled, toBool)
	readEnv(prefix, "PORT", &g.Port, toInt)
	readEnv(prefix, "SERVER_REFLECTION_ENABLED", &g.ServerReflectionEnabled, toBool)
	readEnv(prefix, "USE_TLS", &g.UseTls, toBool)
	g.Log.loadEnv(prefix)
}

func (l *LogConfig) loadEnv(prefix string) {
	prefix = concatPrefix(prefix, "LOG")
	readEnvString(prefix, "LEVEL", &l.Level)
}

func readEnv[T any](prefix string, key string, in *T, conv func(string) (T, error)) {
	if env := os.Getenv(prefix + "_" + key); env != "" {
		if r, err := conv(env); err == nil {
			*in = r
		}
	}
}

func readEnvString(prefix string, key string, in *string) {
	if env := os.Getenv(prefix + "_" + key); env != "" {
		*in = env
	}
}

func concatPrefix(p1 string, p2 string) string {
	return p1 + "_" + p2
}
