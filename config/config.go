package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"github.com/kingland/kingland-website/log"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
)

var allowedLogLevels = map[string]log.Level{
	"debug": log.Debug,
	"info":  log.Info,
	"warn":  log.Warn,
	"error": log.Error,
}

var allowedTlsVersions = map[float64]uint16{
	1.0: tls.VersionTLS10,
	1.1: tls.VersionTLS11,
	1.2: tls.VersionTLS12,
	1.3: tls.VersionTLS13,
}

const DefaultInviteUrl = "https://discord.gg/PEsARGFup7"

type Config struct {
	Log   LogConfig
	Http  HttpConfig
	Https HttpsConfig
	Tls   TlsConfig
	Site  SiteConfig
	Flags FlagsConfig
	Stats StatsConfig
	Diag  DiagConfig
	Grpc  GrpcConfig
}

type HttpConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	Log     LogConfig
}

type HttpsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TlsConfig struct {
	MinVersion   float64 `yaml:"min_version"`
	Watch        bool    `yaml:"watch"`
	Certificates []CertConfig
}

type CertConfig struct {
	Key  string `yaml:"key"`
	Cert string `yaml:"cert"`
}

type SiteConfig struct {
	Domain             string            `yaml:"domain"`
	CanonicalRedirects bool              `yaml:"canonical_redirects"`
	ForceHttps         bool              `yaml:"force_https"`
	InviteUrl          string            `yaml:"invite_url"`
	PublicDir          string            `yaml:"public_dir"`
	Headers            map[string]string `yaml:"headers"`
}

type FlagsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	SdkKey       string `yaml:"sdk_key"`
	BaseUrl      string `yaml:"base_url"`
	PollInterval int    `yaml:"poll_interval"`
	Log          LogConfig
}

type StatsConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Redis    RedisConfig    `yaml:"redis"`
	MongoDb  MongoDbConfig  `yaml:"mongodb"`
	DynamoDb DynamoDbConfig `yaml:"dynamodb"`
}

type RedisConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	DB        int      `yaml:"db"`
	User      string   `yaml:"user"`
	Password  string   `yaml:"password"`
	Tls       ClientTlsConfig
}

type MongoDbConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Url        string `yaml:"url"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Tls        ClientTlsConfig
}

type DynamoDbConfig struct {
	Enabled bool   `yaml:"enabled"`
	Table   string `yaml:"table"`
	Url     string `yaml:"url"`
}

type ClientTlsConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MinVersion   float64 `yaml:"min_version"`
	ServerName   string  `yaml:"server_name"`
	Certificates []CertConfig
}

type DiagConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	Status  StatusConfig
	Metrics MetricsConfig
	Traces  TraceConfig
}

type StatusConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MetricsConfig struct {
	Enabled    bool                     `yaml:"enabled"`
	Prometheus PrometheusExporterConfig `yaml:"prometheus"`
	Otlp       OtlpExporterConfig       `yaml:"otlp"`
}

type TraceConfig struct {
	Enabled bool               `yaml:"enabled"`
	Otlp    OtlpExporterConfig `yaml:"otlp"`
}

type PrometheusExporterConfig struct {
	Enabled bool `yaml:"enabled"`
}

type OtlpExporterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Protocol string `yaml:"protocol"`
	Endpoint string `yaml:"endpoint"`
}

type GrpcConfig struct {
	Enabled                 bool `yaml:"enabled"`
	Port                    int  `yaml:"port"`
	ServerReflectionEnabled bool `yaml:"server_reflection_enabled"`
	UseTls                  bool `yaml:"use_tls"`
	Log                     LogConfig
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func LoadConfigFromFileAndEnvironment(filePath string) (Config, error) {
	var config Config
	config.setDefaults()

	if filePath != "" {
		_, err := os.Stat(filePath)
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config file %s does not exist: %w", filePath, err)
		}
		realPath, err := filepath.EvalSymlinks(filePath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to eval symlink for %s: %w", filePath, err)
		}
		data, err := os.ReadFile(realPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", realPath, err)
		}

		err = yaml.Unmarshal(data, &config)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML from config file %s: %w", realPath, err)
		}
	}

	config.loadEnv()
	if config.Log.GetLevel() == log.None {
		config.Log.Level = "warn"
	}
	config.fixupLogLevels(config.Log.Level)
	return config, nil
}

func (l *LogConfig) GetLevel() log.Level {
	if lvl, ok := allowedLogLevels[l.Level]; ok {
		return lvl
	}
	return log.None
}

func (t *TlsConfig) GetVersion() uint16 {
	return tlsVersion(t.MinVersion)
}

func (t *ClientTlsConfig) GetVersion() uint16 {
	return tlsVersion(t.MinVersion)
}

func (t *ClientTlsConfig) LoadTlsOptions() (*tls.Config, error) {
	conf := &tls.Config{
		MinVersion: t.GetVersion(),
		ServerName: t.ServerName,
	}
	for _, c := range t.Certificates {
		cert, err := tls.LoadX509KeyPair(c.Cert, c.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate and key files: %w", err)
		}
		conf.Certificates = append(conf.Certificates, cert)
	}
	return conf, nil
}

func (s *StatsConfig) IsExternalStoreSet() bool {
	return s.Redis.Enabled || s.MongoDb.Enabled || s.DynamoDb.Enabled
}

func (d *DiagConfig) IsMetricsEnabled() bool {
	return d.Enabled && d.Metrics.Enabled && (d.Metrics.Prometheus.Enabled || d.Metrics.Otlp.Enabled)
}

func (d *DiagConfig) IsPrometheusExporterEnabled() bool {
	return d.IsMetricsEnabled() && d.Metrics.Prometheus.Enabled
}

func (d *DiagConfig) IsTracesEnabled() bool {
	return d.Enabled && d.Traces.Enabled && d.Traces.Otlp.Enabled
}

func (d *DiagConfig) IsStatusEnabled() bool {
	return d.Enabled && d.Status.Enabled
}

// FallbackToHttp disables the HTTPS listener and the HTTPS upgrade redirect when HTTPS is
// enabled without any certificate. It reports whether it did so.
func (c *Config) FallbackToHttp() bool {
	if !c.Https.Enabled || len(c.Tls.Certificates) > 0 {
		return false
	}
	c.Https.Enabled = false
	c.Site.ForceHttps = false
	return true
}

func tlsVersion(v float64) uint16 {
	if ver, ok := allowedTlsVersions[v]; ok {
		return ver
	}
	return tls.VersionTLS12
}

func (c *Config) setDefaults() {
	c.Http.Enabled = true
	c.Http.Port = 80

	c.Https.Enabled = true
	c.Https.Port = 443

	c.Tls.MinVersion = 1.2

	c.Site.Domain = "kingland.id"
	c.Site.CanonicalRedirects = true
	c.Site.ForceHttps = true
	c.Site.InviteUrl = DefaultInviteUrl

	c.Flags.PollInterval = 60

	c.Stats.Enabled = true
	c.Stats.Redis.DB = 0
	c.Stats.Redis.Addresses = []string{"localhost:6379"}
	c.Stats.Redis.Tls.MinVersion = 1.2
	c.Stats.MongoDb.Database = "kingland_website"
	c.Stats.MongoDb.Collection = "visits"
	c.Stats.MongoDb.Tls.MinVersion = 1.2
	c.Stats.DynamoDb.Table = "kingland_website_visits"

	c.Diag.Enabled = true
	c.Diag.Port = 8051
	c.Diag.Status.Enabled = true
	c.Diag.Metrics.Enabled = true
	c.Diag.Metrics.Prometheus.Enabled = true
	c.Diag.Metrics.Otlp.Protocol = "http"
	c.Diag.Traces.Otlp.Protocol = "http"

	c.Grpc.Port = 50051
}

func (c *Config) fixupLogLevels(defLevel string) {
	if c.Http.Log.GetLevel() == log.None {
		c.Http.Log.Level = defLevel
	}
	if c.Flags.Log.GetLevel() == log.None {
		c.Flags.Log.Level = defLevel
	}
	if c.Grpc.Log.GetLevel() == log.None {
		c.Grpc.Log.Level = defLevel
	}
}
