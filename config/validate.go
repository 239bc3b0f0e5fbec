package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
)

func (c *Config) Validate() error {
	if c.Https.Enabled {
		if err := c.Tls.validate(); err != nil {
			return err
		}
	}
	if err := c.Site.validate(); err != nil {
		return err
	}
	if err := c.Flags.validate(); err != nil {
		return err
	}
	if c.Stats.Enabled {
		if err := c.Stats.Redis.validate(); err != nil {
			return err
		}
		if err := c.Stats.MongoDb.validate(); err != nil {
			return err
		}
		if err := c.Stats.DynamoDb.validate(); err != nil {
			return err
		}
	}
	if err := c.Diag.validate(); err != nil {
		return err
	}
	if c.Grpc.Enabled && c.Grpc.UseTls && !c.Https.Enabled {
		return fmt.Errorf("grpc: TLS requires HTTPS to be enabled")
	}
	return nil
}

func (t *TlsConfig) validate() error {
	if len(t.Certificates) == 0 {
		return fmt.Errorf("tls: at least 1 certificate and key pair is required when HTTPS is enabled")
	}
	return validateCertificates("tls", t.Certificates)
}

func (s *SiteConfig) validate() error {
	if s.CanonicalRedirects && s.Domain == "" {
		return fmt.Errorf("site: domain is required when canonical redirects are enabled")
	}
	if s.InviteUrl == "" {
		return fmt.Errorf("site: invite URL is required")
	}
	u, err := url.Parse(s.InviteUrl)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("site: invalid invite URL '%s', it must be an absolute URL", s.InviteUrl)
	}
	if s.PublicDir != "" {
		if info, err := os.Stat(s.PublicDir); err != nil || !info.IsDir() {
			return fmt.Errorf("site: couldn't find the public directory %s", s.PublicDir)
		}
	}
	return nil
}

func (f *FlagsConfig) validate() error {
	if !f.Enabled {
		return nil
	}
	if f.SdkKey == "" {
		return fmt.Errorf("flags: SDK key is required")
	}
	if f.PollInterval < 1 {
		return fmt.Errorf("flags: poll interval must be greater than 1 seconds")
	}
	return nil
}

func (r *RedisConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if len(r.Addresses) == 0 {
		return fmt.Errorf("redis: at least 1 server address required")
	}
	return r.Tls.validate("redis")
}

func (m *MongoDbConfig) validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Url == "" {
		return fmt.Errorf("mongodb: invalid connection string")
	}
	if m.Database == "" {
		return fmt.Errorf("mongodb: database name is required")
	}
	if m.Collection == "" {
		return fmt.Errorf("mongodb: collection name is required")
	}
	return m.Tls.validate("mongodb")
}

func (d *DynamoDbConfig) validate() error {
	if !d.Enabled {
		return nil
	}
	if d.Table == "" {
		return fmt.Errorf("dynamodb: table name is required")
	}
	return nil
}

func (t *ClientTlsConfig) validate(component string) error {
	if !t.Enabled {
		return nil
	}
	return validateCertificates(component+": tls", t.Certificates)
}

func (d *DiagConfig) validate() error {
	if !d.Enabled {
		return nil
	}
	if err := d.Metrics.Otlp.validate("diag: metrics"); err != nil {
		return err
	}
	if err := d.Traces.Otlp.validate("diag: traces"); err != nil {
		return err
	}
	return nil
}

func (o *OtlpExporterConfig) validate(component string) error {
	if !o.Enabled {
		return nil
	}
	if o.Protocol != "grpc" && o.Protocol != "http" && o.Protocol != "https" {
		return fmt.Errorf("%s: invalid OTLP protocol '%s', it must be 'grpc', 'http' or 'https'", component, o.Protocol)
	}
	return nil
}

func validateCertificates(component string, certs []CertConfig) error {
	for _, cert := range certs {
		if cert.Cert == "" || cert.Key == "" {
			return fmt.Errorf("%s: both TLS cert and key file required", component)
		}
		if _, err := os.Stat(cert.Cert); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: couldn't find the certificate file %s", component, cert.Cert)
		}
		if _, err := os.Stat(cert.Key); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: couldn't find the key file %s", component, cert.Key)
		}
	}
	return nil
}
