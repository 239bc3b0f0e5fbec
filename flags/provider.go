package flags

import (
	configcat "github.com/configcat/go-sdk/v9"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/status"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/internal/utils"
	"github.com/kingland/kingland-website/log"
	"net/http"
	"net/url"
	"time"
)

const (
	InviteUrlKey          = "inviteUrl"
	CanonicalRedirectsKey = "canonicalRedirects"
)

// Provider serves runtime overrides of site settings.
type Provider interface {
	InviteUrl(def string) string
	CanonicalRedirects(def bool) bool
	Close()
}

type staticProvider struct{}

type configCatProvider struct {
	client *configcat.Client
	log    log.Logger
}

// NewStaticProvider returns a Provider that always answers with the given defaults.
func NewStaticProvider() Provider {
	return staticProvider{}
}

func NewProvider(conf *config.FlagsConfig, telemetryReporter telemetry.Reporter, statusReporter status.Reporter, log log.Logger) Provider {
	if !conf.Enabled {
		return NewStaticProvider()
	}
	flagsLog := log.WithLevel(conf.Log.GetLevel()).WithPrefix("flags")

	var transport http.RoundTripper = http.DefaultTransport
	transport = telemetryReporter.InstrumentHttpClient(transport, telemetry.K("component").V(status.Flags))
	transport = status.InterceptClient(status.Flags, statusReporter, transport)

	clientConfig := configcat.Config{
		PollingMode:      configcat.AutoPoll,
		PollInterval:     time.Duration(conf.PollInterval) * time.Second,
		BaseURL:          conf.BaseUrl,
		SDKKey:           conf.SdkKey,
		Logger:           flagsLog,
		LogLevel:         flagsLog.GetConfigCatLevel(),
		Transport:        transport,
		NoWaitForRefresh: true,
		Hooks: &configcat.Hooks{
			OnConfigChanged: func() {
				flagsLog.Debugf("remote settings changed")
			},
		},
	}
	flagsLog.Reportf("polling remote settings of %s every %d seconds", utils.Obfuscate(conf.SdkKey, 5), conf.PollInterval)
	return &configCatProvider{
		client: configcat.NewCustomClient(clientConfig),
		log:    flagsLog,
	}
}

func (p *configCatProvider) InviteUrl(def string) string {
	val := p.client.GetStringValue(InviteUrlKey, def, nil)
	if val == def {
		return def
	}
	u, err := url.Parse(val)
	if err != nil || !u.IsAbs() || u.Host == "" {
		p.log.Warnf("ignoring invalid '%s' value: %s", InviteUrlKey, val)
		return def
	}
	return val
}

func (p *configCatProvider) CanonicalRedirects(def bool) bool {
	return p.client.GetBoolValue(CanonicalRedirectsKey, def, nil)
}

func (p *configCatProvider) Close() {
	p.client.Close()
}

func (staticProvider) InviteUrl(def string) string {
	return def
}

func (staticProvider) CanonicalRedirects(def bool) bool {
	return def
}

func (staticProvider) Close() {}
