package web

import (
	"crypto/tls"
	"github.com/kingland/kingland-website/certs"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/status"
	"github.com/kingland/kingland-website/internal/testutils"
	"github.com/kingland/kingland-website/log"
	"github.com/kingland/kingland-website/site"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"testing"
	"time"
)

func TestNewServer(t *testing.T) {
	errChan := make(chan error)
	reporter := status.NewEmptyReporter()
	reporter.RegisterComponent(status.Http)
	srv, err := NewServer(http.HandlerFunc(ServeHTTP), site.Http, &config.Config{Http: config.HttpConfig{Port: 5071}}, nil, reporter, log.NewNullLogger(), errChan)
	require.NoError(t, err)

	srv.Listen()
	time.Sleep(500 * time.Millisecond)

	resp, err := http.Get("http://localhost:5071/")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, status.Healthy, reporter.GetStatus().Components[status.Http].Status)

	srv.Shutdown()

	assert.Nil(t, readFromErrChan(errChan))
}

func TestNewServer_TLS(t *testing.T) {
	testutils.UseCertificate(func(cert string, key string) {
		errChan := make(chan error)
		reporter := status.NewEmptyReporter()
		reporter.RegisterComponent(status.Https)
		conf := &config.Config{
			Https: config.HttpsConfig{Enabled: true, Port: 5072},
			Tls: config.TlsConfig{
				MinVersion:   1.2,
				Certificates: []config.CertConfig{{Cert: cert, Key: key}},
			},
		}
		certStore, err := certs.NewStore(&conf.Tls, reporter, log.NewNullLogger())
		require.NoError(t, err)
		defer certStore.Close()

		srv, err := NewServer(http.HandlerFunc(ServeHTTP), site.Https, conf, certStore, reporter, log.NewNullLogger(), errChan)
		require.NoError(t, err)

		srv.Listen()
		time.Sleep(500 * time.Millisecond)

		client := http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
		resp, err := client.Get("https://localhost:5072/")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, uint16(tls.VersionTLS13), resp.TLS.Version)
		assert.Equal(t, status.Healthy, reporter.GetStatus().Components[status.Https].Status)

		srv.Shutdown()

		assert.Nil(t, readFromErrChan(errChan))
	})
}

func TestNewServer_Invalid_Port(t *testing.T) {
	errChan := make(chan error, 1)
	reporter := status.NewEmptyReporter()
	reporter.RegisterComponent(status.Http)
	srv, err := NewServer(http.HandlerFunc(ServeHTTP), site.Http, &config.Config{Http: config.HttpConfig{Port: -1}}, nil, reporter, log.NewNullLogger(), errChan)
	require.NoError(t, err)

	srv.Listen()
	time.Sleep(500 * time.Millisecond)
	srv.Shutdown()

	assert.NotNil(t, readFromErrChan(errChan))
	assert.Equal(t, status.Down, reporter.GetStatus().Components[status.Http].Status)
}

func TestNewServer_TLS_Missing_Store(t *testing.T) {
	_, err := NewServer(http.HandlerFunc(ServeHTTP), site.Https, &config.Config{Https: config.HttpsConfig{Port: 5073}}, nil, status.NewEmptyReporter(), log.NewNullLogger(), make(chan error))
	assert.ErrorContains(t, err, "has no certificates")
}

func ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readFromErrChan(ch chan error) error {
	select {
	case val, ok := <-ch:
		if ok {
			return val
		}
	default:
		return nil
	}
	return nil
}
