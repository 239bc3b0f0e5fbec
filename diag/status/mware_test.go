package status

import (
	"github.com/stretchr/testify/assert"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInterceptClient(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		reporter := NewEmptyReporter()
		reporter.RegisterComponent(Flags)
		srv := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		client := http.Client{Transport: InterceptClient(Flags, reporter, http.DefaultTransport)}
		req, _ := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
		_, _ = client.Do(req)

		stat := reporter.GetStatus()

		assert.Equal(t, Healthy, stat.Status)
		assert.Equal(t, Healthy, stat.Components[Flags].Status)
		assert.Equal(t, 1, len(stat.Components[Flags].Records))
		assert.Contains(t, stat.Components[Flags].Records[0], "remote fetched")
	})
	t.Run("not modified", func(t *testing.T) {
		reporter := NewEmptyReporter()
		reporter.RegisterComponent(Flags)
		srv := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNotModified)
		}))
		defer srv.Close()
		client := http.Client{Transport: InterceptClient(Flags, reporter, http.DefaultTransport)}
		req, _ := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
		_, _ = client.Do(req)

		stat := reporter.GetStatus()

		assert.Equal(t, Healthy, stat.Status)
		assert.Contains(t, stat.Components[Flags].Records[0], "remote not modified")
	})
	t.Run("error", func(t *testing.T) {
		reporter := NewEmptyReporter()
		reporter.RegisterComponent(Flags)
		srv := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()
		client := http.Client{Transport: InterceptClient(Flags, reporter, http.DefaultTransport)}
		req, _ := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
		_, _ = client.Do(req)

		stat := reporter.GetStatus()

		assert.Equal(t, Down, stat.Status)
		assert.Equal(t, Down, stat.Components[Flags].Status)
		assert.Contains(t, stat.Components[Flags].Records[0], "unexpected response received: 400 Bad Request")
	})
	t.Run("transport error", func(t *testing.T) {
		reporter := NewEmptyReporter()
		reporter.RegisterComponent(Flags)
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		client := http.Client{Transport: InterceptClient(Flags, reporter, http.DefaultTransport)}
		req, _ := http.NewRequest(http.MethodGet, url, http.NoBody)
		_, err := client.Do(req)

		assert.Error(t, err)
		stat := reporter.GetStatus()
		assert.Equal(t, Down, stat.Components[Flags].Status)
		assert.Contains(t, stat.Components[Flags].Records[0], "remote fetch failed")
	})
}
