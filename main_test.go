package main

import (
	"crypto/tls"
	"encoding/json"
	"flag"
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

var noRedirects = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
	Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
}

func TestAppMain(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_HTTPS_ENABLED", "false")
	t.Setenv("KINGLAND_HTTP_PORT", "5081")
	t.Setenv("KINGLAND_GRPC_ENABLED", "true")
	t.Setenv("KINGLAND_GRPC_PORT", "5082")
	t.Setenv("KINGLAND_DIAG_PORT", "5083")

	stop := startApp()
	time.Sleep(2 * time.Second)

	req, _ := http.NewRequest(http.MethodGet, "http://localhost:5081/discord", http.NoBody)
	req.Host = "kingland.id"
	resp, err := noRedirects.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "http://www.kingland.id/discord", resp.Header.Get("Location"))

	req, _ = http.NewRequest(http.MethodGet, "http://localhost:5081/discord", http.NoBody)
	req.Host = "www.kingland.id"
	resp, err = noRedirects.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "https://www.kingland.id/discord", resp.Header.Get("Location"))

	resp, err = http.Get("http://localhost:5083/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	testutils.WaitUntil(2*time.Second, func() bool {
		resp, err := http.Get("http://localhost:5083/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var counts map[string]int64
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &counts) != nil {
			return false
		}
		return counts["redirect"] == 2
	})

	assert.Equal(t, 0, stop())
}

func TestAppMain_Https(t *testing.T) {
	testutils.UseCertificate(func(cert string, key string) {
		resetFlags()
		certs, _ := json.Marshal([]config.CertConfig{{Cert: cert, Key: key}})
		t.Setenv("KINGLAND_HTTP_PORT", "5084")
		t.Setenv("KINGLAND_HTTPS_PORT", "5085")
		t.Setenv("KINGLAND_DIAG_PORT", "5086")
		t.Setenv("KINGLAND_TLS_CERTIFICATES", string(certs))

		stop := startApp()
		time.Sleep(2 * time.Second)

		req, _ := http.NewRequest(http.MethodGet, "https://localhost:5085/", http.NoBody)
		req.Host = "www.kingland.id"
		resp, err := noRedirects.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

		req, _ = http.NewRequest(http.MethodGet, "https://localhost:5085/favicon?t=favicon32", http.NoBody)
		req.Host = "www.kingland.id"
		resp, err = noRedirects.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

		assert.Equal(t, 0, stop())
	})
}

func TestAppMain_Disabled_Everything(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_HTTP_ENABLED", "false")
	t.Setenv("KINGLAND_HTTPS_ENABLED", "false")
	t.Setenv("KINGLAND_STATS_ENABLED", "false")
	t.Setenv("KINGLAND_DIAG_ENABLED", "false")

	stop := startApp()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 0, stop())
}

func TestAppMain_No_Certificates_Serves_Http(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_HTTP_PORT", "5090")
	t.Setenv("KINGLAND_DIAG_PORT", "5091")

	stop := startApp()
	time.Sleep(2 * time.Second)

	req, _ := http.NewRequest(http.MethodGet, "http://localhost:5090/", http.NoBody)
	req.Host = "www.kingland.id"
	resp, err := noRedirects.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Location"))

	assert.Equal(t, 0, stop())
}

func TestAppMain_Invalid_Conf(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_SITE_INVITE_URL", "not-a-url")

	stop := startApp()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 1, stop())
}

func TestAppMain_Invalid_Config_YAML(t *testing.T) {
	resetFlags()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"app", "-c=/tmp/non-existing.yml"}

	stop := startApp()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 1, stop())
}

func TestAppMain_Invalid_TLS_Cert(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_TLS_CERTIFICATES", `[{"key":"./key","cert":"./cert"}]`)

	stop := startApp()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 1, stop())
}

func TestAppMain_Invalid_Public_Dir(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_HTTPS_ENABLED", "false")
	t.Setenv("KINGLAND_HTTP_PORT", "5087")
	t.Setenv("KINGLAND_DIAG_ENABLED", "false")
	t.Setenv("KINGLAND_SITE_PUBLIC_DIR", t.TempDir())

	stop := startApp()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 1, stop())
}

func TestAppMain_ErrorChan_Diag_Conflicting_Ports(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_HTTPS_ENABLED", "false")
	t.Setenv("KINGLAND_HTTP_PORT", "5088")
	t.Setenv("KINGLAND_DIAG_PORT", "5088")

	stop := startApp()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 1, stop())
}

func TestAppMain_ErrorChan_Grpc_Conflicting_Ports(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_HTTPS_ENABLED", "false")
	t.Setenv("KINGLAND_HTTP_PORT", "5089")
	t.Setenv("KINGLAND_DIAG_ENABLED", "false")
	t.Setenv("KINGLAND_GRPC_ENABLED", "true")
	t.Setenv("KINGLAND_GRPC_PORT", "5089")

	stop := startApp()
	time.Sleep(1 * time.Second)
	assert.Equal(t, 1, stop())
}

func TestAppMain_Store_Error_Logged(t *testing.T) {
	resetFlags()
	t.Setenv("KINGLAND_HTTPS_ENABLED", "false")
	t.Setenv("KINGLAND_DIAG_ENABLED", "false")
	t.Setenv("KINGLAND_STATS_MONGODB_ENABLED", "true")
	t.Setenv("KINGLAND_STATS_MONGODB_URL", "invalid")

	var exitCode int
	out := captureStderr(t, func() {
		exitCode = run(make(chan os.Signal, 1))
	})

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, out, "failed to set up the visit store")
}

func captureStderr(t *testing.T, f func()) string {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stderr := os.Stderr
	os.Stderr = w
	f()
	os.Stderr = stderr
	_ = w.Close()
	out, _ := io.ReadAll(r)
	return string(out)
}

// startApp runs the app in the background. The returned func signals it to stop and returns its exit code.
func startApp() func() int {
	var exitCode int
	closeSignal := make(chan os.Signal, 1)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		exitCode = run(closeSignal)
		wg.Done()
	}()
	return func() int {
		closeSignal <- syscall.SIGTERM
		wg.Wait()
		return exitCode
	}
}

func resetFlags() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flag.CommandLine.SetOutput(io.Discard)
}
