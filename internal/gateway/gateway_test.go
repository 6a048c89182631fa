package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wirepass/wirepass/internal/api"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingUpstream is a fake backend that records the requests it receives.
type recordingUpstream struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	handler  http.HandlerFunc
}

func (u *recordingUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.requests = append(u.requests, r.Clone(context.Background()))
	u.bodies = append(u.bodies, string(body))
	h := u.handler
	u.mu.Unlock()
	if h != nil {
		h(w, r)
	}
}

func (u *recordingUpstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

func (u *recordingUpstream) last() (*http.Request, string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.requests[len(u.requests)-1], u.bodies[len(u.bodies)-1]
}

// newTestGateway starts an upstream and a gateway in front of it.
func newTestGateway(t *testing.T, h http.HandlerFunc) (*recordingUpstream, *httptest.Server) {
	t.Helper()
	up := &recordingUpstream{handler: h}
	upSrv := httptest.NewServer(up)
	t.Cleanup(upSrv.Close)

	gw, err := NewServer(Config{UpstreamURL: upSrv.URL, Network: "preprod"}, slog.Default())
	require.NoError(t, err)
	gwSrv := httptest.NewServer(gw.Handler())
	t.Cleanup(gwSrv.Close)
	return up, gwSrv
}

// noRedirectClient hands back 3xx responses instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestGateway_Preflight(t *testing.T) {
	up, gw := newTestGateway(t, nil)

	req, err := http.NewRequest(http.MethodOptions, gw.URL+"/api/client/list", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
	require.Empty(t, body)
	require.Zero(t, up.count(), "preflight must not reach upstream")
}

func TestGateway_ProfileRedirectUnwrapped(t *testing.T) {
	const loc = "https://cdn.example.com/profiles/abc.ovpn?sig=1"
	_, gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", loc)
		w.Header().Set("Set-Cookie", "session=x")
		w.WriteHeader(http.StatusFound)
	})

	resp, err := noRedirectClient().Post(gw.URL+"/api/client/profile", "application/json", strings.NewReader(`{"id":"c1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	require.Equal(t, loc, string(body))
	require.Empty(t, resp.Header.Get("Location"))
	require.Empty(t, resp.Header.Get("Set-Cookie"))
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "preprod", resp.Header.Get(NetworkHeader))
}

func TestGateway_RedirectElsewhereNotUnwrapped(t *testing.T) {
	_, gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://elsewhere.example.com/")
		w.WriteHeader(http.StatusFound)
	})

	for _, path := range []string{"/api/client/list", "/api/client/profile/extra"} {
		resp, err := noRedirectClient().Post(gw.URL+path, "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusFound, resp.StatusCode, path)
		require.Equal(t, "https://elsewhere.example.com/", resp.Header.Get("Location"), path)
	}
}

func TestGateway_ForwardsRequestAndResponse(t *testing.T) {
	up, gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	req, err := http.NewRequest(http.MethodDelete, gw.URL+"/api/client/wg-peer?dry=1", strings.NewReader(`{"wg_pubkey":"k"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Equal(t, "short and stout", string(body))
	require.Equal(t, "yes", resp.Header.Get("X-Upstream"))
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	got, gotBody := up.last()
	require.Equal(t, http.MethodDelete, got.Method)
	require.Equal(t, "/api/client/wg-peer", got.URL.Path)
	require.Equal(t, "dry=1", got.URL.RawQuery)
	require.Equal(t, `{"wg_pubkey":"k"}`, gotBody)
	require.Equal(t, "application/json", got.Header.Get("Content-Type"))
}

func TestGateway_RequestID(t *testing.T) {
	up, gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(gw.URL + "/api/refdata")
	require.NoError(t, err)
	resp.Body.Close()
	generated := resp.Header.Get(RequestIDHeader)
	require.NotEmpty(t, generated)
	got, _ := up.last()
	require.Equal(t, generated, got.Header.Get(RequestIDHeader))

	req, _ := http.NewRequest(http.MethodGet, gw.URL+"/api/refdata", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	got, _ = up.last()
	require.Equal(t, "caller-id", got.Header.Get(RequestIDHeader))
}

func TestGateway_UpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	gw, err := NewServer(Config{UpstreamURL: deadURL}, slog.Default())
	require.NoError(t, err)
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/refdata")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGateway_ClientFetchProfileThroughGateway(t *testing.T) {
	const loc = "https://cdn.example.com/x.conf"
	_, gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/client/profile" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Location", loc)
		w.WriteHeader(http.StatusFound)
	})

	c, err := api.NewClient(api.Config{BaseURL: gw.URL + "/api"}, "test", slog.Default())
	require.NoError(t, err)

	got, err := c.FetchProfile(context.Background(), api.SignedChallenge{ID: "c1", Key: "k", Signature: "s"})
	require.NoError(t, err)
	require.Equal(t, loc, got)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	gw, err := NewServer(Config{UpstreamURL: "http://127.0.0.1:1", ShutdownTimeout: time.Second}, slog.Default())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gw.Serve(ctx, ln) }()

	req, _ := http.NewRequest(http.MethodOptions, "http://"+ln.Addr().String()+"/", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, context.Canceled), "err = %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	http.DefaultClient.CloseIdleConnections()
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("WIREPASS_UPSTREAM_URL", "https://backend.example.com")
	t.Setenv("WIREPASS_NETWORK", "mainnet")
	t.Setenv("WIREPASS_LISTEN", "127.0.0.1:9000")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "https://backend.example.com", cfg.UpstreamURL)
	require.Equal(t, "mainnet", cfg.Network)
	require.Equal(t, "127.0.0.1:9000", cfg.Listen)
	require.Equal(t, DefaultProfilePath, cfg.ProfilePath)
	require.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing upstream", Config{ProfilePath: "/p"}},
		{"bad scheme", Config{UpstreamURL: "ftp://x", ProfilePath: "/p"}},
		{"relative profile path", Config{UpstreamURL: "http://x", ProfilePath: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.cfg.Validate())
		})
	}
}
