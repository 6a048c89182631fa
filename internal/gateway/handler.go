package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Response headers added by the gateway.
const (
	NetworkHeader   = "X-Wirepass-Network"
	RequestIDHeader = "X-Request-Id"
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":   "*",
	"Access-Control-Allow-Methods":  "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers":  "Content-Type, Authorization, " + RequestIDHeader,
	"Access-Control-Expose-Headers": NetworkHeader + ", " + RequestIDHeader,
	"Access-Control-Max-Age":        "86400",
}

func setCORS(h http.Header) {
	for k, v := range corsHeaders {
		h.Set(k, v)
	}
}

// newRouter builds the gateway routes: CORS preflight for every path, the
// profile path with redirect unwrapping, and plain forwarding for the rest.
func newRouter(cfg Config, upstream *url.URL, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.SkipClean(true)
	r.Use(requestIDMiddleware)

	r.Methods(http.MethodOptions).HandlerFunc(handlePreflight)
	r.Path(cfg.ProfilePath).Handler(newProxy(cfg, upstream, true, logger))
	r.PathPrefix("/").Handler(newProxy(cfg, upstream, false, logger))
	return r
}

func handlePreflight(w http.ResponseWriter, _ *http.Request) {
	setCORS(w.Header())
	w.WriteHeader(http.StatusNoContent)
}

// newProxy returns a reverse proxy to upstream. Redirects from upstream are
// passed back, never followed. With unwrapRedirect set, a 302 is turned
// into a 200 text/plain response whose body is the Location.
func newProxy(cfg Config, upstream *url.URL, unwrapRedirect bool, logger *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		ModifyResponse: func(resp *http.Response) error {
			if unwrapRedirect && resp.StatusCode == http.StatusFound {
				unwrap(resp)
			}
			setCORS(resp.Header)
			if cfg.Network != "" {
				resp.Header.Set(NetworkHeader, cfg.Network)
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", r.Header.Get(RequestIDHeader),
				"error", err,
			)
			setCORS(w.Header())
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
}

// unwrap replaces a redirect with a 200 response carrying its target.
func unwrap(resp *http.Response) {
	loc := resp.Header.Get("Location")
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	resp.StatusCode = http.StatusOK
	resp.Status = "200 OK"
	resp.Header = http.Header{}
	resp.Header.Set("Content-Type", "text/plain")
	resp.Header.Set("Content-Length", strconv.Itoa(len(loc)))
	resp.ContentLength = int64(len(loc))
	resp.Body = io.NopCloser(strings.NewReader(loc))
}

// requestIDMiddleware tags each request with an X-Request-Id, keeping one
// supplied by the caller.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
