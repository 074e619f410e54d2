// Package proxy relays the client's auth and profile calls to the upstream
// service.
//
// The relay preserves the method, streams bodies in both directions, never
// follows redirects, and strips www-authenticate and content-encoding from
// upstream responses so a browser never pops a native auth prompt or
// double-decodes a body.
package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/roach88/hexagram/internal/gateway"
)

// strippedHeaders never reach the caller.
var strippedHeaders = []string{"Www-Authenticate", "Content-Encoding"}

// Relay forwards requests to one upstream base URL.
type Relay struct {
	upstream string
	client   *http.Client
}

// NewRelay creates a relay for upstream. A nil client gets a default with
// gateway.DefaultTimeout. Either way redirects are returned to the caller,
// not followed.
func NewRelay(upstream string, client *http.Client) *Relay {
	if client == nil {
		client = &http.Client{Timeout: gateway.DefaultTimeout}
	} else {
		c := *client
		client = &c
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Relay{upstream: strings.TrimRight(upstream, "/"), client: client}
}

// Router returns the relay's routes with the standard middleware stack.
func (p *Relay) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", gateway.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post(gateway.LoginPath, p.relay(gateway.LoginPath, false))
	r.Post(gateway.RegisterPath, p.relay(gateway.RegisterPath, false))
	r.Get(gateway.ProfilePath, p.relay(gateway.ProfilePath, true))
	r.Put(gateway.ProfilePath, p.relay(gateway.ProfilePath, true))
	return r
}

// relay builds the handler for one upstream path. withAuth forwards the
// caller's Authorization header.
func (p *Relay) relay(path string, withAuth bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body io.Reader
		if r.Body != nil && r.Body != http.NoBody {
			body = r.Body
		}
		req, err := http.NewRequestWithContext(r.Context(), r.Method, p.upstream+path, body)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to build upstream request")
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
		if auth := r.Header.Get("Authorization"); withAuth && auth != "" {
			req.Header.Set("Authorization", auth)
		}
		req.Header.Set(gateway.RequestIDHeader, middleware.GetReqID(r.Context()))

		start := time.Now()
		resp, err := p.client.Do(req)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			slog.Warn("upstream request failed",
				"path", path,
				"request_id", middleware.GetReqID(r.Context()),
				"error", err,
			)
			writeError(w, http.StatusBadGateway, "upstream unavailable")
			return
		}
		defer resp.Body.Close()

		header := w.Header()
		for k, vs := range resp.Header {
			for _, v := range vs {
				header.Add(k, v)
			}
		}
		for _, h := range strippedHeaders {
			header.Del(h)
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			slog.Debug("relay body copy interrupted", "path", path, "error", err)
		}
		slog.Debug("relayed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", path,
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
