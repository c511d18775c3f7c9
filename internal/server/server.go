// Package server exposes the addon over HTTP: manifest, catalog, meta and
// stream resources, plus /healthz and /metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/snapetech/uakino-gateway/internal/addon"
	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/metrics"
)

// Addon is the resource backend. *addon.Service implements it.
type Addon interface {
	Manifest() catalog.Manifest
	Catalog(ctx context.Context, typ, id string, extra addon.Extra) []catalog.MetaPreview
	Meta(ctx context.Context, typ, id string) (catalog.Meta, bool)
	Streams(ctx context.Context, typ, id string) []catalog.Stream
}

var _ Addon = (*addon.Service)(nil)

// Cache-Control max-age per resource. Stream URLs carry CDN tokens, so
// they are cached briefly.
const (
	catalogMaxAge = 30 * time.Minute
	metaMaxAge    = time.Hour
	streamMaxAge  = 5 * time.Minute
)

// DefaultRequestTimeout bounds one addon request; meta for a long series
// fetches several season pages.
const DefaultRequestTimeout = 60 * time.Second

// Server serves the addon protocol.
type Server struct {
	Addr           string
	Addon          Addon
	RequestTimeout time.Duration
	Log            logrus.FieldLogger

	// health state updated by SetReady; read by /healthz.
	healthMu     sync.RWMutex
	ready        bool
	healthGenres int
	healthLoaded time.Time
}

// SetReady marks the server ready once genres are loaded.
func (s *Server) SetReady(genres int) {
	s.healthMu.Lock()
	s.ready = true
	s.healthGenres = genres
	s.healthLoaded = time.Now()
	s.healthMu.Unlock()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/manifest.json", http.StatusFound)
	})
	r.Get("/healthz", s.serveHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Get("/manifest.json", s.serveManifest)
		r.Get("/catalog/{type}/*", s.serveCatalog)
		r.Get("/meta/{type}/*", s.serveMeta)
		r.Get("/stream/{type}/*", s.serveStream)
	})
	return r
}

func (s *Server) serveManifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Addon.Manifest(), 0)
}

// serveCatalog handles /catalog/{type}/{id}.json and
// /catalog/{type}/{id}/{extra}.json.
func (s *Server) serveCatalog(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	rest, ok := resourcePath(escapedRest(r))
	if !ok {
		http.NotFound(w, r)
		return
	}
	rawID, rawExtra, _ := strings.Cut(rest, "/")
	id, err := url.PathUnescape(rawID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	metas := s.Addon.Catalog(r.Context(), typ, id, addon.ParseExtra(rawExtra))
	writeJSON(w, http.StatusOK, map[string]any{"metas": metas}, catalogMaxAge)
}

func (s *Server) serveMeta(w http.ResponseWriter, r *http.Request) {
	typ, id, ok := typeAndID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var body any = struct{}{}
	if meta, ok := s.Addon.Meta(r.Context(), typ, id); ok {
		body = meta
	}
	writeJSON(w, http.StatusOK, map[string]any{"meta": body}, metaMaxAge)
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	typ, id, ok := typeAndID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	streams := s.Addon.Streams(r.Context(), typ, id)
	writeJSON(w, http.StatusOK, map[string]any{"streams": streams}, streamMaxAge)
}

// serveHealth returns 200 {"status":"ok",...} once genres have been loaded,
// 503 {"status":"loading"} before.
func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	s.healthMu.RLock()
	ready, genres, loaded := s.ready, s.healthGenres, s.healthLoaded
	s.healthMu.RUnlock()
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"}, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"genres":    genres,
		"loaded_at": loaded.Format(time.RFC3339),
	}, 0)
}

// typeAndID reads {type} and the id from a /{resource}/{type}/{id}.json path.
// The id is unescaped once from the escaped path.
func typeAndID(r *http.Request) (typ, id string, ok bool) {
	rest, ok := resourcePath(escapedRest(r))
	if !ok {
		return "", "", false
	}
	id, err := url.PathUnescape(rest)
	if err != nil || id == "" {
		return "", "", false
	}
	return chi.URLParam(r, "type"), id, true
}

// escapedRest returns what follows /{resource}/{type}/ in the escaped
// request path. chi's wildcard is already decoded when the request carries
// no RawPath (e.g. "search=100%25"), so it cannot be unescaped safely.
func escapedRest(r *http.Request) string {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.EscapedPath(), "/"), "/", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func resourcePath(raw string) (string, bool) {
	rest, ok := strings.CutSuffix(raw, ".json")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

func writeJSON(w http.ResponseWriter, status int, v any, maxAge time.Duration) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if maxAge > 0 {
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cors allows any origin; the player host fetches from web and app origins.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully (10s).
func (s *Server) Run(ctx context.Context) error {
	log := logging.Component(s.Log, "http")
	addr := s.Addr
	if addr == "" {
		addr = ":3000"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("addon listening on %s (install: http://127.0.0.1%s/manifest.json)", addr, localPort(addr))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down addon server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
		<-serverErr
		return nil
	}
}

func localPort(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ""
}
