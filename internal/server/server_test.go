package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/snapetech/uakino-gateway/internal/addon"
	"github.com/snapetech/uakino-gateway/internal/catalog"
)

type call struct {
	typ, id string
	extra   addon.Extra
}

type fakeAddon struct {
	calls []call
}

func (f *fakeAddon) Manifest() catalog.Manifest {
	return catalog.Manifest{ID: "test.addon", Version: "1.0.0", Types: []string{catalog.TypeMovie}}
}

func (f *fakeAddon) Catalog(_ context.Context, typ, id string, extra addon.Extra) []catalog.MetaPreview {
	f.calls = append(f.calls, call{typ, id, extra})
	return []catalog.MetaPreview{{ID: "uakino:movie:filmy%2F1-a.html", Type: typ, Name: "A"}}
}

func (f *fakeAddon) Meta(_ context.Context, typ, id string) (catalog.Meta, bool) {
	f.calls = append(f.calls, call{typ: typ, id: id})
	if !strings.HasPrefix(id, "uakino:") {
		return catalog.Meta{}, false
	}
	return catalog.Meta{ID: id, Type: typ, Name: "A"}, true
}

func (f *fakeAddon) Streams(_ context.Context, typ, id string) []catalog.Stream {
	f.calls = append(f.calls, call{typ: typ, id: id})
	return []catalog.Stream{{Name: "UAKINO - A", Title: "▶️ 1080p", URL: "https://cdn/x.m3u8"}}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestManifestAndCORS(t *testing.T) {
	s := &Server{Addon: &fakeAddon{}}
	rec := get(t, s.Handler(), "/manifest.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	var m catalog.Manifest
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil || m.ID != "test.addon" {
		t.Errorf("manifest = %+v, %v", m, err)
	}
}

func TestRootRedirects(t *testing.T) {
	s := &Server{Addon: &fakeAddon{}}
	rec := get(t, s.Handler(), "/")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/manifest.json" {
		t.Errorf("status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestCatalogRoutes(t *testing.T) {
	f := &fakeAddon{}
	h := (&Server{Addon: f}).Handler()

	rec := get(t, h, "/catalog/movie/uakino-movies.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := decode(t, rec)["metas"]; !ok {
		t.Error("missing metas")
	}
	if !strings.Contains(rec.Header().Get("Cache-Control"), "max-age=1800") {
		t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}

	rec = get(t, h, "/catalog/series/uakino-series/genre=%D0%94%D1%80%D0%B0%D0%BC%D0%B0&search=a%2Fb.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.calls) != 2 {
		t.Fatalf("calls = %+v", f.calls)
	}
	c := f.calls[1]
	if c.typ != "series" || c.id != "uakino-series" || c.extra.Genre != "Драма" || c.extra.Search != "a/b" {
		t.Errorf("call = %+v", c)
	}
}

func TestCatalogSearchWithPercent(t *testing.T) {
	for target, want := range map[string]string{
		"/catalog/movie/uakino-movies/search=100%25.json":             "100%",
		"/catalog/movie/uakino-movies/search=50%25%20off.json":        "50% off",
		"/catalog/movie/uakino-movies/search=a%2Fb%25.json":           "a/b%",
		"/catalog/movie/uakino-movies/search=%D1%81%D0%B0%D0%B4.json": "сад",
	} {
		f := &fakeAddon{}
		rec := get(t, (&Server{Addon: f}).Handler(), target)
		if rec.Code != http.StatusOK || len(f.calls) != 1 {
			t.Fatalf("%s: status=%d calls=%+v", target, rec.Code, f.calls)
		}
		if c := f.calls[0]; c.id != "uakino-movies" || c.extra.Search != want {
			t.Errorf("%s: call = %+v, want search %q", target, c, want)
		}
	}
}

func TestMetaRoute(t *testing.T) {
	f := &fakeAddon{}
	h := (&Server{Addon: f}).Handler()

	// Host-encoded id: the escaped path is itself escaped once more.
	rec := get(t, h, "/meta/series/uakino%3Aseries%3Aseriesss%252F10-dark.html.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := f.calls[0].id; got != "uakino:series:seriesss%2F10-dark.html" {
		t.Errorf("id = %q", got)
	}
	var body struct {
		Meta catalog.Meta `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Meta.Name != "A" {
		t.Errorf("meta = %+v, %v", body, err)
	}

	rec = get(t, h, "/meta/series/tt123.json")
	if strings.TrimSpace(rec.Body.String()) != `{"meta":{}}` {
		t.Errorf("unknown meta body = %s", rec.Body.String())
	}
}

func TestStreamRoute(t *testing.T) {
	f := &fakeAddon{}
	h := (&Server{Addon: f}).Handler()
	rec := get(t, h, "/stream/series/uakino:series:seriesss%2F10-dark.html:1:2.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := f.calls[0].id; got != "uakino:series:seriesss/10-dark.html:1:2" {
		t.Errorf("id = %q", got)
	}
	var body struct {
		Streams []catalog.Stream `json:"streams"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.Streams) != 1 {
		t.Errorf("streams = %+v, %v", body, err)
	}
}

func TestNotJSONIs404(t *testing.T) {
	h := (&Server{Addon: &fakeAddon{}}).Handler()
	if rec := get(t, h, "/meta/movie/uakino:movie:x"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := &Server{Addon: &fakeAddon{}}
	h := s.Handler()
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: status = %d", rec.Code)
	}
	s.SetReady(42)
	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"genres":42`) {
		t.Errorf("after ready: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := (&Server{Addon: &fakeAddon{}}).Handler()
	get(t, h, "/manifest.json")
	rec := get(t, h, "/metrics")
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `uakino_http_requests_total{route="/manifest.json",status="200"}`) {
		t.Errorf("metrics output missing manifest request counter")
	}
}

func TestOptionsPreflight(t *testing.T) {
	h := (&Server{Addon: &fakeAddon{}}).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/manifest.json", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}
}

func TestRun_shutdown(t *testing.T) {
	s := &Server{Addr: "127.0.0.1:0", Addon: &fakeAddon{}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
