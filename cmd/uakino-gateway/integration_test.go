// Integration tests hit the live site. Run with UAKINO_INTEGRATION=1:
//
//	UAKINO_INTEGRATION=1 go test -v -run Integration ./cmd/uakino-gateway
package main

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/snapetech/uakino-gateway/internal/addon"
	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/config"
	"github.com/snapetech/uakino-gateway/internal/genrecache"
	"github.com/snapetech/uakino-gateway/internal/health"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/server"
	"github.com/snapetech/uakino-gateway/internal/site"
)

func integrationConfig(t *testing.T) *config.Config {
	t.Helper()
	if os.Getenv("UAKINO_INTEGRATION") == "" {
		t.Skip("set UAKINO_INTEGRATION=1 to run against the live site")
	}
	for _, p := range []string{".env", "../.env", "../../.env"} {
		_ = config.LoadEnvFile(p)
	}
	cfg := config.Load()
	cfg.GenreCachePath = ""
	cfg.SearchCacheDB = ""
	return cfg
}

func TestIntegration_siteAndAddon(t *testing.T) {
	cfg := integrationConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	if err := health.CheckSite(ctx, cfg.BaseURL, cfg.UserAgent); err != nil {
		t.Fatalf("site health: %v", err)
	}

	a := newApp(cfg, logging.Discard())
	defer a.close()
	g := a.loadGenres(ctx)
	if len(g.ForType(catalog.TypeMovie)) == 0 {
		t.Error("no movie genres parsed")
	}
	movies := a.svc.Catalog(ctx, catalog.TypeMovie, addon.CatalogMovies, addon.Extra{})
	if len(movies) == 0 {
		t.Fatal("movie catalog is empty")
	}
	t.Logf("catalog OK: %d movies, %d genres", len(movies), genreCount(g))

	srv := &server.Server{Addon: a.svc, Log: logging.Discard()}
	srv.SetReady(genreCount(g))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	if err := health.CheckEndpoints(ctx, ts.URL); err != nil {
		t.Fatalf("addon endpoints: %v", err)
	}
}

func TestGenreCount(t *testing.T) {
	g := &genrecache.Genres{
		Movies: []site.Genre{{Name: "Драма", Value: "drama"}, {Name: "Комедія", Value: "comedy"}},
		Series: []site.Genre{{Name: "Аніме", Value: "anime"}},
	}
	if n := genreCount(g); n != 3 {
		t.Errorf("genreCount = %d, want 3", n)
	}
	if n := genreCount(nil); n != 0 {
		t.Errorf("genreCount(nil) = %d, want 0", n)
	}
}
