package addon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/genrecache"
	"github.com/snapetech/uakino-gateway/internal/hls"
	"github.com/snapetech/uakino-gateway/internal/site"
)

// fakeSite serves a tiny copy of the site plus two player hosts' worth of
// embed pages and master playlists.
type fakeSite struct {
	srv      *httptest.Server
	searches atomic.Int32
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	f := &fakeSite{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func item(href, title, extra string) string {
	return fmt.Sprintf(`<div class="movie-item"><a class="movie-title" href="%s">%s</a>%s</div>`, href, title, extra)
}

func titlePage(h1, editTime, extra string) string {
	return fmt.Sprintf(`<html><head><meta property="og:image" content="/bg.jpg">
<script>var dle_edittime = '%s';</script></head><body>
<h1 itemprop="name">%s</h1><div class="film-poster"><img src="/poster.jpg"></div>
<div class="full-text clearfix" itemprop="description">Опис</div>%s</body></html>`, editTime, h1, extra)
}

func (f *fakeSite) serve(w http.ResponseWriter, r *http.Request) {
	base := f.srv.URL
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch r.URL.Path {
	case "/":
		fmt.Fprint(w, `<div class="top-header"><div class="swiper-slide movie-item"><a class="movie-title" href="/filmy/1-premiere.html">Прем'єра</a></div></div>`)
		fmt.Fprint(w, item("/filmy/2-other.html", "Інше", ""))
	case "/filmy/":
		fmt.Fprint(w, item("/filmy/3-movie.html", "Фільм", ""))
		fmt.Fprint(w, item("/seriesss/4-show.html", "Шоу", ""))
	case "/seriesss/":
		fmt.Fprint(w, item("/seriesss/4-show.html", "Шоу", ""))
	case "/f/o.cat=7/":
		fmt.Fprint(w, item("/filmy/5-drama.html", "Драма фільм", ""))
	case "/index.php":
		f.searches.Add(1)
		fmt.Fprint(w, item("/seriesss/10-dark.html", "Темрява", `<div class="full-season">1 сезон</div>`))
		fmt.Fprint(w, item("/seriesss/11-dark-2.html", "Темрява", `<div class="full-season">2 сезон</div>`))
		fmt.Fprint(w, item("/filmy/20-movie.html", "Темний фільм", ""))
	case "/seriesss/10-dark.html":
		fmt.Fprint(w, titlePage("Темрява 1 сезон", "100",
			`<ul class="seasons"><li><a href="/seriesss/11-dark-2.html">Темрява 2 сезон</a></li></ul>`))
	case "/seriesss/11-dark-2.html":
		fmt.Fprint(w, titlePage("Темрява 2 сезон", "200", ""))
	case "/filmy/20-movie.html":
		fmt.Fprint(w, titlePage("Темний фільм", "300", ""))
	case "/engine/ajax/playlists.php":
		var items string
		switch r.URL.Query().Get("news_id") {
		case "10":
			items = fmt.Sprintf(`<li data-file="%[1]s/embed/a" data-voice="A">1 серія</li>
<li data-file="%[1]s/embed/b" data-voice="B">1 серія</li>
<li data-file="%[1]s/embed/bad">2 серія</li>`, base)
		case "11":
			items = fmt.Sprintf(`<li data-file="%[1]s/embed/a">1 серія</li><li data-file="%[1]s/embed/b">Трейлер</li>`, base)
		case "20":
			items = fmt.Sprintf(`<li data-file="%[1]s/embed/b">Фільм</li><li data-file="%[1]s/embed/c"></li><li data-file="%[1]s/embed/d">Без якості</li>`, base)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"response": `<div class="playlists-items"><ul>` + items + `</ul></div>`,
		})
	case "/embed/a", "/embed/b", "/embed/c", "/embed/d":
		name := strings.TrimPrefix(r.URL.Path, "/embed/")
		fmt.Fprintf(w, `<script>new Playerjs({file:"%s/m/%s.m3u8"});</script>`, base, name)
	case "/m/a.m3u8":
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:RESOLUTION=1280x720\n720.m3u8\n#EXT-X-STREAM-INF:RESOLUTION=1920x1080\n1080.m3u8\n")
	case "/m/b.m3u8":
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:RESOLUTION=1280x720\n720.m3u8\n")
	case "/m/c.m3u8":
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=854x480\n480.m3u8\n")
	case "/m/d.m3u8":
		fmt.Fprint(w, "#EXTM3U\n#EXTINF:10,\nseg.ts\n")
	default:
		http.NotFound(w, r)
	}
}

func newTestService(f *fakeSite, genres *genrecache.Genres) *Service {
	c := f.srv.Client()
	return New(Options{
		Site:      site.New(f.srv.URL, "test-ua", c, nil),
		Resolver:  hls.NewResolver(c, f.srv.URL, "test-ua", nil),
		Genres:    genres,
		BaseURL:   f.srv.URL,
		UserAgent: "test-ua",
	})
}

func names(metas []catalog.MetaPreview) []string {
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.Name
	}
	return out
}

func TestParseExtra(t *testing.T) {
	e := ParseExtra("genre=%D0%94%D1%80%D0%B0%D0%BC%D0%B0&search=dark+knight&skip=100")
	if e.Genre != "Драма" || e.Search != "dark knight" || e.Skip != "100" {
		t.Errorf("extra = %+v", e)
	}
	if e := ParseExtra("%zz"); e != (Extra{}) {
		t.Errorf("bad extra = %+v", e)
	}
	if e := ParseExtra("genre=%zz&search=dark"); e.Search != "dark" || e.Genre != "" {
		t.Errorf("partially bad extra = %+v", e)
	}
}

func TestManifest(t *testing.T) {
	s := New(Options{
		BaseURL: "https://uakino.example/",
		Genres: &genrecache.Genres{
			Movies: []site.Genre{{Name: "Бойовик", Value: "1"}, {Name: "Драма", Value: "7"}},
		},
	})
	m := s.Manifest()
	if m.ID != ManifestID || m.Version != DefaultVersion || len(m.Catalogs) != 3 {
		t.Fatalf("manifest = %+v", m)
	}
	if m.Logo != "https://uakino.example/templates/uakino/images/logo.svg" {
		t.Errorf("logo = %q", m.Logo)
	}
	movies := m.Catalogs[1]
	if movies.ID != CatalogMovies || strings.Join(movies.Extra[0].Options, ",") != "Бойовик,Драма" {
		t.Errorf("movies catalog = %+v", movies)
	}
	if series := m.Catalogs[2]; series.Type != catalog.TypeSeries || len(series.Extra[0].Options) != 0 {
		t.Errorf("series catalog = %+v", series)
	}
	if len(m.IDPrefixes) != 1 || m.IDPrefixes[0] != "uakino:" {
		t.Errorf("idPrefixes = %v", m.IDPrefixes)
	}
}

func TestCatalog_lists(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, &genrecache.Genres{Movies: []site.Genre{{Name: "Драма", Value: "7"}}})
	ctx := context.Background()

	cases := []struct {
		typ, id string
		extra   Extra
		want    string
	}{
		{catalog.TypeMovie, CatalogPremieres, Extra{}, "Прем'єра"},
		{catalog.TypeMovie, CatalogMovies, Extra{}, "Фільм"},
		{catalog.TypeSeries, CatalogSeries, Extra{}, "Шоу"},
		{catalog.TypeMovie, CatalogMovies, Extra{Genre: "Драма"}, "Драма фільм"},
		{catalog.TypeMovie, CatalogMovies, Extra{Genre: "Невідомий"}, "Фільм"},
	}
	for _, c := range cases {
		got := names(s.Catalog(ctx, c.typ, c.id, c.extra))
		if strings.Join(got, "|") != c.want {
			t.Errorf("Catalog(%s, %s, %+v) = %v, want [%s]", c.typ, c.id, c.extra, got, c.want)
		}
	}
}

func TestCatalog_searchGroupsAndCaches(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, nil)
	ctx := context.Background()

	series := s.Catalog(ctx, catalog.TypeSeries, CatalogSeries, Extra{Search: "Темрява"})
	if len(series) != 1 || series[0].Name != "Темрява" {
		t.Fatalf("series = %+v", series)
	}
	if series[0].ID != "uakino:series:seriesss%2F10-dark.html" {
		t.Errorf("first occurrence should win, got %q", series[0].ID)
	}
	movies := s.Catalog(ctx, catalog.TypeMovie, CatalogMovies, Extra{Search: "темрява"})
	if len(movies) != 1 || movies[0].Name != "Темний фільм" {
		t.Errorf("movies = %+v", movies)
	}
	if n := f.searches.Load(); n != 1 {
		t.Errorf("upstream searches = %d, want 1 (second served from cache)", n)
	}
}

func TestCatalog_upstreamErrorIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	s := New(Options{Site: site.New(srv.URL, "", srv.Client(), nil), BaseURL: srv.URL})
	got := s.Catalog(context.Background(), catalog.TypeMovie, CatalogMovies, Extra{})
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestMeta_series(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, nil)

	meta, ok := s.Meta(context.Background(), catalog.TypeSeries, "uakino:series:seriesss%2F10-dark.html")
	if !ok {
		t.Fatal("Meta not ok")
	}
	if meta.Name != "Темрява" || meta.Type != catalog.TypeSeries || meta.Description != "Опис" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Poster != f.srv.URL+"/poster.jpg" || meta.Background == nil || *meta.Background != f.srv.URL+"/bg.jpg" {
		t.Errorf("poster/background = %q / %v", meta.Poster, meta.Background)
	}
	want := []string{
		"uakino:series:seriesss%2F10-dark.html:1:1",
		"uakino:series:seriesss%2F10-dark.html:1:2",
		"uakino:series:seriesss%2F11-dark-2.html:2:1",
		"uakino:series:seriesss%2F11-dark-2.html:2:2",
	}
	if len(meta.Videos) != len(want) {
		t.Fatalf("videos = %+v", meta.Videos)
	}
	for i, v := range meta.Videos {
		if v.ID != want[i] {
			t.Errorf("video[%d].ID = %q, want %q", i, v.ID, want[i])
		}
	}
	if meta.Videos[3].Title != "Трейлер" {
		t.Errorf("position fallback video = %+v", meta.Videos[3])
	}
}

func TestMeta_movieHasNoVideos(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, nil)
	meta, ok := s.Meta(context.Background(), catalog.TypeMovie, "uakino:movie:filmy%2F20-movie.html")
	if !ok || meta.Type != catalog.TypeMovie || meta.Name != "Темний фільм" || len(meta.Videos) != 0 {
		t.Errorf("meta = %+v, ok=%v", meta, ok)
	}
}

func TestMeta_badIDAndMissingPage(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, nil)
	if _, ok := s.Meta(context.Background(), catalog.TypeSeries, "tt0123456"); ok {
		t.Error("foreign id should not be ok")
	}
	if _, ok := s.Meta(context.Background(), catalog.TypeSeries, "uakino:series:seriesss%2F99-gone.html"); ok {
		t.Error("missing page should not be ok")
	}
}

func TestStreams_episode(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, nil)
	streams := s.Streams(context.Background(), catalog.TypeSeries, "uakino:series:seriesss%2F10-dark.html:1:1")
	if len(streams) != 2 {
		t.Fatalf("streams = %+v", streams)
	}
	if streams[0].URL != f.srv.URL+"/m/1080.m3u8" || streams[0].Title != "▶️ 1080p" {
		t.Errorf("best stream = %+v", streams[0])
	}
	if streams[1].Title != "▶️ 720p" || streams[1].Name != "UAKINO - 1 серія" {
		t.Errorf("second stream = %+v", streams[1])
	}
	h := streams[0].BehaviorHints.Headers
	if h["Referer"] != f.srv.URL || h["User-Agent"] != "test-ua" {
		t.Errorf("headers = %v", h)
	}
}

func TestStreams_failingPlayerSkipped(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, nil)
	streams := s.Streams(context.Background(), catalog.TypeSeries, "uakino:series:seriesss%2F10-dark.html:1:2")
	if len(streams) != 0 {
		t.Errorf("streams = %+v", streams)
	}
}

func TestStreams_unknownEpisodeFallsBack(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, nil)
	streams := s.Streams(context.Background(), catalog.TypeSeries, "uakino:series:seriesss%2F10-dark.html:1:9")
	if len(streams) != 2 {
		t.Errorf("fallback streams = %+v", streams)
	}
}

func TestStreams_movie(t *testing.T) {
	f := newFakeSite(t)
	s := newTestService(f, nil)
	streams := s.Streams(context.Background(), catalog.TypeMovie, "uakino:movie:filmy%2F20-movie.html")
	if len(streams) != 2 {
		t.Fatalf("streams = %+v", streams)
	}
	if streams[0].Title != "▶️ 720p" || streams[1].Title != "▶️ 480p" {
		t.Errorf("order = %q, %q", streams[0].Title, streams[1].Title)
	}
	if streams[1].Name != "UAKINO - Дивитись" || streams[1].URL != f.srv.URL+"/m/480.m3u8" {
		t.Errorf("untitled stream = %+v", streams[1])
	}
}

func TestEpisodeEntries_seasonHeaders(t *testing.T) {
	entries := []site.PlaylistEntry{
		{Header: true, Season: 1, Title: "1 Сезон"},
		{Season: 1, Title: "1 серія", File: "//p/s1e1"},
		{Header: true, Season: 2, Title: "2 Сезон"},
		{Season: 2, Title: "1 серія", File: "//p/s2e1"},
		{Season: 2, Title: "11 серія", File: "//p/s2e11"},
	}
	got := episodeEntries(entries, 2, 1)
	if len(got) != 1 || got[0].PlayerURL() != "https://p/s2e1" {
		t.Errorf("episodeEntries = %+v", got)
	}
	if got := episodeEntries(entries, 3, 1); len(got) != 3 {
		t.Errorf("missing season should fall back to all playable, got %d", len(got))
	}
}
