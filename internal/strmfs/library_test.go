package strmfs

import (
	"context"
	"errors"
	"testing"

	"github.com/snapetech/uakino-gateway/internal/addon"
	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/logging"
)

type fakeSource struct {
	metaCalls int
	streams   map[string][]catalog.Stream
}

func (f *fakeSource) Catalog(_ context.Context, typ, id string, _ addon.Extra) []catalog.MetaPreview {
	switch id {
	case addon.CatalogMovies:
		return []catalog.MetaPreview{
			{ID: "uakino:movie:filmy%2F101-dune.html", Type: typ, Name: "Дюна", ReleaseInfo: "2021"},
			{ID: "uakino:movie:filmy%2F202-dune.html", Type: typ, Name: "Дюна", ReleaseInfo: "2021"},
			{ID: "uakino:movie:filmy%2F303-up.html", Type: typ, Name: "Вгору"},
			{ID: "uakino:movie:filmy%2F303-up.html", Type: typ, Name: "Вгору"},
		}
	case addon.CatalogSeries:
		return []catalog.MetaPreview{
			{ID: "uakino:series:seriesss%2F10-dark.html", Type: typ, Name: "Темні", ReleaseInfo: "2017"},
		}
	}
	return nil
}

func (f *fakeSource) Meta(_ context.Context, typ, id string) (catalog.Meta, bool) {
	f.metaCalls++
	if id != "uakino:series:seriesss%2F10-dark.html" {
		return catalog.Meta{}, false
	}
	return catalog.Meta{ID: id, Type: typ, Videos: []catalog.Video{
		{ID: id + ":1:1", Season: 1, Episode: 1},
		{ID: id + ":1:2", Season: 1, Episode: 2},
		{ID: id + ":2:1", Season: 2, Episode: 1},
	}}, true
}

func (f *fakeSource) Streams(_ context.Context, _, id string) []catalog.Stream {
	return f.streams[id]
}

func TestNewLibrary_Names(t *testing.T) {
	lib := NewLibrary(context.Background(), &fakeSource{}, logging.Discard())
	if len(lib.Movies) != 3 {
		t.Fatalf("movies = %+v", lib.Movies)
	}
	want := []string{"Дюна (2021) [101].strm", "Дюна (2021) [202].strm", "Вгору.strm"}
	for i, m := range lib.Movies {
		if m.Name != want[i] {
			t.Errorf("movie %d = %q, want %q", i, m.Name, want[i])
		}
	}
	if m, ok := lib.Movie("Вгору.strm"); !ok || m.ID != "uakino:movie:filmy%2F303-up.html" {
		t.Errorf("Movie lookup = %+v, %v", m, ok)
	}
	if s, ok := lib.Show("Темні (2017)"); !ok || s.ID != "uakino:series:seriesss%2F10-dark.html" {
		t.Errorf("Show lookup = %+v, %v", s, ok)
	}
}

func TestLibrary_EpisodesCached(t *testing.T) {
	src := &fakeSource{}
	lib := NewLibrary(context.Background(), src, logging.Discard())
	show, _ := lib.Show("Темні (2017)")

	if got := lib.Seasons(context.Background(), show); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("seasons = %v", got)
	}
	if got := lib.SeasonEpisodes(context.Background(), show, 1); len(got) != 2 {
		t.Errorf("season 1 = %+v", got)
	}
	if src.metaCalls != 1 {
		t.Errorf("meta calls = %d, want 1", src.metaCalls)
	}

	missing := Title{ID: "uakino:series:nope", Name: "x"}
	lib.Episodes(context.Background(), missing)
	lib.Episodes(context.Background(), missing)
	if src.metaCalls != 3 {
		t.Errorf("failed meta should not be cached: calls = %d", src.metaCalls)
	}
}

func TestLibrary_StrmContent(t *testing.T) {
	src := &fakeSource{streams: map[string][]catalog.Stream{
		"m": {{
			URL: "https://cdn/x.m3u8",
			BehaviorHints: catalog.BehaviorHints{Headers: map[string]string{
				"User-Agent": "UA 1.0",
				"Referer":    "https://uakino.best/",
			}},
		}},
		"plain": {{URL: "https://cdn/y.m3u8"}},
	}}
	lib := NewLibrary(context.Background(), src, logging.Discard())

	got, err := lib.StrmContent(context.Background(), catalog.TypeMovie, "m")
	if err != nil {
		t.Fatal(err)
	}
	if want := "https://cdn/x.m3u8|Referer=https%3A%2F%2Fuakino.best%2F&User-Agent=UA+1.0\n"; string(got) != want {
		t.Errorf("strm = %q, want %q", got, want)
	}
	got, _ = lib.StrmContent(context.Background(), catalog.TypeMovie, "plain")
	if string(got) != "https://cdn/y.m3u8\n" {
		t.Errorf("plain strm = %q", got)
	}
	if _, err := lib.StrmContent(context.Background(), catalog.TypeMovie, "none"); !errors.Is(err, ErrNoStream) {
		t.Errorf("err = %v, want ErrNoStream", err)
	}
}
