// Package strmfs exports the addon catalog as a read-only tree of .strm
// files for media centers that index folders (Kodi, Jellyfin):
//
//	Movies/Name (Year).strm
//	TV/Show (Year)/Season 01/Show - s01e01.strm
//
// Listings are snapshotted at mount time. Series episodes are fetched on
// first access and stream URLs are resolved when a file is opened.
package strmfs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/uakino-gateway/internal/addon"
	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/site"
)

// ErrNoStream is returned when no player of a title resolves.
var ErrNoStream = errors.New("strmfs: no playable stream")

// Source is the addon backend. *addon.Service implements it.
type Source interface {
	Catalog(ctx context.Context, typ, id string, extra addon.Extra) []catalog.MetaPreview
	Meta(ctx context.Context, typ, id string) (catalog.Meta, bool)
	Streams(ctx context.Context, typ, id string) []catalog.Stream
}

var _ Source = (*addon.Service)(nil)

// Server is a mounted filesystem (*fuse.Server on linux).
type Server interface {
	Wait()
	Unmount() error
}

// Title is one movie file or show folder.
type Title struct {
	ID   string
	Name string // entry name in its parent directory
}

// Library is the snapshot the filesystem serves.
type Library struct {
	src Source
	log logrus.FieldLogger

	Movies []Title
	Series []Title

	movieByName map[string]Title
	showByName  map[string]Title

	mu       sync.Mutex
	episodes map[string][]catalog.Video // show id -> sorted videos
}

// NewLibrary snapshots the movie and series catalogs of src.
func NewLibrary(ctx context.Context, src Source, log logrus.FieldLogger) *Library {
	l := &Library{
		src:      src,
		log:      logging.Component(log, "strmfs"),
		episodes: make(map[string][]catalog.Video),
	}
	movies := src.Catalog(ctx, catalog.TypeMovie, addon.CatalogMovies, addon.Extra{})
	series := src.Catalog(ctx, catalog.TypeSeries, addon.CatalogSeries, addon.Extra{})
	l.Movies = buildTitles(movies, func(m catalog.MetaPreview) string {
		return MovieFileName(m.Name, year(m.ReleaseInfo))
	}, ".strm")
	l.Series = buildTitles(series, func(m catalog.MetaPreview) string {
		return ShowDirName(m.Name, year(m.ReleaseInfo))
	}, "")
	l.movieByName = index(l.Movies)
	l.showByName = index(l.Series)
	l.log.Infof("library: %d movies, %d shows", len(l.Movies), len(l.Series))
	return l
}

// buildTitles names rows with nameOf and disambiguates duplicates by news id.
// ext is stripped before the suffix is added and restored after.
func buildTitles(rows []catalog.MetaPreview, nameOf func(catalog.MetaPreview) string, ext string) []Title {
	seen := make(map[string]bool, len(rows))
	var keys, names, tags []string
	for _, m := range rows {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		keys = append(keys, m.ID)
		names = append(names, strings.TrimSuffix(nameOf(m), ext))
		tags = append(tags, tagFor(m.ID))
	}
	unique := uniqueNames(keys, names, tags)
	out := make([]Title, 0, len(keys))
	for _, k := range keys {
		out = append(out, Title{ID: k, Name: unique[k] + ext})
	}
	return out
}

func tagFor(id string) string {
	if itemID, err := catalog.ParseID(id); err == nil {
		if n, ok := site.NewsID(itemID.Path); ok {
			return n
		}
		return itemID.Path
	}
	return id
}

func index(titles []Title) map[string]Title {
	m := make(map[string]Title, len(titles))
	for _, t := range titles {
		m[t.Name] = t
	}
	return m
}

func year(releaseInfo string) int {
	y, err := strconv.Atoi(strings.TrimSpace(releaseInfo))
	if err != nil || y < 1800 {
		return 0
	}
	return y
}

// Movie looks up a movie by file name.
func (l *Library) Movie(name string) (Title, bool) {
	t, ok := l.movieByName[name]
	return t, ok
}

// Show looks up a show by folder name.
func (l *Library) Show(name string) (Title, bool) {
	t, ok := l.showByName[name]
	return t, ok
}

// Episodes returns the show's videos, fetching its meta on first use.
// Failed fetches are not cached.
func (l *Library) Episodes(ctx context.Context, show Title) []catalog.Video {
	l.mu.Lock()
	v, ok := l.episodes[show.ID]
	l.mu.Unlock()
	if ok {
		return v
	}
	meta, ok := l.src.Meta(ctx, catalog.TypeSeries, show.ID)
	if !ok {
		l.log.Warnf("meta %s unavailable", show.ID)
		return nil
	}
	l.mu.Lock()
	l.episodes[show.ID] = meta.Videos
	l.mu.Unlock()
	return meta.Videos
}

// Seasons returns the distinct season numbers of show, ascending.
func (l *Library) Seasons(ctx context.Context, show Title) []int {
	seen := map[int]bool{}
	var out []int
	for _, v := range l.Episodes(ctx, show) {
		if !seen[v.Season] {
			seen[v.Season] = true
			out = append(out, v.Season)
		}
	}
	sort.Ints(out)
	return out
}

// SeasonEpisodes returns the episodes of one season.
func (l *Library) SeasonEpisodes(ctx context.Context, show Title, season int) []catalog.Video {
	var out []catalog.Video
	for _, v := range l.Episodes(ctx, show) {
		if v.Season == season {
			out = append(out, v)
		}
	}
	return out
}

// StrmContent resolves id to its best stream and renders the .strm body.
// Request headers are appended Kodi-style ("url|Referer=..&User-Agent=..").
func (l *Library) StrmContent(ctx context.Context, typ, id string) ([]byte, error) {
	streams := l.src.Streams(ctx, typ, id)
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStream, id)
	}
	return []byte(strmLine(streams[0]) + "\n"), nil
}

func strmLine(s catalog.Stream) string {
	h := s.BehaviorHints.Headers
	if len(h) == 0 {
		return s.URL
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+url.QueryEscape(h[k]))
	}
	return s.URL + "|" + strings.Join(parts, "&")
}
