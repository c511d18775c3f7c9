// Package genrecache keeps the site's genre filter options in a JSON file so
// the manifest can be built without scraping on every start.
package genrecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/site"
)

// DefaultTTL is how long a saved genre file is trusted.
const DefaultTTL = 7 * 24 * time.Hour

// ErrStale is returned by Load when the file is older than the TTL.
var ErrStale = errors.New("genrecache: cache expired")

// ErrNoGenres is returned by Refresh when neither page yielded a genre.
// Nothing is saved in that case.
var ErrNoGenres = errors.New("genrecache: no genres parsed")

// Genres is the on-disk cache. Timestamp is milliseconds since the epoch.
type Genres struct {
	Timestamp int64        `json:"timestamp"`
	Movies    []site.Genre `json:"movieGenres"`
	Series    []site.Genre `json:"seriesGenres"`
}

// ForType returns the genre table for a content type.
func (g *Genres) ForType(typ string) []site.Genre {
	if g == nil {
		return nil
	}
	switch typ {
	case catalog.TypeMovie:
		return g.Movies
	case catalog.TypeSeries:
		return g.Series
	}
	return nil
}

// Names returns the genre labels for typ in page order (manifest options).
func (g *Genres) Names(typ string) []string {
	list := g.ForType(typ)
	out := make([]string, 0, len(list))
	for _, gn := range list {
		out = append(out, gn.Name)
	}
	return out
}

// Lookup maps a genre label to its filter value.
func (g *Genres) Lookup(typ, name string) (string, bool) {
	for _, gn := range g.ForType(typ) {
		if gn.Name == name {
			return gn.Value, true
		}
	}
	return "", false
}

// Empty reports whether neither table has entries.
func (g *Genres) Empty() bool {
	return g == nil || (len(g.Movies) == 0 && len(g.Series) == 0)
}

// Age is the time since the cache was written.
func (g *Genres) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(g.Timestamp))
}

// Load reads path and returns its genres when younger than ttl. A missing
// file returns an error satisfying errors.Is(err, os.ErrNotExist).
func Load(path string, ttl time.Duration, now time.Time) (*Genres, error) {
	g, err := read(path)
	if err != nil {
		return nil, err
	}
	if ttl > 0 && g.Age(now) >= ttl {
		return nil, ErrStale
	}
	return g, nil
}

func read(path string) (*Genres, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Genres
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("genrecache: decode %s: %w", path, err)
	}
	return &g, nil
}

// Save writes g to path atomically (temp file in the same dir, then rename).
func Save(path string, g *Genres) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, ".genre-cache-*.json.tmp")
	if err != nil {
		return fmt.Errorf("genrecache save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("genrecache save: write: %w", writeErr)
		}
		return fmt.Errorf("genrecache save: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("genrecache save: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("genrecache save: rename: %w", err)
	}
	return nil
}

// Fetcher scrapes the genre filter of a listing page. *site.Client implements it.
type Fetcher interface {
	Genres(ctx context.Context, listPath string) ([]site.Genre, error)
}

// Refresh scrapes both listing pages and saves the result to path. A page
// that fails to parse yields an empty table. When both tables are empty the
// file is left untouched and ErrNoGenres is returned with the empty tables.
func Refresh(ctx context.Context, f Fetcher, path string, now time.Time, log logrus.FieldLogger) (*Genres, error) {
	log = logging.Component(log, "cache")
	g := &Genres{Timestamp: now.UnixMilli()}
	var err error
	if g.Movies, err = f.Genres(ctx, site.PathMovies); err != nil {
		log.Warnf("movie genres: %v", err)
	}
	if g.Series, err = f.Genres(ctx, site.PathSeries); err != nil {
		log.Warnf("series genres: %v", err)
	}
	log.Infof("parsed %d movie and %d series genres", len(g.Movies), len(g.Series))
	if g.Empty() {
		return g, ErrNoGenres
	}
	if path == "" {
		return g, nil
	}
	if err := Save(path, g); err != nil {
		return g, err
	}
	return g, nil
}

// LoadOrRefresh returns the cached genres when fresh, otherwise scrapes and
// saves new ones. When the scrape finds nothing an expired file is still
// served. It never fails: the worst case is empty tables.
func LoadOrRefresh(ctx context.Context, f Fetcher, path string, ttl time.Duration, log logrus.FieldLogger) *Genres {
	clog := logging.Component(log, "cache")
	now := time.Now()
	var stale *Genres
	if path != "" {
		g, err := Load(path, ttl, now)
		switch {
		case err == nil:
			clog.Infof("using cached genres from %s (age %s)", path, g.Age(now).Round(time.Second))
			return g
		case errors.Is(err, os.ErrNotExist):
			clog.Infof("no genre cache at %s", path)
		case errors.Is(err, ErrStale):
			clog.Infof("genre cache %s expired", path)
			stale, _ = read(path)
		default:
			clog.Warnf("genre cache: %v", err)
		}
	}
	g, err := Refresh(ctx, f, path, now, log)
	switch {
	case errors.Is(err, ErrNoGenres) && !stale.Empty():
		clog.Warnf("genre refresh found nothing; serving expired cache (age %s)", stale.Age(now).Round(time.Second))
		return stale
	case errors.Is(err, ErrNoGenres):
		clog.Warn("genre refresh found nothing")
	case err != nil:
		clog.Warnf("save genre cache: %v", err)
	}
	return g
}
