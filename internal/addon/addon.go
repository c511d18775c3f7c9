// Package addon implements the catalog, meta and stream resources of the
// addon on top of the site scraper, the HLS resolver and the caches.
//
// Handlers never fail because of upstream errors: they log and return an
// empty result, which the player host shows as "nothing found".
package addon

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/genrecache"
	"github.com/snapetech/uakino-gateway/internal/hls"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/searchcache"
	"github.com/snapetech/uakino-gateway/internal/site"
)

// Scraper is the part of *site.Client the service uses.
type Scraper interface {
	URL(path string) string
	GenreURL(value string) string
	List(ctx context.Context, pageURL, selector string) (catalog.Categorized, error)
	Search(ctx context.Context, query string) (catalog.Categorized, error)
	Page(ctx context.Context, pageURL string) (*goquery.Document, error)
	PagePlaylist(ctx context.Context, pageURL string, doc *goquery.Document) ([]site.PlaylistEntry, error)
}

// StreamResolver turns a player page into a playable rendition. *hls.Resolver implements it.
type StreamResolver interface {
	Resolve(ctx context.Context, playerURL string) (hls.Result, error)
}

// DefaultPlayerConcurrency bounds concurrent player and season fetches per request.
const DefaultPlayerConcurrency = 4

// Service answers addon requests. Use New; the zero value is not usable.
type Service struct {
	Site        Scraper
	Resolver    StreamResolver
	Search      *searchcache.Cache
	BaseURL     string
	UserAgent   string
	Concurrency int
	Version     string
	Log         logrus.FieldLogger

	now func() time.Time

	mu     sync.RWMutex
	genres *genrecache.Genres
}

// Options configures New.
type Options struct {
	Site        Scraper
	Resolver    StreamResolver
	Search      *searchcache.Cache
	Genres      *genrecache.Genres
	BaseURL     string
	UserAgent   string
	Concurrency int
	Version     string
	Log         logrus.FieldLogger
}

// New returns a Service. A nil Search cache gets a memory-only default.
func New(opts Options) *Service {
	if opts.Search == nil {
		opts.Search = searchcache.New(searchcache.DefaultTTL, nil, opts.Log)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultPlayerConcurrency
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	return &Service{
		Site:        opts.Site,
		Resolver:    opts.Resolver,
		Search:      opts.Search,
		BaseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		UserAgent:   opts.UserAgent,
		Concurrency: opts.Concurrency,
		Version:     opts.Version,
		Log:         opts.Log,
		now:         time.Now,
		genres:      opts.Genres,
	}
}

// SetGenres replaces the genre tables (after a refresh).
func (s *Service) SetGenres(g *genrecache.Genres) {
	s.mu.Lock()
	s.genres = g
	s.mu.Unlock()
}

// Genres returns the current genre tables; nil until loaded.
func (s *Service) Genres() *genrecache.Genres {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.genres
}

// StreamHeaders are the headers the player must send to the CDN.
func (s *Service) StreamHeaders() map[string]string {
	h := map[string]string{"Referer": s.BaseURL}
	if s.UserAgent != "" {
		h["User-Agent"] = s.UserAgent
	}
	return h
}

func (s *Service) log(component string) *logrus.Entry {
	return logging.Component(s.Log, component)
}

var (
	_ Scraper        = (*site.Client)(nil)
	_ StreamResolver = (*hls.Resolver)(nil)
)
