package addon

import (
	"context"
	"net/url"
	"strings"

	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/site"
)

// Extra holds the catalog filters passed by the host.
type Extra struct {
	Search string
	Genre  string
	Skip   string
}

// ParseExtra decodes the extra path segment ("genre=Драма&search=x").
// Pairs that fail to decode are skipped; the others still apply.
func ParseExtra(raw string) Extra {
	q, _ := url.ParseQuery(raw)
	return Extra{
		Search: strings.TrimSpace(q.Get("search")),
		Genre:  strings.TrimSpace(q.Get("genre")),
		Skip:   q.Get("skip"),
	}
}

// Catalog returns the rows of catalog id for typ.
func (s *Service) Catalog(ctx context.Context, typ, id string, extra Extra) []catalog.MetaPreview {
	log := s.log("catalog")
	if extra.Search != "" {
		res, err := s.search(ctx, extra.Search)
		if err != nil {
			log.Errorf("search %q: %v", extra.Search, err)
			return []catalog.MetaPreview{}
		}
		return nonNil(res.ForType(typ))
	}

	pageURL, selector := s.listing(typ, id, extra.Genre)
	log.Debugf("catalog %s/%s from %s", typ, id, pageURL)
	res, err := s.Site.List(ctx, pageURL, selector)
	if err != nil {
		log.Errorf("catalog %s/%s: %v", typ, id, err)
		return []catalog.MetaPreview{}
	}
	metas := nonNil(res.ForType(typ))
	log.Infof("catalog %s/%s: %d items", typ, id, len(metas))
	return metas
}

// listing picks the page and row selector for a non-search catalog request.
func (s *Service) listing(typ, id, genre string) (pageURL, selector string) {
	if id == CatalogPremieres {
		return s.Site.URL("/"), site.SelectorPremieres
	}
	if genre != "" {
		if value, ok := s.Genres().Lookup(typ, genre); ok {
			return s.Site.GenreURL(value), site.SelectorItems
		}
		s.log("catalog").Warnf("unknown %s genre %q, using default list", typ, genre)
	}
	if typ == catalog.TypeSeries {
		return s.Site.URL(site.PathSeries), site.SelectorItems
	}
	return s.Site.URL(site.PathMovies), site.SelectorItems
}

// search serves a query from the cache or the site. Series rows for
// different seasons of one show are grouped before caching.
func (s *Service) search(ctx context.Context, query string) (catalog.Categorized, error) {
	if res, ok := s.Search.Get(ctx, query); ok {
		return res, nil
	}
	res, err := s.Site.Search(ctx, query)
	if err != nil {
		return catalog.Categorized{}, err
	}
	before := len(res.Series)
	res.Series = site.GroupSeries(res.Series)
	s.log("catalog").Debugf("search %q: %d movies, %d series (%d before grouping)", query, len(res.Movies), len(res.Series), before)
	s.Search.Put(ctx, query, res)
	return res, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
