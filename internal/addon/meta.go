package addon

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/site"
)

// seasonPage is one page of a series: the requested page or a season link.
type seasonPage struct {
	url  string
	name string
	doc  *goquery.Document
}

type episodeKey struct{ season, episode int }

// Meta returns the detail view for id. ok is false when the id is not ours
// or the title page cannot be fetched; the host then gets an empty object.
func (s *Service) Meta(ctx context.Context, typ, id string) (catalog.Meta, bool) {
	log := s.log("meta")
	itemID, err := catalog.ParseID(id)
	if err != nil {
		log.Warnf("meta %s: %v", id, err)
		return catalog.Meta{}, false
	}
	pageURL := itemID.Title().PageURL(s.BaseURL)
	doc, err := s.Site.Page(ctx, pageURL)
	if err != nil {
		log.Errorf("meta %s: %v", id, err)
		return catalog.Meta{}, false
	}
	tp := site.ParseTitlePage(doc, s.BaseURL)
	if itemID.Type == "" {
		itemID.Type = typ
	}
	meta := catalog.Meta{
		ID:          itemID.String(),
		Type:        itemID.Type,
		Name:        site.StripSeason(tp.Name),
		Poster:      tp.Poster,
		Background:  catalog.StringPtr(tp.Background),
		Description: tp.Description,
	}
	if meta.Type != catalog.TypeSeries {
		return meta, true
	}

	pages := make([]seasonPage, 0, len(tp.Seasons)+1)
	pages = append(pages, seasonPage{url: pageURL, name: tp.Name, doc: doc})
	for _, l := range tp.Seasons {
		pages = append(pages, seasonPage{url: l.URL, name: l.Name})
	}
	log.Debugf("meta %s: %d season pages", id, len(pages))
	meta.Videos = s.episodes(ctx, itemID.Type, pages)
	log.Infof("meta %q: %d episodes", meta.Name, len(meta.Videos))
	return meta, true
}

// episodes fetches every season page and its playlist concurrently and
// flattens them into sorted videos. Failing seasons are skipped.
func (s *Service) episodes(ctx context.Context, typ string, pages []seasonPage) []catalog.Video {
	log := s.log("meta")
	perSeason := make([][]catalog.Video, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i := range pages {
		g.Go(func() error {
			p := pages[i]
			if p.doc == nil {
				doc, err := s.Site.Page(gctx, p.url)
				if err != nil {
					log.Warnf("season page %s: %v", p.url, err)
					return nil
				}
				p.doc = doc
			}
			entries, err := s.Site.PagePlaylist(gctx, p.url, p.doc)
			if err != nil {
				log.Warnf("season playlist %s: %v", p.url, err)
				return nil
			}
			seasonPath, err := catalog.SitePath(p.url)
			if err != nil {
				log.Warnf("season page %s: %v", p.url, err)
				return nil
			}
			season, ok := site.SeasonNumber(p.name)
			if !ok {
				season = i + 1
			}
			perSeason[i] = seasonVideos(typ, seasonPath, season, entries, s.now())
			return nil
		})
	}
	_ = g.Wait()

	var videos []catalog.Video
	seen := make(map[episodeKey]bool)
	for _, vs := range perSeason {
		for _, v := range vs {
			k := episodeKey{v.Season, v.Episode}
			if seen[k] {
				continue
			}
			seen[k] = true
			videos = append(videos, v)
		}
	}
	catalog.SortVideos(videos)
	return videos
}

// seasonVideos turns the playable entries of one season page into videos.
// Entries under a season header take the header's number; otherwise the
// page's season applies. Episode numbers come from "N серія" or fall back
// to the item's position among playable items.
func seasonVideos(typ, seasonPath string, season int, entries []site.PlaylistEntry, released time.Time) []catalog.Video {
	var out []catalog.Video
	n := 0
	for _, e := range entries {
		if !e.Playable() {
			continue
		}
		n++
		sn := season
		if e.Season > 0 {
			sn = e.Season
		}
		ep, ok := site.EpisodeNumber(e.Title)
		if !ok {
			ep = n
		}
		id := catalog.ItemID{Type: typ, Path: seasonPath, Season: sn, Episode: ep}
		out = append(out, catalog.Video{
			ID:       id.String(),
			Title:    e.Title,
			Season:   sn,
			Episode:  ep,
			Released: released,
		})
	}
	return out
}
