package addon

import (
	"context"
	"regexp"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/site"
)

const defaultPlayerTitle = "Дивитись"

// Streams resolves every player offered for id to its best HLS rendition,
// best quality first. Players that fail to resolve are left out.
func (s *Service) Streams(ctx context.Context, typ, id string) []catalog.Stream {
	log := s.log("stream")
	itemID, err := catalog.ParseID(id)
	if err != nil {
		log.Warnf("stream %s: %v", id, err)
		return []catalog.Stream{}
	}
	pageURL := itemID.PageURL(s.BaseURL)
	doc, err := s.Site.Page(ctx, pageURL)
	if err != nil {
		log.Errorf("stream %s: %v", id, err)
		return []catalog.Stream{}
	}
	entries, err := s.Site.PagePlaylist(ctx, pageURL, doc)
	if err != nil {
		log.Errorf("stream %s: %v", id, err)
		return []catalog.Stream{}
	}

	var players []site.PlaylistEntry
	if itemID.IsEpisode() {
		players = episodeEntries(entries, itemID.Season, itemID.Episode)
	} else {
		players = playable(entries)
	}
	log.Debugf("stream %s: %d players", id, len(players))

	streams := s.resolvePlayers(ctx, players)
	catalog.SortStreams(streams)
	log.Infof("stream %s: %d of %d players resolved", id, len(streams), len(players))
	return streams
}

// episodeEntries picks the items of one episode (every voice-over). When
// the playlist has season headers the item must sit under the requested
// season. No match falls back to every playable item.
func episodeEntries(entries []site.PlaylistEntry, season, episode int) []site.PlaylistEntry {
	re := regexp.MustCompile(`(?i)^` + strconv.Itoa(episode) + `\s*серія`)
	headers := site.HasSeasonHeaders(entries)
	var out []site.PlaylistEntry
	for _, e := range entries {
		if !e.Playable() || (headers && e.Season != season) {
			continue
		}
		if re.MatchString(e.Title) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return playable(entries)
	}
	return out
}

func playable(entries []site.PlaylistEntry) []site.PlaylistEntry {
	var out []site.PlaylistEntry
	for _, e := range entries {
		if e.Playable() {
			out = append(out, e)
		}
	}
	return out
}

// resolvePlayers resolves players concurrently, keeping playlist order for
// equal qualities.
func (s *Service) resolvePlayers(ctx context.Context, players []site.PlaylistEntry) []catalog.Stream {
	log := s.log("stream")
	results := make([]*catalog.Stream, len(players))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i, p := range players {
		g.Go(func() error {
			playerURL := p.PlayerURL()
			res, err := s.Resolver.Resolve(gctx, playerURL)
			if err != nil {
				log.Warnf("player %s: %v", playerURL, err)
				return nil
			}
			title := p.Title
			if title == "" {
				title = defaultPlayerTitle
			}
			results[i] = &catalog.Stream{
				Name:          "UAKINO - " + title,
				Title:         "▶️ " + res.Label,
				URL:           res.URL,
				Height:        res.Height,
				BehaviorHints: catalog.BehaviorHints{Headers: s.StreamHeaders()},
			}
			return nil
		})
	}
	_ = g.Wait()

	streams := make([]catalog.Stream, 0, len(results))
	for _, st := range results {
		if st != nil {
			streams = append(streams, *st)
		}
	}
	return streams
}
