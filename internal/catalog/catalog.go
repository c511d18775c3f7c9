package catalog

import (
	"sort"
	"time"
)

// Content types understood by the player host.
const (
	TypeMovie  = "movie"
	TypeSeries = "series"
)

// MetaPreview is one catalog row.
type MetaPreview struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Poster      string  `json:"poster,omitempty"`
	Description string  `json:"description,omitempty"`
	ReleaseInfo string  `json:"releaseInfo,omitempty"`
	IMDBRating  *string `json:"imdbRating"` // null when the listing shows no rating
}

// Meta is the detail view for one title. Videos is only populated for series.
type Meta struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Poster      string  `json:"poster,omitempty"`
	Background  *string `json:"background"`
	Description string  `json:"description,omitempty"`
	Videos      []Video `json:"videos,omitempty"`
}

// Video is a single series episode.
type Video struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Season   int       `json:"season"`
	Episode  int       `json:"episode"`
	Released time.Time `json:"released"`
}

// Stream is a playable URL plus the headers the player must send with it.
type Stream struct {
	Name          string        `json:"name"`
	Title         string        `json:"title"`
	URL           string        `json:"url"`
	BehaviorHints BehaviorHints `json:"behaviorHints"`

	// Height is the selected variant's vertical resolution (0 = unknown). Used for ordering only.
	Height int `json:"-"`
}

// BehaviorHints carries the request headers for the stream URL.
type BehaviorHints struct {
	Headers map[string]string `json:"headers,omitempty"`
}

// Manifest describes the addon to the player host.
type Manifest struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Logo        string            `json:"logo,omitempty"`
	Types       []string          `json:"types"`
	Catalogs    []CatalogManifest `json:"catalogs"`
	Resources   []string          `json:"resources"`
	IDPrefixes  []string          `json:"idPrefixes,omitempty"`
}

// CatalogManifest is one catalog entry in the manifest.
type CatalogManifest struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Name  string  `json:"name"`
	Extra []Extra `json:"extra,omitempty"`
}

// Extra is a catalog filter the host may pass (genre, search).
type Extra struct {
	Name       string   `json:"name"`
	Options    []string `json:"options,omitempty"`
	IsRequired bool     `json:"isRequired"`
}

// Categorized splits scraped rows by type, preserving page order.
type Categorized struct {
	Movies []MetaPreview `json:"movies"`
	Series []MetaPreview `json:"series"`
}

// ForType returns the rows for typ; unknown types get nil.
func (c Categorized) ForType(typ string) []MetaPreview {
	switch typ {
	case TypeMovie:
		return c.Movies
	case TypeSeries:
		return c.Series
	}
	return nil
}

// Add appends m to the list matching its type.
func (c *Categorized) Add(m MetaPreview) {
	if m.Type == TypeSeries {
		c.Series = append(c.Series, m)
		return
	}
	c.Movies = append(c.Movies, m)
}

// SortVideos orders episodes by season then episode.
func SortVideos(videos []Video) {
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].Season != videos[j].Season {
			return videos[i].Season < videos[j].Season
		}
		return videos[i].Episode < videos[j].Episode
	})
}

// SortStreams orders streams best quality first; equal heights keep player order.
func SortStreams(streams []Stream) {
	sort.SliceStable(streams, func(i, j int) bool {
		return streams[i].Height > streams[j].Height
	})
}

// StringPtr returns nil for "" and &s otherwise (nullable JSON fields).
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
