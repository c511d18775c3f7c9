package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// IDPrefix starts every item id this addon emits.
const IDPrefix = "uakino"

// ErrBadID is returned by ParseID for ids this addon did not produce.
var ErrBadID = errors.New("catalog: malformed item id")

// ItemID identifies a title page, or an episode within a season page.
//
//	uakino:<type>:<escaped path>
//	uakino:<type>:<escaped season path>:<season>:<episode>
//
// Path is the site path without the leading slash; it is escaped as a
// single component; ':' is escaped too so it cannot collide with the
// separator.
type ItemID struct {
	Type    string
	Path    string
	Season  int
	Episode int
}

// IsEpisode reports whether the id points at one episode.
func (id ItemID) IsEpisode() bool {
	return id.Season > 0 || id.Episode > 0
}

// Title returns the title-level id (season/episode dropped).
func (id ItemID) Title() ItemID {
	return ItemID{Type: id.Type, Path: id.Path}
}

func (id ItemID) String() string {
	s := IDPrefix + ":" + id.Type + ":" + escapePath(id.Path)
	if id.IsEpisode() {
		s += ":" + strconv.Itoa(id.Season) + ":" + strconv.Itoa(id.Episode)
	}
	return s
}

func escapePath(p string) string {
	return strings.ReplaceAll(url.PathEscape(p), ":", "%3A")
}

// PageURL joins the id path onto the site base URL.
func (id ItemID) PageURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + id.Path
}

// NewItemID builds an id from a page URL or site path.
// Absolute URLs and site-relative hrefs both resolve to the path only.
func NewItemID(typ, pageURL string) (ItemID, error) {
	p, err := SitePath(pageURL)
	if err != nil {
		return ItemID{}, err
	}
	return ItemID{Type: typ, Path: p}, nil
}

// SitePath returns the path of pageURL without the leading slash.
func SitePath(pageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", fmt.Errorf("catalog: parse page url %q: %w", pageURL, err)
	}
	p := strings.TrimPrefix(u.Path, "/")
	if p == "" {
		return "", fmt.Errorf("catalog: page url %q has no path", pageURL)
	}
	return p, nil
}

// ParseID decodes an id produced by ItemID.String.
func ParseID(s string) (ItemID, error) {
	parts := strings.Split(s, ":")
	if (len(parts) != 3 && len(parts) != 5) || parts[0] != IDPrefix || parts[2] == "" {
		return ItemID{}, fmt.Errorf("%w: %q", ErrBadID, s)
	}
	p, err := url.PathUnescape(parts[2])
	if err != nil {
		return ItemID{}, fmt.Errorf("%w: %q: %v", ErrBadID, s, err)
	}
	id := ItemID{Type: parts[1], Path: strings.TrimPrefix(p, "/")}
	if len(parts) == 5 {
		season, err1 := strconv.Atoi(parts[3])
		episode, err2 := strconv.Atoi(parts[4])
		if err1 != nil || err2 != nil {
			return ItemID{}, fmt.Errorf("%w: %q: bad season/episode", ErrBadID, s)
		}
		id.Season, id.Episode = season, episode
	}
	return id, nil
}
