package site

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/snapetech/uakino-gateway/internal/catalog"
)

// Genre is one option of the genre filter. Value goes into the filter URL.
type Genre struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var (
	reNewsID      = regexp.MustCompile(`(\d+)-`)
	reEditTime    = regexp.MustCompile(`var dle_edittime\s*=\s*'(\d+)'`)
	reSeasonNum   = regexp.MustCompile(`(?i)(\d+)\s*сезон`)
	reEpisodeNum  = regexp.MustCompile(`(?i)(\d+)\s*серія`)
	reSeasonWord  = regexp.MustCompile(`(?i)сезон`)
	reTitleSeason = regexp.MustCompile(`(?i)\s*\d+\s*сезон`)
	reBaseName    = regexp.MustCompile(`(?i)\s*\(\d+\s*сезон\)|\s*\d+\s*сезон`)
)

// seriesSections are the site sections whose titles are always series.
var seriesSections = []string{"/seriesss/", "/cartoon/cartoonseries/", "/animeukr/"}

// ParseGenres reads the genre filter select. The "all genres" option and
// options without a value or label are skipped; page order is kept.
func ParseGenres(doc *goquery.Document) []Genre {
	var out []Genre
	doc.Find(`select[name="o.cat"] option`).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Text())
		value, _ := s.Attr("value")
		value = strings.TrimSpace(value)
		if name == "" || value == "" || strings.EqualFold(name, "всі жанри") {
			return
		}
		out = append(out, Genre{Name: name, Value: value})
	})
	return out
}

// ParseItems parses listing rows matched by selector into catalog rows.
// Rows without a title link are skipped.
func ParseItems(doc *goquery.Document, selector, baseURL string) catalog.Categorized {
	var res catalog.Categorized
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if m, ok := parseItem(s, baseURL); ok {
			res.Add(m)
		}
	})
	return res
}

func parseItem(s *goquery.Selection, baseURL string) (catalog.MetaPreview, bool) {
	link := s.Find("a.movie-title").First()
	title := strings.TrimSpace(link.Text())
	if title == "" {
		return catalog.MetaPreview{}, false
	}
	href, _ := link.Attr("href")
	typ := catalog.TypeMovie
	if IsSeries(title, href) {
		typ = catalog.TypeSeries
	}
	id, err := catalog.NewItemID(typ, absURL(baseURL, href))
	if err != nil {
		return catalog.MetaPreview{}, false
	}
	name := title
	if badge := strings.TrimSpace(s.Find(".full-season").First().Text()); badge != "" {
		name = title + " (" + badge + ")"
	}
	poster, _ := s.Find("img").First().Attr("src")
	return catalog.MetaPreview{
		ID:          id.String(),
		Type:        typ,
		Name:        name,
		Poster:      absURL(baseURL, poster),
		Description: strings.TrimSpace(s.Find(".movie-text .desc-about-text, .movie-desc").Text()),
		ReleaseInfo: labelValue(s, "Рік виходу:"),
		IMDBRating:  catalog.StringPtr(labelValue(s, "IMDB:")),
	}, true
}

// labelValue returns the text of the element following the first label
// containing label.
func labelValue(s *goquery.Selection, label string) string {
	l := s.Find(".movie-desk-item, .fi-label").FilterFunction(func(_ int, l *goquery.Selection) bool {
		return strings.Contains(l.Text(), label)
	}).First()
	return strings.TrimSpace(l.Next().Text())
}

// IsSeries reports whether a listing row is a series: the title mentions a
// season or the page lives in a series section.
func IsSeries(title, href string) bool {
	if reSeasonWord.MatchString(title) {
		return true
	}
	for _, sec := range seriesSections {
		if strings.Contains(href, sec) {
			return true
		}
	}
	return false
}

// BaseName strips the first season marker ("(2 сезон)" or " 2 сезон").
func BaseName(name string) string {
	return strings.TrimSpace(removeFirst(reBaseName, name))
}

// StripSeason strips the first " N сезон" from a title page heading.
func StripSeason(name string) string {
	return strings.TrimSpace(removeFirst(reTitleSeason, name))
}

func removeFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

// GroupSeries collapses search results for several seasons of one show into
// a single row. The first row of each base name wins and takes that name.
func GroupSeries(series []catalog.MetaPreview) []catalog.MetaPreview {
	seen := make(map[string]bool, len(series))
	out := make([]catalog.MetaPreview, 0, len(series))
	for _, m := range series {
		base := BaseName(m.Name)
		if seen[base] {
			continue
		}
		seen[base] = true
		m.Name = base
		out = append(out, m)
	}
	return out
}

// TitlePage is the detail section of a title page.
type TitlePage struct {
	Name        string // heading as shown, season suffix included
	Poster      string
	Description string
	Background  string
	Seasons     []SeasonLink // other seasons, page order
}

// SeasonLink is one entry of the season switcher.
type SeasonLink struct {
	URL  string
	Name string
}

// ParseTitlePage extracts the detail fields of a title page.
func ParseTitlePage(doc *goquery.Document, baseURL string) TitlePage {
	name := strings.TrimSpace(doc.Find(`h1[itemprop="name"]`).First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("h1 span.solototle").First().Text())
	}
	poster, _ := doc.Find("div.film-poster img").First().Attr("src")
	bg, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	tp := TitlePage{
		Name:        name,
		Poster:      absURL(baseURL, poster),
		Description: strings.TrimSpace(doc.Find(`.full-text.clearfix[itemprop="description"]`).Text()),
		Background:  absURL(baseURL, bg),
	}
	doc.Find("ul.seasons li a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.TrimSpace(href) == "" {
			return
		}
		tp.Seasons = append(tp.Seasons, SeasonLink{
			URL:  absURL(baseURL, href),
			Name: strings.TrimSpace(s.Text()),
		})
	})
	return tp
}

// NewsID returns the numeric article id embedded in a page URL ("/123-name.html").
func NewsID(pageURL string) (string, bool) {
	m := reNewsID.FindStringSubmatch(pageURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// EditTime returns the dle_edittime value set by an inline script.
func EditTime(doc *goquery.Document) (string, bool) {
	var out string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := reEditTime.FindStringSubmatch(s.Text()); m != nil {
			out = m[1]
			return false
		}
		return true
	})
	return out, out != ""
}

// SeasonNumber parses "N сезон" out of a season link or heading.
func SeasonNumber(text string) (int, bool) {
	return firstInt(reSeasonNum, text)
}

// EpisodeNumber parses "N серія" out of a playlist item title.
func EpisodeNumber(title string) (int, bool) {
	return firstInt(reEpisodeNum, title)
}

func firstInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// PlaylistEntry is one row of the playlist fragment: a season header or a
// playable item.
type PlaylistEntry struct {
	Header bool
	// Season is the header's number, or for items the number of the
	// closest preceding header (0 when there is none).
	Season int
	Title  string
	File   string // player page URL; empty for headers
	Voice  string
}

// Playable reports whether the entry links to a player page.
func (e PlaylistEntry) Playable() bool {
	return !e.Header && e.File != ""
}

// PlayerURL returns File with protocol-relative URLs completed to https.
func (e PlaylistEntry) PlayerURL() string {
	if strings.HasPrefix(e.File, "//") {
		return "https:" + e.File
	}
	return e.File
}

// ParsePlaylist parses the HTML fragment returned by the playlist endpoint.
func ParsePlaylist(fragment string) ([]PlaylistEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("site: parse playlist: %w", err)
	}
	var (
		out     []PlaylistEntry
		current int
	)
	doc.Find(".playlists-items > ul > li").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Text())
		if s.HasClass("playlists-season") {
			if n, ok := SeasonNumber(title); ok {
				current = n
			}
			out = append(out, PlaylistEntry{Header: true, Season: current, Title: title})
			return
		}
		file, _ := s.Attr("data-file")
		voice, _ := s.Attr("data-voice")
		out = append(out, PlaylistEntry{
			Season: current,
			Title:  title,
			File:   strings.TrimSpace(file),
			Voice:  strings.TrimSpace(voice),
		})
	})
	return out, nil
}

// HasSeasonHeaders reports whether the playlist is split by season headers.
func HasSeasonHeaders(entries []PlaylistEntry) bool {
	for _, e := range entries {
		if e.Header {
			return true
		}
	}
	return false
}

// absURL resolves a site-relative or protocol-relative reference against
// baseURL. Empty stays empty.
func absURL(baseURL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
