// Package site scrapes the uakino.best listing, search, title and playlist
// pages. Client does the HTTP; the Parse* functions are pure and work on
// already-fetched documents.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/snapetech/uakino-gateway/internal/catalog"
	"github.com/snapetech/uakino-gateway/internal/httpclient"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/metrics"
)

// Listing selectors. Premieres live in the home page slider; every other
// listing (category, genre filter, search) uses the plain item grid.
const (
	SelectorPremieres = ".top-header .swiper-slide.movie-item"
	SelectorItems     = "div.movie-item"
)

// Site paths.
const (
	PathMovies = "/filmy/"
	PathSeries = "/seriesss/"
)

const maxBodySize = 8 << 20

// Client fetches and parses site pages.
type Client struct {
	BaseURL   string // e.g. https://uakino.best
	UserAgent string
	HTTP      *http.Client // nil uses httpclient.Default()
	Log       logrus.FieldLogger
}

// New returns a client for baseURL.
func New(baseURL, userAgent string, hc *http.Client, log logrus.FieldLogger) *Client {
	return &Client{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		UserAgent: userAgent,
		HTTP:      hc,
		Log:       logging.Component(log, "site"),
	}
}

// URL joins a site path onto BaseURL.
func (c *Client) URL(path string) string {
	return c.BaseURL + "/" + strings.TrimPrefix(path, "/")
}

// GenreURL is the filter listing for one genre value.
func (c *Client) GenreURL(value string) string {
	return c.URL("/f/o.cat=" + value + "/")
}

// Genres parses the genre filter on a listing page (PathMovies or PathSeries).
func (c *Client) Genres(ctx context.Context, listPath string) ([]Genre, error) {
	doc, err := c.getDocument(ctx, "genres", c.URL(listPath))
	if err != nil {
		return nil, err
	}
	return ParseGenres(doc), nil
}

// List fetches pageURL and parses the rows matched by selector.
func (c *Client) List(ctx context.Context, pageURL, selector string) (catalog.Categorized, error) {
	doc, err := c.getDocument(ctx, "list", pageURL)
	if err != nil {
		return catalog.Categorized{}, err
	}
	res := ParseItems(doc, selector, c.BaseURL)
	c.logger().Debugf("parsed %s with %q: %d movies, %d series", pageURL, selector, len(res.Movies), len(res.Series))
	return res, nil
}

// Search posts the site search form and parses the result grid.
func (c *Client) Search(ctx context.Context, query string) (catalog.Categorized, error) {
	form := url.Values{
		"do":        {"search"},
		"subaction": {"search"},
		"story":     {query},
	}
	searchURL := c.URL("/index.php?do=search")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return catalog.Categorized{}, fmt.Errorf("site: search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	doc, err := c.document(req, "search")
	if err != nil {
		return catalog.Categorized{}, err
	}
	return ParseItems(doc, SelectorItems, c.BaseURL), nil
}

// Page fetches and parses a title page.
func (c *Client) Page(ctx context.Context, pageURL string) (*goquery.Document, error) {
	return c.getDocument(ctx, "page", pageURL)
}

// Playlist fetches the ajax playlist fragment for a title page. referer must
// be the title page URL; the endpoint returns an empty response without it.
func (c *Client) Playlist(ctx context.Context, newsID, editTime, referer string) (string, error) {
	q := url.Values{
		"news_id": {newsID},
		"xfield":  {"playlist"},
		"time":    {editTime},
	}
	playlistURL := c.URL("/engine/ajax/playlists.php") + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return "", fmt.Errorf("site: playlist: build request: %w", err)
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	body, err := c.do(req, "playlist")
	if err != nil {
		return "", err
	}
	defer body.Close()
	var out struct {
		Success  bool   `json:"success"`
		Response string `json:"response"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxBodySize)).Decode(&out); err != nil {
		return "", fmt.Errorf("site: playlist %s: decode: %w", newsID, err)
	}
	return out.Response, nil
}

// PagePlaylist resolves the playlist of an already-fetched title page.
func (c *Client) PagePlaylist(ctx context.Context, pageURL string, doc *goquery.Document) ([]PlaylistEntry, error) {
	newsID, ok := NewsID(pageURL)
	if !ok {
		return nil, fmt.Errorf("site: no news id in %s", pageURL)
	}
	editTime, ok := EditTime(doc)
	if !ok {
		return nil, fmt.Errorf("site: no dle_edittime on %s", pageURL)
	}
	fragment, err := c.Playlist(ctx, newsID, editTime, pageURL)
	if err != nil {
		return nil, err
	}
	return ParsePlaylist(fragment)
}

func (c *Client) getDocument(ctx context.Context, kind, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("site: %s %s: build request: %w", kind, pageURL, err)
	}
	return c.document(req, kind)
}

func (c *Client) document(req *http.Request, kind string) (*goquery.Document, error) {
	body, err := c.do(req, kind)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("site: %s %s: parse html: %w", kind, req.URL, err)
	}
	return doc, nil
}

// do sends req with the browser UA and returns a charset-normalised body
// for a 200 response. Caller closes the body.
func (c *Client) do(req *http.Request, kind string) (io.ReadCloser, error) {
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	client := c.HTTP
	if client == nil {
		client = httpclient.Default()
	}
	start := time.Now()
	resp, err := httpclient.DoWithRetry(req.Context(), client, req, httpclient.SiteRetryPolicy)
	if err != nil {
		metrics.ObserveUpstream(kind, 0, start)
		return nil, fmt.Errorf("site: %s %s: %w", kind, req.URL, err)
	}
	metrics.ObserveUpstream(kind, resp.StatusCode, start)
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("site: %s %s: unexpected status %d", kind, req.URL, resp.StatusCode)
	}
	r, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("site: %s %s: charset: %w", kind, req.URL, err)
	}
	return readCloser{Reader: r, Closer: resp.Body}, nil
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logging.Component(nil, "site")
	}
	return c.Log
}

type readCloser struct {
	io.Reader
	io.Closer
}
