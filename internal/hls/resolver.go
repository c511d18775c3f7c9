package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/uakino-gateway/internal/httpclient"
	"github.com/snapetech/uakino-gateway/internal/logging"
	"github.com/snapetech/uakino-gateway/internal/metrics"
	"github.com/snapetech/uakino-gateway/internal/safeurl"
)

// ErrNoMaster is returned when a player page embeds no .m3u8 URL.
var ErrNoMaster = errors.New("hls: no master playlist on player page")

// ErrNoVariant is returned when a master playlist has no variant with a
// RESOLUTION tag; such a player is dropped.
var ErrNoVariant = errors.New("hls: no resolution-tagged variant")

const maxPlaylistSize = 4 << 20

// Result is the rendition chosen for one player.
type Result struct {
	URL    string
	Height int
	Label  string
}

// Resolver turns player page URLs into playable HLS renditions.
type Resolver struct {
	HTTP      *http.Client
	SiteURL   string // Referer sent to the player host
	UserAgent string
	Log       logrus.FieldLogger
}

// NewResolver returns a resolver that presents siteURL as the referer.
func NewResolver(hc *http.Client, siteURL, userAgent string, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		HTTP:      hc,
		SiteURL:   siteURL,
		UserAgent: userAgent,
		Log:       logging.Component(log, "hls"),
	}
}

// Resolve fetches the player page (Referer: site), then its master playlist
// (Referer: player page), and returns the highest-resolution variant.
func (r *Resolver) Resolve(ctx context.Context, playerURL string) (Result, error) {
	res, err := r.resolve(ctx, playerURL)
	switch {
	case errors.Is(err, ErrNoVariant):
		metrics.StreamsResolved.WithLabelValues("no_variant").Inc()
	case err != nil:
		metrics.StreamsResolved.WithLabelValues("error").Inc()
	default:
		metrics.StreamsResolved.WithLabelValues("ok").Inc()
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, playerURL string) (Result, error) {
	playerURL, err := safeurl.Normalize(playerURL)
	if err != nil {
		return Result{}, err
	}
	page, err := r.get(ctx, "player", playerURL, r.SiteURL)
	if err != nil {
		return Result{}, err
	}
	master, ok := MasterURL(page)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoMaster, playerURL)
	}
	body, err := r.get(ctx, "master", master, playerURL)
	if err != nil {
		return Result{}, err
	}
	variants := ParseMaster(body, master)
	best, ok := Best(variants)
	if !ok {
		r.logger().Debugf("master %s: none of %d variants has a resolution", master, len(variants))
		return Result{}, fmt.Errorf("%w: %s", ErrNoVariant, master)
	}
	if !safeurl.IsHTTPOrHTTPS(best.URL) {
		return Result{}, fmt.Errorf("hls: variant url %q is not http(s)", best.URL)
	}
	return Result{URL: best.URL, Height: best.Height, Label: Label(best.Height)}, nil
}

func (r *Resolver) get(ctx context.Context, kind, target, referer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("hls: %s %s: build request: %w", kind, target, err)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	client := r.HTTP
	if client == nil {
		client = httpclient.Default()
	}
	start := time.Now()
	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.SiteRetryPolicy)
	if err != nil {
		metrics.ObserveUpstream(kind, 0, start)
		return "", fmt.Errorf("hls: %s %s: %w", kind, target, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(kind, resp.StatusCode, start)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hls: %s %s: unexpected status %d", kind, target, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize))
	if err != nil {
		return "", fmt.Errorf("hls: %s %s: read: %w", kind, target, err)
	}
	return string(b), nil
}

func (r *Resolver) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logging.Component(nil, "hls")
	}
	return r.Log
}
