// Package health checks the upstream site and a running addon.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/snapetech/uakino-gateway/internal/site"
)

// CheckSite fetches the movie listing at baseURL and parses it the way the
// catalog does. It fails when the site is unreachable, answers non-200, or
// the listing yields no rows.
func CheckSite(ctx context.Context, baseURL, userAgent string) error {
	if baseURL == "" {
		return fmt.Errorf("no site URL configured")
	}
	c := site.New(baseURL, userAgent, &http.Client{Timeout: 15 * time.Second}, nil)
	target := c.URL(site.PathMovies)
	res, err := c.List(ctx, target, site.SelectorItems)
	if err != nil {
		return fmt.Errorf("site unreachable: %w", err)
	}
	if len(res.Movies)+len(res.Series) == 0 {
		return fmt.Errorf("listing at %s has no %q rows; markup changed?", target, site.SelectorItems)
	}
	return nil
}

// CheckEndpoints hits manifest, a catalog and healthz on a running addon at
// baseURL and returns the first error or nil.
func CheckEndpoints(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 30 * time.Second}
	for _, path := range []string{"/manifest.json", "/catalog/movie/uakino-movies.json", "/healthz"} {
		url := strings.TrimSuffix(baseURL, "/") + path
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
		}
	}
	return nil
}
