package httpclient

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var defaultClient = New(Options{})

// Options tunes a client built by New. Zero values use safe defaults.
type Options struct {
	Timeout time.Duration
	// RateLimit is requests per second across all hosts; <= 0 disables it.
	RateLimit float64
	RateBurst int
	// HostSem caps concurrent requests per host; nil uses GlobalHostSem.
	HostSem *HostSemaphore
}

// Default returns the shared tuned HTTP client (no rate limit).
func Default() *http.Client {
	return defaultClient
}

// New returns a client whose transport decodes br/gzip bodies, holds a
// per-host slot for every request and, when RateLimit > 0, waits on a token
// bucket before sending.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HostSem == nil {
		opts.HostSem = GlobalHostSem
	}
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &limitedTransport{
			next:    &decodingTransport{next: base},
			limiter: limiter,
			sem:     opts.HostSem,
		},
	}
}

// WithTimeout returns a client with the given timeout sharing Default's transport.
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultClient.Transport,
	}
}
