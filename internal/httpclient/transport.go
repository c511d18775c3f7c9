package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"
)

// limitedTransport waits on the rate limiter and holds a host slot while the
// request is in flight (until response headers arrive).
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	sem     *HostSemaphore
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if t.sem != nil {
		release, err := t.sem.Acquire(ctx, req.URL.Scheme+"://"+req.URL.Host)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	return t.next.RoundTrip(req)
}

// decodingTransport advertises br and gzip and transparently decodes them.
// Setting Accept-Encoding ourselves turns off net/http's built-in gzip
// handling, so both encodings are decoded here.
type decodingTransport struct {
	next http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" && req.Header.Get("Range") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "br, gzip")
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		resp.Body = &decodedBody{Reader: brotli.NewReader(resp.Body), raw: resp.Body}
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		resp.Body = &decodedBody{Reader: zr, raw: resp.Body, closer: zr}
	default:
		return resp, nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type decodedBody struct {
	io.Reader
	raw    io.Closer
	closer io.Closer
}

func (b *decodedBody) Close() error {
	if b.closer != nil {
		b.closer.Close()
	}
	return b.raw.Close()
}
