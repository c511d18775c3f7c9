// Package hls picks the best rendition out of an HLS master playlist.
package hls

import (
	"bufio"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	reMaster     = regexp.MustCompile(`(https?://[^\s"']+\.m3u8)`)
	reResolution = regexp.MustCompile(`RESOLUTION=(\d+)x(\d+)`)
)

// Variant is one #EXT-X-STREAM-INF entry. Height is 0 when the entry
// carries no RESOLUTION attribute.
type Variant struct {
	URL    string
	Width  int
	Height int
}

// MasterURL returns the first absolute .m3u8 URL embedded in a player page.
func MasterURL(playerHTML string) (string, bool) {
	m := reMaster.FindStringSubmatch(playerHTML)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseMaster pairs every #EXT-X-STREAM-INF line with the URI line that
// follows it. Relative URIs are resolved against masterURL.
func ParseMaster(body, masterURL string) []Variant {
	base, _ := url.Parse(masterURL)
	var (
		out     []Variant
		pending *Variant
	)
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			v := Variant{}
			if m := reResolution.FindStringSubmatch(line); m != nil {
				v.Width, _ = strconv.Atoi(m[1])
				v.Height, _ = strconv.Atoi(m[2])
			}
			pending = &v
		case strings.HasPrefix(line, "#"):
			continue
		case pending != nil:
			pending.URL = resolve(base, line)
			out = append(out, *pending)
			pending = nil
		}
	}
	return out
}

func resolve(base *url.URL, ref string) string {
	if base == nil || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// Best returns the variant with the strictly greatest height; on ties the
// earlier one wins. ok is false when no variant carries a resolution.
func Best(variants []Variant) (best Variant, ok bool) {
	for _, v := range variants {
		if v.Height > best.Height {
			best = v
			ok = true
		}
	}
	return best, ok
}

// Label names a vertical resolution the way the stream list shows it.
func Label(height int) string {
	switch {
	case height <= 0:
		return "SD"
	case height >= 2160:
		return "4K"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height >= 480:
		return "480p"
	}
	return strconv.Itoa(height) + "p"
}
