package strmfs

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// MovieFileName returns the movie file name: "Name (Year).strm".
func MovieFileName(name string, year int) string {
	return titleWithYear(name, year) + ".strm"
}

// ShowDirName returns the show folder name: "Name (Year)".
func ShowDirName(name string, year int) string {
	return titleWithYear(name, year)
}

// SeasonDirName returns the season folder name: "Season 01".
func SeasonDirName(season int) string {
	return fmt.Sprintf("Season %02d", season)
}

// EpisodeFileName returns "Show - s01e02.strm".
func EpisodeFileName(show string, season, episode int) string {
	return fmt.Sprintf("%s - s%02de%02d.strm", SafeName(show), season, episode)
}

func titleWithYear(name string, year int) string {
	name = SafeName(name)
	if year > 0 {
		return fmt.Sprintf("%s (%d)", name, year)
	}
	return name
}

// SafeName makes name usable as a single path component.
func SafeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '-'
		case 0:
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// uniqueNames maps keys[i] -> names[i], suffixing " [tags[i]]" onto names
// that collide so every entry stays addressable.
func uniqueNames(keys, names, tags []string) map[string]string {
	counts := make(map[string]int, len(names))
	for _, n := range names {
		counts[n]++
	}
	out := make(map[string]string, len(keys))
	for i, k := range keys {
		n := names[i]
		if counts[n] > 1 {
			n = fmt.Sprintf("%s [%s]", n, SafeName(tags[i]))
		}
		out[k] = n
	}
	return out
}

// inoFromString gives the same logical file the same inode across lookups.
func inoFromString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte("uakino:" + s))
	return h.Sum64()
}
