//go:build linux
// +build linux

package strmfs

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/snapetech/uakino-gateway/internal/catalog"
)

// strmTTL bounds how long a resolved stream URL is served; CDN tokens expire.
const strmTTL = 5 * time.Minute

// moviesNode is Movies/.
type moviesNode struct {
	fs.Inode
	lib *Library
}

var _ fs.NodeReaddirer = (*moviesNode)(nil)
var _ fs.NodeLookuper = (*moviesNode)(nil)

func (n *moviesNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, len(n.lib.Movies))
	for _, m := range n.lib.Movies {
		entries = append(entries, fuse.DirEntry{Name: m.Name, Mode: fuse.S_IFREG, Ino: inoFromString("movie:" + m.ID)})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *moviesNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	m, ok := n.lib.Movie(name)
	if !ok {
		return nil, syscall.ENOENT
	}
	f := &strmNode{lib: n.lib, typ: catalog.TypeMovie, id: m.ID}
	f.fill(&out.Attr)
	return n.NewInode(ctx, f, fs.StableAttr{Mode: fuse.S_IFREG, Ino: inoFromString("movie:" + m.ID)}), 0
}

// tvNode is TV/.
type tvNode struct {
	fs.Inode
	lib *Library
}

var _ fs.NodeReaddirer = (*tvNode)(nil)
var _ fs.NodeLookuper = (*tvNode)(nil)

func (n *tvNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, 0, len(n.lib.Series))
	for _, s := range n.lib.Series {
		entries = append(entries, fuse.DirEntry{Name: s.Name, Mode: fuse.S_IFDIR, Ino: inoFromString("series:" + s.ID)})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *tvNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	s, ok := n.lib.Show(name)
	if !ok {
		return nil, syscall.ENOENT
	}
	out.Mode = fuse.S_IFDIR | 0555
	return n.NewInode(ctx, &showNode{lib: n.lib, show: s}, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: inoFromString("series:" + s.ID)}), 0
}

// showNode is TV/<show>/; listing it fetches the episode list.
type showNode struct {
	fs.Inode
	lib  *Library
	show Title
}

var _ fs.NodeReaddirer = (*showNode)(nil)
var _ fs.NodeLookuper = (*showNode)(nil)

func (n *showNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	seasons := n.lib.Seasons(ctx, n.show)
	entries := make([]fuse.DirEntry, 0, len(seasons))
	for _, s := range seasons {
		entries = append(entries, fuse.DirEntry{Name: SeasonDirName(s), Mode: fuse.S_IFDIR, Ino: n.seasonIno(s)})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *showNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	num, ok := parseSeasonDir(name)
	if !ok {
		return nil, syscall.ENOENT
	}
	if len(n.lib.SeasonEpisodes(ctx, n.show, num)) == 0 {
		return nil, syscall.ENOENT
	}
	out.Mode = fuse.S_IFDIR | 0555
	return n.NewInode(ctx, &seasonNode{lib: n.lib, show: n.show, season: num}, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: n.seasonIno(num)}), 0
}

func (n *showNode) seasonIno(season int) uint64 {
	return inoFromString("season:" + n.show.ID + ":" + strconv.Itoa(season))
}

func parseSeasonDir(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "Season ")
	if !ok {
		return 0, false
	}
	num, err := strconv.Atoi(rest)
	if err != nil || SeasonDirName(num) != name {
		return 0, false
	}
	return num, true
}

// seasonNode is TV/<show>/Season NN/.
type seasonNode struct {
	fs.Inode
	lib    *Library
	show   Title
	season int
}

var _ fs.NodeReaddirer = (*seasonNode)(nil)
var _ fs.NodeLookuper = (*seasonNode)(nil)

func (n *seasonNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	videos := n.lib.SeasonEpisodes(ctx, n.show, n.season)
	entries := make([]fuse.DirEntry, 0, len(videos))
	for _, v := range videos {
		entries = append(entries, fuse.DirEntry{
			Name: EpisodeFileName(n.show.Name, v.Season, v.Episode),
			Mode: fuse.S_IFREG,
			Ino:  inoFromString("episode:" + v.ID),
		})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *seasonNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	for _, v := range n.lib.SeasonEpisodes(ctx, n.show, n.season) {
		if EpisodeFileName(n.show.Name, v.Season, v.Episode) != name {
			continue
		}
		f := &strmNode{lib: n.lib, typ: catalog.TypeSeries, id: v.ID}
		f.fill(&out.Attr)
		return n.NewInode(ctx, f, fs.StableAttr{Mode: fuse.S_IFREG, Ino: inoFromString("episode:" + v.ID)}), 0
	}
	return nil, syscall.ENOENT
}

// strmNode is a .strm file. Its content is resolved on open and served
// with direct I/O, so the size reported before the first open does not
// limit reads.
type strmNode struct {
	fs.Inode
	lib *Library
	typ string
	id  string

	mu         sync.Mutex
	content    []byte
	resolvedAt time.Time
}

var _ fs.NodeGetattrer = (*strmNode)(nil)
var _ fs.NodeOpener = (*strmNode)(nil)
var _ fs.NodeReader = (*strmNode)(nil)

func (n *strmNode) fill(a *fuse.Attr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	a.Mode = fuse.S_IFREG | 0444
	a.Size = uint64(len(n.content))
}

func (n *strmNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fill(&out.Attr)
	return 0
}

func (n *strmNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&uint32(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.content != nil && time.Since(n.resolvedAt) < strmTTL {
		return nil, fuse.FOPEN_DIRECT_IO, 0
	}
	body, err := n.lib.StrmContent(ctx, n.typ, n.id)
	if err != nil {
		n.lib.log.Warnf("open %s: %v", n.id, err)
		return nil, 0, syscall.EIO
	}
	n.content = body
	n.resolvedAt = time.Now()
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *strmNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if off >= int64(len(n.content)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(n.content)) {
		end = int64(len(n.content))
	}
	return fuse.ReadResultData(n.content[off:end]), 0
}
