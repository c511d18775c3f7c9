//go:build linux
// +build linux

package strmfs

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const entryAttrTimeout = 30 * time.Second

// Mount serves lib at dir until the returned server is unmounted.
func Mount(dir string, lib *Library, allowOther bool) (Server, error) {
	to := entryAttrTimeout
	opts := &fs.Options{
		EntryTimeout: &to,
		AttrTimeout:  &to,
		MountOptions: fuse.MountOptions{
			AllowOther: allowOther,
			FsName:     "uakino",
			Name:       "strmfs",
		},
	}
	srv, err := fs.Mount(dir, &rootNode{lib: lib}, opts)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

type rootNode struct {
	fs.Inode
	lib *Library
}

var _ fs.NodeGetattrer = (*rootNode)(nil)
var _ fs.NodeReaddirer = (*rootNode)(nil)
var _ fs.NodeLookuper = (*rootNode)(nil)

func (r *rootNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0555
	return 0
}

func (r *rootNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	return fs.NewListDirStream([]fuse.DirEntry{
		{Name: "Movies", Mode: fuse.S_IFDIR, Ino: inoFromString("dir:Movies")},
		{Name: "TV", Mode: fuse.S_IFDIR, Ino: inoFromString("dir:TV")},
	}), 0
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	var node fs.InodeEmbedder
	switch name {
	case "Movies":
		node = &moviesNode{lib: r.lib}
	case "TV":
		node = &tvNode{lib: r.lib}
	default:
		return nil, syscall.ENOENT
	}
	out.Mode = fuse.S_IFDIR | 0555
	return r.NewInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFDIR, Ino: inoFromString("dir:" + name)}), 0
}
