//go:build linux
// +build linux

// Package libraryfs is an optional read-only FUSE debug mount of the
// virtual library (§4.8's catalog, browsable as Artist/Album/Track
// directories instead of over the DB query protocol) — an operational
// aid for inspecting what a connected player would see, not part of the
// wire-facing impersonation itself. Grounded on internal/vodfs's
// Root/DirNode/VirtualFileNode split, retargeted from a Movies/TV VOD tree
// onto an Artist/Album/Track one and from materializer-backed remote
// assets onto a plain on-disk media root.
package libraryfs

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/snapetech/prolink-impersonator/internal/librarydb"
)

// Root is the filesystem root: its only child is "Artists".
type Root struct {
	fs.Inode
	Library   *librarydb.Library
	MediaRoot string
}

var _ fs.NodeLookuper = (*Root)(nil)
var _ fs.NodeReaddirer = (*Root)(nil)

func (r *Root) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{{
		Name: "Artists",
		Ino:  r.ino("dir:Artists"),
		Mode: fuse.S_IFDIR | 0755,
	}}
	return fs.NewListDirStream(entries), 0
}

func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if name != "Artists" {
		return nil, syscall.ENOENT
	}
	child := &ArtistsDirNode{Root: r}
	ch := r.NewInode(ctx, child, fs.StableAttr{
		Mode: fuse.S_IFDIR,
		Ino:  r.ino("dir:Artists"),
	})
	out.Mode = fuse.S_IFDIR | 0755
	out.SetEntryTimeout(time.Second)
	out.SetAttrTimeout(time.Second)
	return ch, 0
}

func (r *Root) ino(key string) uint64 {
	return inoFromString("libraryfs:" + key)
}
