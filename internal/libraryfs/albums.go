//go:build linux
// +build linux

package libraryfs

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/snapetech/prolink-impersonator/internal/librarydb"
)

// AlbumDirNode lists one file per track on this album.
type AlbumDirNode struct {
	fs.Inode
	Root   *Root
	Artist librarydb.Artist
	Album  librarydb.Album
}

var _ fs.NodeReaddirer = (*AlbumDirNode)(nil)
var _ fs.NodeLookuper = (*AlbumDirNode)(nil)

func (n *AlbumDirNode) tracks() ([]librarydb.StoredTrack, error) {
	return n.Root.Library.TracksByArtistAlbum(n.Artist.ID, n.Album.ID)
}

func (n *AlbumDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	tracks, err := n.tracks()
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(tracks))
	for i, t := range tracks {
		entries[i] = fuse.DirEntry{
			Name: trackEntryName(t),
			Ino:  n.Root.ino(fmt.Sprintf("track:%d", t.ID)),
			Mode: fuse.S_IFREG | 0444,
		}
	}
	return fs.NewListDirStream(entries), 0
}

func (n *AlbumDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	tracks, err := n.tracks()
	if err != nil {
		return nil, syscall.EIO
	}
	for _, t := range tracks {
		if trackEntryName(t) != name {
			continue
		}
		child := &TrackFileNode{Root: n.Root, Track: t}
		ch := n.NewInode(ctx, child, fs.StableAttr{
			Mode: fuse.S_IFREG,
			Ino:  n.Root.ino(fmt.Sprintf("track:%d", t.ID)),
		})
		out.Mode = fuse.S_IFREG | 0444
		out.SetEntryTimeout(time.Second)
		out.SetAttrTimeout(time.Second)
		return ch, 0
	}
	return nil, syscall.ENOENT
}
