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

// ArtistsDirNode lists one directory per interned artist.
type ArtistsDirNode struct {
	fs.Inode
	Root *Root
}

var _ fs.NodeReaddirer = (*ArtistsDirNode)(nil)
var _ fs.NodeLookuper = (*ArtistsDirNode)(nil)

func (n *ArtistsDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	artists, err := n.Root.Library.Artists()
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(artists))
	for i, a := range artists {
		entries[i] = fuse.DirEntry{
			Name: artistDirName(a),
			Ino:  n.Root.ino(fmt.Sprintf("artist:%d", a.ID)),
			Mode: fuse.S_IFDIR | 0755,
		}
	}
	return fs.NewListDirStream(entries), 0
}

func (n *ArtistsDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	artists, err := n.Root.Library.Artists()
	if err != nil {
		return nil, syscall.EIO
	}
	for _, a := range artists {
		if artistDirName(a) != name {
			continue
		}
		child := &ArtistDirNode{Root: n.Root, Artist: a}
		ch := n.NewInode(ctx, child, fs.StableAttr{
			Mode: fuse.S_IFDIR,
			Ino:  n.Root.ino(fmt.Sprintf("artist:%d", a.ID)),
		})
		out.Mode = fuse.S_IFDIR | 0755
		out.SetEntryTimeout(time.Second)
		out.SetAttrTimeout(time.Second)
		return ch, 0
	}
	return nil, syscall.ENOENT
}

// ArtistDirNode lists one directory per album by this artist.
type ArtistDirNode struct {
	fs.Inode
	Root   *Root
	Artist librarydb.Artist
}

var _ fs.NodeReaddirer = (*ArtistDirNode)(nil)
var _ fs.NodeLookuper = (*ArtistDirNode)(nil)

func (n *ArtistDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	albums, err := n.Root.Library.AlbumsByArtist(n.Artist.ID)
	if err != nil {
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(albums))
	for i, a := range albums {
		entries[i] = fuse.DirEntry{
			Name: albumDirName(a),
			Ino:  n.Root.ino(fmt.Sprintf("album:%d", a.ID)),
			Mode: fuse.S_IFDIR | 0755,
		}
	}
	return fs.NewListDirStream(entries), 0
}

func (n *ArtistDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	albums, err := n.Root.Library.AlbumsByArtist(n.Artist.ID)
	if err != nil {
		return nil, syscall.EIO
	}
	for _, a := range albums {
		if albumDirName(a) != name {
			continue
		}
		child := &AlbumDirNode{Root: n.Root, Artist: n.Artist, Album: a}
		ch := n.NewInode(ctx, child, fs.StableAttr{
			Mode: fuse.S_IFDIR,
			Ino:  n.Root.ino(fmt.Sprintf("album:%d", a.ID)),
		})
		out.Mode = fuse.S_IFDIR | 0755
		out.SetEntryTimeout(time.Second)
		out.SetAttrTimeout(time.Second)
		return ch, 0
	}
	return nil, syscall.ENOENT
}

func artistDirName(a librarydb.Artist) string {
	return sanitizeName(a.Name)
}

func albumDirName(a librarydb.Album) string {
	return sanitizeName(a.Name)
}

func trackEntryName(t librarydb.StoredTrack) string {
	return trackFileName(t.ID, t.Title, t.RelativePath)
}
