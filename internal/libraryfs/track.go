//go:build linux
// +build linux

package libraryfs

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/snapetech/prolink-impersonator/internal/librarydb"
)

// TrackFileNode serves the audio bytes for a single cataloged track off
// MediaRoot + the track's stored relative path. Unlike internal/vodfs's
// VirtualFileNode there is no materializer: the file is expected to already
// be present on disk, so Getattr can report a real size.
type TrackFileNode struct {
	fs.Inode
	Root  *Root
	Track librarydb.StoredTrack
}

var _ fs.NodeGetattrer = (*TrackFileNode)(nil)
var _ fs.NodeOpener = (*TrackFileNode)(nil)
var _ fs.NodeReader = (*TrackFileNode)(nil)

func (n *TrackFileNode) path() string {
	return filepath.Join(n.Root.MediaRoot, n.Track.RelativePath)
}

func (n *TrackFileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFREG | 0444
	if fi, err := os.Stat(n.path()); err == nil {
		out.Size = uint64(fi.Size())
		mtime := fi.ModTime()
		out.SetTimes(nil, &mtime, nil)
	}
	return 0
}

func (n *TrackFileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if _, err := os.Stat(n.path()); err != nil {
		log.Printf("libraryfs: open missing track=%d path=%q err=%v", n.Track.ID, n.path(), err)
		return nil, 0, syscall.ENOENT
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *TrackFileNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	f, err := os.Open(n.path())
	if err != nil {
		log.Printf("libraryfs: read open failed track=%d path=%q err=%v", n.Track.ID, n.path(), err)
		return nil, syscall.EIO
	}
	defer f.Close()
	nread, err := f.ReadAt(dest, off)
	if err != nil && nread == 0 {
		return fuse.ReadResultData(dest[:0]), 0
	}
	return fuse.ReadResultData(dest[:nread]), 0
}
