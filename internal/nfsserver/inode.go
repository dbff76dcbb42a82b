package nfsserver

import (
	"hash/fnv"
	"os"
	"time"

	"github.com/snapetech/prolink-impersonator/internal/wire/rpc"
)

// inoFromPath derives a stable inode number from a path-like key so the
// same logical file always maps to the same inode across lookups.
// Grounded on internal/vodfs/ino.go's inoFromString.
func inoFromPath(path string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return h.Sum64()
}

// fileHandleFor builds a 32-byte file handle whose first 8 bytes are ino,
// the rest zero-filled (§4.9: "a 32-byte file handle whose first 8 bytes
// are the root directory's inode").
func fileHandleFor(ino uint64) rpc.FileHandle {
	var fh rpc.FileHandle
	for i := 0; i < 8; i++ {
		fh[i] = byte(ino >> (8 * (7 - i)))
	}
	return fh
}

func inoFromFileHandle(fh rpc.FileHandle) uint64 {
	var ino uint64
	for i := 0; i < 8; i++ {
		ino = ino<<8 | uint64(fh[i])
	}
	return ino
}

// attributesFor maps host filesystem metadata onto the fixed NFSv2
// Attributes shape §4.9 specifies: mode is always FixedMode, fsid and
// file_id are always 0, and timestamps report only the lower 32 bits of
// the Unix-epoch second count with usecs fixed at 0.
func attributesFor(info os.FileInfo) rpc.Attributes {
	fileType := rpc.FileTypeFile
	nlink := uint32(1)
	if info.IsDir() {
		fileType = rpc.FileTypeDirectory
		nlink = 2
	}
	mtime := toTimestamp(info.ModTime())
	return rpc.Attributes{
		Type:      fileType,
		Mode:      rpc.FixedMode,
		Nlink:     nlink,
		Size:      uint32(info.Size()),
		Blocksize: 4096,
		Blocks:    uint32((info.Size() + 511) / 512),
		Atime:     mtime,
		Mtime:     mtime,
		Ctime:     mtime,
	}
}

func toTimestamp(t time.Time) rpc.Timestamp {
	return rpc.Timestamp{Secs: uint32(t.Unix())}
}
