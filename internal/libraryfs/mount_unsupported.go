//go:build !linux
// +build !linux

package libraryfs

import (
	"context"
	"fmt"

	"github.com/snapetech/prolink-impersonator/internal/librarydb"
)

// Mount is unavailable on non-Linux builds because libraryfs depends on go-fuse.
func Mount(mountPoint string, library *librarydb.Library, mediaRoot string, allowOther bool) error {
	return fmt.Errorf("libraryfs mount is only supported on linux builds")
}

// MountBackground is unavailable on non-Linux builds because libraryfs depends on go-fuse.
func MountBackground(_ context.Context, mountPoint string, library *librarydb.Library, mediaRoot string, allowOther bool) (func(), error) {
	return nil, fmt.Errorf("libraryfs mount is only supported on linux builds")
}
