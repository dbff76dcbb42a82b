//go:build linux
// +build linux

package libraryfs

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/snapetech/prolink-impersonator/internal/librarydb"
)

// Mount mounts the debug library filesystem at mountPoint and blocks until
// the process receives SIGINT/SIGTERM.
func Mount(mountPoint string, library *librarydb.Library, mediaRoot string, allowOther bool) error {
	root := &Root{Library: library, MediaRoot: mediaRoot}

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:      false,
			AllowOther: allowOther,
		},
	}
	server, err := fs.Mount(mountPoint, root, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		log.Println("Unmounting libraryfs...")
		_ = server.Unmount()
	}()

	server.Wait()
	stop()
	return nil
}

// MountBackground mounts the debug library filesystem without blocking. The
// returned unmount func or ctx cancellation tears it down.
func MountBackground(ctx context.Context, mountPoint string, library *librarydb.Library, mediaRoot string, allowOther bool) (unmount func(), err error) {
	root := &Root{Library: library, MediaRoot: mediaRoot}

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:      false,
			AllowOther: allowOther,
		},
	}
	server, err := fs.Mount(mountPoint, root, opts)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = server.Unmount()
	}()

	return func() { _ = server.Unmount() }, nil
}
