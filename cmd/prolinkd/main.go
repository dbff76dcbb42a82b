// Command prolinkd is a runnable demonstration of the prolink core: it
// parses flags, loads a JSON track seed, and starts the impersonator
// until SIGINT/SIGTERM. All flag parsing lives here, outside the core,
// matching cmd/plex-tuner/main.go's shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	prolink "github.com/snapetech/prolink-impersonator"
	"github.com/snapetech/prolink-impersonator/internal/librarydb"
	"github.com/snapetech/prolink-impersonator/internal/libraryfs"
)

func main() {
	macStr := flag.String("mac", "", "MAC address advertised in keepalive packets (e.g. 02:11:22:33:44:55)")
	libraryName := flag.String("library-name", "prolink library", "library name advertised to RekordboxHello probes")
	playlistCount := flag.Uint("playlist-count", 0, "playlist count advertised in replies to LinkQuery probes")
	tracksPath := flag.String("tracks", "", "path to a JSON file of librarydb.Track seed rows")
	nfsRoot := flag.String("nfs-root", "", "directory exported over NFS (should contain the tracks' relative paths)")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus /metrics on (empty disables metrics)")
	mountDir := flag.String("mount", "", "optional read-only FUSE debug mount point for the virtual library")
	flag.Parse()

	mac, err := net.ParseMAC(*macStr)
	if err != nil {
		log.Fatalf("prolinkd: parse -mac: %v", err)
	}
	if *nfsRoot == "" {
		log.Fatalf("prolinkd: -nfs-root is required")
	}

	var tracks []librarydb.Track
	if *tracksPath != "" {
		tracks, err = loadTracks(*tracksPath)
		if err != nil {
			log.Fatalf("prolinkd: load tracks: %v", err)
		}
	}
	log.Printf("prolinkd: seeding library with %d tracks", len(tracks))

	h, err := prolink.Start(prolink.Config{
		HostMAC:       mac,
		LibraryName:   *libraryName,
		PlaylistCount: uint32(*playlistCount),
		Tracks:        tracks,
		NFSRoot:       *nfsRoot,
		MetricsAddr:   *metricsAddr,
	})
	if err != nil {
		log.Fatalf("prolinkd: start: %v", err)
	}

	if *mountDir != "" {
		lib, err := librarydb.Open(tracks)
		if err != nil {
			log.Printf("prolinkd: open debug library for mount: %v", err)
		} else {
			ctx, cancelMount := context.WithCancel(context.Background())
			defer cancelMount()
			unmount, err := libraryfs.MountBackground(ctx, *mountDir, lib, *nfsRoot, false)
			if err != nil {
				log.Printf("prolinkd: mount debug library: %v", err)
			} else {
				log.Printf("prolinkd: debug library mounted at %s", *mountDir)
				defer unmount()
			}
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("prolinkd: shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		log.Printf("prolinkd: stop: %v", err)
	}
}

func loadTracks(path string) ([]librarydb.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var tracks []librarydb.Track
	if err := json.NewDecoder(f).Decode(&tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}
