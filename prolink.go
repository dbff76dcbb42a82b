// Package prolink wires the discovery/keepalive, status-event, DB query,
// and NFS components together into one rekordbox-compatible network peer
// (§2). A single Start(Config) call brings every component up; the returned
// Handle's Stop tears them all down. Grounded on
// internal/hdhomerun.Server/NewServer/Run's plain-struct-config,
// context-driven shutdown shape.
package prolink

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/snapetech/prolink-impersonator/internal/coordinator"
	"github.com/snapetech/prolink-impersonator/internal/dbserver"
	"github.com/snapetech/prolink-impersonator/internal/keepalive"
	"github.com/snapetech/prolink-impersonator/internal/librarydb"
	"github.com/snapetech/prolink-impersonator/internal/metrics"
	"github.com/snapetech/prolink-impersonator/internal/netiface"
	"github.com/snapetech/prolink-impersonator/internal/nfsserver"
	"github.com/snapetech/prolink-impersonator/internal/registry"
	"github.com/snapetech/prolink-impersonator/internal/statusevent"
)

// Config configures every component Start brings up. It is a plain
// struct populated by the caller — no env var or flag parsing happens in
// this package; cmd/prolinkd does that with the standard flag package.
type Config struct {
	// HostMAC is the MAC address advertised in keepalive/linking packets
	// (§4.6). Required.
	HostMAC net.HardwareAddr

	// LibraryName is advertised in replies to RekordboxHello and LinkQuery
	// probes; PlaylistCount and the track count len(Tracks) are advertised
	// only in LinkQuery replies (§4.7).
	LibraryName   string
	PlaylistCount uint32

	// Tracks seeds the virtual library (§3's Library data model). Tag
	// scanning is out of scope; the caller supplies the flat rows.
	Tracks []librarydb.Track

	// NFSRoot is the directory exported over NFS/Mount (§4.9); its
	// contents should correspond to Tracks' RelativePath entries.
	NFSRoot string
	// NFSExportDir and NFSExportGroup are the fixed EXPORT/MNT replies;
	// defaults are applied if left empty.
	NFSExportDir   string
	NFSExportGroup string

	// MetricsAddr, if non-empty, starts a Prometheus /metrics HTTP
	// listener on this address (§6). Left empty, no metrics are
	// collected or served.
	MetricsAddr string

	// Finder overrides the "locate the interface containing a peer IP"
	// primitive (§1: out of core scope, default provided so the module
	// runs standalone).
	Finder netiface.Finder

	// Logger receives every component's log output. Defaults to
	// log.Default() if nil.
	Logger *log.Logger

	// CoordinatorBufferSize sizes the coordinator's event channel.
	// Defaults to 16 if zero.
	CoordinatorBufferSize int
}

// Handle is the running set of components Start brought up.
type Handle struct {
	cancel  context.CancelFunc
	errs    chan error
	metrics *metrics.Collector
	library *librarydb.Library

	keepaliveEngine *keepalive.Engine
	statusEngine    *statusevent.Engine
	dbListener      net.Listener
	httpServer      *http.Server
}

const (
	defaultExportDir   = "/rekordbox"
	defaultExportGroup = "*"
	defaultCoordBuffer = 16
)

// Start binds the keepalive, status-event and DB query sockets, starts
// every component's goroutine, and returns. The NFS server binds its
// Portmap socket on its own goroutine after Start returns, and its Mount
// and NFS sockets on the first GETPORT for each. Call (*Handle).Stop to
// shut down.
func Start(cfg Config) (*Handle, error) {
	if len(cfg.HostMAC) == 0 {
		return nil, fmt.Errorf("prolink: Config.HostMAC is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	exportDir := cfg.NFSExportDir
	if exportDir == "" {
		exportDir = defaultExportDir
	}
	exportGroup := cfg.NFSExportGroup
	if exportGroup == "" {
		exportGroup = defaultExportGroup
	}
	bufSize := cfg.CoordinatorBufferSize
	if bufSize == 0 {
		bufSize = defaultCoordBuffer
	}

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.New()
	}

	library, err := librarydb.Open(cfg.Tracks)
	if err != nil {
		return nil, fmt.Errorf("prolink: open library: %w", err)
	}

	reg := registry.New()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 8)

	coord := coordinator.New(reg, nil, logger, bufSize)

	keepaliveEngine, err := keepalive.NewEngine(reg, coord.Events(), cfg.HostMAC, cfg.Finder, logger)
	if err != nil {
		cancel()
		library.Close()
		return nil, fmt.Errorf("prolink: start keepalive engine: %w", err)
	}
	keepaliveEngine.Metrics = collector
	coord.SetLinker(keepaliveEngine)

	statusEngine, err := statusevent.NewEngine(statusevent.LibraryInfo{
		Name:          cfg.LibraryName,
		TrackCount:    uint32(len(cfg.Tracks)),
		PlaylistCount: cfg.PlaylistCount,
	}, logger)
	if err != nil {
		cancel()
		keepaliveEngine.Close()
		library.Close()
		return nil, fmt.Errorf("prolink: start status event engine: %w", err)
	}
	statusEngine.Metrics = collector

	dbSrv := dbserver.NewServer(library, exportDir, logger)
	dbSrv.Metrics = collector
	dbListener, err := net.Listen("tcp4", fmt.Sprintf(":%d", dbserver.Port))
	if err != nil {
		cancel()
		statusEngine.Close()
		keepaliveEngine.Close()
		library.Close()
		return nil, fmt.Errorf("prolink: listen db query port: %w", err)
	}

	nfsSrv := nfsserver.NewServer(cfg.NFSRoot, exportDir, exportGroup, logger)
	nfsSrv.Metrics = collector

	h := &Handle{
		cancel: cancel, errs: errs, metrics: collector, library: library,
		keepaliveEngine: keepaliveEngine, statusEngine: statusEngine, dbListener: dbListener,
	}

	go func() { errs <- keepaliveEngine.ReceiveLoop(ctx) }()
	go func() { errs <- keepaliveEngine.Broadcaster(ctx) }()
	go func() { coord.Run(ctx); errs <- nil }()
	go func() { errs <- statusEngine.Run(ctx) }()
	go func() {
		<-ctx.Done()
		dbListener.Close()
	}()
	go func() { errs <- dbSrv.Serve(dbListener) }()
	go func() { errs <- nfsSrv.Run(ctx) }()

	if collector != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		h.httpServer = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("prolink: metrics server stopped: %v", err)
			}
		}()
	}

	return h, nil
}

// Stop cancels every component, then closes the DB query listener, the
// keepalive and status-event sockets and the library handle. ctx bounds
// only the metrics HTTP server's shutdown; Stop does not wait for the
// component goroutines to exit.
func (h *Handle) Stop(ctx context.Context) error {
	h.cancel()
	if h.httpServer != nil {
		_ = h.httpServer.Shutdown(ctx)
	}
	_ = h.dbListener.Close()
	_ = h.keepaliveEngine.Close()
	_ = h.statusEngine.Close()
	h.library.Close()
	return nil
}
