// Package nfsserver implements the minimal NFSv2 stack (§4.9) the
// impersonator exposes so rekordbox can browse and stream the library over
// the network: a Portmap responder with dynamic port allocation, the Mount
// program's EXPORT/MNT procedures, and the NFS program's LOOKUP/GETATTR/READ
// procedures over a single fixed export. Grounded on internal/hdhomerun's
// accept-loop/dispatch shape, generalized to RPC-over-UDP tasks spawned on
// demand rather than TCP connections accepted eagerly; file-handle and
// inode bookkeeping follows internal/vodfs's ino.go/file.go conventions.
package nfsserver

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/snapetech/prolink-impersonator/internal/metrics"
	"github.com/snapetech/prolink-impersonator/internal/wire/rpc"
)

// Server wires the Portmap, Mount, and NFS tasks together behind one
// dynamic port registry.
type Server struct {
	root        string
	exportDir   string
	exportGroup string
	logger      *log.Logger

	// Metrics is optional; see internal/keepalive.Engine.Metrics. Set
	// before calling Run — it is handed to each task as it's spawned.
	Metrics *metrics.Collector

	portmap *PortmapServer

	mu    sync.Mutex
	mount *MountTask
	nfs   *NfsTask
}

// NewServer prepares a Server exporting root as exportDir, visible to
// exportGroup, but does not bind any sockets yet; call Run to start.
func NewServer(root, exportDir, exportGroup string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{root: root, exportDir: exportDir, exportGroup: exportGroup, logger: logger}
}

// Run binds the Portmap responder and blocks until ctx is canceled,
// spawning the Mount and NFS tasks on their first GETPORT.
func (s *Server) Run(ctx context.Context) error {
	spawners := map[portmapKey]spawner{
		{program: rpc.ProgramMount, version: 1}: s.spawnMount,
		{program: rpc.ProgramNfs, version: 2}:    s.spawnNfs,
	}

	portmap, err := NewPortmapServer(s.logger, spawners)
	if err != nil {
		return err
	}
	portmap.Metrics = s.Metrics
	s.portmap = portmap
	defer s.stopTasks()

	return portmap.Run(ctx)
}

func (s *Server) spawnMount(ctx context.Context) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mount != nil {
		return uint16(s.mount.Port()), nil
	}
	task, err := NewMountTask(s.exportDir, s.exportGroup, s.logger)
	if err != nil {
		return 0, fmt.Errorf("nfsserver: spawn mount: %w", err)
	}
	task.Metrics = s.Metrics
	s.mount = task
	go func() {
		if err := task.Run(ctx); err != nil {
			s.logger.Printf("nfsserver: mount task stopped: %v", err)
		}
	}()
	return uint16(task.Port()), nil
}

func (s *Server) spawnNfs(ctx context.Context) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nfs != nil {
		return uint16(s.nfs.Port()), nil
	}
	task, err := NewNfsTask(s.root, s.logger)
	if err != nil {
		return 0, fmt.Errorf("nfsserver: spawn nfs: %w", err)
	}
	task.Metrics = s.Metrics
	s.nfs = task
	go func() {
		if err := task.Run(ctx); err != nil {
			s.logger.Printf("nfsserver: nfs task stopped: %v", err)
		}
	}()
	return uint16(task.Port()), nil
}

func (s *Server) stopTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.portmap != nil {
		s.portmap.Close()
	}
	if s.mount != nil {
		s.mount.Close()
	}
	if s.nfs != nil {
		s.nfs.Close()
	}
}
