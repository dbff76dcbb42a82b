package nfsserver

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/snapetech/prolink-impersonator/internal/metrics"
	"github.com/snapetech/prolink-impersonator/internal/wire/rpc"
)

// NfsTask answers Portmap-dispatched NFS calls for the single exported
// tree, on its own ephemeral UDP socket (§4.9). State is per-task, not
// per-client: the current directory and file-handle table are shared
// across every peer that talks to this socket, matching the spec's
// "per-task" wording rather than a per-connection model (NFS over UDP
// carries no connection to key state on).
type NfsTask struct {
	conn   *net.UDPConn
	root   string
	logger *log.Logger

	mu         sync.Mutex
	currentDir string
	handles    *handleTable

	// Metrics is optional; see internal/keepalive.Engine.Metrics.
	Metrics *metrics.Collector
}

// NewNfsTask binds an ephemeral UDP socket rooted at root and pre-seeds the
// handle table with the root directory so GETATTR succeeds against the
// handle MNT returned without requiring a prior LOOKUP.
func NewNfsTask(root string, logger *log.Logger) (*NfsTask, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("nfsserver: nfs listen: %w", err)
	}
	t := &NfsTask{
		conn: conn, root: root, logger: logger,
		currentDir: "/",
		handles:    newHandleTable(),
	}
	t.handles.put(openFile{ino: inoFromPath("/"), path: "/", dir: true})
	return t, nil
}

func (t *NfsTask) Port() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}

func (t *NfsTask) Close() error { return t.conn.Close() }

// Run services RPC calls until ctx is canceled.
func (t *NfsTask) Run(ctx context.Context) error {
	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		t.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("nfsserver: nfs read: %w", err)
		}

		call, payload, err := rpc.DecodeCall(buf[:n])
		if err != nil {
			t.logger.Printf("nfsserver: nfs decode from %s: %v", addr, err)
			continue
		}

		reply := t.dispatch(call, payload)
		if reply == nil {
			continue
		}
		if _, err := t.conn.WriteToUDP(reply, addr); err != nil {
			t.logger.Printf("nfsserver: nfs reply to %s: %v", addr, err)
		}
	}
}

func (t *NfsTask) dispatch(call rpc.CallHeader, payload []byte) []byte {
	t.Metrics.IncRpcCall("nfs")
	switch call.Procedure {
	case rpc.ProcNfsLookup:
		return t.handleLookup(call, payload)
	case rpc.ProcNfsGetattr:
		return t.handleGetattr(call, payload)
	case rpc.ProcNfsRead:
		return t.handleRead(call, payload)
	default:
		t.logger.Printf("nfsserver: nfs unhandled procedure %d", call.Procedure)
		return nil
	}
}

func (t *NfsTask) handleLookup(call rpc.CallHeader, payload []byte) []byte {
	args, err := rpc.DecodeLookupArgs(payload)
	if err != nil {
		t.logger.Printf("nfsserver: lookup decode: %v", err)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	expectedParent := inoFromPath(t.currentDir)
	if inoFromFileHandle(args.FileHandle) != expectedParent {
		return rpc.EncodeReply(call.XID, rpc.EncodeLookupReply(rpc.NfsStaleFileHandle, rpc.FileHandle{}, rpc.Attributes{}))
	}

	resolved := joinVirtual(t.currentDir, args.Name)
	hostPath := filepath.Join(t.root, filepath.FromSlash(resolved))
	info, err := os.Stat(hostPath)
	if err != nil {
		return rpc.EncodeReply(call.XID, rpc.EncodeLookupReply(rpc.NfsFileDoesNotExist, rpc.FileHandle{}, rpc.Attributes{}))
	}

	ino := inoFromPath(resolved)
	t.currentDir = resolved
	if !info.IsDir() {
		t.handles.put(openFile{ino: ino, path: hostPath, dir: false})
		t.currentDir = "/"
	} else {
		t.handles.put(openFile{ino: ino, path: hostPath, dir: true})
	}

	fh := fileHandleFor(ino)
	return rpc.EncodeReply(call.XID, rpc.EncodeLookupReply(rpc.NfsOk, fh, attributesFor(info)))
}

func (t *NfsTask) handleGetattr(call rpc.CallHeader, payload []byte) []byte {
	args, err := rpc.DecodeGetattrArgs(payload)
	if err != nil {
		t.logger.Printf("nfsserver: getattr decode: %v", err)
		return nil
	}

	t.mu.Lock()
	f, ok := t.handles.get(inoFromFileHandle(args.FileHandle))
	t.mu.Unlock()
	if !ok {
		return rpc.EncodeReply(call.XID, rpc.EncodeGetattrReply(rpc.NfsStaleFileHandle, rpc.Attributes{}))
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return rpc.EncodeReply(call.XID, rpc.EncodeGetattrReply(rpc.NfsStaleFileHandle, rpc.Attributes{}))
	}
	return rpc.EncodeReply(call.XID, rpc.EncodeGetattrReply(rpc.NfsOk, attributesFor(info)))
}

func (t *NfsTask) handleRead(call rpc.CallHeader, payload []byte) []byte {
	args, err := rpc.DecodeReadArgs(payload)
	if err != nil {
		t.logger.Printf("nfsserver: read decode: %v", err)
		return nil
	}

	t.mu.Lock()
	f, ok := t.handles.get(inoFromFileHandle(args.FileHandle))
	t.mu.Unlock()
	if !ok || f.dir {
		return rpc.EncodeReply(call.XID, rpc.EncodeReadReply(rpc.NfsStaleFileHandle, rpc.Attributes{}, nil))
	}

	file, err := os.Open(f.path)
	if err != nil {
		return rpc.EncodeReply(call.XID, rpc.EncodeReadReply(rpc.NfsStaleFileHandle, rpc.Attributes{}, nil))
	}
	defer file.Close()

	data := make([]byte, args.Count)
	n, err := file.ReadAt(data, int64(args.Offset))
	if err != nil && n == 0 {
		return rpc.EncodeReply(call.XID, rpc.EncodeReadReply(rpc.NfsStaleFileHandle, rpc.Attributes{}, nil))
	}

	info, err := file.Stat()
	if err != nil {
		return rpc.EncodeReply(call.XID, rpc.EncodeReadReply(rpc.NfsStaleFileHandle, rpc.Attributes{}, nil))
	}
	return rpc.EncodeReply(call.XID, rpc.EncodeReadReply(rpc.NfsOk, attributesFor(info), data[:n]))
}

// joinVirtual joins a posix-style virtual directory and a single path
// element, collapsing the "/"-root case so the result never doubles a
// leading slash.
func joinVirtual(dir, name string) string {
	dir = strings.TrimSuffix(dir, "/")
	return dir + "/" + name
}
