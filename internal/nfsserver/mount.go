package nfsserver

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/snapetech/prolink-impersonator/internal/metrics"
	"github.com/snapetech/prolink-impersonator/internal/wire/rpc"
)

// MountTask answers the Mount program's EXPORT and MNT procedures (§4.9).
// The impersonated export is fixed: a single directory visible to a single
// client subnet.
type MountTask struct {
	conn        *net.UDPConn
	exportDir   string
	exportGroup string
	rootHandle  rpc.FileHandle
	logger      *log.Logger

	// Metrics is optional; see internal/keepalive.Engine.Metrics.
	Metrics *metrics.Collector
}

// NewMountTask binds an ephemeral UDP socket serving the fixed export.
func NewMountTask(exportDir, exportGroup string, logger *log.Logger) (*MountTask, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("nfsserver: mount listen: %w", err)
	}
	return &MountTask{
		conn: conn, exportDir: exportDir, exportGroup: exportGroup,
		rootHandle: fileHandleFor(inoFromPath("/")),
		logger:     logger,
	}, nil
}

func (t *MountTask) Port() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}

func (t *MountTask) Close() error { return t.conn.Close() }

// Run services RPC calls until ctx is canceled.
func (t *MountTask) Run(ctx context.Context) error {
	buf := make([]byte, 4096)
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
			return fmt.Errorf("nfsserver: mount read: %w", err)
		}

		call, payload, err := rpc.DecodeCall(buf[:n])
		if err != nil {
			t.logger.Printf("nfsserver: mount decode from %s: %v", addr, err)
			continue
		}

		reply := t.dispatch(call, payload)
		if reply == nil {
			continue
		}
		if _, err := t.conn.WriteToUDP(reply, addr); err != nil {
			t.logger.Printf("nfsserver: mount reply to %s: %v", addr, err)
		}
	}
}

func (t *MountTask) dispatch(call rpc.CallHeader, payload []byte) []byte {
	t.Metrics.IncRpcCall("mount")
	switch call.Procedure {
	case rpc.ProcMountExport:
		body := rpc.EncodeExportReply([]rpc.ExportListEntry{
			{Directory: t.exportDir, Groups: []string{t.exportGroup}},
		})
		return rpc.EncodeReply(call.XID, body)
	case rpc.ProcMountMnt:
		if _, err := rpc.DecodeMntArgs(payload); err != nil {
			t.logger.Printf("nfsserver: mnt decode: %v", err)
			return nil
		}
		body := rpc.EncodeMountReply(rpc.MountReply{Status: 0, FileHandle: [32]byte(t.rootHandle)})
		return rpc.EncodeReply(call.XID, body)
	default:
		t.logger.Printf("nfsserver: mount unhandled procedure %d", call.Procedure)
		return nil
	}
}
