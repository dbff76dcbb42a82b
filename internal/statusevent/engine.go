// Package statusevent answers devices' "who are you" probes (§4.7):
// RekordboxHello gets a RekordboxReply naming the virtual library,
// LinkQuery gets the fixed LinkReply, everything else is logged and
// dropped. Grounded on internal/hdhomerun/discover.go's receive loop.
package statusevent

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/snapetech/prolink-impersonator/internal/metrics"
	wire "github.com/snapetech/prolink-impersonator/internal/wire/keepalive"
)

// Port is the well-known UDP port this engine shares with the keepalive
// engine's broadcast socket.
const Port = 50000

// LibraryInfo describes the virtual library advertised to probing devices.
type LibraryInfo struct {
	Name          string
	TrackCount    uint32
	PlaylistCount uint32
}

// Engine owns the status/link-probe responder socket.
type Engine struct {
	conn    *net.UDPConn
	library LibraryInfo
	logger  *log.Logger

	// Metrics is optional; see internal/keepalive.Engine.Metrics.
	Metrics *metrics.Collector
}

// NewEngine binds the shared port-50000 socket with SO_REUSEADDR set.
func NewEngine(library LibraryInfo, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: Port, IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("statusevent: listen UDP: %w", err)
	}
	if err := enableReuseAddr(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Engine{conn: conn, library: library, logger: logger}, nil
}

// Close releases the underlying socket.
func (e *Engine) Close() error {
	return e.conn.Close()
}

// Run reads StatusPacket datagrams until ctx is canceled, answering
// RekordboxHello and LinkQuery probes and dropping everything else.
func (e *Engine) Run(ctx context.Context) error {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		e.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("statusevent: read: %w", err)
		}

		pkt, err := wire.DecodeStatusPacket(buf[:n])
		if err != nil {
			e.logger.Printf("statusevent: decode from %s: %v", addr, err)
			continue
		}

		var reply *wire.StatusPacket
		switch {
		case pkt.IsRekordboxHello:
			r := wire.NewRekordboxReply(e.library.Name)
			reply = &r
			e.Metrics.IncStatusEventReply("rekordbox_hello")
		case pkt.LinkQuery != nil:
			r := wire.NewLinkReply(e.library.Name, e.library.TrackCount, e.library.PlaylistCount)
			reply = &r
			e.Metrics.IncStatusEventReply("link_query")
		case pkt.IsCdj:
			continue
		default:
			e.logger.Printf("statusevent: dropping unsupported kind 0x%02x from %s", uint8(pkt.Kind), addr)
			continue
		}

		if _, err := e.conn.WriteToUDP(reply.Encode(), addr); err != nil {
			e.logger.Printf("statusevent: reply to %s: %v", addr, err)
		}
	}
}
