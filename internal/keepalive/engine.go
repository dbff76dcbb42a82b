// Package keepalive implements the UDP discovery/keepalive engine (§4.6):
// a receive loop that upserts observed devices into the registry and
// raises coordinator events, a 500ms status broadcaster, and the
// three-phase linking sequence the coordinator triggers on InitiateLink.
// Grounded on internal/hdhomerun/discover.go's deadline-based receive
// loop and internal/hdhomerun/server.go's context-driven shutdown.
package keepalive

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/snapetech/prolink-impersonator/internal/coordinator"
	"github.com/snapetech/prolink-impersonator/internal/metrics"
	"github.com/snapetech/prolink-impersonator/internal/netiface"
	"github.com/snapetech/prolink-impersonator/internal/prolinkerr"
	"github.com/snapetech/prolink-impersonator/internal/registry"
	wire "github.com/snapetech/prolink-impersonator/internal/wire/keepalive"
)

// Port is the well-known UDP port devices broadcast keepalives on.
const Port = 50000

const broadcastInterval = 500 * time.Millisecond

// linkingIterationGap is the spacing between datagrams in the linking
// sequence; a var (not const) so tests can shrink it.
var linkingIterationGap = 50 * time.Millisecond

// Engine owns the port-50000 UDP socket and drives both the receive loop
// and the periodic broadcaster (§4.6).
type Engine struct {
	conn     *net.UDPConn
	pconn    *ipv4.PacketConn
	finder   netiface.Finder
	reg      *registry.Registry
	events   chan<- coordinator.Event
	logger   *log.Logger
	hostMAC  net.HardwareAddr
	sendPort int

	// Metrics is optional; a nil Collector makes every recorded metric a
	// no-op, so callers that don't set Config.MetricsAddr pay nothing.
	Metrics *metrics.Collector
}

// NewEngine binds the port-50000 UDP socket and enables broadcast sends.
func NewEngine(reg *registry.Registry, events chan<- coordinator.Event, hostMAC net.HardwareAddr, finder netiface.Finder, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	if finder == nil {
		finder = netiface.DefaultFinder{}
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: Port, IP: net.IPv4zero})
	if err != nil {
		return nil, fmt.Errorf("keepalive: listen UDP: %w", err)
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Engine{
		conn: conn, pconn: ipv4.NewPacketConn(conn), finder: finder,
		reg: reg, events: events, logger: logger, hostMAC: hostMAC,
		sendPort: Port,
	}, nil
}

// Close releases the underlying socket.
func (e *Engine) Close() error {
	return e.conn.Close()
}

// ReceiveLoop reads keepalive datagrams until ctx is canceled, upserting
// observed hardware devices and raising DeviceChange/InitiateLink events.
func (e *Engine) ReceiveLoop(ctx context.Context) error {
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
			return fmt.Errorf("keepalive: read: %w", err)
		}

		pkt, err := wire.Decode(buf[:n])
		if err != nil {
			e.logger.Printf("keepalive: decode from %s: %v", addr, err)
			continue
		}
		if pkt.Kind != wire.KindStatus || pkt.Model == "rekordbox" {
			continue
		}
		e.Metrics.IncKeepalivePacket()

		ip4 := addr.IP.To4()
		if ip4 == nil {
			continue
		}
		var ipv4Key [4]byte
		copy(ipv4Key[:], ip4)

		_, countIncreased := e.reg.Upsert(ipv4Key, pkt.Status.PlayerNumber, pkt.Model, false)
		e.Metrics.SetDevicesActive(e.reg.Len())

		if iface, ipnet, err := e.finder.FindContaining(addr.IP); err == nil {
			e.reg.SetBinding(registry.NetworkBinding{
				IPv4: ipnet.IP, BroadcastIPv4: netiface.BroadcastAddr(ipnet), MAC: iface.HardwareAddr, CIDR: ipnet,
				Index: iface.Index,
			})
		} else {
			e.logger.Printf("keepalive: no interface binding for peer %s: %v", addr.IP, err)
		}

		if countIncreased {
			e.publish(coordinator.Event{Kind: coordinator.EventDeviceChange, IPv4: ipv4Key})
		}
		if e.reg.Len() > 0 && !e.reg.AnyLinking() {
			e.publish(coordinator.Event{Kind: coordinator.EventInitiateLink, IPv4: ipv4Key})
		}
	}
}

func (e *Engine) publish(ev coordinator.Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Printf("keepalive: event channel full, dropping %v for %v", ev.Kind, ev.IPv4)
	}
}

// Broadcaster emits a Status keepalive every 500ms once a network binding
// is set, until ctx is canceled.
func (e *Engine) Broadcaster(ctx context.Context) error {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			binding, ok := e.reg.GetBinding()
			if !ok {
				continue
			}
			pkt := wire.NewStatusPacket(binding.IPv4, e.hostMAC, 1, 0)
			if err := e.sendTo(binding, pkt.Encode()); err != nil {
				e.logger.Printf("keepalive: broadcast: %v", err)
			}
		}
	}
}

// RunLinkingSequence implements coordinator.Linker: three Mac packets
// spaced 50ms apart, then 36 Ip packets (iteration 1..6 × index 1..6),
// then a final Status packet with unknown3=4, unknown4=8 (§4.6).
func (e *Engine) RunLinkingSequence(ctx context.Context, ipv4 [4]byte) error {
	binding, ok := e.reg.GetBinding()
	if !ok {
		return prolinkerr.NoBinding
	}
	e.reg.MarkLinking(ipv4)

	send := func(payload []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return e.sendTo(binding, payload)
	}

	for iteration := uint8(1); iteration <= 3; iteration++ {
		pkt := wire.NewMacPacket(iteration, e.hostMAC)
		if err := send(pkt.Encode()); err != nil {
			return fmt.Errorf("keepalive: linking mac packet %d: %w", iteration, err)
		}
		time.Sleep(linkingIterationGap)
	}

	for iteration := uint8(1); iteration <= 6; iteration++ {
		for index := uint8(1); index <= 6; index++ {
			pkt := wire.NewIpPacket(iteration, index, binding.IPv4, e.hostMAC)
			if err := send(pkt.Encode()); err != nil {
				return fmt.Errorf("keepalive: linking ip packet %d/%d: %w", iteration, index, err)
			}
			time.Sleep(linkingIterationGap)
		}
	}

	final := wire.NewStatusPacket(binding.IPv4, e.hostMAC, 4, 8)
	if err := send(final.Encode()); err != nil {
		return fmt.Errorf("keepalive: linking final status: %w", err)
	}
	return nil
}

// sendTo writes payload to binding.BroadcastIPv4, pinning the outgoing
// interface to the one the binding was observed on (when known) via the
// ipv4.PacketConn control message, rather than letting the OS pick a route.
func (e *Engine) sendTo(binding registry.NetworkBinding, payload []byte) error {
	dst := &net.UDPAddr{IP: binding.BroadcastIPv4, Port: e.sendPort}
	if binding.Index == 0 {
		_, err := e.conn.WriteToUDP(payload, dst)
		return err
	}
	cm := &ipv4.ControlMessage{IfIndex: binding.Index}
	_, err := e.pconn.WriteTo(payload, cm, dst)
	return err
}
