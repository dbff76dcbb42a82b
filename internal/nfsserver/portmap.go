package nfsserver

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapetech/prolink-impersonator/internal/metrics"
	"github.com/snapetech/prolink-impersonator/internal/wire/rpc"
)

// Port is the well-known Portmap UDP port.
const Port = 111

// portmapKey identifies a registered (program, version) pair; GETPORT
// ignores Protocol beyond confirming it decodes (documented Open Question
// in internal/wire/rpc).
type portmapKey struct {
	program uint32
	version uint32
}

// spawner starts the UDP task serving a given program/version the first
// time it is requested, returning the port it bound.
type spawner func(ctx context.Context) (uint16, error)

// PortmapServer answers GETPORT on 0.0.0.0:111, lazily spawning the
// Mount and NFS tasks on first request and remembering their ports for
// subsequent lookups (§4.9).
type PortmapServer struct {
	conn     *net.UDPConn
	logger   *log.Logger
	spawners map[portmapKey]spawner

	mu    sync.Mutex
	ports map[portmapKey]uint16

	// Metrics is optional; see internal/keepalive.Engine.Metrics.
	Metrics *metrics.Collector

	// limiter bounds the rate of GETPORT requests this responder answers,
	// shedding load from a misbehaving or duplicate-broadcasting peer
	// without attempting to authenticate it (resilience against an
	// adversarial peer is explicitly out of scope).
	limiter *rate.Limiter
}

// NewPortmapServer binds UDP 0.0.0.0:111 and registers the given program
// spawners. GETPORT requests are rate-limited to getportRate per second
// with a small burst allowance.
func NewPortmapServer(logger *log.Logger, spawners map[portmapKey]spawner) (*PortmapServer, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: Port})
	if err != nil {
		return nil, fmt.Errorf("nfsserver: portmap listen: %w", err)
	}
	return &PortmapServer{
		conn: conn, logger: logger, spawners: spawners,
		ports:   make(map[portmapKey]uint16),
		limiter: rate.NewLimiter(rate.Limit(getportRate), getportBurst),
	}, nil
}

const (
	getportRate  = 50
	getportBurst = 20
)

func (p *PortmapServer) Close() error { return p.conn.Close() }

// Run services GETPORT calls until ctx is canceled.
func (p *PortmapServer) Run(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, addr, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("nfsserver: portmap read: %w", err)
		}

		call, payload, err := rpc.DecodeCall(buf[:n])
		if err != nil {
			p.logger.Printf("nfsserver: portmap decode from %s: %v", addr, err)
			continue
		}
		if call.Program != rpc.ProgramPortmap || call.Procedure != rpc.ProcPortmapGetport {
			p.logger.Printf("nfsserver: portmap unhandled program/procedure %d/%d", call.Program, call.Procedure)
			continue
		}
		if !p.limiter.Allow() {
			p.logger.Printf("nfsserver: getport from %s dropped, rate limit exceeded", addr)
			continue
		}
		p.Metrics.IncRpcCall("portmap")

		args, err := rpc.DecodeGetportArgs(payload)
		if err != nil {
			p.logger.Printf("nfsserver: getport decode: %v", err)
			continue
		}

		port, err := p.resolve(ctx, args)
		if err != nil {
			p.logger.Printf("nfsserver: getport resolve %d/%d: %v", args.Program, args.Version, err)
			continue
		}

		reply := rpc.EncodeReply(call.XID, rpc.EncodeGetportReply(uint32(port)))
		if _, err := p.conn.WriteToUDP(reply, addr); err != nil {
			p.logger.Printf("nfsserver: portmap reply to %s: %v", addr, err)
		}
	}
}

func (p *PortmapServer) resolve(ctx context.Context, args rpc.GetportArgs) (uint16, error) {
	key := portmapKey{program: args.Program, version: args.Version}

	p.mu.Lock()
	defer p.mu.Unlock()

	if port, ok := p.ports[key]; ok {
		return port, nil
	}

	spawn, ok := p.spawners[key]
	if !ok {
		return 0, fmt.Errorf("no task registered for program %d version %d", args.Program, args.Version)
	}
	port, err := spawn(ctx)
	if err != nil {
		return 0, err
	}
	p.ports[key] = port
	return port, nil
}
