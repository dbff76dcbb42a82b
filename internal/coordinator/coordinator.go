// Package coordinator drives the linking handshake: it consumes
// InitiateLink/DeviceChange events produced by the keepalive engine's
// receive loop and instructs the keepalive engine to run the linking
// sequence (§4.6, §5).
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/snapetech/prolink-impersonator/internal/prolinkerr"
	"github.com/snapetech/prolink-impersonator/internal/registry"
)

// EventKind distinguishes the two events the keepalive engine's receive
// loop can raise.
type EventKind int

const (
	EventInitiateLink EventKind = iota
	EventDeviceChange
)

// Event is a single application event, keyed to the device that caused it.
type Event struct {
	Kind EventKind
	IPv4 [4]byte
}

// Linker runs the linking sequence for a device (§4.6); implemented by
// the keepalive engine.
type Linker interface {
	RunLinkingSequence(ctx context.Context, ipv4 [4]byte) error
}

// Coordinator is the single consumer of a single-producer application
// event channel.
type Coordinator struct {
	registry *registry.Registry
	linker   Linker
	events   chan Event
	logger   *log.Logger
}

// New returns a Coordinator reading from a channel of the given buffer
// size. A buffer of at least a few entries lets the keepalive engine's
// receive loop avoid blocking on a slow-draining coordinator.
func New(reg *registry.Registry, linker Linker, logger *log.Logger, bufferSize int) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{registry: reg, linker: linker, events: make(chan Event, bufferSize), logger: logger}
}

// Events returns the send side of the coordinator's event channel, for
// the keepalive engine's receive loop to publish to.
func (c *Coordinator) Events() chan<- Event {
	return c.events
}

// SetLinker replaces the Linker used by Run. It exists because the
// keepalive engine (the concrete Linker) itself needs this coordinator's
// event channel to be constructed, so the two can't be built in a single
// pass; callers build the coordinator first with a nil linker, build the
// keepalive engine from its Events() channel, then call SetLinker before
// starting Run.
func (c *Coordinator) SetLinker(linker Linker) {
	c.linker = linker
}

// Run consumes events until ctx is canceled.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventDeviceChange:
		c.logger.Printf("coordinator: device change from %v", ev.IPv4)
	case EventInitiateLink:
		c.logger.Printf("coordinator: initiating link sequence for %v", ev.IPv4)
		if err := c.linker.RunLinkingSequence(ctx, ev.IPv4); err != nil {
			if errors.Is(err, prolinkerr.NoBinding) {
				c.logger.Printf("coordinator: linking %v failed, no network binding observed: %v", ev.IPv4, err)
				c.registry.ClearLinking(ev.IPv4)
				return
			}
			c.logger.Printf("coordinator: linking sequence for %v failed: %v", ev.IPv4, fmt.Errorf("run linking sequence: %w", err))
		}
	}
}
