package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/snapetech/prolink-impersonator/internal/prolinkerr"
	"github.com/snapetech/prolink-impersonator/internal/registry"
)

type fakeLinker struct {
	mu      sync.Mutex
	calls   [][4]byte
	failWith error
}

func (f *fakeLinker) RunLinkingSequence(ctx context.Context, ipv4 [4]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ipv4)
	return f.failWith
}

func (f *fakeLinker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestCoordinatorRunsLinkingSequenceOnInitiateLink(t *testing.T) {
	reg := registry.New()
	linker := &fakeLinker{}
	c := New(reg, linker, nil, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	ipv4 := [4]byte{192, 168, 10, 47}
	c.Events() <- Event{Kind: EventInitiateLink, IPv4: ipv4}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if linker.callCount() == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected one linking call, got %d", linker.callCount())
}

func TestCoordinatorClearsLinkingOnNoBinding(t *testing.T) {
	reg := registry.New()
	ipv4 := [4]byte{192, 168, 10, 47}
	reg.Upsert(ipv4, 1, "CDJ-2000", true)

	linker := &fakeLinker{failWith: fmt.Errorf("run: %w", prolinkerr.NoBinding)}
	c := New(reg, linker, nil, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Events() <- Event{Kind: EventInitiateLink, IPv4: ipv4}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !reg.AnyLinking() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected linking to be cleared after NoBinding")
}
