package keepalive

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/snapetech/prolink-impersonator/internal/coordinator"
	"github.com/snapetech/prolink-impersonator/internal/netiface"
	"github.com/snapetech/prolink-impersonator/internal/prolinkerr"
	"github.com/snapetech/prolink-impersonator/internal/registry"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := registry.New()
	events := make(chan coordinator.Event, 16)
	mac := net.HardwareAddr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0, IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &Engine{
		conn: conn, finder: netiface.DefaultFinder{}, reg: reg,
		events: events, logger: log.New(io.Discard, "", 0), hostMAC: mac,
	}
}

func TestRunLinkingSequenceFailsWithoutBinding(t *testing.T) {
	e := newTestEngine(t)
	err := e.RunLinkingSequence(context.Background(), [4]byte{10, 0, 0, 5})
	if err != prolinkerr.NoBinding {
		t.Fatalf("expected NoBinding, got %v", err)
	}
}

// TestRunLinkingSequenceSendsFortyDatagramsTotal exercises spec property #4:
// 3 Mac packets + 6*6 Ip packets + 1 final Status packet == 40 datagrams.
func TestRunLinkingSequenceSendsFortyDatagramsTotal(t *testing.T) {
	e := newTestEngine(t)

	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0, IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer receiver.Close()
	e.sendPort = receiver.LocalAddr().(*net.UDPAddr).Port

	_, ipnet, _ := net.ParseCIDR("192.168.10.5/24")
	e.reg.SetBinding(registry.NetworkBinding{
		IPv4:          net.ParseIP("192.168.10.5").To4(),
		BroadcastIPv4: net.ParseIP("127.0.0.1"),
		MAC:           net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		CIDR:          ipnet,
	})

	linkingIterationGap = time.Millisecond
	defer func() { linkingIterationGap = 50 * time.Millisecond }()

	count := 0
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 2048)
		for {
			receiver.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			if _, err := receiver.Read(buf); err != nil {
				break
			}
			count++
		}
		close(done)
	}()

	if err := e.RunLinkingSequence(context.Background(), [4]byte{192, 168, 10, 47}); err != nil {
		t.Fatalf("RunLinkingSequence: %v", err)
	}
	<-done

	if count != 40 {
		t.Fatalf("expected exactly 40 datagrams, got %d", count)
	}
}

func TestRunLinkingSequenceMarksDeviceLinking(t *testing.T) {
	e := newTestEngine(t)
	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0, IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer receiver.Close()
	e.sendPort = receiver.LocalAddr().(*net.UDPAddr).Port
	go io.Copy(io.Discard, receiver)

	_, ipnet, _ := net.ParseCIDR("192.168.10.5/24")
	e.reg.SetBinding(registry.NetworkBinding{
		IPv4: net.ParseIP("192.168.10.5").To4(), BroadcastIPv4: net.ParseIP("127.0.0.1"), CIDR: ipnet,
	})
	linkingIterationGap = time.Millisecond
	defer func() { linkingIterationGap = 50 * time.Millisecond }()

	ipv4 := [4]byte{192, 168, 10, 47}
	// InitiateLink is only ever raised after ReceiveLoop has already
	// upserted the device from a real observation; mirror that here
	// rather than relying on RunLinkingSequence to create the entry.
	e.reg.Upsert(ipv4, 5, "CDJ-2000", false)

	if err := e.RunLinkingSequence(context.Background(), ipv4); err != nil {
		t.Fatalf("RunLinkingSequence: %v", err)
	}
	dev, ok := e.reg.Get(ipv4)
	if !ok || !dev.Linking {
		t.Fatalf("expected device to be marked linking: %+v ok=%v", dev, ok)
	}
	if dev.PlayerNumber != 5 {
		t.Fatalf("expected PlayerNumber preserved at 5, got %d", dev.PlayerNumber)
	}
}
