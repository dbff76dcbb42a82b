package keepalive

import (
	"bytes"
	"net"
	"testing"
)

func TestDecodeMacPacket(t *testing.T) {
	frame := []byte{
		0x51, 0x73, 0x70, 0x74, 0x31, 0x57, 0x6d, 0x4a, 0x4f, 0x4c, 0x00, 0x00,
		0x72, 0x65, 0x6b, 0x6f, 0x72, 0x64, 0x62, 0x6f, 0x78, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x03, 0x00, 0x2c,
		0x01, 0x04, 0xac, 0x87, 0xa3, 0x35, 0xbc, 0x4d,
	}

	p, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Kind != KindMac || p.SubKind != SubKindMac {
		t.Fatalf("unexpected kind/subkind: %v/%v", p.Kind, p.SubKind)
	}
	if p.Model != "rekordbox" {
		t.Fatalf("unexpected model: %q", p.Model)
	}
	if p.DeviceKind != DeviceRekordbox {
		t.Fatalf("unexpected device kind: %v", p.DeviceKind)
	}
	if p.Mac == nil || p.Mac.Iteration != 1 || p.Mac.Unknown2 != 4 {
		t.Fatalf("unexpected mac content: %+v", p.Mac)
	}
	wantMac := [6]byte{0xac, 0x87, 0xa3, 0x35, 0xbc, 0x4d}
	if p.Mac.MacAddr != wantMac {
		t.Fatalf("unexpected mac address: % x", p.Mac.MacAddr)
	}
}

func TestMacPacketRoundTrip(t *testing.T) {
	hw, _ := net.ParseMAC("ac:87:a3:35:bc:4d")
	p := NewMacPacket(1, hw)
	encoded := p.Encode()

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Mac.Iteration != 1 || decoded.Mac.MacAddr != [6]byte{0xac, 0x87, 0xa3, 0x35, 0xbc, 0x4d} {
		t.Fatalf("round trip mismatch: %+v", decoded.Mac)
	}
}

func TestStatusPacketRoundTrip(t *testing.T) {
	ip := net.IPv4(192, 168, 10, 50)
	hw, _ := net.ParseMAC("ff:ff:ff:ff:ff:ff")
	p := NewStatusPacket(ip, hw, 1, 0)
	encoded := p.Encode()
	if len(encoded) != 54 {
		t.Fatalf("expected 54-byte status packet, got %d", len(encoded))
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Status.PlayerNumber != 0x11 || decoded.Status.DeviceCount != 1 {
		t.Fatalf("unexpected status content: %+v", decoded.Status)
	}
	if decoded.Status.Unknown3 != 1 || decoded.Status.Unknown4 != 0 {
		t.Fatalf("unexpected status unknown fields: %+v", decoded.Status)
	}
}

func TestSeqByteTable(t *testing.T) {
	cases := []struct {
		index uint8
		want  uint8
	}{
		{1, 0x11}, {2, 0x12}, {3, 0x29}, {4, 0x2a}, {5, 0x2b}, {6, 0x2c}, {100, 0x2c},
	}
	for _, c := range cases {
		if got := SeqByte(c.index); got != c.want {
			t.Fatalf("SeqByte(%d) = 0x%02x, want 0x%02x", c.index, got, c.want)
		}
	}
}

func TestIpPacketRoundTrip(t *testing.T) {
	ip := net.IPv4(192, 168, 10, 47)
	hw, _ := net.ParseMAC("9c:b6:d0:ee:ff:09")
	p := NewIpPacket(44, 6, ip, hw)
	encoded := p.Encode()

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Ip.Iteration != 44 || decoded.Ip.Index != 6 {
		t.Fatalf("unexpected ip content: %+v", decoded.Ip)
	}
	if !bytes.Equal(decoded.Ip.IPAddr[:], []byte{192, 168, 10, 47}) {
		t.Fatalf("unexpected ip addr: % x", decoded.Ip.IPAddr)
	}
}
