package keepalive

import (
	"bytes"
	"testing"
)

func TestRekordboxReplyWireBytes(t *testing.T) {
	p := NewRekordboxReply("Term DJ")
	p.Unknown1 = 1

	want := make([]byte, 0, 296)
	want = append(want, Magic[:]...)
	want = append(want, 0x11)
	want = append(want, []byte("Linux")...)
	want = append(want, make([]byte, 15)...)
	want = append(want, 0x01, 0x01, 0x11)
	want = append(want, 0x01, 0x04, 0x11, 0x01, 0x00, 0x00)
	name := encodeUtf16Fixed("Term DJ", 256)
	want = append(want, name...)

	got := p.Encode()
	if !bytes.Equal(got, want) {
		t.Fatalf("encode mismatch:\n got=% x\nwant=% x", got, want)
	}
}

func TestLinkReplyLength(t *testing.T) {
	p := NewLinkReply("rekordbox", 1051, 94)
	got := p.Encode()
	// header(34) + length-prefix(2) + 156 declared content bytes.
	if len(got) != 34+2+156 {
		t.Fatalf("unexpected link reply length: %d", len(got))
	}
}

func TestDecodeRekordboxHello(t *testing.T) {
	buf := make([]byte, 0, 34)
	buf = append(buf, Magic[:]...)
	buf = append(buf, 0x10) // StatusRekordboxHello
	buf = append(buf, []byte("XDJ-700")...)
	buf = append(buf, make([]byte, 13)...)
	buf = append(buf, 0x00, 0x01)
	buf = append(buf, 0x01)

	p, err := DecodeStatusPacket(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !p.IsRekordboxHello {
		t.Fatalf("expected RekordboxHello flag, got %+v", p)
	}
	if p.Model != "XDJ-700" {
		t.Fatalf("unexpected model: %q", p.Model)
	}
}
