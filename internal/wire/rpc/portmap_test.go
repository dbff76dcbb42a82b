package rpc

import "testing"

func TestGetportArgsRoundTrip(t *testing.T) {
	want := GetportArgs{Program: ProgramNfs, Version: 2, Protocol: ProtocolUDP, Port: 0}
	encoded := EncodeGetportArgs(want)
	got, err := DecodeGetportArgs(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got=%+v want=%+v", got, want)
	}
}

func TestGetportReplyEncodesPort(t *testing.T) {
	encoded := EncodeGetportReply(55123)
	if len(encoded) != 4 {
		t.Fatalf("expected 4-byte reply, got %d", len(encoded))
	}
}
