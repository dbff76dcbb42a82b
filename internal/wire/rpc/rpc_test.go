package rpc

import "testing"

func TestCallRoundTripAuthNull(t *testing.T) {
	h := CallHeader{
		XID: 42, Program: ProgramPortmap, ProgramVersion: 2, Procedure: ProcPortmapGetport,
		Credentials: Credentials{Flavor: AuthNull},
		Verifier:    Credentials{Flavor: AuthNull},
	}
	payload := EncodeGetportArgs(GetportArgs{Program: ProgramNfs, Version: 2, Protocol: ProtocolUDP, Port: 0})
	encoded := EncodeCall(h, payload)

	decoded, rest, err := DecodeCall(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.XID != 42 || decoded.Program != ProgramPortmap || decoded.Procedure != ProcPortmapGetport {
		t.Fatalf("unexpected header: %+v", decoded)
	}
	if decoded.Credentials.Flavor != AuthNull || decoded.Verifier.Flavor != AuthNull {
		t.Fatalf("unexpected credentials: %+v", decoded.Credentials)
	}
	args, err := DecodeGetportArgs(rest)
	if err != nil {
		t.Fatalf("getport args: %v", err)
	}
	if args.Program != ProgramNfs || args.Protocol != ProtocolUDP {
		t.Fatalf("unexpected getport args: %+v", args)
	}
}

func TestCallRoundTripAuthUnix(t *testing.T) {
	h := CallHeader{
		XID: 7, Program: ProgramMount, ProgramVersion: 1, Procedure: ProcMountMnt,
		Credentials: Credentials{Flavor: AuthUnix, Unix: &UnixCredentials{Stamp: 1, MachineID: 2, UID: 1000, GID: 1000, AuxGID: 0}},
		Verifier:    Credentials{Flavor: AuthNull},
	}
	encoded := EncodeCall(h, encodeUtf16leString("/C/"))

	decoded, rest, err := DecodeCall(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Credentials.Flavor != AuthUnix || decoded.Credentials.Unix.UID != 1000 {
		t.Fatalf("unexpected credentials: %+v", decoded.Credentials)
	}
	args, err := DecodeMntArgs(rest)
	if err != nil {
		t.Fatalf("mnt args: %v", err)
	}
	if args.Path != "/C/" {
		t.Fatalf("unexpected path: %q", args.Path)
	}
}

func TestEncodeReplyLengthDivisibleByFour(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 5, 13, 32} {
		payload := make([]byte, n)
		encoded := EncodeReply(1, payload)
		if len(encoded)%4 != 0 {
			t.Fatalf("payload len %d: reply length %d not divisible by 4", n, len(encoded))
		}
	}
}

func TestRejectsNonCallMsgType(t *testing.T) {
	encoded := EncodeReply(1, nil)
	if _, _, err := DecodeCall(encoded); err == nil {
		t.Fatalf("expected error decoding a Reply as a Call")
	}
}
