package rpc

import (
	"bytes"
	"testing"
)

func fixedAttributes() Attributes {
	return Attributes{
		Type: FileTypeDirectory, Mode: FixedMode, Nlink: 1, UID: 0, GID: 0,
		Size: 4096, Blocksize: 4096, Rdev: 0, Blocks: 8, Fsid: 0, FileID: 0,
		Atime: Timestamp{Secs: 1700000000}, Mtime: Timestamp{Secs: 1700000000}, Ctime: Timestamp{Secs: 1700000000},
	}
}

func TestGetattrArgsRoundTrip(t *testing.T) {
	var fh FileHandle
	fh[0] = 1
	args, err := DecodeGetattrArgs(fh[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if args.FileHandle != fh {
		t.Fatalf("unexpected handle: %+v", args.FileHandle)
	}
}

func TestLookupArgsRoundTrip(t *testing.T) {
	var fh FileHandle
	fh[1] = 2
	buf := append([]byte{}, fh[:]...)
	buf = append(buf, encodeUtf16leString("Users")...)

	args, err := DecodeLookupArgs(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if args.Name != "Users" || args.FileHandle != fh {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestReadArgsRoundTrip(t *testing.T) {
	var fh FileHandle
	fh[2] = 3
	buf := append([]byte{}, fh[:]...)
	var u32 [4]byte
	putU32 := func(v uint32) {
		u32[0], u32[1], u32[2], u32[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
		buf = append(buf, u32[:]...)
	}
	putU32(0)
	putU32(16)
	putU32(4096)

	args, err := DecodeReadArgs(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if args.Offset != 0 || args.Count != 16 || args.TotalCount != 4096 {
		t.Fatalf("unexpected read args: %+v", args)
	}
}

func TestEncodeLookupReplySuccess(t *testing.T) {
	var fh FileHandle
	fh[0] = 0x42
	encoded := EncodeLookupReply(NfsOk, fh, fixedAttributes())
	if len(encoded) < 4+32 {
		t.Fatalf("reply too short: %d", len(encoded))
	}
	if !bytes.Equal(encoded[4:36], fh[:]) {
		t.Fatalf("file handle mismatch: % x", encoded[4:36])
	}
}

func TestEncodeReadReplyCarriesData(t *testing.T) {
	data := []byte("0123456789abcdef")
	encoded := EncodeReadReply(NfsOk, fixedAttributes(), data)
	if len(encoded)%4 != 0 {
		t.Fatalf("read reply not 4-byte aligned: %d", len(encoded))
	}
	tail := encoded[len(encoded)-len(data):]
	if !bytes.Equal(tail, data) {
		t.Fatalf("data not carried through: % x", tail)
	}
}

func TestEncodeReadReplyErrorOmitsBody(t *testing.T) {
	encoded := EncodeReadReply(NfsFileDoesNotExist, Attributes{}, nil)
	if len(encoded) != 4 {
		t.Fatalf("expected 4-byte error reply, got %d", len(encoded))
	}
}
