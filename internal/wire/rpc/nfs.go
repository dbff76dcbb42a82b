package rpc

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// NfsStatus is the reply status field for the NFS procedures in scope,
// using the standard NFSv2 (RFC 1094) status codes.
type NfsStatus uint32

const (
	NfsOk               NfsStatus = 0
	NfsFileDoesNotExist NfsStatus = 2
	NfsStaleFileHandle  NfsStatus = 70
)

// FileType distinguishes the kinds of filesystem entry the impersonated
// export can report.
type FileType uint32

const (
	FileTypeFile      FileType = 1
	FileTypeDirectory FileType = 2
)

// Timestamp is an NFSv2 {secs, usecs} pair; §4.9 fixes usecs=0 and reports
// the lower 32 bits of the Unix-epoch second count.
type Timestamp struct {
	Secs  uint32
	Usecs uint32
}

// Attributes mirrors the NFSv2 fattr structure with the fixed field
// values §4.9 specifies for this impersonator's single export.
type Attributes struct {
	Type      FileType
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	Size      uint32
	Blocksize uint32
	Rdev      uint32
	Blocks    uint32
	Fsid      uint32
	FileID    uint32
	Atime     Timestamp
	Mtime     Timestamp
	Ctime     Timestamp
}

// FixedMode is the literal mode value §4.9 specifies: bytes (0,0,0x51,0x18)
// big-endian.
const FixedMode uint32 = 0x00005118

func encodeAttributes(buf *bytes.Buffer, a Attributes) {
	for _, v := range []uint32{
		uint32(a.Type), a.Mode, a.Nlink, a.UID, a.GID, a.Size, a.Blocksize, a.Rdev, a.Blocks, a.Fsid, a.FileID,
	} {
		_, _ = xdr.Marshal(buf, v)
	}
	for _, ts := range []Timestamp{a.Atime, a.Mtime, a.Ctime} {
		_, _ = xdr.Marshal(buf, ts.Secs)
		_, _ = xdr.Marshal(buf, ts.Usecs)
	}
}

// FileHandle is the opaque 32-byte handle exchanged by MNT, LOOKUP, and
// subsequent NFS calls.
type FileHandle [32]byte

// GetattrArgs is the GETATTR call body: a single file handle.
type GetattrArgs struct {
	FileHandle FileHandle
}

// DecodeGetattrArgs parses a GETATTR call body.
func DecodeGetattrArgs(buf []byte) (GetattrArgs, error) {
	if len(buf) != 32 {
		return GetattrArgs{}, &MalformedMessageError{Reason: "getattr args: expected 32-byte handle"}
	}
	var a GetattrArgs
	copy(a.FileHandle[:], buf)
	return a, nil
}

// EncodeGetattrReply serializes a GETATTR reply body.
func EncodeGetattrReply(status NfsStatus, attrs Attributes) []byte {
	buf := new(bytes.Buffer)
	_, _ = xdr.Marshal(buf, uint32(status))
	if status == NfsOk {
		encodeAttributes(buf, attrs)
	}
	return buf.Bytes()
}

// LookupArgs is the LOOKUP call body: `{fhandle(32), name_length, UTF-16LE
// name}` (§4.4).
type LookupArgs struct {
	FileHandle FileHandle
	Name       string
}

// DecodeLookupArgs parses a LOOKUP call body.
func DecodeLookupArgs(buf []byte) (LookupArgs, error) {
	if len(buf) < 32 {
		return LookupArgs{}, &MalformedMessageError{Reason: "lookup args: short handle"}
	}
	var a LookupArgs
	copy(a.FileHandle[:], buf[:32])
	name, rest, err := decodeUtf16leString(buf[32:])
	if err != nil {
		return LookupArgs{}, fmt.Errorf("rpc: lookup args: %w", err)
	}
	if len(rest) != 0 {
		return LookupArgs{}, &MalformedMessageError{Reason: "lookup args: trailing bytes"}
	}
	a.Name = name
	return a, nil
}

// EncodeLookupReply serializes a LOOKUP reply body.
func EncodeLookupReply(status NfsStatus, fh FileHandle, attrs Attributes) []byte {
	buf := new(bytes.Buffer)
	_, _ = xdr.Marshal(buf, uint32(status))
	if status == NfsOk {
		buf.Write(fh[:])
		encodeAttributes(buf, attrs)
	}
	return buf.Bytes()
}

// ReadArgs is the READ call body: `{fhandle(32), offset, count,
// total_count}` (§4.4).
type ReadArgs struct {
	FileHandle FileHandle
	Offset     uint32
	Count      uint32
	TotalCount uint32
}

// DecodeReadArgs parses a READ call body.
func DecodeReadArgs(buf []byte) (ReadArgs, error) {
	if len(buf) != 32+4+4+4 {
		return ReadArgs{}, &MalformedMessageError{Reason: "read args: unexpected length"}
	}
	var a ReadArgs
	copy(a.FileHandle[:], buf[:32])
	r := bytes.NewReader(buf[32:])
	for _, dst := range []*uint32{&a.Offset, &a.Count, &a.TotalCount} {
		if _, err := xdr.Unmarshal(r, dst); err != nil {
			return ReadArgs{}, fmt.Errorf("rpc: read args: %w", err)
		}
	}
	return a, nil
}

// EncodeReadReply serializes a READ reply body: status, attributes, and
// the data read (as a standard 4-byte-padded XDR opaque, not the
// protocol's UTF-16LE string convention).
func EncodeReadReply(status NfsStatus, attrs Attributes, data []byte) []byte {
	buf := new(bytes.Buffer)
	_, _ = xdr.Marshal(buf, uint32(status))
	if status != NfsOk {
		return buf.Bytes()
	}
	encodeAttributes(buf, attrs)
	_, _ = xdr.Marshal(buf, uint32(len(data)))
	buf.Write(data)
	if pad := (4 - len(data)%4) % 4; pad != 0 {
		buf.Write(make([]byte, pad))
	}
	return buf.Bytes()
}
