package rpc

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// ExportListEntry is one entry of a Mount EXPORT reply: an exported
// directory and the client groups allowed to mount it.
type ExportListEntry struct {
	Directory string
	Groups    []string
}

// EncodeExportReply serializes the Mount EXPORT reply as a classic NFS
// MOUNT-protocol export list: a chain of `{more:bool, dir, groups...}`
// entries terminated by a false boolean, each group name chained the same
// way. Spec's only scenario is a single fixed entry (§4.9), but the wire
// shape follows the standard protocol regardless of entry count.
func EncodeExportReply(entries []ExportListEntry) []byte {
	buf := new(bytes.Buffer)
	for _, e := range entries {
		_, _ = xdr.Marshal(buf, uint32(1)) // value follows
		buf.Write(encodeXdrString(e.Directory))
		for _, g := range e.Groups {
			_, _ = xdr.Marshal(buf, uint32(1))
			buf.Write(encodeXdrString(g))
		}
		_, _ = xdr.Marshal(buf, uint32(0)) // end of groups
	}
	_, _ = xdr.Marshal(buf, uint32(0)) // end of export list
	return buf.Bytes()
}

// MntArgs is the MNT call body: a UTF-16LE path, even-padded (§4.4).
type MntArgs struct {
	Path string
}

// DecodeMntArgs parses a MNT call body.
func DecodeMntArgs(buf []byte) (MntArgs, error) {
	path, rest, err := decodeUtf16leString(buf)
	if err != nil {
		return MntArgs{}, fmt.Errorf("rpc: mnt args: %w", err)
	}
	if len(rest) != 0 {
		return MntArgs{}, &MalformedMessageError{Reason: "mnt args: trailing bytes"}
	}
	return MntArgs{Path: path}, nil
}

// MountReply is the MNT reply body: `{status, file_handle[32]}` (§4.9).
type MountReply struct {
	Status     uint32
	FileHandle [32]byte
}

// EncodeMountReply serializes a MNT reply body.
func EncodeMountReply(r MountReply) []byte {
	buf := new(bytes.Buffer)
	_, _ = xdr.Marshal(buf, r.Status)
	buf.Write(r.FileHandle[:])
	return buf.Bytes()
}
