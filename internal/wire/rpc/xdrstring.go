package rpc

import "encoding/binary"

// encodeXdrString renders s per RFC 4506 §4.11: `{length:u32, UTF-8
// bytes, zero padding to a 4-byte boundary}`. This is the standard
// convention used by the Mount EXPORT reply's directory/group names,
// distinct from the protocol-specific UTF-16LE strings used by MNT and
// NFS LOOKUP (see utf16le.go).
func encodeXdrString(s string) []byte {
	data := []byte(s)
	pad := (4 - len(data)%4) % 4
	out := make([]byte, 4, 4+len(data)+pad)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(data)))
	out = append(out, data...)
	out = append(out, make([]byte, pad)...)
	return out
}
