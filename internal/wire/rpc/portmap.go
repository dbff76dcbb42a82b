package rpc

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// GetportArgs is the GETPORT call body: `{program, version, protocol,
// port}` (four u32s, 16 bytes, §4.9). Per the documented Open Question, the getport
// response ignores Protocol beyond confirming it decodes; the registry
// keys solely on (Program, Version).
type GetportArgs struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// EncodeGetportArgs serializes a GETPORT call body.
func EncodeGetportArgs(a GetportArgs) []byte {
	buf := new(bytes.Buffer)
	for _, v := range []uint32{a.Program, a.Version, a.Protocol, a.Port} {
		_, _ = xdr.Marshal(buf, v)
	}
	return buf.Bytes()
}

// DecodeGetportArgs parses a GETPORT call body.
func DecodeGetportArgs(buf []byte) (GetportArgs, error) {
	r := bytes.NewReader(buf)
	var a GetportArgs
	for _, dst := range []*uint32{&a.Program, &a.Version, &a.Protocol, &a.Port} {
		if _, err := xdr.Unmarshal(r, dst); err != nil {
			return GetportArgs{}, fmt.Errorf("rpc: getport args: %w", err)
		}
	}
	return a, nil
}

// EncodeGetportReply serializes a GETPORT reply body: the allocated port
// as a single u32.
func EncodeGetportReply(port uint32) []byte {
	buf := new(bytes.Buffer)
	_, _ = xdr.Marshal(buf, port)
	return buf.Bytes()
}
