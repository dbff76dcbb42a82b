package nfsserver

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/snapetech/prolink-impersonator/internal/wire/rpc"
)

// encodeUtf16leString mirrors internal/wire/rpc's unexported string
// encoding so tests in this package can build request payloads without
// reaching across package boundaries.
func encodeUtf16leString(s string) []byte {
	units := utf16.Encode([]rune(s))
	body := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(body[2*i:], u)
	}
	out := make([]byte, 4, 4+len(body)+1)
	binary.BigEndian.PutUint32(out[0:4], uint32(len(body)))
	out = append(out, body...)
	if len(body)%2 != 0 {
		out = append(out, 0)
	}
	return out
}

func newCall(xid, program, version, procedure uint32) rpc.CallHeader {
	return rpc.CallHeader{
		XID: xid, Program: program, ProgramVersion: version, Procedure: procedure,
		Credentials: rpc.Credentials{Flavor: rpc.AuthNull},
		Verifier:    rpc.Credentials{Flavor: rpc.AuthNull},
	}
}

// replyPayload strips the fixed 24-byte Reply preamble EncodeReply writes,
// returning just the procedure-specific body.
func replyPayload(buf []byte) []byte {
	const preambleLen = 24
	if len(buf) < preambleLen {
		return nil
	}
	return buf[preambleLen:]
}
