package rpc

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// encodeUtf16leString renders s as `{length:u32, UTF-16LE bytes, even
// padding}` — the Mount MNT and NFS LOOKUP string convention (§4.4),
// distinct from XDR's UTF-8/4-byte-boundary string rule.
func encodeUtf16leString(s string) []byte {
	units := utf16.Encode([]rune(s))
	body := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(body[2*i:], u)
	}

	out := make([]byte, 4, 4+padEven(len(body)))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(body)))
	out = append(out, body...)
	if pad := padEven(len(body)) - len(body); pad > 0 {
		out = append(out, 0)
	}
	return out
}

// decodeUtf16leString parses the `{length, UTF-16LE bytes, even padding}`
// convention, returning the decoded string and the remainder of buf.
func decodeUtf16leString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, fmt.Errorf("rpc: utf16le string: short length prefix")
	}
	length := binary.BigEndian.Uint32(buf[0:4])
	rest := buf[4:]
	if uint64(length) > uint64(len(rest)) {
		return "", nil, fmt.Errorf("rpc: utf16le string: length %d exceeds buffer", length)
	}
	body := rest[:length]
	if len(body)%2 != 0 {
		return "", nil, fmt.Errorf("rpc: utf16le string: odd byte length %d", len(body))
	}
	units := make([]uint16, len(body)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(body[2*i:])
	}

	consumed := padEven(int(length))
	if consumed > len(rest) {
		return "", nil, fmt.Errorf("rpc: utf16le string: padded length exceeds buffer")
	}
	return string(utf16.Decode(units)), rest[consumed:], nil
}
