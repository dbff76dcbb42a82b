// Package field implements the tagged primitive field codec used by the
// database-query wire protocol: a one-byte type tag followed by a
// variant-specific payload for each of U8, U16, U32, String and Binary.
package field

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Kind identifies a Field's variant and doubles as its wire type tag.
type Kind uint8

const (
	KindU8     Kind = 0x0f
	KindU16    Kind = 0x10
	KindU32    Kind = 0x11
	KindBinary Kind = 0x14
	KindString Kind = 0x26
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "U8"
	case KindU16:
		return "U16"
	case KindU32:
		return "U32"
	case KindBinary:
		return "Binary"
	case KindString:
		return "String"
	default:
		return fmt.Sprintf("Kind(0x%02x)", uint8(k))
	}
}

// MalformedFieldError is returned when a field's declared length exceeds the
// buffer being decoded, or an unrecognised tag byte is encountered.
type MalformedFieldError struct {
	Reason string
}

func (e *MalformedFieldError) Error() string {
	return "malformed field: " + e.Reason
}

// Field is a sum type over the five wire primitives the DB query protocol
// exchanges as request/response arguments.
type Field struct {
	Kind    Kind
	U8      uint8
	U16     uint16
	U32     uint32
	Str     string
	Binary  []byte
}

func NewU8(v uint8) Field    { return Field{Kind: KindU8, U8: v} }
func NewU16(v uint16) Field  { return Field{Kind: KindU16, U16: v} }
func NewU32(v uint32) Field  { return Field{Kind: KindU32, U32: v} }
func NewString(s string) Field {
	return Field{Kind: KindString, Str: s}
}
func NewBinary(b []byte) Field {
	return Field{Kind: KindBinary, Binary: b}
}

// Encode serializes the field: a one-byte tag followed by the
// variant-specific payload.
func (f Field) Encode() []byte {
	switch f.Kind {
	case KindU8:
		return []byte{byte(KindU8), f.U8}
	case KindU16:
		buf := make([]byte, 3)
		buf[0] = byte(KindU16)
		binary.BigEndian.PutUint16(buf[1:], f.U16)
		return buf
	case KindU32:
		buf := make([]byte, 5)
		buf[0] = byte(KindU32)
		binary.BigEndian.PutUint32(buf[1:], f.U32)
		return buf
	case KindString:
		return encodeString(f.Str)
	case KindBinary:
		return encodeBinary(f.Binary)
	default:
		panic(fmt.Sprintf("field: encode: unknown kind %v", f.Kind))
	}
}

// encodeString emits 0x26, a big-endian u32 of (UTF-16 code unit count)+1,
// the UTF-16BE code units, then two trailing NUL bytes.
func encodeString(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 0, 1+4+2*len(units)+2)
	buf = append(buf, byte(KindString))

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(units))+1)
	buf = append(buf, lenBuf[:]...)

	for _, u := range units {
		var unitBuf [2]byte
		binary.BigEndian.PutUint16(unitBuf[:], u)
		buf = append(buf, unitBuf[:]...)
	}
	buf = append(buf, 0x00, 0x00)
	return buf
}

// encodeBinary emits 0x14, a big-endian u32 length, then the raw bytes. An
// empty Binary emits only its tag (the trailing-Binary-at-message-end
// exception spec.md §4.1 calls out).
func encodeBinary(b []byte) []byte {
	if len(b) == 0 {
		return []byte{byte(KindBinary)}
	}
	buf := make([]byte, 0, 5+len(b))
	buf = append(buf, byte(KindBinary))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, b...)
	return buf
}

// DecodeTagged reads the one-byte type tag from the front of buf and
// dispatches to Decode for that kind. Use this when the kind is not already
// known from context (e.g. a bare argument slot); use Decode directly when
// the kind is already pinned down (e.g. by an argument-collection type
// descriptor).
func DecodeTagged(buf []byte) (Field, []byte, error) {
	if len(buf) < 1 {
		return Field{}, nil, &MalformedFieldError{Reason: "tag: short buffer"}
	}
	kind := Kind(buf[0])
	switch kind {
	case KindU8, KindU16, KindU32, KindString, KindBinary:
		return Decode(kind, buf[1:])
	default:
		return Field{}, nil, &MalformedFieldError{Reason: fmt.Sprintf("unrecognised tag 0x%02x", buf[0])}
	}
}

// Decode parses a field of the given kind from buf (which must NOT include
// the leading tag byte — callers peel that off to select kind first) and
// returns the decoded field plus the unconsumed remainder.
func Decode(kind Kind, buf []byte) (Field, []byte, error) {
	switch kind {
	case KindU8:
		if len(buf) < 1 {
			return Field{}, nil, &MalformedFieldError{Reason: "U8: short buffer"}
		}
		return Field{Kind: KindU8, U8: buf[0]}, buf[1:], nil

	case KindU16:
		if len(buf) < 2 {
			return Field{}, nil, &MalformedFieldError{Reason: "U16: short buffer"}
		}
		return Field{Kind: KindU16, U16: binary.BigEndian.Uint16(buf)}, buf[2:], nil

	case KindU32:
		if len(buf) < 4 {
			return Field{}, nil, &MalformedFieldError{Reason: "U32: short buffer"}
		}
		return Field{Kind: KindU32, U32: binary.BigEndian.Uint32(buf)}, buf[4:], nil

	case KindString:
		return decodeString(buf)

	case KindBinary:
		return decodeBinary(buf)

	default:
		return Field{}, nil, &MalformedFieldError{Reason: fmt.Sprintf("unknown kind 0x%02x", uint8(kind))}
	}
}

func decodeString(buf []byte) (Field, []byte, error) {
	if len(buf) < 4 {
		return Field{}, nil, &MalformedFieldError{Reason: "String: short length"}
	}
	count := binary.BigEndian.Uint32(buf)
	buf = buf[4:]

	if count == 0 {
		return Field{}, nil, &MalformedFieldError{Reason: "String: zero count (must include trailing NUL)"}
	}
	codeUnits := int(count) - 1
	need := 2*codeUnits + 2 // UTF-16BE payload + two trailing NUL bytes
	if len(buf) < need {
		return Field{}, nil, &MalformedFieldError{Reason: "String: declared length exceeds buffer"}
	}

	units := make([]uint16, codeUnits)
	for i := 0; i < codeUnits; i++ {
		units[i] = binary.BigEndian.Uint16(buf[2*i:])
	}
	s := string(utf16.Decode(units))
	return Field{Kind: KindString, Str: s}, buf[need:], nil
}

func decodeBinary(buf []byte) (Field, []byte, error) {
	// Empty-tail exception: a Binary argument at the very end of a message
	// with nothing following its tag decodes as an empty Binary without
	// consuming (or requiring) a length.
	if len(buf) == 0 {
		return Field{Kind: KindBinary, Binary: nil}, buf, nil
	}
	if len(buf) < 4 {
		return Field{}, nil, &MalformedFieldError{Reason: "Binary: short length"}
	}
	length := binary.BigEndian.Uint32(buf)
	buf = buf[4:]
	if uint64(length) > uint64(len(buf)) {
		return Field{}, nil, &MalformedFieldError{Reason: "Binary: declared length exceeds buffer"}
	}
	data := make([]byte, length)
	copy(data, buf[:length])
	return Field{Kind: KindBinary, Binary: data}, buf[length:], nil
}
