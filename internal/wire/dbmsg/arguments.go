package dbmsg

import (
	"fmt"

	"github.com/snapetech/prolink-impersonator/internal/wire/field"
)

// argType is the one-byte code used inside an argument collection's 12-byte
// type descriptor. It is distinct from field.Kind's own wire tag bytes.
type argType uint8

const (
	argTypeString argType = 0x02
	argTypeBinary argType = 0x03
	argTypeU8     argType = 0x04
	argTypeU16    argType = 0x05
	argTypeU32    argType = 0x06
)

func argTypeForKind(k field.Kind) (argType, error) {
	switch k {
	case field.KindU8:
		return argTypeU8, nil
	case field.KindU16:
		return argTypeU16, nil
	case field.KindU32:
		return argTypeU32, nil
	case field.KindString:
		return argTypeString, nil
	case field.KindBinary:
		return argTypeBinary, nil
	default:
		return 0, fmt.Errorf("dbmsg: no argument type for field kind %v", k)
	}
}

func kindForArgType(t argType) (field.Kind, error) {
	switch t {
	case argTypeU8:
		return field.KindU8, nil
	case argTypeU16:
		return field.KindU16, nil
	case argTypeU32:
		return field.KindU32, nil
	case argTypeString:
		return field.KindString, nil
	case argTypeBinary:
		return field.KindBinary, nil
	default:
		return 0, fmt.Errorf("dbmsg: unrecognised argument type 0x%02x", uint8(t))
	}
}

// encodeArguments emits the argument-collection header {0x0f, count, 0x14,
// 0x00,0x00,0x00,0x0c, type[12]} followed by each field's own encoding.
func encodeArguments(args []field.Field) []byte {
	buf := make([]byte, 0, 19+len(args)*4)
	buf = append(buf, 0x0f, uint8(len(args)), 0x14, 0x00, 0x00, 0x00, 0x0c)

	types := make([]byte, 12)
	for i, a := range args {
		if i >= 12 {
			break
		}
		t, err := argTypeForKind(a.Kind)
		if err != nil {
			panic(err) // caller-constructed frames must use valid field kinds
		}
		types[i] = uint8(t)
	}
	buf = append(buf, types...)

	for _, a := range args {
		buf = append(buf, a.Encode()...)
	}
	return buf
}

// decodeArguments parses the argument-collection header and then decodes
// `count` fields, each one according to its declared type in the 12-byte
// descriptor (invariant: declared types must match the payloads that follow).
func decodeArguments(buf []byte) ([]field.Field, []byte, error) {
	if len(buf) < 19 {
		return nil, nil, &MalformedFrameError{Reason: "argument header: short buffer"}
	}
	if buf[0] != 0x0f {
		return nil, nil, &MalformedFrameError{Reason: fmt.Sprintf("argument header: bad lead byte 0x%02x", buf[0])}
	}
	count := int(buf[1])
	if buf[2] != 0x14 || buf[3] != 0x00 || buf[4] != 0x00 || buf[5] != 0x00 || buf[6] != 0x0c {
		return nil, nil, &MalformedFrameError{Reason: "argument header: bad descriptor prefix"}
	}
	types := buf[7:19]
	rest := buf[19:]

	if count > 12 {
		return nil, nil, &MalformedFrameError{Reason: "argument header: count exceeds descriptor width"}
	}

	args := make([]field.Field, 0, count)
	for i := 0; i < count; i++ {
		kind, err := kindForArgType(argType(types[i]))
		if err != nil {
			return nil, nil, &MalformedFrameError{Reason: err.Error()}
		}

		tagged, next, err := field.DecodeTagged(rest)
		if err != nil {
			return nil, nil, &MalformedFrameError{Reason: fmt.Sprintf("argument %d: %s", i, err)}
		}
		if tagged.Kind != kind {
			return nil, nil, &MalformedFrameError{Reason: fmt.Sprintf("argument %d: declared type %v does not match payload tag %v", i, kind, tagged.Kind)}
		}
		args = append(args, tagged)
		rest = next
	}

	return args, rest, nil
}
