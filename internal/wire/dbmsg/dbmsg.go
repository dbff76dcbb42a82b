// Package dbmsg implements the binary database-query frame format exchanged
// over the DB query TCP connection: a length-tagged field codec wrapped in a
// fixed frame header, plus the menu-rendering request/response vocabulary.
package dbmsg

import (
	"fmt"

	"github.com/snapetech/prolink-impersonator/internal/wire/field"
)

// Magic is the 4-byte value that follows the leading 0x11 frame tag on every
// DB query frame.
var Magic = [4]byte{0x87, 0x23, 0x49, 0xae}

const frameTag = 0x11

// RequestType names the known request/response opcodes. Codes absent from
// this table still round-trip via Unknown.
type RequestType uint16

const (
	ReqSetup                  RequestType = 0x0000
	ReqRootMenu               RequestType = 0x1000
	ReqArtist                 RequestType = 0x1002
	ReqAlbum                  RequestType = 0x1003
	ReqTitle                  RequestType = 0x1004
	ReqKey                    RequestType = 0x1012
	ReqAlbumByArtist          RequestType = 0x1102
	ReqPlaylist               RequestType = 0x1105
	ReqTitleByArtistAlbum     RequestType = 0x1202
	ReqSearchQuery            RequestType = 0x1300
	ReqMetadata               RequestType = 0x2002
	ReqPreviewWaveform        RequestType = 0x2004
	ReqMountInfo              RequestType = 0x2102
	ReqLoadTrack              RequestType = 0x2b04
	ReqRender                 RequestType = 0x3000
	RespSuccess               RequestType = 0x4000
	RespMenuHeader            RequestType = 0x4001
	RespMenuItem              RequestType = 0x4101
	RespMenuFooter            RequestType = 0x4201
)

var knownNames = map[RequestType]string{
	ReqSetup:              "Setup",
	ReqRootMenu:           "RootMenuRequest",
	ReqArtist:             "ArtistRequest",
	ReqAlbum:              "AlbumRequest",
	ReqTitle:              "TitleRequest",
	ReqKey:                "KeyRequest",
	ReqAlbumByArtist:      "AlbumByArtistRequest",
	ReqPlaylist:           "PlaylistRequest",
	ReqTitleByArtistAlbum: "TitleByArtistAlbumRequest",
	ReqSearchQuery:        "SearchQueryRequest",
	ReqMetadata:           "MetadataRequest",
	ReqPreviewWaveform:    "PreviewWaveformRequest",
	ReqMountInfo:          "MountInfoRequest",
	ReqLoadTrack:          "LoadTrackRequest",
	ReqRender:             "RenderRequest",
	RespSuccess:           "Success",
	RespMenuHeader:        "MenuHeader",
	RespMenuItem:          "MenuItem",
	RespMenuFooter:        "MenuFooter",
}

// Name returns the request's symbolic name, or "Unknown(0xHHHH)" for codes
// not in the recognized set.
func (r RequestType) Name() string {
	if name, ok := knownNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%04x)", uint16(r))
}

// Frame is a decoded DB query message: {transaction_id, request_type, args}.
type Frame struct {
	TransactionID uint32
	RequestType   RequestType
	Args          []field.Field
}

// MalformedFrameError reports a frame that failed a structural check (bad
// magic, short buffer, bad argument descriptor).
type MalformedFrameError struct {
	Reason string
}

func (e *MalformedFrameError) Error() string { return "malformed db frame: " + e.Reason }

// CheckMagic validates the 5-byte frame prefix (leading tag + magic) and
// returns the remainder of buf after it.
func CheckMagic(buf []byte) ([]byte, error) {
	if len(buf) < 5 {
		return nil, &MalformedFrameError{Reason: "short buffer for magic"}
	}
	if buf[0] != frameTag {
		return nil, &MalformedFrameError{Reason: fmt.Sprintf("bad frame tag 0x%02x", buf[0])}
	}
	if buf[1] != Magic[0] || buf[2] != Magic[1] || buf[3] != Magic[2] || buf[4] != Magic[3] {
		return nil, &MalformedFrameError{Reason: "bad magic"}
	}
	return buf[5:], nil
}

// Decode parses a full DB query frame: the magic prefix, a U32 field
// carrying the transaction id, a U16 field carrying the request type, and an
// argument collection.
func Decode(buf []byte) (Frame, []byte, error) {
	rest, err := CheckMagic(buf)
	if err != nil {
		return Frame{}, nil, err
	}

	txField, rest, err := field.DecodeTagged(rest)
	if err != nil {
		return Frame{}, nil, &MalformedFrameError{Reason: "transaction id: " + err.Error()}
	}
	if txField.Kind != field.KindU32 {
		return Frame{}, nil, &MalformedFrameError{Reason: "transaction id: not U32"}
	}

	reqField, rest, err := field.DecodeTagged(rest)
	if err != nil {
		return Frame{}, nil, &MalformedFrameError{Reason: "request type: " + err.Error()}
	}
	if reqField.Kind != field.KindU16 {
		return Frame{}, nil, &MalformedFrameError{Reason: "request type: not U16"}
	}

	args, rest, err := decodeArguments(rest)
	if err != nil {
		return Frame{}, nil, err
	}

	return Frame{
		TransactionID: txField.U32,
		RequestType:   RequestType(reqField.U16),
		Args:          args,
	}, rest, nil
}

// Encode serializes a complete frame.
func (f Frame) Encode() []byte {
	buf := make([]byte, 0, 16+argumentsSize(f.Args))
	buf = append(buf, frameTag)
	buf = append(buf, Magic[:]...)
	buf = append(buf, field.NewU32(f.TransactionID).Encode()...)
	buf = append(buf, field.NewU16(uint16(f.RequestType)).Encode()...)
	buf = append(buf, encodeArguments(f.Args)...)
	return buf
}

// ResponsePrefix returns {0x11, magic, transaction_id-as-U32-field}, the
// fixed prefix every response frame begins with regardless of its request
// type or arguments (testable property #2 in spec.md §8).
func ResponsePrefix(transactionID uint32) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, frameTag)
	buf = append(buf, Magic[:]...)
	buf = append(buf, field.NewU32(transactionID).Encode()...)
	return buf
}

// NewResponse builds a complete response frame from a transaction id, a
// response type, and arguments.
func NewResponse(transactionID uint32, respType RequestType, args []field.Field) Frame {
	return Frame{TransactionID: transactionID, RequestType: respType, Args: args}
}

func argumentsSize(args []field.Field) int {
	size := 19 // argument-collection header
	for _, a := range args {
		size += len(a.Encode())
	}
	return size
}
