package keepalive

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// StatusKind identifies a StatusPacket's content variant. This is a
// separate packet family from Packet: same 10-byte magic and model framing,
// distinct kind enumeration, exchanged by the status-event engine (§4.7)
// rather than the keepalive engine (§4.6).
type StatusKind uint8

const (
	StatusCdj            StatusKind = 0x0a
	StatusDjm            StatusKind = 0x29
	StatusLoadCmd        StatusKind = 0x19
	StatusLoadCmdReply   StatusKind = 0x1a
	StatusLinkQuery      StatusKind = 0x05
	StatusLinkReply      StatusKind = 0x06
	StatusRekordboxHello StatusKind = 0x10
	StatusRekordboxReply StatusKind = 0x11
)

// Slot is the enumerated medium slot reported in link replies.
type Slot uint8

const (
	SlotEmpty     Slot = 0
	SlotCd        Slot = 1
	SlotSd        Slot = 2
	SlotUsb       Slot = 3
	SlotRekordbox Slot = 4
)

// encodeUtf16Fixed encodes s as UTF-16BE, right-padded with zero bytes to
// capacity; decodeUtf16Fixed decodes by consuming capacity/2 code units
// verbatim (including any trailing NULs the sender left in).
func encodeUtf16Fixed(s string, capacity int) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, capacity)
	for i, u := range units {
		if 2*i+1 >= capacity {
			break
		}
		binary.BigEndian.PutUint16(buf[2*i:], u)
	}
	return buf
}

func decodeUtf16Fixed(buf []byte, capacity int) (string, []byte, error) {
	if len(buf) < capacity {
		return "", nil, &MalformedPacketError{Reason: "fixed UTF-16 string: short buffer"}
	}
	units := make([]uint16, capacity/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(buf[2*i:])
	}
	return string(utf16.Decode(units)), buf[capacity:], nil
}

// LinkQuery is the body of a LinkQuery status packet.
type LinkQuery struct {
	SourceIP            [4]byte
	RemotePlayerNumber  uint8
	Slot                Slot
}

// LinkReply is the body of a LinkReply status packet, the fixed 156-byte
// advertisement answering a device's LinkQuery.
type LinkReply struct {
	SourcePlayerNumber uint8
	Slot               Slot
	Name               string
	Date               string
	Unknown5           string
	TrackCount         uint32
	Unknown6           uint16
	Unknown7           uint16
	PlaylistCount      uint32
	BytesTotal         uint64
	BytesFree          uint64
}

// RekordboxReply is the body of a RekordboxReply status packet answering a
// device's RekordboxHello probe.
type RekordboxReply struct {
	Name string
}

// StatusPacket is a fully decoded status/link datagram (§4.7).
type StatusPacket struct {
	Kind         StatusKind
	Model        string
	Unknown1     uint8
	PlayerNumber uint8

	LinkQuery       *LinkQuery
	LinkReply       *LinkReply
	RekordboxReply  *RekordboxReply
	IsRekordboxHello bool
	IsCdj            bool
	IsDjm            bool
}

// NewRekordboxReply builds a StatusPacket answering a RekordboxHello probe
// with the given virtual-library name.
func NewRekordboxReply(name string) StatusPacket {
	return StatusPacket{
		Kind: StatusRekordboxReply, Model: "Linux", Unknown1: 1, PlayerNumber: 1,
		RekordboxReply: &RekordboxReply{Name: name},
	}
}

// NewLinkReply builds the fixed LinkReply StatusPacket advertised to a
// device that issued a LinkQuery.
func NewLinkReply(libraryName string, trackCount, playlistCount uint32) StatusPacket {
	return StatusPacket{
		Kind: StatusLinkReply, Model: "rekordbox", Unknown1: 1, PlayerNumber: 1,
		LinkReply: &LinkReply{
			SourcePlayerNumber: 0x11,
			Slot:               SlotRekordbox,
			Name:               libraryName,
			Date:               "",
			Unknown5:           "",
			TrackCount:         trackCount,
			Unknown6:           0,
			Unknown7:           257,
			PlaylistCount:      playlistCount,
			BytesTotal:         0,
			BytesFree:          0,
		},
	}
}

// Encode serializes the packet.
func (p StatusPacket) Encode() []byte {
	buf := make([]byte, 0, 192)
	buf = append(buf, Magic[:]...)
	buf = append(buf, byte(p.Kind))
	buf = append(buf, encodeModel(p.Model)...)
	// Rekordbox always advertises itself as source player 0x11 here,
	// regardless of the caller-supplied PlayerNumber.
	buf = append(buf, 0x01, p.Unknown1, 0x11)
	buf = append(buf, p.encodeContent()...)
	return buf
}

func (p StatusPacket) encodeContent() []byte {
	switch p.Kind {
	case StatusRekordboxReply:
		buf := make([]byte, 0, 262)
		buf = append(buf, 0x01, 0x04, 0x11, 0x01, 0x00, 0x00)
		buf = append(buf, encodeUtf16Fixed(p.RekordboxReply.Name, 256)...)
		return buf
	case StatusLinkReply:
		r := p.LinkReply
		buf := make([]byte, 0, 160)
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], 156)
		buf = append(buf, length[:]...)
		buf = append(buf, 0x00, 0x00, 0x00, r.SourcePlayerNumber, 0x00, 0x00, 0x00, byte(r.Slot))
		buf = append(buf, encodeUtf16Fixed(r.Name, 64)...)
		buf = append(buf, encodeUtf16Fixed(r.Date, 24)...)
		buf = append(buf, encodeUtf16Fixed(r.Unknown5, 32)...)
		var u32 [4]byte
		binary.BigEndian.PutUint32(u32[:], r.TrackCount)
		buf = append(buf, u32[:]...)
		var u16 [2]byte
		binary.BigEndian.PutUint16(u16[:], r.Unknown6)
		buf = append(buf, u16[:]...)
		binary.BigEndian.PutUint16(u16[:], r.Unknown7)
		buf = append(buf, u16[:]...)
		binary.BigEndian.PutUint32(u32[:], r.PlaylistCount)
		buf = append(buf, u32[:]...)
		var u64 [8]byte
		binary.BigEndian.PutUint64(u64[:], r.BytesTotal)
		buf = append(buf, u64[:]...)
		binary.BigEndian.PutUint64(u64[:], r.BytesFree)
		buf = append(buf, u64[:]...)
		return buf
	default:
		panic(fmt.Sprintf("keepalive: status encode: unsupported kind 0x%02x", uint8(p.Kind)))
	}
}

// DecodeStatusPacket parses a status/link datagram.
func DecodeStatusPacket(buf []byte) (StatusPacket, error) {
	if len(buf) < 34 {
		return StatusPacket{}, &MalformedPacketError{Reason: "short buffer for header"}
	}
	for i := range Magic {
		if buf[i] != Magic[i] {
			return StatusPacket{}, &MalformedPacketError{Reason: "bad magic"}
		}
	}
	kind := StatusKind(buf[10])
	model := decodeModel(buf[11:31])
	unknown1 := buf[32]
	playerNumber := buf[33]
	rest := buf[34:]

	p := StatusPacket{Kind: kind, Model: model, Unknown1: unknown1, PlayerNumber: playerNumber}

	switch kind {
	case StatusRekordboxHello:
		p.IsRekordboxHello = true
	case StatusCdj:
		p.IsCdj = true
	case StatusDjm:
		p.IsDjm = true
	case StatusLinkQuery:
		if len(rest) < 14 {
			return StatusPacket{}, &MalformedPacketError{Reason: "LinkQuery: short body"}
		}
		var ip [4]byte
		copy(ip[:], rest[2:6])
		p.LinkQuery = &LinkQuery{SourceIP: ip, RemotePlayerNumber: rest[9], Slot: Slot(rest[13])}
	default:
		return StatusPacket{}, &MalformedPacketError{Reason: fmt.Sprintf("unsupported status kind 0x%02x", uint8(kind))}
	}

	return p, nil
}
