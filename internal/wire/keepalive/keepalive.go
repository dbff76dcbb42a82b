// Package keepalive implements the UDP discovery/keepalive packet format
// exchanged on port 50000: a fixed 10-byte magic, a one-byte packet kind, a
// 20-byte NUL-padded model name, a one-byte device kind, a one-byte subkind,
// and a kind-specific body.
package keepalive

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Magic is the fixed 10-byte prefix of every keepalive packet ("Qspt1WmJOL").
var Magic = [10]byte{0x51, 0x73, 0x70, 0x74, 0x31, 0x57, 0x6d, 0x4a, 0x4f, 0x4c}

// Kind identifies the packet's content variant.
type Kind uint8

const (
	KindHello  Kind = 0x0a
	KindNumber Kind = 0x04
	KindMac    Kind = 0x00
	KindIp     Kind = 0x02
	KindStatus Kind = 0x06
	KindChange Kind = 0x08
)

// SubKind is a second tag byte, fixed per Kind in practice but decoded
// verbatim rather than inferred.
type SubKind uint8

const (
	SubKindHello       SubKind = 0x25
	SubKindNumber      SubKind = 0x26
	SubKindMac         SubKind = 0x2c
	SubKindIp          SubKind = 0x32
	SubKindStatus      SubKind = 0x36
	SubKindChange      SubKind = 0x29
	SubKindStatusMixer SubKind = 0x00
)

// DeviceKind identifies the kind of peer advertising the packet.
type DeviceKind uint8

const (
	DeviceDjm       DeviceKind = 1
	DeviceCdj       DeviceKind = 2
	DeviceRekordbox DeviceKind = 3
)

// MalformedPacketError reports a keepalive packet that failed a structural
// check.
type MalformedPacketError struct {
	Reason string
}

func (e *MalformedPacketError) Error() string { return "malformed keepalive packet: " + e.Reason }

// Mac is the body of a Mac packet: `{iteration, unknown2=4, mac_addr[6]}`.
type Mac struct {
	Iteration uint8
	Unknown2  uint8
	MacAddr   [6]byte
}

// Ip is the body of an Ip packet:
// `{ip[4], mac[6], seq_byte, iteration, 0x04, assignment}`.
type Ip struct {
	IPAddr     [4]byte
	MacAddr    [6]byte
	Iteration  uint8
	Index      uint8
	Assignment uint8
}

// Status is the body of a Status packet:
// `{player_number, 1, mac[6], ip[4], device_count, 1, 0, unknown3:u16, unknown4}`.
type Status struct {
	PlayerNumber uint8
	MacAddr      [6]byte
	IPAddr       [4]byte
	DeviceCount  uint8
	Unknown3     uint16
	Unknown4     uint8
}

// Number is the body of a Number packet.
type Number struct {
	ProposedPlayerNumber uint8
	Iteration            uint8
}

// Hello is the body of a Hello packet.
type Hello struct {
	Unknown2 uint8
}

// Change is the body of a Change packet.
type Change struct {
	OldPlayerNumber uint8
	IPAddr          [4]byte
}

// Packet is a fully decoded keepalive datagram.
type Packet struct {
	Kind       Kind
	SubKind    SubKind
	Model      string
	Unknown1   uint8
	DeviceKind DeviceKind
	Mac        *Mac
	Ip         *Ip
	Status     *Status
	Number     *Number
	Hello      *Hello
	Change     *Change
}

// SeqByte maps a 1-based Ip packet index to its sequence byte, per spec's
// fixed table; indices beyond 5 fall through to the conjectural 0x2c.
func SeqByte(index uint8) uint8 {
	switch index {
	case 1:
		return 0x11
	case 2:
		return 0x12
	case 3:
		return 0x29
	case 4:
		return 0x2a
	case 5:
		return 0x2b
	default:
		return 0x2c
	}
}

// indexForSeqByte inverts SeqByte for decoding; 0x2c is ambiguous for index
// >= 6 so it decodes back to 6, the smallest index that table entry covers.
func indexForSeqByte(b uint8) uint8 {
	switch b {
	case 0x11:
		return 1
	case 0x12:
		return 2
	case 0x29:
		return 3
	case 0x2a:
		return 4
	case 0x2b:
		return 5
	default:
		return 6
	}
}

func encodeModel(model string) []byte {
	buf := make([]byte, 20)
	copy(buf, model)
	return buf
}

func decodeModel(buf []byte) string {
	i := 0
	for i < len(buf) && buf[i] != 0 {
		i++
	}
	return string(buf[:i])
}

// NewMacPacket builds a Mac packet advertising this host as a rekordbox peer.
func NewMacPacket(iteration uint8, macAddr net.HardwareAddr) Packet {
	var mac [6]byte
	copy(mac[:], macAddr)
	return Packet{
		Kind: KindMac, SubKind: SubKindMac, Model: "rekordbox", Unknown1: 1, DeviceKind: DeviceRekordbox,
		Mac: &Mac{Iteration: iteration, Unknown2: 4, MacAddr: mac},
	}
}

// NewIpPacket builds an Ip packet for the given iteration/index pair.
func NewIpPacket(iteration, index uint8, ipAddr net.IP, macAddr net.HardwareAddr) Packet {
	var ip [4]byte
	copy(ip[:], ipAddr.To4())
	var mac [6]byte
	copy(mac[:], macAddr)
	return Packet{
		Kind: KindIp, SubKind: SubKindIp, Model: "rekordbox", Unknown1: 1, DeviceKind: DeviceRekordbox,
		Ip: &Ip{IPAddr: ip, MacAddr: mac, Iteration: iteration, Index: index, Assignment: 1},
	}
}

// NewStatusPacket builds a Status packet advertising player_number=0x11.
func NewStatusPacket(ipAddr net.IP, macAddr net.HardwareAddr, unknown3 uint16, unknown4 uint8) Packet {
	var ip [4]byte
	copy(ip[:], ipAddr.To4())
	var mac [6]byte
	copy(mac[:], macAddr)
	return Packet{
		Kind: KindStatus, SubKind: SubKindStatus, Model: "rekordbox", Unknown1: 1, DeviceKind: DeviceRekordbox,
		Status: &Status{PlayerNumber: 0x11, MacAddr: mac, IPAddr: ip, DeviceCount: 1, Unknown3: unknown3, Unknown4: unknown4},
	}
}

// Encode serializes the packet.
func (p Packet) Encode() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, Magic[:]...)
	buf = append(buf, byte(p.Kind), 0x00)
	buf = append(buf, encodeModel(p.Model)...)
	buf = append(buf, p.Unknown1, byte(p.DeviceKind), 0x00, byte(p.SubKind))
	buf = append(buf, p.encodeContent()...)
	return buf
}

func (p Packet) encodeContent() []byte {
	switch p.Kind {
	case KindMac:
		return []byte{p.Mac.Iteration, p.Mac.Unknown2, p.Mac.MacAddr[0], p.Mac.MacAddr[1], p.Mac.MacAddr[2], p.Mac.MacAddr[3], p.Mac.MacAddr[4], p.Mac.MacAddr[5]}
	case KindIp:
		buf := make([]byte, 0, 16)
		buf = append(buf, p.Ip.IPAddr[:]...)
		buf = append(buf, p.Ip.MacAddr[:]...)
		buf = append(buf, SeqByte(p.Ip.Index), p.Ip.Iteration, 0x04, p.Ip.Assignment)
		return buf
	case KindStatus:
		buf := make([]byte, 0, 16)
		buf = append(buf, p.Status.PlayerNumber, 1)
		buf = append(buf, p.Status.MacAddr[:]...)
		buf = append(buf, p.Status.IPAddr[:]...)
		buf = append(buf, p.Status.DeviceCount, 1, 0)
		var u3 [2]byte
		binary.BigEndian.PutUint16(u3[:], p.Status.Unknown3)
		buf = append(buf, u3[:]...)
		buf = append(buf, p.Status.Unknown4)
		return buf
	case KindNumber:
		return []byte{p.Number.ProposedPlayerNumber, p.Number.Iteration}
	case KindHello:
		return []byte{p.Hello.Unknown2}
	case KindChange:
		buf := make([]byte, 0, 5)
		buf = append(buf, p.Change.OldPlayerNumber)
		buf = append(buf, p.Change.IPAddr[:]...)
		return buf
	default:
		panic(fmt.Sprintf("keepalive: encode: unknown kind 0x%02x", uint8(p.Kind)))
	}
}

// Decode parses a keepalive packet.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < 36 {
		return Packet{}, &MalformedPacketError{Reason: "short buffer for header"}
	}
	for i := range Magic {
		if buf[i] != Magic[i] {
			return Packet{}, &MalformedPacketError{Reason: "bad magic"}
		}
	}
	kind := Kind(buf[10])
	// buf[11] is a fixed 0x00 padding byte.
	model := decodeModel(buf[12:32])
	unknown1 := buf[32]
	deviceKind := DeviceKind(buf[33])
	// buf[34] is a fixed 0x00 padding byte.
	subKind := SubKind(buf[35])
	rest := buf[36:]

	p := Packet{Kind: kind, SubKind: subKind, Model: model, Unknown1: unknown1, DeviceKind: deviceKind}

	switch kind {
	case KindMac:
		if len(rest) < 8 {
			return Packet{}, &MalformedPacketError{Reason: "Mac: short body"}
		}
		var mac [6]byte
		copy(mac[:], rest[2:8])
		p.Mac = &Mac{Iteration: rest[0], Unknown2: rest[1], MacAddr: mac}
	case KindIp:
		if len(rest) < 14 {
			return Packet{}, &MalformedPacketError{Reason: "Ip: short body"}
		}
		var ip [4]byte
		copy(ip[:], rest[0:4])
		var mac [6]byte
		copy(mac[:], rest[4:10])
		p.Ip = &Ip{IPAddr: ip, MacAddr: mac, Iteration: rest[11], Index: indexForSeqByte(rest[10]), Assignment: rest[13]}
	case KindStatus:
		if len(rest) < 18 {
			return Packet{}, &MalformedPacketError{Reason: "Status: short body"}
		}
		var mac [6]byte
		copy(mac[:], rest[2:8])
		var ip [4]byte
		copy(ip[:], rest[8:12])
		p.Status = &Status{
			PlayerNumber: rest[0],
			MacAddr:      mac,
			IPAddr:       ip,
			DeviceCount:  rest[12],
			// rest[13] and rest[14] are the fixed "1"/"0" literals
			// between device_count and unknown3.
			Unknown3: binary.BigEndian.Uint16(rest[15:17]),
			Unknown4: rest[17],
		}
	case KindNumber:
		if len(rest) < 2 {
			return Packet{}, &MalformedPacketError{Reason: "Number: short body"}
		}
		p.Number = &Number{ProposedPlayerNumber: rest[0], Iteration: rest[1]}
	case KindHello:
		if len(rest) < 1 {
			return Packet{}, &MalformedPacketError{Reason: "Hello: short body"}
		}
		p.Hello = &Hello{Unknown2: rest[0]}
	case KindChange:
		if len(rest) < 5 {
			return Packet{}, &MalformedPacketError{Reason: "Change: short body"}
		}
		var ip [4]byte
		copy(ip[:], rest[1:5])
		p.Change = &Change{OldPlayerNumber: rest[0], IPAddr: ip}
	default:
		return Packet{}, &MalformedPacketError{Reason: fmt.Sprintf("unrecognised kind 0x%02x", uint8(kind))}
	}

	return p, nil
}
