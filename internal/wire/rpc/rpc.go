// Package rpc implements the Sun RPC v2 message envelope and XDR-adjacent
// wire conventions used by the Portmap, Mount, and NFS programs (§4.4): a
// fixed {xid, msg_type} preamble, Call/Reply headers, and the Null/Unix
// credential flavors. The call/reply envelope uses standard XDR big-endian
// integers (marshaled via go-xdr); the MNT and LOOKUP path arguments use
// the protocol's own UTF-16LE string convention rather than XDR's UTF-8
// opaque/string encoding, so they are framed by hand (utf16le.go), while
// the Mount EXPORT reply uses standard XDR strings (xdrstring.go).
package rpc

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// MsgType distinguishes an RPC Call from a Reply.
type MsgType uint32

const (
	Call  MsgType = 0
	Reply MsgType = 1
)

// Program numbers recognized by the impersonated NFS stack.
const (
	ProgramPortmap uint32 = 100000
	ProgramNfs     uint32 = 100003
	ProgramMount   uint32 = 100005
)

// Portmap, Mount, and Nfs procedure numbers in scope.
const (
	ProcPortmapGetport uint32 = 3

	ProcMountMnt    uint32 = 1
	ProcMountExport uint32 = 5

	ProcNfsGetattr uint32 = 1
	ProcNfsLookup  uint32 = 4
	ProcNfsRead    uint32 = 6
)

// ProtocolUDP is the only transport value the Portmap GETPORT body reports;
// per spec's Open Questions, the getport response ignores the protocol
// field beyond this, so non-UDP requests are accepted and answered as if
// they were UDP.
const ProtocolUDP uint32 = 17

// AuthFlavor identifies the credential encoding carried by a Call.
type AuthFlavor uint32

const (
	AuthNull AuthFlavor = 0
	AuthUnix AuthFlavor = 1
)

// UnixCredentials is the body of an AuthUnix credential: {stamp,
// machine_name, uid, gid, aux_gid}, each a u32 (§4.4 uses a single u32
// machine_name field rather than a variable-length name, unlike stock
// AUTH_UNIX).
type UnixCredentials struct {
	Stamp      uint32
	MachineID  uint32
	UID        uint32
	GID        uint32
	AuxGID     uint32
}

// Credentials is a decoded credential or verifier: Null carries no body,
// Unix carries a fixed 20-byte UnixCredentials body.
type Credentials struct {
	Flavor AuthFlavor
	Unix   *UnixCredentials
}

func (c Credentials) encode() []byte {
	buf := new(bytes.Buffer)
	_, _ = xdr.Marshal(buf, uint32(c.Flavor))
	switch c.Flavor {
	case AuthNull:
		_, _ = xdr.Marshal(buf, uint32(0))
	case AuthUnix:
		_, _ = xdr.Marshal(buf, uint32(20))
		_, _ = xdr.Marshal(buf, c.Unix.Stamp)
		_, _ = xdr.Marshal(buf, c.Unix.MachineID)
		_, _ = xdr.Marshal(buf, c.Unix.UID)
		_, _ = xdr.Marshal(buf, c.Unix.GID)
		_, _ = xdr.Marshal(buf, c.Unix.AuxGID)
	}
	return buf.Bytes()
}

func decodeCredentials(r *bytes.Reader) (Credentials, error) {
	var flavor uint32
	if _, err := xdr.Unmarshal(r, &flavor); err != nil {
		return Credentials{}, fmt.Errorf("rpc: credentials flavor: %w", err)
	}
	var length uint32
	if _, err := xdr.Unmarshal(r, &length); err != nil {
		return Credentials{}, fmt.Errorf("rpc: credentials length: %w", err)
	}
	switch AuthFlavor(flavor) {
	case AuthNull:
		if length != 0 {
			return Credentials{}, &MalformedMessageError{Reason: "AuthNull credentials with nonzero length"}
		}
		return Credentials{Flavor: AuthNull}, nil
	case AuthUnix:
		if length != 20 {
			return Credentials{}, &MalformedMessageError{Reason: "AuthUnix credentials with unexpected length"}
		}
		u := &UnixCredentials{}
		for _, dst := range []*uint32{&u.Stamp, &u.MachineID, &u.UID, &u.GID, &u.AuxGID} {
			if _, err := xdr.Unmarshal(r, dst); err != nil {
				return Credentials{}, fmt.Errorf("rpc: AuthUnix body: %w", err)
			}
		}
		return Credentials{Flavor: AuthUnix, Unix: u}, nil
	default:
		return Credentials{}, &MalformedMessageError{Reason: fmt.Sprintf("unsupported auth flavor %d", flavor)}
	}
}

// MalformedMessageError reports an RPC message that failed a structural or
// protocol check; callers log and drop the datagram (§4.4: RPC over UDP
// has no connection state to reset).
type MalformedMessageError struct {
	Reason string
}

func (e *MalformedMessageError) Error() string { return "malformed rpc message: " + e.Reason }

// CallHeader is a fully decoded RPC Call envelope, excluding the
// procedure-specific payload that follows it on the wire.
type CallHeader struct {
	XID             uint32
	Program         uint32
	ProgramVersion  uint32
	Procedure       uint32
	Credentials     Credentials
	Verifier        Credentials
}

// DecodeCall parses an RPC Call envelope from buf, returning the header and
// the remaining procedure-specific payload bytes.
func DecodeCall(buf []byte) (CallHeader, []byte, error) {
	r := bytes.NewReader(buf)

	var xid, msgType uint32
	if _, err := xdr.Unmarshal(r, &xid); err != nil {
		return CallHeader{}, nil, fmt.Errorf("rpc: xid: %w", err)
	}
	if _, err := xdr.Unmarshal(r, &msgType); err != nil {
		return CallHeader{}, nil, fmt.Errorf("rpc: msg_type: %w", err)
	}
	if MsgType(msgType) != Call {
		return CallHeader{}, nil, &MalformedMessageError{Reason: "expected Call msg_type"}
	}

	var version, program, programVersion, procedure uint32
	if _, err := xdr.Unmarshal(r, &version); err != nil {
		return CallHeader{}, nil, fmt.Errorf("rpc: rpc_version: %w", err)
	}
	if version != 2 {
		return CallHeader{}, nil, &MalformedMessageError{Reason: fmt.Sprintf("unsupported rpc version %d", version)}
	}
	if _, err := xdr.Unmarshal(r, &program); err != nil {
		return CallHeader{}, nil, fmt.Errorf("rpc: program: %w", err)
	}
	if _, err := xdr.Unmarshal(r, &programVersion); err != nil {
		return CallHeader{}, nil, fmt.Errorf("rpc: program_version: %w", err)
	}
	if _, err := xdr.Unmarshal(r, &procedure); err != nil {
		return CallHeader{}, nil, fmt.Errorf("rpc: procedure: %w", err)
	}

	creds, err := decodeCredentials(r)
	if err != nil {
		return CallHeader{}, nil, err
	}
	verifier, err := decodeCredentials(r)
	if err != nil {
		return CallHeader{}, nil, err
	}

	rest := make([]byte, r.Len())
	_, _ = r.Read(rest)

	return CallHeader{
		XID: xid, Program: program, ProgramVersion: programVersion, Procedure: procedure,
		Credentials: creds, Verifier: verifier,
	}, rest, nil
}

// EncodeCall serializes an RPC Call envelope followed by the given
// procedure-specific payload.
func EncodeCall(h CallHeader, payload []byte) []byte {
	buf := new(bytes.Buffer)
	_, _ = xdr.Marshal(buf, h.XID)
	_, _ = xdr.Marshal(buf, uint32(Call))
	_, _ = xdr.Marshal(buf, uint32(2))
	_, _ = xdr.Marshal(buf, h.Program)
	_, _ = xdr.Marshal(buf, h.ProgramVersion)
	_, _ = xdr.Marshal(buf, h.Procedure)
	buf.Write(h.Credentials.encode())
	buf.Write(h.Verifier.encode())
	buf.Write(payload)
	return buf.Bytes()
}

// EncodeReply serializes the fixed Reply prefix `{xid, type=1,
// reply_state=0, verifier_flavor=0, verifier_length=0, accept_state=0}`
// followed by payload, then pads with zeros so the total length is a
// multiple of four bytes.
func EncodeReply(xid uint32, payload []byte) []byte {
	buf := new(bytes.Buffer)
	_, _ = xdr.Marshal(buf, xid)
	_, _ = xdr.Marshal(buf, uint32(Reply))
	_, _ = xdr.Marshal(buf, uint32(0)) // reply_state = accepted
	_, _ = xdr.Marshal(buf, uint32(0)) // verifier_flavor = AuthNull
	_, _ = xdr.Marshal(buf, uint32(0)) // verifier_length = 0
	_, _ = xdr.Marshal(buf, uint32(0)) // accept_state = success
	buf.Write(payload)

	out := buf.Bytes()
	if pad := (4 - len(out)%4) % 4; pad != 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out
}

// padEven returns n rounded up to the next even number, the padding unit
// the Mount/NFS UTF-16LE payloads use instead of XDR's 4-byte rule.
func padEven(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}
