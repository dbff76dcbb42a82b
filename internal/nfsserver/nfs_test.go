package nfsserver

import (
	"context"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/snapetech/prolink-impersonator/internal/wire/rpc"
)

func newTestNfsTask(t *testing.T) (*NfsTask, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "track.mp3"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	task, err := NewNfsTask(root, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewNfsTask: %v", err)
	}
	t.Cleanup(func() { task.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go task.Run(ctx)

	return task, root
}

func dialTask(t *testing.T, port int) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func rpcRoundTrip(t *testing.T, conn *net.UDPConn, call rpc.CallHeader, payload []byte) []byte {
	t.Helper()
	req := rpc.EncodeCall(call, payload)
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65536)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return replyPayload(buf[:n])
}

func rootFileHandle() rpc.FileHandle {
	return fileHandleFor(inoFromPath("/"))
}

func TestLookupResolvesFileAndInsertsHandle(t *testing.T) {
	task, _ := newTestNfsTask(t)
	conn := dialTask(t, task.Port())

	fh := rootFileHandle()
	payload := append(append([]byte{}, fh[:]...), encodeUtf16leString("track.mp3")...)
	reply := rpcRoundTrip(t, conn, newCall(1, rpc.ProgramNfs, 2, rpc.ProcNfsLookup), payload)

	if len(reply) < 4 {
		t.Fatalf("short reply: %x", reply)
	}
	status := rpc.NfsStatus(beU32(reply))
	if status != rpc.NfsOk {
		t.Fatalf("expected NfsOk, got %d", status)
	}
}

func TestLookupUnknownNameReturnsFileDoesNotExist(t *testing.T) {
	task, _ := newTestNfsTask(t)
	conn := dialTask(t, task.Port())

	fh := rootFileHandle()
	payload := append(append([]byte{}, fh[:]...), encodeUtf16leString("missing.mp3")...)
	reply := rpcRoundTrip(t, conn, newCall(2, rpc.ProgramNfs, 2, rpc.ProcNfsLookup), payload)

	status := rpc.NfsStatus(beU32(reply))
	if status != rpc.NfsFileDoesNotExist {
		t.Fatalf("expected FileDoesNotExist, got %d", status)
	}
}

func TestLookupStaleParentHandleIsRejected(t *testing.T) {
	task, _ := newTestNfsTask(t)
	conn := dialTask(t, task.Port())

	bogus := fileHandleFor(inoFromPath("/not/the/current/dir"))
	payload := append(append([]byte{}, bogus[:]...), encodeUtf16leString("track.mp3")...)
	reply := rpcRoundTrip(t, conn, newCall(3, rpc.ProgramNfs, 2, rpc.ProcNfsLookup), payload)

	status := rpc.NfsStatus(beU32(reply))
	if status != rpc.NfsStaleFileHandle {
		t.Fatalf("expected StaleFileHandle, got %d", status)
	}
}

func TestGetattrOnRootHandleSucceedsWithoutPriorLookup(t *testing.T) {
	task, _ := newTestNfsTask(t)
	conn := dialTask(t, task.Port())

	fh := rootFileHandle()
	reply := rpcRoundTrip(t, conn, newCall(4, rpc.ProgramNfs, 2, rpc.ProcNfsGetattr), fh[:])

	status := rpc.NfsStatus(beU32(reply))
	if status != rpc.NfsOk {
		t.Fatalf("expected NfsOk, got %d", status)
	}
}

func TestReadReturnsFileBytesAfterLookup(t *testing.T) {
	task, _ := newTestNfsTask(t)
	conn := dialTask(t, task.Port())

	fh := rootFileHandle()
	lookupPayload := append(append([]byte{}, fh[:]...), encodeUtf16leString("track.mp3")...)
	lookupReply := rpcRoundTrip(t, conn, newCall(5, rpc.ProgramNfs, 2, rpc.ProcNfsLookup), lookupPayload)

	fileFh := lookupReply[4:36]

	readPayload := make([]byte, 0, 44)
	readPayload = append(readPayload, fileFh...)
	readPayload = append(readPayload, beBytes(0)...)
	readPayload = append(readPayload, beBytes(11)...)
	readPayload = append(readPayload, beBytes(11)...)
	readReply := rpcRoundTrip(t, conn, newCall(6, rpc.ProgramNfs, 2, rpc.ProcNfsRead), readPayload)

	status := rpc.NfsStatus(beU32(readReply))
	if status != rpc.NfsOk {
		t.Fatalf("expected NfsOk, got %d", status)
	}
	const attrLen = 4 * (11 + 6)
	dataLen := beU32(readReply[4+attrLen:])
	data := readReply[4+attrLen+4 : 4+attrLen+4+int(dataLen)]
	if string(data) != "hello world" {
		t.Fatalf("unexpected data: %q", data)
	}
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beBytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
