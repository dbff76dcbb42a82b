package dbserver

import (
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/snapetech/prolink-impersonator/internal/librarydb"
	"github.com/snapetech/prolink-impersonator/internal/wire/dbmsg"
	"github.com/snapetech/prolink-impersonator/internal/wire/field"
)

func newTestServer(t *testing.T) (*Server, net.Listener) {
	t.Helper()
	lib, err := librarydb.Open([]librarydb.Track{
		{Artist: "Artist A", Album: "Album One", Title: "Track 1", RelativePath: "a/1.mp3"},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	srv := NewServer(lib, "/C/", log.New(io.Discard, "", 0))
	go srv.Serve(listener)
	return srv, listener
}

func dialAndHandshake(t *testing.T, listener net.Listener) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.Write(clientHello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		t.Fatalf("read ready: %v", err)
	}
	if reply[0] != 0xff || reply[1] != 0x20 {
		t.Fatalf("unexpected ready sentinel: %x", reply)
	}
	return conn
}

func readFrames(t *testing.T, conn net.Conn, n int) []dbmsg.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	var frames []dbmsg.Frame
	for len(frames) < n {
		f, rest, err := dbmsg.Decode(buf)
		if err == nil {
			frames = append(frames, f)
			buf = rest
			continue
		}
		read, err := conn.Read(chunk)
		if err != nil {
			t.Fatalf("read: %v (got %d of %d frames)", err, len(frames), n)
		}
		buf = append(buf, chunk[:read]...)
	}
	return frames
}

func TestHandshakeThenRootMenu(t *testing.T) {
	_, listener := newTestServer(t)
	conn := dialAndHandshake(t, listener)

	req := dbmsg.NewResponse(7, dbmsg.ReqRootMenu, nil).Encode()
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	frames := readFrames(t, conn, 10)
	if frames[0].RequestType != dbmsg.RespMenuHeader {
		t.Fatalf("expected MenuHeader first, got %v", frames[0].RequestType)
	}
	if frames[9].RequestType != dbmsg.RespMenuFooter {
		t.Fatalf("expected MenuFooter last, got %v", frames[9].RequestType)
	}
	for i := 1; i < 9; i++ {
		if frames[i].RequestType != dbmsg.RespMenuItem {
			t.Fatalf("expected MenuItem at %d, got %v", i, frames[i].RequestType)
		}
		if frames[i].TransactionID != 7 {
			t.Fatalf("expected shared transaction id 7, got %d", frames[i].TransactionID)
		}
	}
}

func TestArtistRequestListsSeededArtist(t *testing.T) {
	_, listener := newTestServer(t)
	conn := dialAndHandshake(t, listener)

	req := dbmsg.NewResponse(1, dbmsg.ReqArtist, nil).Encode()
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	frames := readFrames(t, conn, 3)
	item := frames[1]
	if item.RequestType != dbmsg.RespMenuItem {
		t.Fatalf("expected MenuItem, got %v", item.RequestType)
	}
	if item.Args[3].Str != "Artist A" {
		t.Fatalf("expected label %q, got %q", "Artist A", item.Args[3].Str)
	}
}

func TestUnknownRequestEchoesFirstArg(t *testing.T) {
	_, listener := newTestServer(t)
	conn := dialAndHandshake(t, listener)

	req := dbmsg.NewResponse(42, dbmsg.ReqSetup, []field.Field{field.NewU32(99)}).Encode()
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	frames := readFrames(t, conn, 1)
	if frames[0].RequestType != dbmsg.RespSuccess {
		t.Fatalf("expected Success, got %v", frames[0].RequestType)
	}
	if frames[0].Args[0].U32 != 99 {
		t.Fatalf("expected echoed arg 99, got %d", frames[0].Args[0].U32)
	}
}
