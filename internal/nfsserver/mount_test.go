package nfsserver

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/snapetech/prolink-impersonator/internal/wire/rpc"
)

func newTestMountTask(t *testing.T) *MountTask {
	t.Helper()
	task, err := NewMountTask("/C/", "192.168.10.5/255.255.255.0", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewMountTask: %v", err)
	}
	t.Cleanup(func() { task.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go task.Run(ctx)
	return task
}

func TestMntReturnsStatusZeroAndRootHandle(t *testing.T) {
	task := newTestMountTask(t)
	conn := dialTask(t, task.Port())

	payload := encodeUtf16leString("/C/")
	reply := rpcRoundTrip(t, conn, newCall(1, rpc.ProgramMount, 1, rpc.ProcMountMnt), payload)

	status := beU32(reply)
	if status != 0 {
		t.Fatalf("expected status 0, got %d", status)
	}
	handle := reply[4:36]
	want := fileHandleFor(inoFromPath("/"))
	for i, b := range want {
		if handle[i] != b {
			t.Fatalf("unexpected root handle byte %d: got %x want %x", i, handle[i], b)
		}
	}
}

func TestExportReportsFixedDirectory(t *testing.T) {
	task := newTestMountTask(t)
	conn := dialTask(t, task.Port())

	reply := rpcRoundTrip(t, conn, newCall(2, rpc.ProgramMount, 1, rpc.ProcMountExport), nil)

	if reply[3] != 1 {
		t.Fatalf("expected a present export entry, got %x", reply)
	}
}
