//go:build !windows

package statusevent

import (
	"fmt"
	"net"
	"syscall"
)

// enableReuseAddr sets SO_REUSEADDR so this socket can share port 50000
// with the keepalive engine's own broadcast socket (§4.7 notes the two
// engines share a port in the source).
func enableReuseAddr(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("statusevent: syscall conn: %w", err)
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if ctrlErr != nil {
		return fmt.Errorf("statusevent: control: %w", ctrlErr)
	}
	if sockErr != nil {
		return fmt.Errorf("statusevent: setsockopt SO_REUSEADDR: %w", sockErr)
	}
	return nil
}
