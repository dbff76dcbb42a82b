//go:build windows

package keepalive

import (
	"fmt"
	"net"
	"syscall"
)

// enableBroadcast sets SO_BROADCAST on conn's underlying socket so sends
// to a subnet's broadcast address are permitted.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("keepalive: syscall conn: %w", err)
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	if ctrlErr != nil {
		return fmt.Errorf("keepalive: control: %w", ctrlErr)
	}
	if sockErr != nil {
		return fmt.Errorf("keepalive: setsockopt SO_BROADCAST: %w", sockErr)
	}
	return nil
}
