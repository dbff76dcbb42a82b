// Package netiface implements the "find interface containing peer IP"
// primitive the keepalive engine's receive loop consults when it sets the
// network binding
// (§4.5's Network binding glossary entry): given an observed peer
// address, find the local interface whose configured subnet contains it.
package netiface

import (
	"fmt"
	"net"
)

// Finder locates the local interface (and its configured subnet) that
// contains a given peer IP address.
type Finder interface {
	FindContaining(ip net.IP) (*net.Interface, *net.IPNet, error)
}

// DefaultFinder walks net.Interfaces() and their configured addresses.
type DefaultFinder struct{}

// FindContaining returns the first interface whose subnet contains ip.
func (DefaultFinder) FindContaining(ip net.IP) (*net.Interface, *net.IPNet, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, fmt.Errorf("netiface: list interfaces: %w", err)
	}
	for i := range ifaces {
		iface := ifaces[i]
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ipnet.Contains(ip) {
				return &iface, ipnet, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("netiface: no interface subnet contains %s", ip)
}

// BroadcastAddr computes the IPv4 broadcast address of ipnet (the
// bitwise-OR of the network address with the inverted subnet mask).
func BroadcastAddr(ipnet *net.IPNet) net.IP {
	ip4 := ipnet.IP.To4()
	mask := ipnet.Mask
	out := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		out[i] = ip4[i] | ^mask[i]
	}
	return out
}
