// Package registry implements the shared device table (§4.5): the set of
// hardware players observed on the network, plus the single network
// binding the keepalive and status-event engines broadcast from.
package registry

import (
	"net"
	"sync"
)

// Device is one observed hardware player. Identity is (PlayerNumber,
// IPv4); Model is fixed at insertion, PlayerNumber may be updated by a
// later observation, and Linking only ever transitions false→true via
// Upsert (see Registry.ClearLinking for the coordinator's own,
// non-monotonic reset path).
type Device struct {
	IPv4         [4]byte
	PlayerNumber uint8
	Model        string
	Linking      bool
}

// NetworkBinding is the interface tuple devices have been observed on:
// null until the first broadcast is received.
type NetworkBinding struct {
	IPv4          net.IP
	BroadcastIPv4 net.IP
	MAC           net.HardwareAddr
	CIDR          *net.IPNet

	// Index is the bound interface's index, used to pin outgoing
	// keepalive/linking datagrams to it (§4.6's "ephemeral source port on
	// the bound interface") rather than relying on the OS's default route.
	Index int
}

// Registry is the thread-safe device table. Entries are never removed in
// this core (staleness tracking is a non-goal); they are appended or
// updated in place, keyed by IPv4.
type Registry struct {
	mu      sync.RWMutex
	order   [][4]byte
	devices map[[4]byte]*Device
	binding *NetworkBinding
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{devices: make(map[[4]byte]*Device)}
}

// Upsert records an observation. If an entry for ipv4 already exists, its
// PlayerNumber is overwritten and Linking transitions false→true when
// observedLinking is true (it is never downgraded here); Model is left
// untouched, matching the invariant that model name is fixed after
// insertion. Otherwise a new entry is appended. countIncreased reports
// whether this observation added a new device, for the caller's
// DeviceChange decision (§4.6).
func (r *Registry) Upsert(ipv4 [4]byte, playerNumber uint8, model string, observedLinking bool) (dev Device, countIncreased bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.devices[ipv4]; ok {
		existing.PlayerNumber = playerNumber
		if observedLinking {
			existing.Linking = true
		}
		return *existing, false
	}

	d := &Device{IPv4: ipv4, PlayerNumber: playerNumber, Model: model, Linking: observedLinking}
	r.devices[ipv4] = d
	r.order = append(r.order, ipv4)
	return *d, true
}

// Get returns the current entry for ipv4, if any.
func (r *Registry) Get(ipv4 [4]byte) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[ipv4]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Len returns the number of distinct devices observed.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Iter returns a snapshot of all devices in insertion order, matching the
// teacher's Catalog.Snapshot copy-out convention rather than exposing
// internal pointers.
func (r *Registry) Iter() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.devices[key])
	}
	return out
}

// AnyLinking reports whether any observed device already has its Linking
// flag set, the registry-wide "already linking" check the keepalive
// engine's InitiateLink decision uses (§4.6).
func (r *Registry) AnyLinking() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.order {
		if r.devices[key].Linking {
			return true
		}
	}
	return false
}

// ClearLinking resets ipv4's Linking flag to false. This is distinct from
// the monotonic false→true transition Upsert performs: it is the
// coordinator's explicit recovery path after a NoBinding failure (§7),
// not an observation-driven update.
func (r *Registry) ClearLinking(ipv4 [4]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[ipv4]; ok {
		d.Linking = false
	}
}

// MarkLinking sets ipv4's Linking flag to true without touching any other
// field. Unlike Upsert, which always overwrites PlayerNumber with its
// argument, this is for callers (the keepalive engine's linking sequence)
// that only want the flag flipped and have no fresh PlayerNumber
// observation to record.
func (r *Registry) MarkLinking(ipv4 [4]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[ipv4]; ok {
		d.Linking = true
	}
}

// SetBinding records the interface tuple devices have been observed on.
func (r *Registry) SetBinding(b NetworkBinding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.binding = &b
}

// GetBinding returns the current network binding, or ok=false if none has
// been observed yet.
func (r *Registry) GetBinding() (b NetworkBinding, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.binding == nil {
		return NetworkBinding{}, false
	}
	return *r.binding, true
}
