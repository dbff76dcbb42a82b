// Package prolinkerr holds the sentinel error values for the error
// taxonomy spec.md §7 names, so every component wraps and checks the same
// values via fmt.Errorf("...: %w", err) / errors.Is rather than each
// defining its own string-keyed variant.
package prolinkerr

import "errors"

var (
	// Decode is wrapped by any wire-codec failure (field, dbmsg,
	// keepalive, or rpc) that a caller chooses to surface rather than
	// simply log-and-drop.
	Decode = errors.New("decode error")

	// NoBinding is returned by a linking attempt made before any network
	// binding has been observed (§4.6).
	NoBinding = errors.New("no network binding observed")

	// SocketError wraps a failed socket operation (listen, read, write)
	// outside of the stdlib's own net.Error wrapping.
	SocketError = errors.New("socket error")

	// FileDoesNotExist is the NFS LOOKUP failure mode when path
	// resolution does not find an entry (§4.9).
	FileDoesNotExist = errors.New("file does not exist")

	// StaleFileHandle is the NFS LOOKUP failure mode when the parent
	// directory backing a handle has been invalidated (§4.9).
	StaleFileHandle = errors.New("stale file handle")

	// Poisoned reports a shared resource (registry, file-handle table)
	// found in a state its invariants forbid.
	Poisoned = errors.New("poisoned shared state")
)
