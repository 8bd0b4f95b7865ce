package server

import "errors"

// Sentinel errors for the server's documented failure kinds. Callers
// should use errors.Is rather than switching on message text.
var (
	// ErrUnknownPeer marks an Input received from an address with no
	// live Connection. The packet is dropped, no reply sent.
	ErrUnknownPeer = errors.New("server: input from unknown peer")

	// ErrServerFull marks a Connect rejected because max_clients was
	// already reached.
	ErrServerFull = errors.New("server: at max clients")

	// ErrBindFailure wraps a UDP bind failure at startup; fatal, causes
	// Run to return a non-zero-exit-worthy error.
	ErrBindFailure = errors.New("server: bind failure")
)
