package path

import "errors"

// These use errors.New so callers can match them with errors.Is().
var (
	// ErrCryptoFailure means a DH, keygen or frame encryption step failed;
	// the build attempt it belongs to is abandoned.
	ErrCryptoFailure = errors.New("path crypto failure")
	// ErrTransitRejected means a relay-commit was refused by local policy or was malformed.
	ErrTransitRejected = errors.New("transit hop rejected")
	// ErrRouteUnavailable means the next hop could not be reached.
	ErrRouteUnavailable = errors.New("route to next hop unavailable")
	// ErrBuildTimeout means a path did not receive its relay-ack in time,
	// or was no longer pending when its build finished.
	ErrBuildTimeout = errors.New("path build timed out")
	// ErrAckMismatch means a relay-ack matched no pending path or transit hop.
	ErrAckMismatch = errors.New("relay ack matches no pending path")

	ErrNoHops             = errors.New("path has no hops")
	ErrTooManyHops        = errors.New("path has too many hops")
	ErrHopIsUs            = errors.New("path hop is this router")
	ErrPathNotEstablished = errors.New("path is not established")
	ErrBadPayloadSize     = errors.New("payload is not one onion frame")
)
