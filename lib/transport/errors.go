package transport

import "errors"

var (
	// ErrRouteUnavailable is returned when no link to the destination router exists.
	ErrRouteUnavailable = errors.New("no route to router")
	// ErrNoTransportAvailable is returned by a Mux with nothing to send through.
	ErrNoTransportAvailable = errors.New("no transports available")
	// ErrTransportClosed is returned after Close.
	ErrTransportClosed = errors.New("transport closed")
)
