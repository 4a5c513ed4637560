// Package transport defines how the path layer hands opaque link messages to
// other routers.
//
// # Overview
//
// A Transport delivers a byte buffer to a router identified by its RouterID.
// Delivery is fire-and-forget: SendRaw reports only whether the message could
// be handed off, never whether the peer processed it. Inbound messages reach
// the router through a Handler registered with the transport.
//
// The memnet subpackage implements an in-process network used by tests and by
// the simulator; Mux combines several transports and tries them in order.
//
// # Thread Safety
//
// Implementations must allow SendRaw to be called from any goroutine.
package transport
