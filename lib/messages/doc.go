// Package messages implements the link messages exchanged while building and
// using onion paths: relay-commit, relay-ack and the two relay data messages,
// plus the commit record carried inside each encrypted commit frame.
//
// All layouts are fixed-width big-endian binary. Every link message starts
// with a one byte type tag; Encode and Decode convert between the typed
// structures and the opaque buffers handed to the transport.
package messages
