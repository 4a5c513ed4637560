package messages

import "errors"

// Link message type tags.
const (
	TypeRelayCommit     byte = 'c'
	TypeRelayAck        byte = 'a'
	TypeRelayUpstream   byte = 'u'
	TypeRelayDownstream byte = 'd'
)

const (
	// MaxHops is the number of frames in every relay-commit message and the
	// longest path that can be built.
	MaxHops = 8

	// ProtocolVersion is written into every commit record.
	ProtocolVersion byte = 0

	// MaxPayloadSize bounds the payload of relay data messages.
	MaxPayloadSize = 1 << 15
)

// These use errors.New so callers can match them with errors.Is().
var (
	ErrNotEnoughData      = errors.New("not enough link message data")
	ErrUnknownMessageType = errors.New("unknown link message type")
	ErrTooManyFrames      = errors.New("relay commit carries too many frames")
	ErrNoFrames           = errors.New("relay commit carries no frames")
	ErrPayloadTooLarge    = errors.New("relay payload too large")
	ErrTrailingData       = errors.New("unexpected data after link message")
	ErrBadVersion         = errors.New("unsupported commit record version")
)
