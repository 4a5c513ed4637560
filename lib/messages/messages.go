package messages

import (
	"encoding/binary"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/crypto"
)

var log = logger.GetGoI2PLogger()

// Message is any link message understood by the path layer.
type Message interface {
	Type() byte
}

// RelayCommitMessage builds a path: one encrypted commit frame per hop. The
// first frame is addressed to the receiving relay.
type RelayCommitMessage struct {
	Frames []crypto.EncryptedFrame
}

func (*RelayCommitMessage) Type() byte { return TypeRelayCommit }

// RelayAckMessage travels from the terminus back toward the originator once
// every hop has accepted the path.
type RelayAckMessage struct {
	PathID keys.PathID
}

func (*RelayAckMessage) Type() byte { return TypeRelayAck }

// RelayUpstreamMessage carries onion-encrypted traffic away from the originator.
type RelayUpstreamMessage struct {
	PathID  keys.PathID
	Nonce   keys.TunnelNonce
	Payload []byte
}

func (*RelayUpstreamMessage) Type() byte { return TypeRelayUpstream }

// RelayDownstreamMessage carries onion-encrypted traffic toward the originator.
type RelayDownstreamMessage struct {
	PathID  keys.PathID
	Nonce   keys.TunnelNonce
	Payload []byte
}

func (*RelayDownstreamMessage) Type() byte { return TypeRelayDownstream }

const relayDataHeaderSize = keys.PathIDSize + keys.TunnelNonceSize + 2

// Encode serializes msg including its type tag.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *RelayCommitMessage:
		return encodeCommit(m)
	case *RelayAckMessage:
		buf := make([]byte, 1+keys.PathIDSize)
		buf[0] = TypeRelayAck
		copy(buf[1:], m.PathID[:])
		return buf, nil
	case *RelayUpstreamMessage:
		return encodeRelayData(TypeRelayUpstream, m.PathID, m.Nonce, m.Payload)
	case *RelayDownstreamMessage:
		return encodeRelayData(TypeRelayDownstream, m.PathID, m.Nonce, m.Payload)
	default:
		return nil, oops.Errorf("cannot encode %T: %w", msg, ErrUnknownMessageType)
	}
}

// Decode parses a buffer produced by Encode.
func Decode(data []byte) (Message, error) {
	if len(data) < 1 {
		return nil, ErrNotEnoughData
	}
	body := data[1:]
	switch data[0] {
	case TypeRelayCommit:
		return decodeCommit(body)
	case TypeRelayAck:
		if len(body) != keys.PathIDSize {
			return nil, oops.Errorf("relay ack body of %d bytes: %w", len(body), ErrNotEnoughData)
		}
		m := &RelayAckMessage{}
		copy(m.PathID[:], body)
		return m, nil
	case TypeRelayUpstream:
		id, nonce, payload, err := decodeRelayData(body)
		if err != nil {
			return nil, err
		}
		return &RelayUpstreamMessage{PathID: id, Nonce: nonce, Payload: payload}, nil
	case TypeRelayDownstream:
		id, nonce, payload, err := decodeRelayData(body)
		if err != nil {
			return nil, err
		}
		return &RelayDownstreamMessage{PathID: id, Nonce: nonce, Payload: payload}, nil
	default:
		log.WithFields(logger.Fields{
			"at":   "Decode",
			"type": data[0],
		}).Debug("unknown link message type")
		return nil, oops.Errorf("type 0x%02x: %w", data[0], ErrUnknownMessageType)
	}
}

func encodeCommit(m *RelayCommitMessage) ([]byte, error) {
	if len(m.Frames) == 0 {
		return nil, ErrNoFrames
	}
	if len(m.Frames) > MaxHops {
		return nil, oops.Errorf("%d frames: %w", len(m.Frames), ErrTooManyFrames)
	}
	buf := make([]byte, 2, 2+len(m.Frames)*crypto.FrameSize)
	buf[0] = TypeRelayCommit
	buf[1] = byte(len(m.Frames))
	for i := range m.Frames {
		buf = append(buf, m.Frames[i][:]...)
	}
	return buf, nil
}

func decodeCommit(body []byte) (*RelayCommitMessage, error) {
	if len(body) < 1 {
		return nil, ErrNotEnoughData
	}
	count := int(body[0])
	if count == 0 {
		return nil, ErrNoFrames
	}
	if count > MaxHops {
		return nil, oops.Errorf("%d frames: %w", count, ErrTooManyFrames)
	}
	body = body[1:]
	if len(body) < count*crypto.FrameSize {
		return nil, oops.Errorf("%d frames need %d bytes, got %d: %w", count, count*crypto.FrameSize, len(body), ErrNotEnoughData)
	}
	if len(body) > count*crypto.FrameSize {
		return nil, ErrTrailingData
	}
	m := &RelayCommitMessage{Frames: make([]crypto.EncryptedFrame, count)}
	for i := range m.Frames {
		copy(m.Frames[i][:], body[i*crypto.FrameSize:])
	}
	return m, nil
}

func encodeRelayData(t byte, id keys.PathID, nonce keys.TunnelNonce, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, oops.Errorf("payload of %d bytes: %w", len(payload), ErrPayloadTooLarge)
	}
	buf := make([]byte, 1+relayDataHeaderSize+len(payload))
	buf[0] = t
	off := 1
	off += copy(buf[off:], id[:])
	off += copy(buf[off:], nonce[:])
	binary.BigEndian.PutUint16(buf[off:], uint16(len(payload)))
	off += 2
	copy(buf[off:], payload)
	return buf, nil
}

func decodeRelayData(body []byte) (id keys.PathID, nonce keys.TunnelNonce, payload []byte, err error) {
	if len(body) < relayDataHeaderSize {
		err = oops.Errorf("relay data header: %w", ErrNotEnoughData)
		return
	}
	off := copy(id[:], body)
	off += copy(nonce[:], body[off:])
	n := int(binary.BigEndian.Uint16(body[off:]))
	off += 2
	if len(body)-off < n {
		err = oops.Errorf("relay payload of %d bytes, %d available: %w", n, len(body)-off, ErrNotEnoughData)
		return
	}
	if len(body)-off > n {
		err = ErrTrailingData
		return
	}
	payload = make([]byte, n)
	copy(payload, body[off:])
	return
}
