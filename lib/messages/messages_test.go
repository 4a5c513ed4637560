package messages

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/crypto"
)

func TestCommitRecordRoundTrip(t *testing.T) {
	rec := CommitRecord{
		Version:  ProtocolVersion,
		Lifetime: 10 * time.Minute,
	}
	require.NoError(t, rec.PathID.Randomize())
	require.NoError(t, rec.DownstreamPathID.Randomize())
	require.NoError(t, rec.TunnelNonce.Randomize())
	rec.NextHop = keys.RouterIDFromIdentity([]byte("next"))
	rec.CommitKey[0] = 0x42

	var frame crypto.EncryptedFrame
	require.NoError(t, rec.Encode(frame.Plaintext()))

	got, err := ReadCommitRecord(frame.Plaintext())
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCommitRecordErrors(t *testing.T) {
	rec := CommitRecord{}
	assert.ErrorIs(t, rec.Encode(make([]byte, CommitRecordSize-1)), ErrNotEnoughData)

	_, err := ReadCommitRecord(make([]byte, 10))
	assert.ErrorIs(t, err, ErrNotEnoughData)

	buf := make([]byte, CommitRecordSize)
	buf[0] = ProtocolVersion + 1
	_, err = ReadCommitRecord(buf)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestCommitRecordFitsInFrame(t *testing.T) {
	assert.LessOrEqual(t, CommitRecordSize, crypto.FramePlaintextSize)
	assert.Equal(t, 125, CommitRecordSize)
}

func TestEncodeDecode(t *testing.T) {
	var id keys.PathID
	require.NoError(t, id.Randomize())
	var nonce keys.TunnelNonce
	require.NoError(t, nonce.Randomize())

	frames := make([]crypto.EncryptedFrame, MaxHops)
	for i := range frames {
		require.NoError(t, frames[i].Randomize())
	}

	tests := []struct {
		name string
		msg  Message
	}{
		{"commit", &RelayCommitMessage{Frames: frames}},
		{"ack", &RelayAckMessage{PathID: id}},
		{"upstream", &RelayUpstreamMessage{PathID: id, Nonce: nonce, Payload: []byte("hello")}},
		{"downstream", &RelayDownstreamMessage{PathID: id, Nonce: nonce, Payload: bytes.Repeat([]byte{7}, 1024)}},
		{"empty payload", &RelayUpstreamMessage{PathID: id, Nonce: nonce, Payload: []byte{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.Type(), data[0])

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	ack, err := Encode(&RelayAckMessage{})
	require.NoError(t, err)
	up, err := Encode(&RelayUpstreamMessage{Payload: []byte("abc")})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrNotEnoughData},
		{"unknown type", []byte{'z', 1, 2}, ErrUnknownMessageType},
		{"short ack", ack[:5], ErrNotEnoughData},
		{"commit zero frames", []byte{TypeRelayCommit, 0}, ErrNoFrames},
		{"commit too many frames", []byte{TypeRelayCommit, MaxHops + 1}, ErrTooManyFrames},
		{"commit truncated", append([]byte{TypeRelayCommit, 1}, make([]byte, 100)...), ErrNotEnoughData},
		{"commit trailing", append([]byte{TypeRelayCommit, 1}, make([]byte, crypto.FrameSize+1)...), ErrTrailingData},
		{"upstream truncated payload", up[:len(up)-1], ErrNotEnoughData},
		{"upstream trailing", append(append([]byte(nil), up...), 0), ErrTrailingData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	_, err := Encode(&RelayCommitMessage{})
	assert.ErrorIs(t, err, ErrNoFrames)

	_, err = Encode(&RelayCommitMessage{Frames: make([]crypto.EncryptedFrame, MaxHops+1)})
	assert.ErrorIs(t, err, ErrTooManyFrames)

	_, err = Encode(&RelayDownstreamMessage{Payload: make([]byte, MaxPayloadSize+1)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}
