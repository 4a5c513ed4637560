package crypto

import (
	"github.com/go-i2p/crypto/rand"
	"github.com/samber/oops"
)

/*
[EncryptedFrame]

Description
A fixed-size buffer holding one record sealed to a single relay's encryption
key. The header carries the sender's ephemeral public key and the AEAD nonce;
both are authenticated as associated data.

Contents
+----+----+----+----+----+----+----+----+
| ephemeral public key (32 bytes)       |
+----+----+----+----+----+----+----+----+
| nonce (24 bytes)                      |
+----+----+----+----+----+----+----+----+
| ciphertext (184 bytes)                |
+----+----+----+----+----+----+----+----+
| poly1305 tag (16 bytes)               |
+----+----+----+----+----+----+----+----+
*/
type EncryptedFrame [FrameSize]byte

const (
	FrameSize          = 256
	FramePubKeyOffset  = 0
	FrameNonceOffset   = 32
	FrameHeaderSize    = 56
	FrameTagSize       = 16
	FrameOverheadSize  = FrameHeaderSize + FrameTagSize
	FramePlaintextSize = FrameSize - FrameOverheadSize
)

// NewRandomFrame returns a frame filled with random bytes, indistinguishable
// from a sealed frame to anyone but its addressee.
func NewRandomFrame() (EncryptedFrame, error) {
	var f EncryptedFrame
	err := f.Randomize()
	return f, err
}

// Randomize overwrites the whole frame with random bytes.
func (f *EncryptedFrame) Randomize() error {
	if _, err := rand.Read(f[:]); err != nil {
		return oops.Errorf("failed to randomize frame: %w", err)
	}
	return nil
}

// Plaintext is the region a record is written into before EncryptFrame, and
// read from after DecryptFrame.
func (f *EncryptedFrame) Plaintext() []byte {
	return f[FrameHeaderSize : FrameHeaderSize+FramePlaintextSize]
}
