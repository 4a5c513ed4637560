package crypto

import (
	"errors"

	"github.com/go-i2p/logger"
	"github.com/go-i2p/go-onionpath/lib/common/keys"
)

var log = logger.GetGoI2PLogger()

var (
	// ErrDHFailed is returned when an X25519 exchange yields a low-order point
	// or the key derivation cannot be initialised.
	ErrDHFailed = errors.New("diffie-hellman key exchange failed")
	// ErrFrameDecrypt is returned when an encrypted frame fails authentication.
	ErrFrameDecrypt = errors.New("failed to decrypt frame")
	// ErrFrameEncrypt is returned when an encrypted frame cannot be sealed.
	ErrFrameEncrypt = errors.New("failed to encrypt frame")
)

// Crypto is the set of operations path building and relaying depend on.
type Crypto interface {
	// EncryptionKeygen creates a fresh X25519 keypair.
	EncryptionKeygen() (keys.Keypair, error)
	// DHClient derives the shared secret on the path originator's side.
	DHClient(theirPub keys.PubKey, our keys.Keypair, nonce keys.TunnelNonce) (keys.SharedSecret, error)
	// DHServer derives the same shared secret on the relay's side.
	DHServer(theirPub keys.PubKey, our keys.Keypair, nonce keys.TunnelNonce) (keys.SharedSecret, error)
	// XChaCha20 applies one onion layer to buf in place.
	XChaCha20(buf []byte, key keys.SharedSecret, nonce keys.TunnelNonce) error
	// ShortHash returns the blake2b-256 digest of data.
	ShortHash(data []byte) keys.ShortHash
	// EncryptFrame seals the frame in place so only the holder of theirPub can open it.
	EncryptFrame(frame *EncryptedFrame, our keys.Keypair, theirPub keys.PubKey) error
	// DecryptFrame opens a frame in place with our long-term encryption key.
	DecryptFrame(frame *EncryptedFrame, our keys.Keypair) error
	// Randomize fills buf with random bytes.
	Randomize(buf []byte) error
}
