package crypto

import (
	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
)

// X25519Crypto implements Crypto with X25519, BLAKE2b and (X)ChaCha20.
type X25519Crypto struct{}

var _ Crypto = X25519Crypto{}

// NewX25519Crypto returns the default Crypto implementation.
func NewX25519Crypto() X25519Crypto {
	return X25519Crypto{}
}

// GenerateKeypair creates a clamped X25519 keypair.
func GenerateKeypair() (keys.Keypair, error) {
	var kp keys.Keypair
	if _, err := rand.Read(kp.Secret[:]); err != nil {
		return kp, oops.Errorf("failed to generate encryption key: %w", err)
	}
	clamp(&kp.Secret)
	pub, err := PublicKey(kp.Secret)
	if err != nil {
		return kp, err
	}
	kp.Public = pub
	return kp, nil
}

// PublicKey computes the X25519 public key for sec.
func PublicKey(sec keys.SecretKey) (keys.PubKey, error) {
	var pub keys.PubKey
	out, err := curve25519.X25519(sec[:], curve25519.Basepoint)
	if err != nil {
		return pub, oops.Errorf("failed to derive public key: %w", err)
	}
	copy(pub[:], out)
	return pub, nil
}

func (X25519Crypto) EncryptionKeygen() (keys.Keypair, error) {
	return GenerateKeypair()
}

func (X25519Crypto) DHClient(theirPub keys.PubKey, our keys.Keypair, nonce keys.TunnelNonce) (keys.SharedSecret, error) {
	return dh(our.Secret, theirPub, nonce, our.Public, theirPub)
}

func (X25519Crypto) DHServer(theirPub keys.PubKey, our keys.Keypair, nonce keys.TunnelNonce) (keys.SharedSecret, error) {
	return dh(our.Secret, theirPub, nonce, theirPub, our.Public)
}

// dh computes X25519(sec, pub) and binds the result to both public keys and
// the nonce with a keyed BLAKE2b. client and server order the transcript the
// same way so both ends arrive at the same secret.
func dh(sec keys.SecretKey, pub keys.PubKey, nonce keys.TunnelNonce, clientPub, serverPub keys.PubKey) (keys.SharedSecret, error) {
	var shared keys.SharedSecret
	raw, err := curve25519.X25519(sec[:], pub[:])
	if err != nil {
		log.WithFields(logger.Fields{
			"at":     "dh",
			"reason": err.Error(),
		}).Error("x25519 exchange failed")
		return shared, oops.Errorf("%w: %v", ErrDHFailed, err)
	}
	h, err := blake2b.New256(nonce[:])
	if err != nil {
		return shared, oops.Errorf("%w: %v", ErrDHFailed, err)
	}
	h.Write(raw)
	h.Write(clientPub[:])
	h.Write(serverPub[:])
	copy(shared[:], h.Sum(nil))
	return shared, nil
}

func (X25519Crypto) XChaCha20(buf []byte, key keys.SharedSecret, nonce keys.TunnelNonce) error {
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return oops.Errorf("failed to initialise xchacha20: %w", err)
	}
	c.XORKeyStream(buf, buf)
	return nil
}

func (X25519Crypto) ShortHash(data []byte) keys.ShortHash {
	return keys.ShortHash(blake2b.Sum256(data))
}

func (X25519Crypto) Randomize(buf []byte) error {
	if _, err := rand.Read(buf); err != nil {
		return oops.Errorf("failed to read random data: %w", err)
	}
	return nil
}

func (c X25519Crypto) EncryptFrame(frame *EncryptedFrame, our keys.Keypair, theirPub keys.PubKey) error {
	var nonce keys.TunnelNonce
	if err := nonce.Randomize(); err != nil {
		return oops.Errorf("%w: %v", ErrFrameEncrypt, err)
	}
	copy(frame[FramePubKeyOffset:FramePubKeyOffset+keys.PubKeySize], our.Public[:])
	copy(frame[FrameNonceOffset:FrameNonceOffset+keys.TunnelNonceSize], nonce[:])

	key, err := c.DHClient(theirPub, our, nonce)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return oops.Errorf("%w: %v", ErrFrameEncrypt, err)
	}
	header := frame[:FrameHeaderSize]
	body := frame[FrameHeaderSize : FrameHeaderSize+FramePlaintextSize]
	aead.Seal(body[:0], nonce[:], body, header)
	return nil
}

func (c X25519Crypto) DecryptFrame(frame *EncryptedFrame, our keys.Keypair) error {
	var (
		theirPub keys.PubKey
		nonce    keys.TunnelNonce
	)
	copy(theirPub[:], frame[FramePubKeyOffset:FramePubKeyOffset+keys.PubKeySize])
	copy(nonce[:], frame[FrameNonceOffset:FrameNonceOffset+keys.TunnelNonceSize])

	key, err := c.DHServer(theirPub, our, nonce)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return oops.Errorf("%w: %v", ErrFrameDecrypt, err)
	}
	header := frame[:FrameHeaderSize]
	sealed := frame[FrameHeaderSize:]
	if _, err := aead.Open(sealed[:0], nonce[:], sealed, header); err != nil {
		return oops.Errorf("%w: %v", ErrFrameDecrypt, err)
	}
	return nil
}

// clamp applies the RFC 7748 scalar clamping.
func clamp(k *keys.SecretKey) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}
