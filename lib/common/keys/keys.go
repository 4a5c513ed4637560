package keys

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/cespare/xxhash/v2"
	"github.com/go-i2p/common/base32"
	common "github.com/go-i2p/common/data"
	"github.com/go-i2p/crypto/rand"
	"github.com/samber/oops"
)

const (
	RouterIDSize     = 32
	PathIDSize       = 16
	PubKeySize       = 32
	SecretKeySize    = 32
	SharedSecretSize = 32
	TunnelNonceSize  = 24
	ShortHashSize    = 32
)

var ErrInvalidKeyLength = errors.New("invalid key material length")

/*
[RouterID]

Description
Long-term identity of a router. Derived from the router's identity public key
as the SHA-256 ident hash, the same way I2P derives a RouterIdentity hash.

Contents
32 bytes
*/
type RouterID [RouterIDSize]byte

// RouterIDFromIdentity derives the router ID for an identity public key.
func RouterIDFromIdentity(identity []byte) RouterID {
	return RouterID(common.HashData(identity))
}

// RouterIDFromBytes copies b into a RouterID.
func RouterIDFromBytes(b []byte) (RouterID, error) {
	var id RouterID
	if len(b) != RouterIDSize {
		return id, oops.Wrapf(ErrInvalidKeyLength, "router id: expected %d bytes, got %d", RouterIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (r RouterID) Equal(other RouterID) bool { return r == other }

func (r RouterID) Less(other RouterID) bool { return bytes.Compare(r[:], other[:]) < 0 }

func (r RouterID) IsZero() bool { return r == RouterID{} }

// Hash mixes the raw bytes for map/shard placement. Not collision resistant.
func (r RouterID) Hash() uint64 { return xxhash.Sum64(r[:]) }

// String renders the ID in I2P base32, suffixed like a router address.
func (r RouterID) String() string {
	return base32.EncodeToString(r[:]) + ".router"
}

// Short is the first 8 bytes in hex, for log fields.
func (r RouterID) Short() string { return hex.EncodeToString(r[:8]) }

/*
[PathID]

Description
128-bit identifier for one hop of a path. Randomly chosen by the path
originator, so collisions between unrelated paths are possible in theory only.

Contents
16 bytes
*/
type PathID [PathIDSize]byte

// NewPathID returns a random PathID.
func NewPathID() (PathID, error) {
	var p PathID
	err := p.Randomize()
	return p, err
}

func (p *PathID) Randomize() error { return randomize(p[:]) }

func (p PathID) Equal(other PathID) bool { return p == other }

func (p PathID) Less(other PathID) bool { return bytes.Compare(p[:], other[:]) < 0 }

func (p PathID) IsZero() bool { return p == PathID{} }

func (p PathID) Hash() uint64 { return xxhash.Sum64(p[:]) }

func (p PathID) String() string { return hex.EncodeToString(p[:]) }

// PubKey is an X25519 public encryption key.
type PubKey [PubKeySize]byte

func (k PubKey) Equal(other PubKey) bool { return k == other }

func (k PubKey) IsZero() bool { return k == PubKey{} }

func (k PubKey) String() string { return hex.EncodeToString(k[:]) }

// SecretKey is an X25519 private scalar.
type SecretKey [SecretKeySize]byte

// Zero wipes the key in place.
func (k *SecretKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Keypair holds a secret key together with its public half.
type Keypair struct {
	Secret SecretKey
	Public PubKey
}

// SharedSecret is the output of a Diffie-Hellman exchange after key derivation.
type SharedSecret [SharedSecretSize]byte

func (s SharedSecret) IsZero() bool { return s == SharedSecret{} }

// TunnelNonce is the 24-byte XChaCha20 nonce used for key exchange and onion layers.
type TunnelNonce [TunnelNonceSize]byte

// NewTunnelNonce returns a random nonce.
func NewTunnelNonce() (TunnelNonce, error) {
	var n TunnelNonce
	err := n.Randomize()
	return n, err
}

func (n *TunnelNonce) Randomize() error { return randomize(n[:]) }

// XOR returns n ^ other, used to advance the nonce from one hop to the next.
func (n TunnelNonce) XOR(other TunnelNonce) TunnelNonce {
	var out TunnelNonce
	for i := range n {
		out[i] = n[i] ^ other[i]
	}
	return out
}

func (n TunnelNonce) String() string { return hex.EncodeToString(n[:]) }

// ShortHash is a 32-byte blake2b digest.
type ShortHash [ShortHashSize]byte

func randomize(b []byte) error {
	if _, err := rand.Read(b); err != nil {
		return oops.Wrapf(err, "failed to read random data")
	}
	return nil
}
