package keys

import (
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"

	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	ckeys "github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/util"
)

var log = logger.GetGoI2PLogger()

// KeyFileSize is the on-disk size: ed25519 private key then X25519 secret.
const KeyFileSize = ed25519.PrivateKeySize + ckeys.SecretKeySize

var ErrInvalidKeyFile = errors.New("invalid router key file")

// KeyStore is an interface for storing and retrieving keys
type KeyStore interface {
	KeyID() string
	StoreKeys() error
}

var _ KeyStore = (*RouterKeystore)(nil)

// RouterKeystore holds the router's identity and encryption keys.
type RouterKeystore struct {
	dir        string
	name       string
	identity   ed25519.PrivateKey
	encryption ckeys.Keypair
}

// NewRouterKeystore loads dir/name.key, or generates fresh keys if the file
// does not exist. Fresh keys are not written until StoreKeys is called.
func NewRouterKeystore(dir, name string) (*RouterKeystore, error) {
	if name == "" {
		name = "router"
	}
	ks := &RouterKeystore{dir: dir, name: name}
	path := ks.path()
	if !util.CheckFileExists(path) {
		log.WithFields(logger.Fields{
			"at":   "NewRouterKeystore",
			"path": path,
		}).Info("generating new router keys")
		if err := ks.generate(); err != nil {
			return nil, err
		}
		return ks, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to read router keys")
	}
	if err := ks.load(data); err != nil {
		return nil, err
	}
	log.WithFields(logger.Fields{
		"at":        "NewRouterKeystore",
		"path":      path,
		"router_id": ks.RouterID().Short(),
	}).Debug("loaded router keys")
	return ks, nil
}

func (ks *RouterKeystore) generate() error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return oops.Wrapf(err, "failed to generate identity key")
	}
	enc, err := crypto.GenerateKeypair()
	if err != nil {
		return err
	}
	ks.identity = priv
	ks.encryption = enc
	return nil
}

func (ks *RouterKeystore) load(data []byte) error {
	if len(data) != KeyFileSize {
		return oops.Errorf("key file is %d bytes, want %d: %w", len(data), KeyFileSize, ErrInvalidKeyFile)
	}
	ks.identity = ed25519.PrivateKey(append([]byte(nil), data[:ed25519.PrivateKeySize]...))
	copy(ks.encryption.Secret[:], data[ed25519.PrivateKeySize:])
	pub, err := crypto.PublicKey(ks.encryption.Secret)
	if err != nil {
		return oops.Errorf("%w: %v", ErrInvalidKeyFile, err)
	}
	ks.encryption.Public = pub
	return nil
}

func (ks *RouterKeystore) path() string {
	return filepath.Join(ks.dir, ks.name+".key")
}

func (ks *RouterKeystore) KeyID() string { return ks.name }

// StoreKeys writes both keys to dir/name.key, readable only by the owner.
func (ks *RouterKeystore) StoreKeys() error {
	if err := os.MkdirAll(ks.dir, 0o700); err != nil {
		return oops.Wrapf(err, "failed to create key directory")
	}
	buf := make([]byte, 0, KeyFileSize)
	buf = append(buf, ks.identity...)
	buf = append(buf, ks.encryption.Secret[:]...)
	if err := os.WriteFile(ks.path(), buf, 0o600); err != nil {
		return oops.Wrapf(err, "failed to store router keys")
	}
	return nil
}

// Identity returns the public identity bytes the router ID is derived from.
func (ks *RouterKeystore) Identity() []byte {
	pub := ks.identity.Public().(ed25519.PublicKey)
	out := make([]byte, 0, len(pub)+ckeys.PubKeySize)
	out = append(out, pub...)
	return append(out, ks.encryption.Public[:]...)
}

// RouterID is the hash of Identity.
func (ks *RouterKeystore) RouterID() ckeys.RouterID {
	return ckeys.RouterIDFromIdentity(ks.Identity())
}

// EncryptionKeypair returns the long-term X25519 keypair.
func (ks *RouterKeystore) EncryptionKeypair() ckeys.Keypair {
	return ks.encryption
}

// Sign signs msg with the identity key.
func (ks *RouterKeystore) Sign(msg []byte) []byte {
	return ed25519.Sign(ks.identity, msg)
}

// VerifyIdentity checks a signature against the identity half of identity bytes.
func VerifyIdentity(identity, msg, sig []byte) bool {
	if len(identity) < ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(identity[:ed25519.PublicKeySize]), msg, sig)
}
