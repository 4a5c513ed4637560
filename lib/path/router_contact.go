package path

import (
	"github.com/go-i2p/go-onionpath/lib/common/keys"
)

// RouterContact is what an originator needs to know about a relay.
type RouterContact struct {
	ID            keys.RouterID
	EncryptionKey keys.PubKey
	Identity      []byte
}

// NewRouterContact derives the router ID from the identity bytes.
func NewRouterContact(identity []byte, encryptionKey keys.PubKey) RouterContact {
	return RouterContact{
		ID:            keys.RouterIDFromIdentity(identity),
		EncryptionKey: encryptionKey,
		Identity:      append([]byte(nil), identity...),
	}
}

// Valid reports whether the contact can be used as a hop.
func (rc RouterContact) Valid() bool {
	return !rc.ID.IsZero() && !rc.EncryptionKey.IsZero()
}
