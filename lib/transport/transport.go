package transport

import (
	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
)

var log = logger.GetGoI2PLogger()

// Handler receives one inbound link message.
type Handler func(from keys.RouterID, data []byte)

// Transport sends link messages to other routers.
type Transport interface {
	// SendRaw hands data to the link toward to. The buffer may be retained,
	// callers must not modify it afterwards.
	SendRaw(to keys.RouterID, data []byte) error
	// SetHandler installs the callback for inbound messages.
	SetHandler(h Handler)
	// Close stops delivery in both directions.
	Close() error
}
