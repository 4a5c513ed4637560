package path

import (
	"time"

	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/util/threadpool"
)

var log = logger.GetGoI2PLogger()

// Worker runs CPU-bound jobs; *threadpool.Pool implements it.
type Worker interface {
	Submit(job threadpool.Job) error
}

// Logic runs jobs one at a time in queue order; *logic.Logic implements it.
type Logic interface {
	Queue(f func()) error
}

// Router is everything the path layer needs from the router it runs in.
type Router interface {
	ID() keys.RouterID
	EncryptionKeypair() keys.Keypair
	Crypto() crypto.Crypto
	Worker() Worker
	Logic() Logic
	SendRaw(to keys.RouterID, data []byte) error
	Now() time.Time
}
