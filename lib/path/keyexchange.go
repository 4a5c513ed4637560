package path

import (
	"errors"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/messages"
)

// BuildHandler is called on the logic thread once a build attempt is over.
// A nil error means the relay-commit went out and the path is registered and
// waiting for its ack.
type BuildHandler func(p *Path, err error)

// keyExchange negotiates one path's hop keys, strictly in hop order. Each
// step runs on the worker pool and submits the next one, so a single build
// never has two steps in flight.
type keyExchange struct {
	ctx     *PathContext
	path    *Path
	idx     int
	frames  []crypto.EncryptedFrame
	handler BuildHandler
}

func newKeyExchange(ctx *PathContext, p *Path, handler BuildHandler) (*keyExchange, error) {
	frames := make([]crypto.EncryptedFrame, messages.MaxHops)
	for i := range frames {
		if err := frames[i].Randomize(); err != nil {
			return nil, oops.Errorf("%w: %v", ErrCryptoFailure, err)
		}
	}
	return &keyExchange{
		ctx:     ctx,
		path:    p,
		frames:  frames,
		handler: handler,
	}, nil
}

func (kx *keyExchange) start() error {
	return kx.ctx.router.Worker().Submit(kx.step)
}

// cancelled reports why the build should stop, if it should.
func (kx *keyExchange) cancelled() error {
	p := kx.path
	if s := p.Status(); s != Building {
		return oops.Errorf("path is %s: %w", s, ErrBuildTimeout)
	}
	now := kx.ctx.router.Now()
	if p.buildDeadlinePassed(now) {
		return ErrBuildTimeout
	}
	return nil
}

func (kx *keyExchange) step() {
	if err := kx.cancelled(); err != nil {
		kx.fail(err)
		return
	}
	if err := kx.generateHop(kx.idx); err != nil {
		kx.fail(err)
		return
	}
	kx.idx++
	if kx.idx < len(kx.path.Hops) {
		if err := kx.ctx.router.Worker().Submit(kx.step); err != nil {
			kx.fail(err)
		}
		return
	}
	if err := kx.ctx.router.Logic().Queue(kx.finish); err != nil {
		log.WithFields(logger.Fields{
			"at":      "(keyExchange) step",
			"phase":   "path_build",
			"path_id": kx.path.PathID().String(),
		}).WithError(err).Warn("could not queue build completion")
	}
}

// generateHop fills in hop i and seals its commit frame.
func (kx *keyExchange) generateHop(i int) error {
	p := kx.path
	hop := p.Hops[i]
	c := kx.ctx.router.Crypto()

	commit, err := c.EncryptionKeygen()
	if err != nil {
		return oops.Errorf("hop %d keygen: %w: %v", i, ErrCryptoFailure, err)
	}
	if err := hop.Nonce.Randomize(); err != nil {
		return oops.Errorf("hop %d nonce: %w: %v", i, ErrCryptoFailure, err)
	}
	shared, err := c.DHClient(hop.Router.EncryptionKey, commit, hop.Nonce)
	if err != nil {
		return oops.Errorf("hop %d dh: %w: %v", i, ErrCryptoFailure, err)
	}
	if err := hop.PathID.Randomize(); err != nil {
		return oops.Errorf("hop %d path id: %w: %v", i, ErrCryptoFailure, err)
	}
	hop.CommitKey = commit
	hop.Shared = shared
	hop.NonceXOR = nonceXOR(c, shared)
	if i+1 < len(p.Hops) {
		hop.Upstream = p.Hops[i+1].Router.ID
	} else {
		hop.Upstream = hop.Router.ID
	}
	downstream := hop.PathID
	if i > 0 {
		downstream = p.Hops[i-1].PathID
	}

	rec := messages.CommitRecord{
		Version:          messages.ProtocolVersion,
		PathID:           hop.PathID,
		DownstreamPathID: downstream,
		NextHop:          hop.Upstream,
		CommitKey:        commit.Public,
		TunnelNonce:      hop.Nonce,
		Lifetime:         p.Lifetime,
	}
	frame := &kx.frames[i]
	if err := rec.Encode(frame.Plaintext()); err != nil {
		return err
	}
	if err := c.EncryptFrame(frame, commit, hop.Router.EncryptionKey); err != nil {
		return oops.Errorf("hop %d frame: %w: %v", i, ErrCryptoFailure, err)
	}
	return nil
}

// fail abandons the build on the logic thread.
func (kx *keyExchange) fail(err error) {
	p := kx.path
	now := kx.ctx.router.Now()
	log.WithFields(logger.Fields{
		"at":     "(keyExchange) fail",
		"phase":  "path_build",
		"hop":    kx.idx,
		"reason": err.Error(),
	}).Warn("path build abandoned")
	qerr := kx.ctx.router.Logic().Queue(func() {
		p.setStatus(Building, TimedOut, now)
		kx.complete(err)
	})
	if qerr != nil {
		p.setStatus(Building, TimedOut, now)
	}
}

// finish runs on the logic thread after the last hop.
func (kx *keyExchange) finish() {
	p := kx.path
	if err := kx.cancelled(); err != nil {
		p.setStatus(Building, TimedOut, kx.ctx.router.Now())
		kx.complete(err)
		return
	}
	kx.ctx.AddOwnPath(p)
	data, err := messages.Encode(&messages.RelayCommitMessage{Frames: kx.frames})
	if err != nil {
		kx.complete(err)
		return
	}
	if err := kx.ctx.router.SendRaw(p.Upstream(), data); err != nil {
		// The path stays registered and times out like any other build
		// whose commit was lost.
		log.WithFields(logger.Fields{
			"at":      "(keyExchange) finish",
			"phase":   "path_build",
			"path_id": p.PathID().String(),
			"peer":    p.Upstream().Short(),
		}).WithError(err).Warn("failed to send relay commit")
		kx.complete(oops.Errorf("%w: %v", ErrRouteUnavailable, err))
		return
	}
	log.WithFields(logger.Fields{
		"at":      "(keyExchange) finish",
		"phase":   "path_build",
		"path_id": p.PathID().String(),
		"hops":    len(p.Hops),
	}).Debug("relay commit sent")
	kx.complete(nil)
}

func (kx *keyExchange) complete(err error) {
	if kx.handler == nil {
		return
	}
	kx.handler(kx.path, err)
}

// IsCryptoFailure reports whether a build error came from a crypto primitive.
func IsCryptoFailure(err error) bool {
	return errors.Is(err, ErrCryptoFailure)
}
