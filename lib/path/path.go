package path

import (
	"sync"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/messages"
	"github.com/go-i2p/go-onionpath/lib/util/time/monotonic"
)

const (
	// PayloadSize is the fixed size of one onion frame of path traffic.
	PayloadSize = 1024

	DefaultPathLifetime = 10 * time.Minute
	DefaultBuildTimeout = 30 * time.Second
)

// PathStatus is where an owned path is in its lifecycle.
type PathStatus int

const (
	Building PathStatus = iota
	Established
	TimedOut
	Expired
)

func (s PathStatus) String() string {
	switch s {
	case Building:
		return "building"
	case Established:
		return "established"
	case TimedOut:
		return "timed out"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s PathStatus) Terminal() bool {
	return s == TimedOut || s == Expired
}

// PathHopConfig is the originator's state for one hop. Everything except
// Router is filled in by the key-exchange pipeline.
type PathHopConfig struct {
	PathID    keys.PathID
	Router    RouterContact
	CommitKey keys.Keypair
	Shared    keys.SharedSecret
	Upstream  keys.RouterID
	Nonce     keys.TunnelNonce
	NonceXOR  keys.TunnelNonce
}

// DataHandler receives decrypted downstream traffic for a path.
type DataHandler func(p *Path, payload []byte)

// StatusHandler is told about every status transition of a path.
type StatusHandler func(p *Path, status PathStatus)

// Path is a path this router originates. Hops[0] is the first relay and the
// last hop is the terminus.
type Path struct {
	Hops         []*PathHopConfig
	BuildStarted time.Time
	Lifetime     time.Duration
	BuildTimeout time.Duration

	mu            sync.Mutex
	status        PathStatus
	establishedAt time.Time
	onData        DataHandler
	onStatus      StatusHandler
}

// NewPath prepares a path through the given relays, in order.
func NewPath(hops []RouterContact, lifetime, buildTimeout time.Duration) (*Path, error) {
	if len(hops) == 0 {
		return nil, ErrNoHops
	}
	if len(hops) > messages.MaxHops {
		return nil, oops.Errorf("%d hops: %w", len(hops), ErrTooManyHops)
	}
	if lifetime <= 0 {
		lifetime = DefaultPathLifetime
	}
	if buildTimeout <= 0 {
		buildTimeout = DefaultBuildTimeout
	}
	p := &Path{
		Hops:         make([]*PathHopConfig, len(hops)),
		Lifetime:     lifetime,
		BuildTimeout: buildTimeout,
	}
	for i, rc := range hops {
		if !rc.Valid() {
			return nil, oops.Errorf("hop %d has no router ID or encryption key", i)
		}
		p.Hops[i] = &PathHopConfig{Router: rc}
	}
	return p, nil
}

// PathID is the ID the path is registered under: that of its first hop.
func (p *Path) PathID() keys.PathID {
	return p.Hops[0].PathID
}

// Upstream is the router this path's traffic is sent to first.
func (p *Path) Upstream() keys.RouterID {
	return p.Hops[0].Router.ID
}

// Terminus is the last router of the path.
func (p *Path) Terminus() keys.RouterID {
	return p.Hops[len(p.Hops)-1].Router.ID
}

func (p *Path) Status() PathStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// EstablishedAt is when the relay-ack arrived, zero before that.
func (p *Path) EstablishedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.establishedAt
}

// SetDataHandler installs the receiver for downstream traffic.
func (p *Path) SetDataHandler(h DataHandler) {
	p.mu.Lock()
	p.onData = h
	p.mu.Unlock()
}

// SetStatusHandler installs the observer for status transitions.
func (p *Path) SetStatusHandler(h StatusHandler) {
	p.mu.Lock()
	p.onStatus = h
	p.mu.Unlock()
}

// Expired reports whether the path should be dropped at now: it is in a
// terminal state, its build deadline passed without an ack, or its
// lifetime ran out. Lifetime counts from BuildStarted.
func (p *Path) Expired(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case Building:
		return p.buildDeadlinePassed(now)
	case Established:
		return monotonic.ExpiredAt(p.BuildStarted, p.Lifetime, now)
	default:
		return true
	}
}

func (p *Path) buildDeadlinePassed(now time.Time) bool {
	return monotonic.ExpiredAt(p.BuildStarted, p.BuildTimeout, now)
}

// transition moves from one status to another and returns the status
// handler to notify, or false if the path was not in from.
func (p *Path) transition(from, to PathStatus, now time.Time) (StatusHandler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != from {
		return nil, false
	}
	p.status = to
	if to == Established {
		p.establishedAt = now
	}
	return p.onStatus, true
}

func (p *Path) setStatus(from, to PathStatus, now time.Time) bool {
	h, ok := p.transition(from, to, now)
	if ok {
		log.WithFields(logger.Fields{
			"at":      "(Path) setStatus",
			"phase":   "path_build",
			"path_id": p.PathID().String(),
			"from":    from.String(),
			"to":      to.String(),
		}).Debug("path status changed")
		if h != nil {
			h(p, to)
		}
	}
	return ok
}

// tick applies the time-based transitions that hold at now and reports
// whether the path is now terminal.
func (p *Path) tick(now time.Time) (terminal bool, changed StatusHandler, to PathStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case Building:
		if p.buildDeadlinePassed(now) {
			p.status = TimedOut
			return true, p.onStatus, TimedOut
		}
	case Established:
		if monotonic.ExpiredAt(p.BuildStarted, p.Lifetime, now) {
			p.status = Expired
			return true, p.onStatus, Expired
		}
	default:
		return true, nil, p.status
	}
	return false, nil, p.status
}

// applyLayers XORs every hop's keystream into buf. For upstream traffic
// nonce is the one sent to hop 0 and advances after each layer; for
// downstream traffic it is the one received from hop 0 and advances before
// each layer.
func (p *Path) applyLayers(buf []byte, nonce keys.TunnelNonce, r Router, downstream bool) error {
	c := r.Crypto()
	for i, hop := range p.Hops {
		if downstream {
			nonce = nonce.XOR(hop.NonceXOR)
		}
		if err := c.XChaCha20(buf, hop.Shared, nonce); err != nil {
			return oops.Errorf("layer %d: %w: %v", i, ErrCryptoFailure, err)
		}
		if !downstream {
			nonce = nonce.XOR(hop.NonceXOR)
		}
	}
	return nil
}

// EncryptAndSend onion-encrypts buf in place for every hop and sends it to
// the first hop. buf must be exactly PayloadSize bytes.
func (p *Path) EncryptAndSend(buf []byte, r Router) error {
	if p.Status() != Established {
		return ErrPathNotEstablished
	}
	if len(buf) != PayloadSize {
		return oops.Errorf("%d bytes: %w", len(buf), ErrBadPayloadSize)
	}
	nonce, err := keys.NewTunnelNonce()
	if err != nil {
		return oops.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	if err := p.applyLayers(buf, nonce, r, false); err != nil {
		return err
	}
	data, err := messages.Encode(&messages.RelayUpstreamMessage{
		PathID:  p.PathID(),
		Nonce:   nonce,
		Payload: buf,
	})
	if err != nil {
		return err
	}
	if err := r.SendRaw(p.Upstream(), data); err != nil {
		return oops.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	return nil
}

// DecryptAndRecv strips every hop's layer from buf in place, using the
// nonce it arrived with from the first hop, and hands the plaintext to the
// data handler.
func (p *Path) DecryptAndRecv(buf []byte, nonce keys.TunnelNonce, r Router) error {
	if err := p.applyLayers(buf, nonce, r, true); err != nil {
		return err
	}
	p.mu.Lock()
	h := p.onData
	p.mu.Unlock()
	if h != nil {
		h(p, buf)
	}
	return nil
}
