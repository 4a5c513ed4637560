package path

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/messages"
	"github.com/go-i2p/go-onionpath/lib/util/time/monotonic"
)

// DefaultTransitLifetime is how long a relay keeps a transit hop.
const DefaultTransitLifetime = 10 * time.Minute

// TransitHopInfo identifies one link of a path as a relay sees it.
// Upstream leads away from the originator, Downstream toward it.
type TransitHopInfo struct {
	PathID     keys.PathID
	Upstream   keys.RouterID
	Downstream keys.RouterID
}

// Hash mixes all three fields.
func (i TransitHopInfo) Hash() uint64 {
	var buf [keys.PathIDSize + 2*keys.RouterIDSize]byte
	n := copy(buf[:], i.PathID[:])
	n += copy(buf[n:], i.Upstream[:])
	copy(buf[n:], i.Downstream[:])
	return xxhash.Sum64(buf[:])
}

func (i TransitHopInfo) String() string {
	return fmt.Sprintf("[%s %s -> %s]", i.PathID, i.Downstream.Short(), i.Upstream.Short())
}

// TransitHop is live state for a hop this router relays.
type TransitHop struct {
	Info TransitHopInfo
	// DownstreamPathID tags messages sent toward Downstream.
	DownstreamPathID keys.PathID
	PathKey          keys.SharedSecret
	// NonceXOR advances the tunnel nonce after this hop's layer.
	NonceXOR keys.TunnelNonce
	Started  time.Time
	Lifetime time.Duration
	Version  byte

	upstreamMessages   atomic.Uint64
	downstreamMessages atomic.Uint64
}

// Expired reports whether the hop's lifetime has run out at now. The hop is
// live on [Started, Started+Lifetime).
func (h *TransitHop) Expired(now time.Time) bool {
	return monotonic.ExpiredAt(h.Started, h.Lifetime, now)
}

// IsTerminus reports whether this hop is the last one of its path, given
// the relay's own router ID.
func (h *TransitHop) IsTerminus(self keys.RouterID) bool {
	return h.Info.Upstream == self
}

// Counts returns how many messages crossed the hop in each direction.
func (h *TransitHop) Counts() (upstream, downstream uint64) {
	return h.upstreamMessages.Load(), h.downstreamMessages.Load()
}

// crypt applies this hop's onion layer to payload in place and returns the
// nonce for the next hop.
func (h *TransitHop) crypt(payload []byte, nonce keys.TunnelNonce, r Router) (keys.TunnelNonce, error) {
	if err := r.Crypto().XChaCha20(payload, h.PathKey, nonce); err != nil {
		return nonce, oops.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return nonce.XOR(h.NonceXOR), nil
}

// ForwardUpstream applies this hop's layer to payload and sends it toward
// Upstream. The send is fire-and-forget.
func (h *TransitHop) ForwardUpstream(payload []byte, nonce keys.TunnelNonce, r Router) error {
	next, err := h.crypt(payload, nonce, r)
	if err != nil {
		return err
	}
	h.upstreamMessages.Add(1)
	return h.send(h.Info.Upstream, &messages.RelayUpstreamMessage{
		PathID:  h.Info.PathID,
		Nonce:   next,
		Payload: payload,
	}, r)
}

// ForwardDownstream applies this hop's layer to payload and sends it toward
// Downstream.
func (h *TransitHop) ForwardDownstream(payload []byte, nonce keys.TunnelNonce, r Router) error {
	next, err := h.crypt(payload, nonce, r)
	if err != nil {
		return err
	}
	h.downstreamMessages.Add(1)
	return h.send(h.Info.Downstream, &messages.RelayDownstreamMessage{
		PathID:  h.DownstreamPathID,
		Nonce:   next,
		Payload: payload,
	}, r)
}

func (h *TransitHop) send(to keys.RouterID, msg messages.Message, r Router) error {
	data, err := messages.Encode(msg)
	if err != nil {
		return err
	}
	if err := r.SendRaw(to, data); err != nil {
		log.WithFields(logger.Fields{
			"at":   "(TransitHop) send",
			"hop":  h.Info.String(),
			"peer": to.Short(),
		}).WithError(err).Debug("relay send failed")
		return oops.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	return nil
}

// nonceXOR derives the per-hop nonce step from the hop's shared secret.
func nonceXOR(c crypto.Crypto, shared keys.SharedSecret) keys.TunnelNonce {
	var x keys.TunnelNonce
	h := c.ShortHash(shared[:])
	copy(x[:], h[:keys.TunnelNonceSize])
	return x
}
