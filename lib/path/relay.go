package path

import (
	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/crypto"
	"github.com/go-i2p/go-onionpath/lib/messages"
)

func (ctx *PathContext) rejectCommit(from keys.RouterID, reason string, err error) bool {
	fields := logger.Fields{
		"at":     "(PathContext) HandleRelayCommit",
		"phase":  "path_build",
		"peer":   from.Short(),
		"reason": reason,
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn(ErrTransitRejected.Error())
	} else {
		log.WithFields(fields).Warn(ErrTransitRejected.Error())
	}
	return false
}

// HandleRelayCommit processes a relay-commit whose first frame is addressed
// to this router. On success a transit hop is registered and the remaining
// frames go to the next hop, or, at the terminus, a relay-ack goes back
// toward the originator. Rejections send nothing back.
func (ctx *PathContext) HandleRelayCommit(from keys.RouterID, msg *messages.RelayCommitMessage) bool {
	if !ctx.AllowingTransit() {
		return ctx.rejectCommit(from, "transit_disabled", nil)
	}
	if len(msg.Frames) == 0 || len(msg.Frames) > messages.MaxHops {
		return ctx.rejectCommit(from, "bad_frame_count", nil)
	}
	if ctx.HopIsUs(from) {
		return ctx.rejectCommit(from, "self_addressed", nil)
	}
	now := ctx.router.Now()
	if ok, reason := ctx.limiter.Allow(from, now); !ok {
		return ctx.rejectCommit(from, reason, nil)
	}
	if ctx.transit.len() >= ctx.cfg.MaxTransitHops {
		return ctx.rejectCommit(from, "transit_limit", nil)
	}

	// Decrypt a copy: a failed open may clobber the buffer.
	frame := msg.Frames[0]
	c := ctx.router.Crypto()
	our := ctx.router.EncryptionKeypair()
	if err := c.DecryptFrame(&frame, our); err != nil {
		return ctx.rejectCommit(from, "frame_decrypt", err)
	}
	rec, err := messages.ReadCommitRecord(frame.Plaintext())
	if err != nil {
		return ctx.rejectCommit(from, "bad_record", err)
	}
	if rec.NextHop.IsZero() || rec.PathID.IsZero() {
		return ctx.rejectCommit(from, "bad_record", nil)
	}
	pathKey, err := c.DHServer(rec.CommitKey, our, rec.TunnelNonce)
	if err != nil {
		return ctx.rejectCommit(from, "dh_failed", err)
	}

	info := TransitHopInfo{
		PathID:     rec.PathID,
		Upstream:   rec.NextHop,
		Downstream: from,
	}
	if ctx.HasTransitHop(info) {
		return ctx.rejectCommit(from, "duplicate_hop", nil)
	}
	lifetime := rec.Lifetime
	if lifetime <= 0 || lifetime > ctx.cfg.TransitLifetime {
		lifetime = ctx.cfg.TransitLifetime
	}
	hop := &TransitHop{
		Info:             info,
		DownstreamPathID: rec.DownstreamPathID,
		PathKey:          pathKey,
		NonceXOR:         nonceXOR(c, pathKey),
		Started:          now,
		Lifetime:         lifetime,
		Version:          rec.Version,
	}
	ctx.PutTransitHop(hop)

	fields := logger.Fields{
		"at":    "(PathContext) HandleRelayCommit",
		"phase": "path_build",
		"hop":   info.String(),
	}
	if hop.IsTerminus(ctx.router.ID()) {
		log.WithFields(fields).Debug("accepted transit hop as terminus")
		if err := ctx.sendAck(from, rec.DownstreamPathID); err != nil {
			log.WithFields(fields).WithError(err).Warn("failed to send relay ack")
		}
		return true
	}

	next := make([]crypto.EncryptedFrame, len(msg.Frames))
	copy(next, msg.Frames[1:])
	if err := next[len(next)-1].Randomize(); err != nil {
		log.WithFields(fields).WithError(err).Error("failed to pad relay commit")
		return true
	}
	if !ctx.ForwardLRCM(rec.NextHop, next) {
		log.WithFields(fields).Debug("transit hop kept, next hop unreachable")
		return true
	}
	log.WithFields(fields).Debug("accepted transit hop")
	return true
}

func (ctx *PathContext) sendAck(to keys.RouterID, id keys.PathID) error {
	data, err := messages.Encode(&messages.RelayAckMessage{PathID: id})
	if err != nil {
		return err
	}
	return ctx.router.SendRaw(to, data)
}

// HandleRelayAck resolves a pending owned path to Established, or passes the
// ack one hop further downstream when it belongs to a transit hop.
func (ctx *PathContext) HandleRelayAck(from keys.RouterID, msg *messages.RelayAckMessage) bool {
	fields := logger.Fields{
		"at":      "(PathContext) HandleRelayAck",
		"phase":   "path_build",
		"path_id": msg.PathID.String(),
		"peer":    from.Short(),
	}
	now := ctx.router.Now()
	if p, ok := ctx.owned.get(msg.PathID); ok && p.Upstream() == from {
		switch p.Status() {
		case Building:
			if p.buildDeadlinePassed(now) {
				p.setStatus(Building, TimedOut, now)
				log.WithFields(fields).Warn("relay ack arrived after build deadline")
				return false
			}
			if !p.setStatus(Building, Established, now) {
				return false
			}
			log.WithFields(fields).WithField("hops", len(p.Hops)).Info("path established")
			return true
		default:
			log.WithFields(fields).WithField("status", p.Status().String()).Debug("ignoring relay ack for path not building")
			return false
		}
	}
	if hop := ctx.transit.byUpstream(msg.PathID, from); hop != nil {
		if err := ctx.sendAck(hop.Info.Downstream, hop.DownstreamPathID); err != nil {
			log.WithFields(fields).WithError(err).Warn("failed to forward relay ack")
			return false
		}
		return true
	}
	log.WithFields(fields).Warn(ErrAckMismatch.Error())
	return false
}

// HandleRelayUpstream relays traffic away from the originator, or hands the
// plaintext to the exit handler at the terminus.
func (ctx *PathContext) HandleRelayUpstream(from keys.RouterID, msg *messages.RelayUpstreamMessage) bool {
	hop := ctx.transit.byDownstreamPeer(msg.PathID, from)
	if hop == nil {
		log.WithFields(logger.Fields{
			"at":      "(PathContext) HandleRelayUpstream",
			"path_id": msg.PathID.String(),
			"peer":    from.Short(),
		}).Debug("no transit hop for upstream message")
		return false
	}
	if !hop.IsTerminus(ctx.router.ID()) {
		return hop.ForwardUpstream(msg.Payload, msg.Nonce, ctx.router) == nil
	}
	if _, err := hop.crypt(msg.Payload, msg.Nonce, ctx.router); err != nil {
		return false
	}
	hop.upstreamMessages.Add(1)
	ctx.exitMu.RLock()
	exit := ctx.exit
	ctx.exitMu.RUnlock()
	if exit != nil {
		exit(ctx, hop, msg.Payload)
	}
	return true
}

// HandleRelayDownstream delivers traffic on an owned path, or relays it
// toward the originator.
func (ctx *PathContext) HandleRelayDownstream(from keys.RouterID, msg *messages.RelayDownstreamMessage) bool {
	if p, ok := ctx.owned.get(msg.PathID); ok && p.Upstream() == from {
		if p.Status() != Established {
			return false
		}
		return p.DecryptAndRecv(msg.Payload, msg.Nonce, ctx.router) == nil
	}
	if hop := ctx.transit.byUpstream(msg.PathID, from); hop != nil {
		return hop.ForwardDownstream(msg.Payload, msg.Nonce, ctx.router) == nil
	}
	log.WithFields(logger.Fields{
		"at":      "(PathContext) HandleRelayDownstream",
		"path_id": msg.PathID.String(),
		"peer":    from.Short(),
	}).Debug("no path or transit hop for downstream message")
	return false
}

// SendDownstream originates traffic from the terminus back toward the
// originator of hop's path.
func (ctx *PathContext) SendDownstream(hop *TransitHop, payload []byte) error {
	nonce, err := keys.NewTunnelNonce()
	if err != nil {
		return err
	}
	return hop.ForwardDownstream(payload, nonce, ctx.router)
}
