package router

import (
	"github.com/go-i2p/logger"

	ckeys "github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/messages"
)

// handleInbound runs on the transport's delivery goroutine. Decoding happens
// here; handling is queued on the logic thread so messages from all peers are
// processed in arrival order.
func (r *Router) handleInbound(from ckeys.RouterID, data []byte) {
	msg, err := messages.Decode(data)
	if err != nil {
		r.counters.malformed.Add(1)
		log.WithFields(logger.Fields{
			"at":   "(Router) handleInbound",
			"peer": from.Short(),
			"size": len(data),
		}).WithError(err).Debug("dropping malformed link message")
		return
	}
	r.counters.received.Add(1)
	if err := r.logic.Queue(func() { r.dispatch(from, msg) }); err != nil {
		r.counters.unhandled.Add(1)
	}
}

// dispatch hands msg to the path context and reports whether it was accepted.
func (r *Router) dispatch(from ckeys.RouterID, msg messages.Message) bool {
	var ok bool
	switch m := msg.(type) {
	case *messages.RelayCommitMessage:
		ok = r.paths.HandleRelayCommit(from, m)
	case *messages.RelayAckMessage:
		ok = r.paths.HandleRelayAck(from, m)
	case *messages.RelayUpstreamMessage:
		ok = r.paths.HandleRelayUpstream(from, m)
	case *messages.RelayDownstreamMessage:
		ok = r.paths.HandleRelayDownstream(from, m)
	default:
		log.WithFields(logger.Fields{
			"at":   "(Router) dispatch",
			"type": msg.Type(),
		}).Warn("no handler for link message")
	}
	if !ok {
		r.counters.unhandled.Add(1)
	}
	return ok
}
