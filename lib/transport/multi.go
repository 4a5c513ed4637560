package transport

import (
	"errors"

	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
)

// Compile-time check that Muxer implements Transport interface
var _ Transport = (*Muxer)(nil)

// Muxer combines several transports into one, most preferred first.
type Muxer struct {
	trans []Transport
}

// Mux a bunch of transports together
func Mux(t ...Transport) *Muxer {
	log.WithFields(logger.Fields{
		"at":              "Mux",
		"transport_count": len(t),
	}).Debug("creating new Muxer")
	return &Muxer{trans: append([]Transport(nil), t...)}
}

// SendRaw tries each transport in order until one accepts the message. Only
// ErrRouteUnavailable moves on to the next transport; any other error is final.
func (m *Muxer) SendRaw(to keys.RouterID, data []byte) error {
	if len(m.trans) == 0 {
		return ErrNoTransportAvailable
	}
	var err error
	for i, t := range m.trans {
		err = t.SendRaw(to, data)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRouteUnavailable) {
			log.WithFields(logger.Fields{
				"at":              "(Muxer) SendRaw",
				"transport_index": i,
				"peer":            to.Short(),
			}).WithError(err).Warn("transport failed to send")
			return err
		}
	}
	return err
}

// SetHandler installs h on every transport.
func (m *Muxer) SetHandler(h Handler) {
	for _, t := range m.trans {
		t.SetHandler(h)
	}
}

// Close closes every transport, returning the first error seen.
func (m *Muxer) Close() error {
	var first error
	for i, t := range m.trans {
		if err := t.Close(); err != nil {
			log.WithFields(logger.Fields{
				"at":              "(Muxer) Close",
				"transport_index": i,
			}).WithError(err).Warn("error closing transport")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
