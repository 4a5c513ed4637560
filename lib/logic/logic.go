// Package logic provides the router's serialized control thread.
//
// Registry mutations that must be observed in a single order, such as
// completing a path build or handling inbound link messages, are queued here
// and run one at a time in the order they were queued.
package logic

import (
	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-onionpath/lib/util/threadpool"
)

var log = logger.GetGoI2PLogger()

// Logic runs queued functions one at a time.
type Logic struct {
	pool *threadpool.Pool
}

// New starts a logic thread.
func New() *Logic {
	return &Logic{pool: threadpool.New("logic", 1)}
}

// Queue schedules f on the logic thread.
func (l *Logic) Queue(f func()) error {
	if err := l.pool.Submit(f); err != nil {
		log.WithField("at", "(Logic) Queue").WithError(err).Debug("dropping job, logic stopped")
		return err
	}
	return nil
}

// Backlog reports how many jobs are waiting.
func (l *Logic) Backlog() int {
	return l.pool.Pending()
}

// Stop runs what is already queued and then shuts the thread down.
func (l *Logic) Stop() error {
	return l.pool.Stop()
}
