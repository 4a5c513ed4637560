// Package threadpool runs submitted jobs on a fixed set of worker goroutines.
//
// Jobs are queued without bound and picked up in submission order. A pool
// with a single worker therefore executes jobs strictly one after another,
// which is how the logic thread is built.
package threadpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-i2p/logger"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetGoI2PLogger()

// ErrPoolStopped is returned by Submit once Stop has been called.
var ErrPoolStopped = errors.New("thread pool stopped")

// Job is a unit of work.
type Job func()

// Pool is a fixed-size worker pool with an unbounded FIFO queue.
type Pool struct {
	name string

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	stopped bool

	group    *errgroup.Group
	stopOnce sync.Once
}

// New starts a pool with the given number of workers. Values below one are
// treated as one.
func New(name string, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{name: name}
	p.cond = sync.NewCond(&p.mu)
	p.group = new(errgroup.Group)
	for i := 0; i < workers; i++ {
		id := i
		p.group.Go(func() error {
			return p.worker(id)
		})
	}
	log.WithFields(logger.Fields{
		"at":      "threadpool.New",
		"pool":    name,
		"workers": workers,
	}).Debug("thread pool started")
	return p
}

// Submit queues job for execution.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return nil
}

// Pending reports how many jobs are waiting for a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stop rejects new jobs, lets the workers drain what is already queued and
// waits for them to exit. It is safe to call more than once.
func (p *Pool) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.cond.Broadcast()
		p.mu.Unlock()
		err = p.group.Wait()
		log.WithField("pool", p.name).Debug("thread pool stopped")
	})
	return err
}

func (p *Pool) worker(id int) error {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return nil
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if err := p.run(id, job); err != nil {
			log.WithFields(logger.Fields{
				"at":     "(Pool) worker",
				"pool":   p.name,
				"worker": id,
			}).WithError(err).Error("job panicked")
		}
	}
}

// run executes one job; a panicking job must not take the worker down.
func (p *Pool) run(id int, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d: %v", id, r)
		}
	}()
	job()
	return nil
}
