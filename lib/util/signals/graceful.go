package signals

import (
	"sync"
	"time"
)

const defaultGracefulTimeout = 30 * time.Second

var (
	preShutdownMu       sync.RWMutex
	preShutdownHandlers []Handler
	gracefulTimeout     = defaultGracefulTimeout
)

// RegisterPreShutdownHandler registers f to run before the interrupt
// handlers, in registration order. The router uses it to stop accepting
// transit hops before its links go away. Nil handlers are ignored.
func RegisterPreShutdownHandler(f Handler) {
	if f == nil {
		return
	}
	preShutdownMu.Lock()
	defer preShutdownMu.Unlock()
	preShutdownHandlers = append(preShutdownHandlers, f)
}

// SetGracefulTimeout bounds how long pre-shutdown handlers may take. Zero or
// negative restores the 30 second default.
func SetGracefulTimeout(timeout time.Duration) {
	preShutdownMu.Lock()
	defer preShutdownMu.Unlock()
	if timeout <= 0 {
		gracefulTimeout = defaultGracefulTimeout
	} else {
		gracefulTimeout = timeout
	}
}

// handlePreShutdown reports whether every handler finished within the timeout.
func handlePreShutdown() bool {
	preShutdownMu.RLock()
	hs := append([]Handler(nil), preShutdownHandlers...)
	timeout := gracefulTimeout
	preShutdownMu.RUnlock()

	if len(hs) == 0 {
		return true
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, h := range hs {
			runSafely("pre-shutdown", h)
		}
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		log.WithField("timeout", timeout).Warn("pre-shutdown handlers timed out")
		return false
	}
}
