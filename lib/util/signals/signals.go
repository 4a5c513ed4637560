// Package signals turns process signals into router lifecycle callbacks.
//
// SIGHUP runs reload handlers. SIGINT and SIGTERM run the pre-shutdown
// handlers, bounded by a timeout, and then the interrupt handlers.
package signals

import (
	"os"
	"os/signal"
	"sync"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// sigChan is buffered so a signal delivered before Handle runs is kept.
var sigChan = make(chan os.Signal, 1)

// Handler is a function called when a signal is received.
type Handler func()

// HandlerID identifies a registered handler for deregistration.
type HandlerID int

type registeredHandler struct {
	id HandlerID
	fn Handler
}

var (
	mu           sync.RWMutex
	reloaders    []registeredHandler
	interrupters []registeredHandler
	nextID       HandlerID
	stopOnce     sync.Once
)

func register(list *[]registeredHandler, f Handler) HandlerID {
	if f == nil {
		return -1
	}
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	*list = append(*list, registeredHandler{id: id, fn: f})
	return id
}

func deregister(list *[]registeredHandler, id HandlerID) {
	mu.Lock()
	defer mu.Unlock()
	for i, h := range *list {
		if h.id == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}

// RegisterReloadHandler registers f for SIGHUP. Nil handlers are ignored
// and return -1.
func RegisterReloadHandler(f Handler) HandlerID { return register(&reloaders, f) }

func DeregisterReloadHandler(id HandlerID) { deregister(&reloaders, id) }

// RegisterInterruptHandler registers f for SIGINT/SIGTERM. Nil handlers are
// ignored and return -1.
func RegisterInterruptHandler(f Handler) HandlerID { return register(&interrupters, f) }

func DeregisterInterruptHandler(id HandlerID) { deregister(&interrupters, id) }

func snapshot(list *[]registeredHandler) []registeredHandler {
	mu.RLock()
	defer mu.RUnlock()
	return append([]registeredHandler(nil), (*list)...)
}

func runSafely(kind string, fn Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{
				"at":      "signals.runSafely",
				"handler": kind,
				"panic":   r,
			}).Error("signal handler panicked")
		}
	}()
	fn()
}

func handleReload() {
	for _, h := range snapshot(&reloaders) {
		runSafely("reload", h.fn)
	}
}

func handleInterrupted() {
	for _, h := range snapshot(&interrupters) {
		runSafely("interrupt", h.fn)
	}
}

// shutdown is the sequence Handle runs on an interrupt.
func shutdown() {
	if !handlePreShutdown() {
		log.WithField("at", "signals.shutdown").Warn("continuing shutdown before pre-shutdown handlers finished")
	}
	handleInterrupted()
}

// StopHandle makes Handle return. Safe to call more than once.
func StopHandle() {
	stopOnce.Do(func() {
		signal.Stop(sigChan)
		close(sigChan)
	})
}
