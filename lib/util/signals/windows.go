//go:build windows

package signals

import (
	"os"
	"os/signal"
)

func init() {
	signal.Notify(sigChan, os.Interrupt)
}

// Handle dispatches signals until StopHandle is called.
func Handle() {
	for sig := range sigChan {
		if sig == os.Interrupt {
			shutdown()
		}
	}
}
