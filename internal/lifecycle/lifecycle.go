package lifecycle

import (
	"context"
	"sync/atomic"
	"time"
)

// Drainer tracks whether serve mode is draining and how many requests are
// still running a pipeline. Safe for concurrent use; the zero value is ready.
type Drainer struct {
	shuttingDown atomic.Bool
	inFlight     atomic.Int64
}

// BeginShutdown marks the process as draining. Call when SIGTERM/SIGINT is received.
// The health handler returns 503 shutting-down from then on.
func (d *Drainer) BeginShutdown() {
	d.shuttingDown.Store(true)
}

// ShuttingDown reports whether BeginShutdown has been called.
func (d *Drainer) ShuttingDown() bool {
	return d.shuttingDown.Load()
}

// Enter counts one in-flight request. The returned func must be called exactly once when it completes.
func (d *Drainer) Enter() func() {
	d.inFlight.Add(1)
	var done atomic.Bool
	return func() {
		if done.CompareAndSwap(false, true) {
			d.inFlight.Add(-1)
		}
	}
}

// InFlight returns the number of requests currently being served.
func (d *Drainer) InFlight() int64 {
	return d.inFlight.Load()
}

// Wait blocks until the in-flight count reaches zero or ctx is done.
// checkInterval is how often to re-check the count.
func (d *Drainer) Wait(ctx context.Context, checkInterval time.Duration) error {
	if checkInterval <= 0 {
		checkInterval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if d.InFlight() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
