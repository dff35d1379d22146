package window

import (
	"context"
	"sync"

	"github.com/bryanchriswhite/FocusMonitor/internal/logger"
	"github.com/sourcegraph/conc"
)

// DefaultQueueSize is the number of undelivered focus changes an AsyncMonitor buffers.
const DefaultQueueSize = 100

// Result is one pull from a Monitor.
type Result struct {
	Window *Window
	Err    error
}

// puller is the part of Monitor the bridge drives.
type puller interface {
	Next() (*Window, error)
	Close() error
}

// AsyncMonitor runs a Monitor's blocking loop on its own goroutine and hands
// the results to the consumer through a bounded channel.
type AsyncMonitor struct {
	monitor puller
	results chan Result
	done    chan struct{}

	wg        conc.WaitGroup
	closeOnce sync.Once
}

// OpenAsync opens a Monitor and starts forwarding its changes.
func OpenAsync(opts Options, capacity int) (*AsyncMonitor, error) {
	m, err := Open(opts)
	if err != nil {
		return nil, err
	}
	return NewAsync(m, capacity), nil
}

// NewAsync starts forwarding the changes reported by m. The AsyncMonitor owns m from now on.
func NewAsync(m *Monitor, capacity int) *AsyncMonitor {
	return newAsync(m, capacity)
}

func newAsync(m puller, capacity int) *AsyncMonitor {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}

	a := &AsyncMonitor{
		monitor: m,
		results: make(chan Result, capacity),
		done:    make(chan struct{}),
	}
	a.wg.Go(a.forward)
	return a
}

// forward is the producer loop. A full channel blocks it, which in turn stops
// reading X events until the consumer catches up.
func (a *AsyncMonitor) forward() {
	log := logger.WithComponent("async-monitor")
	defer close(a.results)

	for {
		select {
		case <-a.done:
			return
		default:
		}

		w, err := a.monitor.Next()

		// A pull interrupted by Close is not worth delivering.
		select {
		case <-a.done:
			return
		default:
		}

		select {
		case a.results <- Result{Window: w, Err: err}:
		case <-a.done:
			return
		}

		if IsFatal(err) {
			log.Error().Err(err).Msg("Focus monitor connection lost, stopping")
			return
		}
	}
}

// Recv waits for the next focus change.
func (a *AsyncMonitor) Recv(ctx context.Context) (*Window, error) {
	select {
	case r, ok := <-a.results:
		if !ok {
			return nil, ErrClosed
		}
		return r.Window, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryRecv returns the next queued focus change without blocking.
// It returns ErrEmpty when nothing is queued and ErrClosed after shutdown.
func (a *AsyncMonitor) TryRecv() (*Window, error) {
	select {
	case r, ok := <-a.results:
		if !ok {
			return nil, ErrClosed
		}
		return r.Window, r.Err
	default:
		return nil, ErrEmpty
	}
}

// Results exposes the result channel for select loops. It is closed when the
// producer stops.
func (a *AsyncMonitor) Results() <-chan Result {
	return a.results
}

// Close stops the producer and closes the underlying Monitor.
// Results already queued can still be drained; after that Recv and TryRecv
// return ErrClosed.
func (a *AsyncMonitor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.done)
		// Closing the connection unblocks a producer parked in WaitForEvent.
		err = a.monitor.Close()
		a.wg.Wait()
	})
	return err
}
