package endpoint

import (
	"context"
	"errors"
	"time"

	"github.com/rf24node/rf24node-go/pkg/physical"
)

// DefaultRunInterval is the processing period used by NewRunner when none is
// given.
const DefaultRunInterval = 10 * time.Millisecond

// Runner drives one Endpoint from a single goroutine. Other goroutines reach
// the endpoint through Do.
type Runner struct {
	ep       *Endpoint
	interval time.Duration
	calls    chan call
}

type call struct {
	fn   func(*Endpoint) error
	done chan error
}

// NewRunner creates a runner processing ep every interval. The runner owns
// ep while Run is executing.
func NewRunner(ep *Endpoint, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultRunInterval
	}
	return &Runner{
		ep:       ep,
		interval: interval,
		calls:    make(chan call),
	}
}

// Run processes the endpoint until ctx is done or the endpoint stops being
// usable. Other processing errors are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-r.calls:
			c.done <- c.fn(r.ep)
			if r.ep.closed {
				return nil
			}
		case <-ticker.C:
			if err := r.Step(); err != nil {
				if errors.Is(err, physical.ErrClosed) {
					return err
				}
				r.ep.warnLog("processing failed", "error", err)
			}
		}
	}
}

// Step runs the four processing passes once, in the order buffers, lease
// server, control, handlers. It returns the first error after running all
// passes.
func (r *Runner) Step() error {
	errs := []error{
		r.ep.ProcessMessageBuffers(),
		r.ep.ProcessDHCPServer(),
		r.ep.ProcessMessageRequests(),
		r.ep.ProcessEventHandlers(),
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrInvalidState) {
			return err
		}
	}
	return nil
}

// Do runs fn on the runner goroutine between processing passes and returns
// its error.
func (r *Runner) Do(ctx context.Context, fn func(*Endpoint) error) error {
	c := call{fn: fn, done: make(chan error, 1)}
	select {
	case r.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
