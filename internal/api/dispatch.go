package api

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Dispatcher runs background work on a context that outlives the request
// but is cancelled when the server shuts down.
type Dispatcher struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{ctx: ctx, cancel: cancel, logger: logger}
}

// Go runs fn in its own goroutine. A panic in fn is logged and swallowed.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context)) {
	d.wg.Add(1)
	d.inFlight.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background task panic", "task", name, "panic", r)
			}
		}()
		fn(d.ctx)
	}()
}

// InFlight is the number of tasks started and not yet finished.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Wait blocks until every task has returned. If ctx ends first the shared
// task context is cancelled and ctx's error is returned.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn("abandoning background tasks", "in_flight", d.InFlight())
		d.cancel()
		return ctx.Err()
	}
}
