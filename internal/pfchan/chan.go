package pfchan

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// DefaultBufferSize is the channel capacity used when no explicit size is
// given. It is sized generously relative to expected steady-state traffic
// so that normal sends never observe backpressure; PING/PONG are the only
// kinds allowed to be dropped under overload.
const DefaultBufferSize = 4096

// Chan is the in-process pipe between the session manager and the
// pathfinder. It preserves each side's send order and is safe for a single
// sender and a single receiver per direction, matching the one-event-loop-
// per-side concurrency model: nothing here needs a mutex because nothing
// on either end runs concurrently with itself.
type Chan struct {
	toPathfinder chan Frame
	toCore       chan Frame

	droppedPings atomic.Int64
}

// New creates a Chan with the given per-direction buffer size.
func New(bufSize int) *Chan {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Chan{
		toPathfinder: make(chan Frame, bufSize),
		toCore:       make(chan Frame, bufSize),
	}
}

// SendToPathfinder enqueues a Core→Pathfinder frame. PING/PONG frames are
// dropped rather than blocking when the buffer is full; every other kind
// blocks until ctx is done or room is available, since the receiver is
// expected to keep pace under normal operation and a dropped SESSION or
// MSG event would violate the ordering guarantees in spec §5.
func (c *Chan) SendToPathfinder(ctx context.Context, f Frame) error {
	return c.send(ctx, c.toPathfinder, f)
}

// SendToCore enqueues a Pathfinder→Core frame, with the same semantics as
// SendToPathfinder.
func (c *Chan) SendToCore(ctx context.Context, f Frame) error {
	return c.send(ctx, c.toCore, f)
}

func (c *Chan) send(ctx context.Context, ch chan Frame, f Frame) error {
	if isAdvisory(f.Kind) {
		select {
		case ch <- f:
		default:
			c.droppedPings.Add(1)
			slog.Default().Debug("pfchan: dropped advisory frame under backpressure", "kind", f.Kind)
		}
		return nil
	}
	select {
	case ch <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isAdvisory(k Kind) bool {
	switch k {
	case CorePing, CorePong, PFPing, PFPong:
		return true
	default:
		return false
	}
}

// RecvFromCore blocks until a Core→Pathfinder frame is available or ctx is
// done.
func (c *Chan) RecvFromCore(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.toPathfinder:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// RecvFromPathfinder blocks until a Pathfinder→Core frame is available or
// ctx is done.
func (c *Chan) RecvFromPathfinder(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.toCore:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// DroppedAdvisoryFrames reports how many PING/PONG frames have been
// dropped under backpressure since construction.
func (c *Chan) DroppedAdvisoryFrames() int64 {
	return c.droppedPings.Load()
}
