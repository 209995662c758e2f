// Package mock is an in-memory FrameTransport for tests and for udsctl's
// --mock mode. It is not part of the diagnostic core; under isotp, uds and
// security only the tests use it.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/roffe/gouds"
)

// Transport queues frames in memory. Incoming frames are either preloaded
// with Queue or produced by the OnSend hook, which lets a test script an
// ECU: it sees every transmitted frame and returns the frames to answer
// with.
type Transport struct {
	mu        sync.Mutex
	queue     []*gouds.CANFrame
	sent      []*gouds.CANFrame
	filter    uint32
	hasFilter bool
	closed    bool

	// OnSend, when set, is called for every transmitted frame and its
	// return values are queued as incoming frames.
	OnSend func(frame *gouds.CANFrame) []*gouds.CANFrame

	// SendErr, when set, fails every Send with this error.
	SendErr error
}

func New() *Transport {
	return &Transport{}
}

// Queue preloads incoming frames.
func (t *Transport) Queue(frames ...*gouds.CANFrame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queue = append(t.queue, frames...)
}

// Sent returns a copy of everything transmitted so far.
func (t *Transport) Sent() []*gouds.CANFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*gouds.CANFrame, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *Transport) Send(ctx context.Context, frame *gouds.CANFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return gouds.ErrDisconnected
	}
	if t.SendErr != nil {
		err := t.SendErr
		t.mu.Unlock()
		return err
	}
	t.sent = append(t.sent, frame)
	hook := t.OnSend
	t.mu.Unlock()

	if hook != nil {
		if replies := hook(frame); len(replies) > 0 {
			t.Queue(replies...)
		}
	}
	return nil
}

func (t *Transport) Recv(ctx context.Context, deadline time.Time) (*gouds.CANFrame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return nil, gouds.ErrDisconnected
		}
		for i, f := range t.queue {
			if t.hasFilter && f.Identifier != t.filter {
				continue
			}
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			t.mu.Unlock()
			return f, nil
		}
		t.mu.Unlock()
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		time.Sleep(200 * time.Microsecond)
	}
}

func (t *Transport) SetFilter(accept uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter = accept
	t.hasFilter = true
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
