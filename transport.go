package gouds

import (
	"context"
	"time"
)

// FrameTransport is the boundary between the diagnostic stack and a CAN
// driver. One transport is one channel; the stack never calls Send and Recv
// concurrently on the same channel. Implementations live in
// transport/ and are free to pump the underlying device from goroutines, as
// long as Send and Recv behave as described here.
type FrameTransport interface {
	// Send transmits one frame. It may block until the driver accepts the
	// frame or return ErrBusOff, ErrTxBufferFull or ErrDisconnected.
	Send(ctx context.Context, frame *CANFrame) error

	// Recv waits for the next frame matching the acceptance filter. It
	// returns (nil, nil) when the deadline passes without a frame, and a
	// non-nil error only on hard transport failure.
	Recv(ctx context.Context, deadline time.Time) (*CANFrame, error)

	// SetFilter restricts Recv to frames with the given arbitration id.
	SetFilter(accept uint32)

	Close() error
}
