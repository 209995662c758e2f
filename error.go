package gouds

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrBusOff       = errors.New("bus off")
	ErrTxBufferFull = errors.New("transmit buffer full")
	ErrDisconnected = errors.New("adapter disconnected")
	ErrDroppedFrame = errors.New("adapter incoming channel full")
)

// Timeout phases. Each names the window that elapsed without a frame.
const (
	PhaseP2          = "P2"
	PhaseP2Star      = "P2*"
	PhaseFlowControl = "flow control"
	PhaseConsecutive = "consecutive frame"
)

// TimeoutError is returned when no frame arrived inside one of the timing
// windows. It is distinct from a negative response; the ECU never answered.
type TimeoutError struct {
	Phase  string
	Window time.Duration
	Frame  uint32
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout (%s) for frame 0x%03X", e.Phase, e.Window, e.Frame)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
