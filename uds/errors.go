package uds

import (
	"errors"
	"fmt"
)

// ErrPendingAbuse is returned when the ECU keeps answering
// responsePending past the configured cap.
var ErrPendingAbuse = errors.New("uds: response pending limit exceeded")

// MalformedResponseError marks a response that parsed as positive but did
// not match what the requested service promises: wrong echo, short body.
type MalformedResponseError struct {
	Service byte
	Reason  string
	Raw     []byte
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", ServiceName(e.Service), e.Reason)
}
