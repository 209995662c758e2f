package uds

import "fmt"

// Positive is a well-formed positive response: the echoed service, the body
// after the response id byte, and the raw payload.
type Positive struct {
	Service byte
	Body    []byte
	Raw     []byte
}

// Negative is a well-formed negative response from the ECU. It satisfies
// error so service methods can surface it directly; callers pick it apart
// with errors.As.
type Negative struct {
	Service byte
	Code    NegativeResponseCode
	Raw     []byte
}

func (e *Negative) Error() string {
	return fmt.Sprintf("%s: %s", ServiceName(e.Service), e.Code)
}

// ParseResponse classifies one reassembled payload against the service that
// was requested. Exactly one of the returns is non-nil.
//
// A payload that neither echoes the service nor carries the 0x7F marker is
// reported as a synthetic GeneralReject with the raw bytes preserved; the
// wire never carries that code itself.
func ParseResponse(service byte, raw []byte) (*Positive, *Negative) {
	if len(raw) == 0 {
		return nil, &Negative{Service: service, Code: GeneralReject}
	}
	if raw[0] == 0x7F && len(raw) >= 3 {
		return nil, &Negative{
			Service: raw[1],
			Code:    NegativeResponseCode(raw[2]),
			Raw:     raw,
		}
	}
	if raw[0] == service+positiveResponseOffset {
		return &Positive{Service: service, Body: raw[1:], Raw: raw}, nil
	}
	return nil, &Negative{Service: service, Code: GeneralReject, Raw: raw}
}
