package gouds

import "fmt"

// ModuleAddress identifies one ECU on the bus. Requests are transmitted to
// RequestID, responses are accepted from ResponseID. The addressing mode
// (11- or 29-bit) is fixed per channel.
//
// Name is purely descriptive and only used in logs; it may be left empty.
type ModuleAddress struct {
	Name       string
	RequestID  uint32
	ResponseID uint32
	Extended   bool
}

// Validate checks that both arbitration ids fit the addressing mode.
func (m ModuleAddress) Validate() error {
	max := uint32(MaxStandardID)
	if m.Extended {
		max = MaxExtendedID
	}
	if m.RequestID > max {
		return fmt.Errorf("request id 0x%X out of range for addressing mode", m.RequestID)
	}
	if m.ResponseID > max {
		return fmt.Errorf("response id 0x%X out of range for addressing mode", m.ResponseID)
	}
	return nil
}

func (m ModuleAddress) String() string {
	if m.Name != "" {
		return fmt.Sprintf("%s (0x%03X/0x%03X)", m.Name, m.RequestID, m.ResponseID)
	}
	return fmt.Sprintf("0x%03X/0x%03X", m.RequestID, m.ResponseID)
}

// NewFrame builds an outgoing frame addressed to the module's request id,
// honoring the addressing mode.
func (m ModuleAddress) NewFrame(data []byte) *CANFrame {
	if m.Extended {
		return NewExtendedFrame(m.RequestID, data)
	}
	return NewFrame(m.RequestID, data)
}
