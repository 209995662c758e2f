package cmd

import (
	"encoding/binary"

	"github.com/roffe/gouds"
	"github.com/roffe/gouds/isotp"
	"github.com/roffe/gouds/transport/mock"
	"github.com/roffe/gouds/uds"
)

// ecuSim answers like a small ECU behind the mock transport so every
// subcommand can be exercised without hardware. Responses are segmented per
// ISO 15765 like a real node would, never crammed into one oversized frame.
type ecuSim struct {
	addr gouds.ModuleAddress
	cfg  isotp.Config

	// reassembly state for segmented requests
	collected []byte
	total     int
	nextSeq   byte

	dids     map[uint16][]byte
	dtcs     []byte
	unlocked bool
}

func newMockECU(addr gouds.ModuleAddress, cfg isotp.Config) *mock.Transport {
	sim := &ecuSim{
		addr: addr,
		cfg:  cfg,
		dids: map[uint16][]byte{
			0xF187: []byte("55567208"),
			0xF18C: []byte("EV012345"),
			0xF190: []byte("1C4RJFAG5FC123456"),
		},
		// P0300 confirmed, P0171 confirmed
		dtcs: []byte{0x03, 0x00, 0x00, 0x08, 0x01, 0x71, 0x00, 0x08},
	}
	tr := mock.New()
	tr.OnSend = sim.handle
	return tr
}

func (s *ecuSim) handle(frame *gouds.CANFrame) []*gouds.CANFrame {
	if frame.Identifier != s.addr.RequestID {
		return nil
	}
	parsed, err := isotp.Parse(frame.Data)
	if err != nil {
		return nil
	}
	switch f := parsed.(type) {
	case isotp.Single:
		return s.respond(s.request(f.Data)...)
	case isotp.First:
		s.total = f.TotalLength
		s.collected = append(s.collected[:0], f.Data...)
		s.nextSeq = 1
		fc := isotp.FlowControl{Status: isotp.FlowContinue}
		return []*gouds.CANFrame{gouds.NewFrame(s.addr.ResponseID, fc.Bytes(s.cfg))}
	case isotp.Consecutive:
		if s.total == 0 || f.Sequence != s.nextSeq {
			s.total = 0
			return nil
		}
		s.nextSeq = (s.nextSeq + 1) & 0x0F
		remain := s.total - len(s.collected)
		data := f.Data
		if len(data) > remain {
			data = data[:remain]
		}
		s.collected = append(s.collected, data...)
		if len(s.collected) == s.total {
			req := make([]byte, len(s.collected))
			copy(req, s.collected)
			s.total = 0
			return s.respond(s.request(req)...)
		}
	case isotp.FlowControl:
		// the tester granting our segmented response, nothing to do
	}
	return nil
}

// respond segments each UDS payload into response frames, in order.
func (s *ecuSim) respond(payloads ...[]byte) []*gouds.CANFrame {
	var out []*gouds.CANFrame
	for _, payload := range payloads {
		if len(payload) == 0 {
			continue
		}
		if len(payload) <= 7 {
			sf := isotp.Single{Data: payload}
			out = append(out, gouds.NewFrame(s.addr.ResponseID, sf.Bytes(s.cfg)))
			continue
		}
		ff := isotp.First{TotalLength: len(payload), Data: payload[:6]}
		out = append(out, gouds.NewFrame(s.addr.ResponseID, ff.Bytes(s.cfg)))
		var seq byte = 1
		for pos := 6; pos < len(payload); pos += 7 {
			end := pos + 7
			if end > len(payload) {
				end = len(payload)
			}
			cf := isotp.Consecutive{Sequence: seq, Data: payload[pos:end]}
			out = append(out, gouds.NewFrame(s.addr.ResponseID, cf.Bytes(s.cfg)))
			seq = (seq + 1) & 0x0F
		}
	}
	return out
}

func negative(service byte, code uds.NegativeResponseCode) []byte {
	return []byte{0x7F, service, byte(code)}
}

// request implements the service catalogue of the simulated ECU. The
// returned payloads are queued in order, which is how the pending responses
// of the flash routine reach the tester before the final answer.
func (s *ecuSim) request(req []byte) [][]byte {
	if len(req) == 0 {
		return nil
	}
	service := req[0]
	switch service {
	case uds.ServiceDiagnosticSessionControl:
		if len(req) < 2 {
			return [][]byte{negative(service, uds.IncorrectMessageLengthOrInvalidFormat)}
		}
		return [][]byte{{0x50, req[1], 0x00, 0x19, 0x01, 0xF4}}

	case uds.ServiceTesterPresent:
		return [][]byte{{0x7E, 0x00}}

	case uds.ServiceEcuReset:
		if len(req) < 2 {
			return [][]byte{negative(service, uds.IncorrectMessageLengthOrInvalidFormat)}
		}
		s.unlocked = false
		return [][]byte{{0x51, req[1]}}

	case uds.ServiceReadDataByIdentifier:
		if len(req) < 3 {
			return [][]byte{negative(service, uds.IncorrectMessageLengthOrInvalidFormat)}
		}
		did := binary.BigEndian.Uint16(req[1:3])
		value, ok := s.dids[did]
		if !ok {
			return [][]byte{negative(service, uds.RequestOutOfRange)}
		}
		out := []byte{0x62, req[1], req[2]}
		return [][]byte{append(out, value...)}

	case uds.ServiceWriteDataByIdentifier:
		if len(req) < 4 {
			return [][]byte{negative(service, uds.IncorrectMessageLengthOrInvalidFormat)}
		}
		did := binary.BigEndian.Uint16(req[1:3])
		value := make([]byte, len(req)-3)
		copy(value, req[3:])
		s.dids[did] = value
		return [][]byte{{0x6E, req[1], req[2]}}

	case uds.ServiceReadDTCInformation:
		if len(req) < 3 || req[1] != uds.ReportDTCByStatusMask {
			return [][]byte{negative(service, uds.SubFunctionNotSupported)}
		}
		out := []byte{0x59, req[1], 0xFF}
		return [][]byte{append(out, s.dtcs...)}

	case uds.ServiceClearDiagnosticInformation:
		s.dtcs = nil
		return [][]byte{{0x54}}

	case uds.ServiceSecurityAccess:
		return s.securityAccess(req)

	case uds.ServiceRoutineControl:
		if len(req) < 4 {
			return [][]byte{negative(service, uds.IncorrectMessageLengthOrInvalidFormat)}
		}
		// the erase routine answers pending twice before completing
		if binary.BigEndian.Uint16(req[2:4]) == 0xFF00 {
			return [][]byte{
				negative(service, uds.ResponsePending),
				negative(service, uds.ResponsePending),
				{0x71, req[1], req[2], req[3], 0x00},
			}
		}
		return [][]byte{{0x71, req[1], req[2], req[3], 0x00}}

	case uds.ServiceRequestDownload:
		if !s.unlocked {
			return [][]byte{negative(service, uds.SecurityAccessDenied)}
		}
		return [][]byte{{0x74, 0x20, 0x02, 0x00}}

	case uds.ServiceTransferData:
		if len(req) < 2 {
			return [][]byte{negative(service, uds.IncorrectMessageLengthOrInvalidFormat)}
		}
		return [][]byte{{0x76, req[1]}}

	case uds.ServiceRequestTransferExit:
		return [][]byte{{0x77}}

	default:
		return [][]byte{negative(service, uds.ServiceNotSupported)}
	}
}

var mockSeed = []byte{0xCC, 0x55, 0x4A, 0xF6}

func (s *ecuSim) securityAccess(req []byte) [][]byte {
	if len(req) < 2 {
		return [][]byte{negative(req[0], uds.IncorrectMessageLengthOrInvalidFormat)}
	}
	level := req[1]
	if level%2 == 1 { // seed request
		seed := mockSeed
		if s.unlocked {
			seed = []byte{0x00, 0x00, 0x00, 0x00}
		}
		out := []byte{0x67, level}
		return [][]byte{append(out, seed...)}
	}
	// key for level-1; the sim accepts any non-empty key
	if len(req) < 3 {
		return [][]byte{negative(req[0], uds.InvalidKey)}
	}
	s.unlocked = true
	return [][]byte{{0x67, level}}
}
