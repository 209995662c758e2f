package uds

import "encoding/binary"

// Request is one serialised service request: the service id followed by the
// sub-function, identifiers and data the service defines.
type Request struct {
	ServiceID byte
	Data      []byte
}

// Bytes renders the request as the UDS payload handed to the transport
// layer.
func (r Request) Bytes() []byte {
	out := make([]byte, 0, 1+len(r.Data))
	out = append(out, r.ServiceID)
	out = append(out, r.Data...)
	return out
}

func DiagnosticSessionControl(session byte) Request {
	return Request{ServiceID: ServiceDiagnosticSessionControl, Data: []byte{session}}
}

func EcuReset(sub byte) Request {
	return Request{ServiceID: ServiceEcuReset, Data: []byte{sub}}
}

// ClearDiagnosticInformation addresses a 24-bit DTC group,
// ClearAllDTCGroups for everything.
func ClearDiagnosticInformation(group uint32) Request {
	return Request{
		ServiceID: ServiceClearDiagnosticInformation,
		Data:      []byte{byte(group >> 16), byte(group >> 8), byte(group)},
	}
}

func ReadDTCInformation(sub, statusMask byte) Request {
	return Request{ServiceID: ServiceReadDTCInformation, Data: []byte{sub, statusMask}}
}

func ReadDataByIdentifier(dids ...uint16) Request {
	data := make([]byte, 0, len(dids)*2)
	for _, did := range dids {
		data = binary.BigEndian.AppendUint16(data, did)
	}
	return Request{ServiceID: ServiceReadDataByIdentifier, Data: data}
}

// SecurityAccessRequestSeed requests the seed for an odd access level.
func SecurityAccessRequestSeed(level byte) Request {
	return Request{ServiceID: ServiceSecurityAccess, Data: []byte{level}}
}

// SecurityAccessSendKey answers a seed on level with the derived key; the
// sub-function is level+1.
func SecurityAccessSendKey(level byte, key []byte) Request {
	data := make([]byte, 0, 1+len(key))
	data = append(data, level+1)
	data = append(data, key...)
	return Request{ServiceID: ServiceSecurityAccess, Data: data}
}

func WriteDataByIdentifier(did uint16, value []byte) Request {
	data := make([]byte, 0, 2+len(value))
	data = binary.BigEndian.AppendUint16(data, did)
	data = append(data, value...)
	return Request{ServiceID: ServiceWriteDataByIdentifier, Data: data}
}

func RoutineControl(sub byte, routineID uint16, params []byte) Request {
	data := make([]byte, 0, 3+len(params))
	data = append(data, sub)
	data = binary.BigEndian.AppendUint16(data, routineID)
	data = append(data, params...)
	return Request{ServiceID: ServiceRoutineControl, Data: data}
}

func TesterPresent(suppressResponse bool) Request {
	var sub byte
	if suppressResponse {
		sub = 0x80
	}
	return Request{ServiceID: ServiceTesterPresent, Data: []byte{sub}}
}

// RequestDownload uses the fixed 4-byte address and 4-byte size layout
// (addressAndLengthFormatIdentifier 0x44).
func RequestDownload(address, size uint32) Request {
	data := make([]byte, 0, 10)
	data = append(data, 0x00, 0x44)
	data = binary.BigEndian.AppendUint32(data, address)
	data = binary.BigEndian.AppendUint32(data, size)
	return Request{ServiceID: ServiceRequestDownload, Data: data}
}

func TransferData(blockSeq byte, chunk []byte) Request {
	data := make([]byte, 0, 1+len(chunk))
	data = append(data, blockSeq)
	data = append(data, chunk...)
	return Request{ServiceID: ServiceTransferData, Data: data}
}

func RequestTransferExit() Request {
	return Request{ServiceID: ServiceRequestTransferExit}
}

func InputOutputControlByIdentifier(did uint16, controlOption byte, state []byte) Request {
	data := make([]byte, 0, 3+len(state))
	data = binary.BigEndian.AppendUint16(data, did)
	data = append(data, controlOption)
	data = append(data, state...)
	return Request{ServiceID: ServiceInputOutputControlByIdentifier, Data: data}
}
