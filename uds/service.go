// Package uds implements the ISO 14229 service layer: request construction,
// positive/negative response classification, DTC decoding and the
// transaction engine with the response-pending retry protocol.
package uds

// Service ids of the catalogue this client speaks.
const (
	ServiceDiagnosticSessionControl       = 0x10
	ServiceEcuReset                       = 0x11
	ServiceClearDiagnosticInformation     = 0x14
	ServiceReadDTCInformation             = 0x19
	ServiceReadDataByIdentifier           = 0x22
	ServiceSecurityAccess                 = 0x27
	ServiceWriteDataByIdentifier          = 0x2E
	ServiceInputOutputControlByIdentifier = 0x2F
	ServiceRoutineControl                 = 0x31
	ServiceRequestDownload                = 0x34
	ServiceTransferData                   = 0x36
	ServiceRequestTransferExit            = 0x37
	ServiceTesterPresent                  = 0x3E
)

// positiveResponseOffset separates a request service id from its positive
// response id.
const positiveResponseOffset = 0x40

// Diagnostic session sub-functions.
const (
	SessionDefault     = 0x01
	SessionProgramming = 0x02
	SessionExtended    = 0x03
)

// ECU reset sub-functions.
const (
	ResetHard                 = 0x01
	ResetKeyOffOn             = 0x02
	ResetSoft                 = 0x03
	ResetEnableRapidShutdown  = 0x04
	ResetDisableRapidShutdown = 0x05
)

// Routine control sub-functions.
const (
	RoutineStart         = 0x01
	RoutineStop          = 0x02
	RoutineRequestResult = 0x03
)

// ReadDTCInformation sub-functions used here.
const (
	ReportNumberOfDTCByStatusMask = 0x01
	ReportDTCByStatusMask         = 0x02
)

// ClearAllDTCGroups addresses every DTC group in a
// ClearDiagnosticInformation request.
const ClearAllDTCGroups = 0xFFFFFF

func ServiceName(service byte) string {
	switch service {
	case ServiceDiagnosticSessionControl:
		return "DiagnosticSessionControl"
	case ServiceEcuReset:
		return "ECUReset"
	case ServiceClearDiagnosticInformation:
		return "ClearDiagnosticInformation"
	case ServiceReadDTCInformation:
		return "ReadDTCInformation"
	case ServiceReadDataByIdentifier:
		return "ReadDataByIdentifier"
	case ServiceSecurityAccess:
		return "SecurityAccess"
	case ServiceWriteDataByIdentifier:
		return "WriteDataByIdentifier"
	case ServiceInputOutputControlByIdentifier:
		return "InputOutputControlByIdentifier"
	case ServiceRoutineControl:
		return "RoutineControl"
	case ServiceRequestDownload:
		return "RequestDownload"
	case ServiceTransferData:
		return "TransferData"
	case ServiceRequestTransferExit:
		return "RequestTransferExit"
	case ServiceTesterPresent:
		return "TesterPresent"
	default:
		return "Unknown"
	}
}
