package uds

import "fmt"

// NegativeResponseCode is the reason byte of a negative response.
type NegativeResponseCode byte

const (
	GeneralReject                          NegativeResponseCode = 0x10
	ServiceNotSupported                    NegativeResponseCode = 0x11
	SubFunctionNotSupported                NegativeResponseCode = 0x12
	IncorrectMessageLengthOrInvalidFormat  NegativeResponseCode = 0x13
	ResponseTooLong                        NegativeResponseCode = 0x14
	BusyRepeatRequest                      NegativeResponseCode = 0x21
	ConditionsNotCorrect                   NegativeResponseCode = 0x22
	RequestSequenceError                   NegativeResponseCode = 0x24
	RequestOutOfRange                      NegativeResponseCode = 0x31
	SecurityAccessDenied                   NegativeResponseCode = 0x33
	InvalidKey                             NegativeResponseCode = 0x35
	ExceededNumberOfAttempts               NegativeResponseCode = 0x36
	RequiredTimeDelayNotExpired            NegativeResponseCode = 0x37
	UploadDownloadNotAccepted              NegativeResponseCode = 0x70
	TransferDataSuspended                  NegativeResponseCode = 0x71
	GeneralProgrammingFailure              NegativeResponseCode = 0x72
	WrongBlockSequenceCounter              NegativeResponseCode = 0x73
	ResponsePending                        NegativeResponseCode = 0x78
	SubFunctionNotSupportedInActiveSession NegativeResponseCode = 0x7E
	ServiceNotSupportedInActiveSession     NegativeResponseCode = 0x7F
)

// VendorSpecific reports whether the code is in the manufacturer-specific
// range 0x80-0xFF.
func (c NegativeResponseCode) VendorSpecific() bool {
	return c >= 0x80
}

func (c NegativeResponseCode) String() string {
	switch c {
	case GeneralReject:
		return "general reject"
	case ServiceNotSupported:
		return "service not supported"
	case SubFunctionNotSupported:
		return "sub-function not supported"
	case IncorrectMessageLengthOrInvalidFormat:
		return "incorrect message length or invalid format"
	case ResponseTooLong:
		return "response too long"
	case BusyRepeatRequest:
		return "busy, repeat request"
	case ConditionsNotCorrect:
		return "conditions not correct"
	case RequestSequenceError:
		return "request sequence error"
	case RequestOutOfRange:
		return "request out of range"
	case SecurityAccessDenied:
		return "security access denied"
	case InvalidKey:
		return "invalid key"
	case ExceededNumberOfAttempts:
		return "exceeded number of attempts"
	case RequiredTimeDelayNotExpired:
		return "required time delay not expired"
	case UploadDownloadNotAccepted:
		return "upload/download not accepted"
	case TransferDataSuspended:
		return "transfer data suspended"
	case GeneralProgrammingFailure:
		return "general programming failure"
	case WrongBlockSequenceCounter:
		return "wrong block sequence counter"
	case ResponsePending:
		return "response pending"
	case SubFunctionNotSupportedInActiveSession:
		return "sub-function not supported in active session"
	case ServiceNotSupportedInActiveSession:
		return "service not supported in active session"
	}
	if c.VendorSpecific() {
		return fmt.Sprintf("vendor specific 0x%02X", byte(c))
	}
	return fmt.Sprintf("unknown 0x%02X", byte(c))
}
