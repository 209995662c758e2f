package gouds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

const (
	// MaxStandardID is the highest valid 11-bit arbitration id.
	MaxStandardID = 0x7FF
	// MaxExtendedID is the highest valid 29-bit arbitration id.
	MaxExtendedID = 0x1FFFFFFF
)

// CANFrame is one frame on the wire: an 11- or 29-bit arbitration id and
// up to 8 data bytes.
type CANFrame struct {
	Identifier uint32
	Extended   bool
	Data       []byte
}

// NewFrame creates a new CANFrame and copies the data slice
func NewFrame(identifier uint32, data []byte) *CANFrame {
	d := make([]byte, len(data))
	copy(d, data)
	return &CANFrame{
		Identifier: identifier,
		Data:       d,
	}
}

// NewExtendedFrame creates a new 29-bit CANFrame and copies the data slice
func NewExtendedFrame(identifier uint32, data []byte) *CANFrame {
	frame := NewFrame(identifier, data)
	frame.Extended = true
	return frame
}

// DLC returns the length of the data
func (f *CANFrame) DLC() int {
	return len(f.Data)
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f *CANFrame) String() string {
	var out strings.Builder
	if f.Extended {
		out.WriteString(fmt.Sprintf("0x%08X", f.Identifier) + " || ")
	} else {
		out.WriteString(fmt.Sprintf("0x%03X", f.Identifier) + " || ")
	}
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	var hexView strings.Builder
	for i, b := range f.Data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-23s", hexView.String()))
	out.WriteString(" || ")
	out.WriteString(onlyPrintable(f.Data))
	return out.String()
}

func (f *CANFrame) ColorString() string {
	var out strings.Builder
	if f.Extended {
		out.WriteString(green("0x%08X", f.Identifier) + " || ")
	} else {
		out.WriteString(green("0x%03X", f.Identifier) + " || ")
	}
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	var hexView strings.Builder
	for i, b := range f.Data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(red(fmt.Sprintf("%-23s", hexView.String())))
	out.WriteString(" || ")
	out.WriteString(yellow(onlyPrintable(f.Data)))
	return out.String()
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 127 {
			out.WriteString("·")
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
