// Package ads implements the Beckhoff ADS (Automation Device Specification)
// command sub-protocol carried inside AMS frames: the 32-byte ADS header and
// the request/response payloads for every documented command, plus the
// device notification stream format.
//
// All codecs in this package are pure functions of their input bytes and are
// safe to call concurrently. Variable-length payloads come in two forms: a
// borrowing view whose data slices alias the caller's buffer, and an owned
// form holding its own storage. Conversions between the two are explicit.
package ads

import "fmt"

// Command identifies the type of an ADS request/response within the header.
type Command uint16

const (
	CmdInvalid            Command = 0x0000
	CmdReadDeviceInfo     Command = 0x0001
	CmdRead               Command = 0x0002
	CmdWrite              Command = 0x0003
	CmdReadState          Command = 0x0004
	CmdWriteControl       Command = 0x0005
	CmdAddNotification    Command = 0x0006
	CmdDeleteNotification Command = 0x0007
	CmdNotification       Command = 0x0008
	CmdReadWrite          Command = 0x0009
)

// Known reports whether the command is part of the documented set.
// Unrecognized command ids are preserved through decode so callers may pass
// them on; interpreting their payload is not possible here.
func (c Command) Known() bool {
	return c >= CmdReadDeviceInfo && c <= CmdReadWrite
}

func (c Command) String() string {
	switch c {
	case CmdInvalid:
		return "Invalid"
	case CmdReadDeviceInfo:
		return "ReadDeviceInfo"
	case CmdRead:
		return "Read"
	case CmdWrite:
		return "Write"
	case CmdReadState:
		return "ReadState"
	case CmdWriteControl:
		return "WriteControl"
	case CmdAddNotification:
		return "AddDeviceNotification"
	case CmdDeleteNotification:
		return "DeleteDeviceNotification"
	case CmdNotification:
		return "DeviceNotification"
	case CmdReadWrite:
		return "ReadWrite"
	default:
		return fmt.Sprintf("Command(0x%04X)", uint16(c))
	}
}
