package ams

import "fmt"

// RouterCommand identifies the type of a frame at the TCP/router level.
// It occupies the first two bytes of the AMS/TCP envelope; the value is
// CmdAdsCommand (0x0000) on every ordinary ADS exchange.
type RouterCommand uint16

const (
	// CmdAdsCommand marks the payload as an ADS sub-protocol message
	// (32-byte ADS header + command data).
	CmdAdsCommand RouterCommand = 0x0000
	// CmdPortClose unregisters a previously opened AMS port.
	CmdPortClose RouterCommand = 0x0001
	// CmdPortConnect registers an AMS port with the router.
	CmdPortConnect RouterCommand = 0x1000
	// CmdRouterNotification is pushed by the router on state changes.
	CmdRouterNotification RouterCommand = 0x1001
	// CmdGetLocalNetId queries the router's local Net ID.
	CmdGetLocalNetId RouterCommand = 0x1002
)

// Known reports whether the command is part of the documented router
// command set. Unknown commands are not a decode failure; they are kept
// as-is so callers can pass them through.
func (c RouterCommand) Known() bool {
	switch c {
	case CmdAdsCommand, CmdPortClose, CmdPortConnect, CmdRouterNotification, CmdGetLocalNetId:
		return true
	}
	return false
}

func (c RouterCommand) String() string {
	switch c {
	case CmdAdsCommand:
		return "AdsCommand"
	case CmdPortClose:
		return "PortClose"
	case CmdPortConnect:
		return "PortConnect"
	case CmdRouterNotification:
		return "RouterNotification"
	case CmdGetLocalNetId:
		return "GetLocalNetId"
	default:
		return fmt.Sprintf("RouterCommand(0x%04X)", uint16(c))
	}
}

// RouterState represents the operational state of the AMS router,
// delivered in RouterNotification frames.
type RouterState uint32

const (
	RouterStop    RouterState = 0
	RouterStart   RouterState = 1
	RouterRemoved RouterState = 2
)

// Known reports whether the state code is part of the documented set.
// Unrecognized codes are preserved, not coerced.
func (s RouterState) Known() bool {
	return s <= RouterRemoved
}

func (s RouterState) String() string {
	switch s {
	case RouterStop:
		return "Stop"
	case RouterStart:
		return "Start"
	case RouterRemoved:
		return "Removed"
	default:
		return fmt.Sprintf("RouterState(%d)", uint32(s))
	}
}
