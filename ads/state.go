package ads

import "fmt"

// State is the ADS operating state of a device (2 bytes on the wire).
//
// Codes outside the documented set are preserved as-is rather than failing
// decode; Known reports whether the code is documented. This keeps the codec
// tolerant of protocol extensions while never coercing to a default.
type State uint16

const (
	StateInvalid      State = 0
	StateIdle         State = 1
	StateReset        State = 2
	StateInit         State = 3
	StateStart        State = 4
	StateRun          State = 5
	StateStop         State = 6
	StateSaveCfg      State = 7
	StateLoadCfg      State = 8
	StatePowerFailure State = 9
	StatePowerGood    State = 10
	StateError        State = 11
	StateShutdown     State = 12
	StateSuspend      State = 13
	StateResume       State = 14
	StateConfig       State = 15
	StateReconfig     State = 16
	StateStopping     State = 17
	StateIncompatible State = 18
	StateException    State = 19
)

// Known reports whether the state code is part of the documented set.
func (s State) Known() bool {
	return s <= StateException
}

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "Invalid"
	case StateIdle:
		return "Idle"
	case StateReset:
		return "Reset"
	case StateInit:
		return "Init"
	case StateStart:
		return "Start"
	case StateRun:
		return "Run"
	case StateStop:
		return "Stop"
	case StateSaveCfg:
		return "SaveCfg"
	case StateLoadCfg:
		return "LoadCfg"
	case StatePowerFailure:
		return "PowerFailure"
	case StatePowerGood:
		return "PowerGood"
	case StateError:
		return "Error"
	case StateShutdown:
		return "Shutdown"
	case StateSuspend:
		return "Suspend"
	case StateResume:
		return "Resume"
	case StateConfig:
		return "Config"
	case StateReconfig:
		return "Reconfig"
	case StateStopping:
		return "Stopping"
	case StateIncompatible:
		return "Incompatible"
	case StateException:
		return "Exception"
	default:
		return fmt.Sprintf("State(%d)", uint16(s))
	}
}

// DeviceState is the vendor-defined device status word. For a TwinCAT PLC
// it is almost always 0; custom ADS servers may put arbitrary flags here.
type DeviceState = uint16

// TransMode selects when the server transmits notification samples
// (4 bytes on the wire). Unrecognized codes are preserved.
type TransMode uint32

const (
	// TransNone disables transmission.
	TransNone TransMode = 0
	// TransClientCycle transmits cyclically.
	TransClientCycle TransMode = 1
	// TransClientOnChange transmits only when the value changed.
	TransClientOnChange TransMode = 2
	// TransServerCycle is the server-driven cyclic mode.
	TransServerCycle TransMode = 3
	// TransServerOnChange is the server-driven on-change mode.
	TransServerOnChange TransMode = 4
)

// Known reports whether the mode code is part of the documented set.
func (m TransMode) Known() bool {
	return m <= TransServerOnChange
}

func (m TransMode) String() string {
	switch m {
	case TransNone:
		return "None"
	case TransClientCycle:
		return "ClientCycle"
	case TransClientOnChange:
		return "ClientOnChange"
	case TransServerCycle:
		return "ServerCycle"
	case TransServerOnChange:
		return "ServerOnChange"
	default:
		return fmt.Sprintf("TransMode(%d)", uint32(m))
	}
}

// NotificationHandle identifies an active device notification subscription.
// It is assigned by the server in an AddDeviceNotification response and has
// no client-side meaning beyond correlating pushed samples.
type NotificationHandle uint32

func (h NotificationHandle) String() string {
	return fmt.Sprintf("%d", uint32(h))
}
