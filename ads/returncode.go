package ads

import "fmt"

// ReturnCode is the ADS error code carried in headers and response payloads.
// A nonzero code inside a well-formed frame is device-reported data, not a
// decode failure; the codec surfaces it unchanged.
type ReturnCode uint32

// Global error codes
const (
	RetOk                    ReturnCode = 0x0000
	RetInternal              ReturnCode = 0x0001
	RetNoRuntime             ReturnCode = 0x0002
	RetAllocLockedMem        ReturnCode = 0x0003
	RetInsertMailbox         ReturnCode = 0x0004
	RetWrongReceiveHMsg      ReturnCode = 0x0005
	RetTargetPortNotFound    ReturnCode = 0x0006
	RetTargetMachineNotFound ReturnCode = 0x0007
	RetUnknownCmdId          ReturnCode = 0x0008
	RetBadTaskId             ReturnCode = 0x0009
	RetNoIO                  ReturnCode = 0x000A
	RetUnknownAmsCmd         ReturnCode = 0x000B
	RetWin32Error            ReturnCode = 0x000C
	RetPortNotConnected      ReturnCode = 0x000D
	RetInvalidAmsLength      ReturnCode = 0x000E
	RetInvalidAmsNetId       ReturnCode = 0x000F
	RetLowInstLevel          ReturnCode = 0x0010
	RetNoDebugAvailable      ReturnCode = 0x0011
	RetPortDisabled          ReturnCode = 0x0012
	RetPortAlreadyConnected  ReturnCode = 0x0013
	RetAmsSyncWin32Error     ReturnCode = 0x0014
	RetAmsSyncTimeout        ReturnCode = 0x0015
	RetAmsSyncAmsError       ReturnCode = 0x0016
	RetAmsSyncNoIndexInMap   ReturnCode = 0x0017
	RetInvalidAmsPort        ReturnCode = 0x0018
	RetNoMemory              ReturnCode = 0x0019
	RetTcpSend               ReturnCode = 0x001A
	RetHostUnreachable       ReturnCode = 0x001B
	RetInvalidAmsFragment    ReturnCode = 0x001C
	RetTlsSend               ReturnCode = 0x001D
	RetAccessDenied          ReturnCode = 0x001E
)

// Router error codes
const (
	RetRouterNoLockedMem     ReturnCode = 0x0500
	RetRouterResizeMem       ReturnCode = 0x0501
	RetRouterMailboxFull     ReturnCode = 0x0502
	RetRouterDebugboxFull    ReturnCode = 0x0503
	RetRouterUnknownPortType ReturnCode = 0x0504
	RetRouterNotInitialized  ReturnCode = 0x0505
	RetRouterPortRemoved     ReturnCode = 0x0506
	RetRouterPortNotOpen     ReturnCode = 0x0507
	RetRouterPortOpen        ReturnCode = 0x0508
	RetRouterPortConnected   ReturnCode = 0x0509
	RetRouterPortNotConnect  ReturnCode = 0x050A
	RetRouterNoSendQueue     ReturnCode = 0x050B
)

// Device error codes
const (
	RetDeviceError                ReturnCode = 0x0700
	RetDeviceSrvNotSupported      ReturnCode = 0x0701
	RetDeviceInvalidGroup         ReturnCode = 0x0702
	RetDeviceInvalidOffset        ReturnCode = 0x0703
	RetDeviceInvalidAccess        ReturnCode = 0x0704
	RetDeviceInvalidSize          ReturnCode = 0x0705
	RetDeviceInvalidData          ReturnCode = 0x0706
	RetDeviceNotReady             ReturnCode = 0x0707
	RetDeviceBusy                 ReturnCode = 0x0708
	RetDeviceInvalidContext       ReturnCode = 0x0709
	RetDeviceNoMemory             ReturnCode = 0x070A
	RetDeviceInvalidParam         ReturnCode = 0x070B
	RetDeviceNotFound             ReturnCode = 0x070C
	RetDeviceSyntax               ReturnCode = 0x070D
	RetDeviceIncompatible         ReturnCode = 0x070E
	RetDeviceExists               ReturnCode = 0x070F
	RetDeviceSymbolNotFound       ReturnCode = 0x0710
	RetDeviceSymbolVersionInvalid ReturnCode = 0x0711
	RetDeviceInvalidState         ReturnCode = 0x0712
	RetDeviceTransModeNotSupp     ReturnCode = 0x0713
	RetDeviceNotifyHandleInvalid  ReturnCode = 0x0714
	RetDeviceClientUnknown        ReturnCode = 0x0715
	RetDeviceNoMoreHandles        ReturnCode = 0x0716
	RetDeviceInvalidWatchSize     ReturnCode = 0x0717
	RetDeviceNotInit              ReturnCode = 0x0718
	RetDeviceTimeout              ReturnCode = 0x0719
	RetDeviceNoInterface          ReturnCode = 0x071A
	RetDeviceInvalidInterface     ReturnCode = 0x071B
	RetDeviceInvalidClsId         ReturnCode = 0x071C
	RetDeviceInvalidObjId         ReturnCode = 0x071D
	RetDevicePending              ReturnCode = 0x071E
	RetDeviceAborted              ReturnCode = 0x071F
	RetDeviceWarning              ReturnCode = 0x0720
	RetDeviceInvalidArrayIdx      ReturnCode = 0x0721
	RetDeviceSymbolNotActive      ReturnCode = 0x0722
	RetDeviceAccessDenied         ReturnCode = 0x0723
)

// IsOk reports whether the code signals success.
func (c ReturnCode) IsOk() bool {
	return c == RetOk
}

// Name returns a short description for the common codes.
func (c ReturnCode) Name() string {
	switch c {
	case RetOk:
		return "No error"
	case RetTargetPortNotFound:
		return "Target port not found"
	case RetTargetMachineNotFound:
		return "Target machine not found"
	case RetPortNotConnected:
		return "Port not connected"
	case RetInvalidAmsLength:
		return "Invalid AMS length"
	case RetInvalidAmsNetId:
		return "Invalid AMS Net ID"
	case RetInvalidAmsPort:
		return "Invalid AMS port"
	case RetDeviceError:
		return "Device error"
	case RetDeviceSrvNotSupported:
		return "Service not supported"
	case RetDeviceInvalidGroup:
		return "Invalid index group"
	case RetDeviceInvalidOffset:
		return "Invalid index offset"
	case RetDeviceInvalidAccess:
		return "Invalid access"
	case RetDeviceInvalidSize:
		return "Invalid size"
	case RetDeviceInvalidData:
		return "Invalid data"
	case RetDeviceNotReady:
		return "Device not ready"
	case RetDeviceBusy:
		return "Device busy"
	case RetDeviceNoMemory:
		return "Out of memory"
	case RetDeviceInvalidParam:
		return "Invalid parameter"
	case RetDeviceNotFound:
		return "Device not found"
	case RetDeviceSymbolNotFound:
		return "Symbol not found"
	case RetDeviceTransModeNotSupp:
		return "Transmission mode not supported"
	case RetDeviceNotifyHandleInvalid:
		return "Notification handle invalid"
	case RetDeviceTimeout:
		return "Timeout"
	case RetDeviceAccessDenied:
		return "Access denied"
	default:
		return "Unknown error"
	}
}

func (c ReturnCode) String() string {
	return fmt.Sprintf("0x%08X (%s)", uint32(c), c.Name())
}

// DeviceError wraps a nonzero ReturnCode reported by the device or router.
// The codec itself never produces one; higher layers (the client) convert
// nonzero result fields into this type.
type DeviceError struct {
	Code ReturnCode
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("ADS error %s", e.Code)
}
