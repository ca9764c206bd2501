package ads

import (
	"encoding/binary"
	"fmt"

	"adslink/ams"
)

// Response payload codecs. Every response leads with a 4-byte ReturnCode;
// the codecs decode it as data and never turn a non-zero code into a parse
// error, so callers can inspect device failures themselves.

// ReadResponseView is a borrowing view of a Read response.
// Layout: result (4) + length (4) + data (length).
type ReadResponseView struct {
	Result ReturnCode
	Data   []byte
}

// Owned copies the view into a self-contained ReadResponse.
func (r ReadResponseView) Owned() ReadResponse {
	return ReadResponse{
		Result: r.Result,
		Data:   append([]byte(nil), r.Data...),
	}
}

// AppendTo appends the full wire form (result + length + data) to buf.
func (r ReadResponseView) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Result))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Data)))
	return append(buf, r.Data...)
}

// Bytes serializes the response into a new buffer.
func (r ReadResponseView) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 8+len(r.Data)))
}

// Frame wraps the response into a complete AdsCommand frame.
func (r ReadResponseView) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdRead, ResponseFlags(), RetOk, invokeId, r.Bytes())
}

// ReadResponse is the owned form of a Read response.
type ReadResponse struct {
	Result ReturnCode
	Data   []byte
}

// View re-borrows the owned response without copying.
func (r ReadResponse) View() ReadResponseView {
	return ReadResponseView(r)
}

// Frame wraps the response into a complete AdsCommand frame.
func (r ReadResponse) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return r.View().Frame(target, source, invokeId)
}

// ParseReadResponseView decodes a Read response, borrowing the data region
// from the input. The declared length must match the remaining bytes.
func ParseReadResponseView(data []byte) (ReadResponseView, error) {
	if len(data) < 8 {
		return ReadResponseView{}, fmt.Errorf("%w: Read response header needs 8 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	length := binary.LittleEndian.Uint32(data[4:8])
	body := data[8:]
	if uint64(len(body)) != uint64(length) {
		return ReadResponseView{}, fmt.Errorf("%w: Read response declares %d data bytes, %d follow",
			ErrMalformedFrame, length, len(body))
	}
	return ReadResponseView{
		Result: ReturnCode(binary.LittleEndian.Uint32(data[0:4])),
		Data:   body,
	}, nil
}

// ParseReadResponsePacket interprets a packet as a Read response.
func ParseReadResponsePacket(p Packet) (ReadResponseView, error) {
	if err := p.requireCommand(CmdRead, true); err != nil {
		return ReadResponseView{}, err
	}
	return ParseReadResponseView(p.Data)
}

// ReadWriteResponseView is a borrowing view of a ReadWrite response,
// which shares the wire shape of a Read response.
type ReadWriteResponseView struct {
	Result ReturnCode
	Data   []byte
}

// Owned copies the view into a self-contained ReadWriteResponse.
func (r ReadWriteResponseView) Owned() ReadWriteResponse {
	return ReadWriteResponse{
		Result: r.Result,
		Data:   append([]byte(nil), r.Data...),
	}
}

// AppendTo appends the full wire form (result + length + data) to buf.
func (r ReadWriteResponseView) AppendTo(buf []byte) []byte {
	return ReadResponseView(r).AppendTo(buf)
}

// Bytes serializes the response into a new buffer.
func (r ReadWriteResponseView) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 8+len(r.Data)))
}

// Frame wraps the response into a complete AdsCommand frame.
func (r ReadWriteResponseView) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdReadWrite, ResponseFlags(), RetOk, invokeId, r.Bytes())
}

// ReadWriteResponse is the owned form of a ReadWrite response.
type ReadWriteResponse struct {
	Result ReturnCode
	Data   []byte
}

// View re-borrows the owned response without copying.
func (r ReadWriteResponse) View() ReadWriteResponseView {
	return ReadWriteResponseView(r)
}

// Frame wraps the response into a complete AdsCommand frame.
func (r ReadWriteResponse) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return r.View().Frame(target, source, invokeId)
}

// ParseReadWriteResponseView decodes a ReadWrite response, borrowing the
// data region from the input.
func ParseReadWriteResponseView(data []byte) (ReadWriteResponseView, error) {
	v, err := ParseReadResponseView(data)
	if err != nil {
		return ReadWriteResponseView{}, err
	}
	return ReadWriteResponseView(v), nil
}

// ParseReadWriteResponsePacket interprets a packet as a ReadWrite response.
func ParseReadWriteResponsePacket(p Packet) (ReadWriteResponseView, error) {
	if err := p.requireCommand(CmdReadWrite, true); err != nil {
		return ReadWriteResponseView{}, err
	}
	return ParseReadWriteResponseView(p.Data)
}

// WriteResponse acknowledges a Write request.
// Layout: result (4).
type WriteResponse struct {
	Result ReturnCode
}

// AppendTo appends the 4-byte wire form to buf.
func (r WriteResponse) AppendTo(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(r.Result))
}

// Bytes serializes the response into a new buffer.
func (r WriteResponse) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 4))
}

// Frame wraps the response into a complete AdsCommand frame.
func (r WriteResponse) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdWrite, ResponseFlags(), RetOk, invokeId, r.Bytes())
}

// ParseWriteResponse decodes the response from exactly 4 bytes.
func ParseWriteResponse(data []byte) (WriteResponse, error) {
	if len(data) != 4 {
		return WriteResponse{}, fmt.Errorf("%w: Write response must be 4 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	return WriteResponse{Result: ReturnCode(binary.LittleEndian.Uint32(data))}, nil
}

// ParseWriteResponsePacket interprets a packet as a Write response.
func ParseWriteResponsePacket(p Packet) (WriteResponse, error) {
	if err := p.requireCommand(CmdWrite, true); err != nil {
		return WriteResponse{}, err
	}
	return ParseWriteResponse(p.Data)
}

// ReadStateResponse reports the ADS and device state of the target.
// Layout: result (4) + ads state (2) + device state (2).
type ReadStateResponse struct {
	Result      ReturnCode
	AdsState    State
	DeviceState DeviceState
}

// ReadStateResponseLen is the wire size of a ReadStateResponse.
const ReadStateResponseLen = 8

// AppendTo appends the 8-byte wire form to buf.
func (r ReadStateResponse) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Result))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(r.AdsState))
	return binary.LittleEndian.AppendUint16(buf, r.DeviceState)
}

// Bytes serializes the response into a new buffer.
func (r ReadStateResponse) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, ReadStateResponseLen))
}

// Frame wraps the response into a complete AdsCommand frame.
func (r ReadStateResponse) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdReadState, ResponseFlags(), RetOk, invokeId, r.Bytes())
}

// ParseReadStateResponse decodes the response from exactly 8 bytes.
func ParseReadStateResponse(data []byte) (ReadStateResponse, error) {
	if len(data) != ReadStateResponseLen {
		return ReadStateResponse{}, fmt.Errorf("%w: ReadState response must be %d bytes, got %d",
			ErrMalformedFrame, ReadStateResponseLen, len(data))
	}
	return ReadStateResponse{
		Result:      ReturnCode(binary.LittleEndian.Uint32(data[0:4])),
		AdsState:    State(binary.LittleEndian.Uint16(data[4:6])),
		DeviceState: binary.LittleEndian.Uint16(data[6:8]),
	}, nil
}

// ParseReadStateResponsePacket interprets a packet as a ReadState response.
func ParseReadStateResponsePacket(p Packet) (ReadStateResponse, error) {
	if err := p.requireCommand(CmdReadState, true); err != nil {
		return ReadStateResponse{}, err
	}
	return ParseReadStateResponse(p.Data)
}

// WriteControlResponse acknowledges a WriteControl request.
// Layout: result (4).
type WriteControlResponse struct {
	Result ReturnCode
}

// AppendTo appends the 4-byte wire form to buf.
func (r WriteControlResponse) AppendTo(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(r.Result))
}

// Bytes serializes the response into a new buffer.
func (r WriteControlResponse) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 4))
}

// Frame wraps the response into a complete AdsCommand frame.
func (r WriteControlResponse) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdWriteControl, ResponseFlags(), RetOk, invokeId, r.Bytes())
}

// ParseWriteControlResponse decodes the response from exactly 4 bytes.
func ParseWriteControlResponse(data []byte) (WriteControlResponse, error) {
	if len(data) != 4 {
		return WriteControlResponse{}, fmt.Errorf("%w: WriteControl response must be 4 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	return WriteControlResponse{Result: ReturnCode(binary.LittleEndian.Uint32(data))}, nil
}

// ParseWriteControlResponsePacket interprets a packet as a WriteControl
// response.
func ParseWriteControlResponsePacket(p Packet) (WriteControlResponse, error) {
	if err := p.requireCommand(CmdWriteControl, true); err != nil {
		return WriteControlResponse{}, err
	}
	return ParseWriteControlResponse(p.Data)
}

// DeviceInfoResponse carries name and version of the target device.
// Layout: result (4) + major (1) + minor (1) + build (2) + name (16).
type DeviceInfoResponse struct {
	Result       ReturnCode
	MajorVersion uint8
	MinorVersion uint8
	BuildVersion uint16
	DeviceName   FixedString
}

// DeviceInfoResponseLen is the wire size of a DeviceInfoResponse.
const DeviceInfoResponseLen = 24

// AppendTo appends the 24-byte wire form to buf. A name shorter than the
// 16-byte field is padded with zero bytes.
func (r DeviceInfoResponse) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Result))
	buf = append(buf, r.MajorVersion, r.MinorVersion)
	buf = binary.LittleEndian.AppendUint16(buf, r.BuildVersion)
	name := r.DeviceName.Bytes()
	if len(name) > DeviceNameLen {
		name = name[:DeviceNameLen]
	}
	buf = append(buf, name...)
	for i := len(name); i < DeviceNameLen; i++ {
		buf = append(buf, 0)
	}
	return buf
}

// Bytes serializes the response into a new buffer.
func (r DeviceInfoResponse) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, DeviceInfoResponseLen))
}

// Frame wraps the response into a complete AdsCommand frame.
func (r DeviceInfoResponse) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdReadDeviceInfo, ResponseFlags(), RetOk, invokeId, r.Bytes())
}

// ParseDeviceInfoResponse decodes the response from exactly 24 bytes. The
// name decodes totally; any byte sequence is a valid device name.
func ParseDeviceInfoResponse(data []byte) (DeviceInfoResponse, error) {
	if len(data) != DeviceInfoResponseLen {
		return DeviceInfoResponse{}, fmt.Errorf("%w: ReadDeviceInfo response must be %d bytes, got %d",
			ErrMalformedFrame, DeviceInfoResponseLen, len(data))
	}
	return DeviceInfoResponse{
		Result:       ReturnCode(binary.LittleEndian.Uint32(data[0:4])),
		MajorVersion: data[4],
		MinorVersion: data[5],
		BuildVersion: binary.LittleEndian.Uint16(data[6:8]),
		DeviceName:   FixedStringFromBytes(data[8:24]),
	}, nil
}

// ParseDeviceInfoResponsePacket interprets a packet as a ReadDeviceInfo
// response.
func ParseDeviceInfoResponsePacket(p Packet) (DeviceInfoResponse, error) {
	if err := p.requireCommand(CmdReadDeviceInfo, true); err != nil {
		return DeviceInfoResponse{}, err
	}
	return ParseDeviceInfoResponse(p.Data)
}

// AddNotificationResponse returns the handle for a new subscription. The
// handle is only meaningful when Result is ok.
// Layout: result (4) + handle (4).
type AddNotificationResponse struct {
	Result ReturnCode
	Handle NotificationHandle
}

// AppendTo appends the 8-byte wire form to buf.
func (r AddNotificationResponse) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Result))
	return binary.LittleEndian.AppendUint32(buf, uint32(r.Handle))
}

// Bytes serializes the response into a new buffer.
func (r AddNotificationResponse) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 8))
}

// Frame wraps the response into a complete AdsCommand frame.
func (r AddNotificationResponse) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdAddNotification, ResponseFlags(), RetOk, invokeId, r.Bytes())
}

// ParseAddNotificationResponse decodes the response from exactly 8 bytes.
func ParseAddNotificationResponse(data []byte) (AddNotificationResponse, error) {
	if len(data) != 8 {
		return AddNotificationResponse{}, fmt.Errorf("%w: AddDeviceNotification response must be 8 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	return AddNotificationResponse{
		Result: ReturnCode(binary.LittleEndian.Uint32(data[0:4])),
		Handle: NotificationHandle(binary.LittleEndian.Uint32(data[4:8])),
	}, nil
}

// ParseAddNotificationResponsePacket interprets a packet as an
// AddDeviceNotification response.
func ParseAddNotificationResponsePacket(p Packet) (AddNotificationResponse, error) {
	if err := p.requireCommand(CmdAddNotification, true); err != nil {
		return AddNotificationResponse{}, err
	}
	return ParseAddNotificationResponse(p.Data)
}

// DeleteNotificationResponse acknowledges a subscription delete.
// Layout: result (4).
type DeleteNotificationResponse struct {
	Result ReturnCode
}

// AppendTo appends the 4-byte wire form to buf.
func (r DeleteNotificationResponse) AppendTo(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(r.Result))
}

// Bytes serializes the response into a new buffer.
func (r DeleteNotificationResponse) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 4))
}

// Frame wraps the response into a complete AdsCommand frame.
func (r DeleteNotificationResponse) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdDeleteNotification, ResponseFlags(), RetOk, invokeId, r.Bytes())
}

// ParseDeleteNotificationResponse decodes the response from exactly 4 bytes.
func ParseDeleteNotificationResponse(data []byte) (DeleteNotificationResponse, error) {
	if len(data) != 4 {
		return DeleteNotificationResponse{}, fmt.Errorf("%w: DeleteDeviceNotification response must be 4 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	return DeleteNotificationResponse{Result: ReturnCode(binary.LittleEndian.Uint32(data))}, nil
}

// ParseDeleteNotificationResponsePacket interprets a packet as a
// DeleteDeviceNotification response.
func ParseDeleteNotificationResponsePacket(p Packet) (DeleteNotificationResponse, error) {
	if err := p.requireCommand(CmdDeleteNotification, true); err != nil {
		return DeleteNotificationResponse{}, err
	}
	return ParseDeleteNotificationResponse(p.Data)
}
