package ads

import (
	"encoding/binary"
	"fmt"
	"time"

	"adslink/ams"
)

// Request payload codecs. Builders produce the exact byte layout the
// corresponding parser consumes, so decode(encode(x)) == x for every valid
// value. Variable-length requests come as a borrowing View plus an owned
// form; fixed-layout requests need only one type.

// ReadRequest asks the device for Length bytes at IndexGroup/IndexOffset.
// Layout: group (4) + offset (4) + length (4).
type ReadRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	Length      uint32
}

// ReadRequestLen is the wire size of a ReadRequest.
const ReadRequestLen = 12

// AppendTo appends the 12-byte wire form to buf.
func (r ReadRequest) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, r.IndexGroup)
	buf = binary.LittleEndian.AppendUint32(buf, r.IndexOffset)
	return binary.LittleEndian.AppendUint32(buf, r.Length)
}

// Bytes serializes the request into a new buffer.
func (r ReadRequest) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, ReadRequestLen))
}

// Frame wraps the request into a complete AdsCommand frame.
func (r ReadRequest) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdRead, RequestFlags(), RetOk, invokeId, r.Bytes())
}

// ParseReadRequest decodes a ReadRequest from exactly 12 bytes.
func ParseReadRequest(data []byte) (ReadRequest, error) {
	if len(data) != ReadRequestLen {
		return ReadRequest{}, fmt.Errorf("%w: Read request must be %d bytes, got %d",
			ErrMalformedFrame, ReadRequestLen, len(data))
	}
	return ReadRequest{
		IndexGroup:  binary.LittleEndian.Uint32(data[0:4]),
		IndexOffset: binary.LittleEndian.Uint32(data[4:8]),
		Length:      binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

// ParseReadRequestPacket interprets a packet as a Read request.
func ParseReadRequestPacket(p Packet) (ReadRequest, error) {
	if err := p.requireCommand(CmdRead, false); err != nil {
		return ReadRequest{}, err
	}
	return ParseReadRequest(p.Data)
}

// WriteRequestView is a borrowing view of a Write request: the fixed
// header plus the data to write, sliced from the packet buffer.
// Layout: group (4) + offset (4) + length (4) + data (length).
type WriteRequestView struct {
	IndexGroup  uint32
	IndexOffset uint32
	Data        []byte
}

// Owned copies the view into a self-contained WriteRequest.
func (r WriteRequestView) Owned() WriteRequest {
	return WriteRequest{
		IndexGroup:  r.IndexGroup,
		IndexOffset: r.IndexOffset,
		Data:        append([]byte(nil), r.Data...),
	}
}

// AppendTo appends the full wire form (header + data) to buf.
func (r WriteRequestView) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, r.IndexGroup)
	buf = binary.LittleEndian.AppendUint32(buf, r.IndexOffset)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Data)))
	return append(buf, r.Data...)
}

// Bytes serializes the request into a new buffer.
func (r WriteRequestView) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 12+len(r.Data)))
}

// Frame wraps the request into a complete AdsCommand frame.
func (r WriteRequestView) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdWrite, RequestFlags(), RetOk, invokeId, r.Bytes())
}

// WriteRequest is the owned form of a Write request.
type WriteRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	Data        []byte
}

// View re-borrows the owned request without copying. The view must not
// outlive the owned value's buffer.
func (r WriteRequest) View() WriteRequestView {
	return WriteRequestView(r)
}

// Frame wraps the request into a complete AdsCommand frame.
func (r WriteRequest) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return r.View().Frame(target, source, invokeId)
}

// ParseWriteRequestView decodes a Write request, borrowing the data region
// from the input. The declared length must match the remaining bytes.
func ParseWriteRequestView(data []byte) (WriteRequestView, error) {
	if len(data) < 12 {
		return WriteRequestView{}, fmt.Errorf("%w: Write request header needs 12 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	length := binary.LittleEndian.Uint32(data[8:12])
	body := data[12:]
	if uint64(len(body)) != uint64(length) {
		return WriteRequestView{}, fmt.Errorf("%w: Write request declares %d data bytes, %d follow",
			ErrMalformedFrame, length, len(body))
	}
	return WriteRequestView{
		IndexGroup:  binary.LittleEndian.Uint32(data[0:4]),
		IndexOffset: binary.LittleEndian.Uint32(data[4:8]),
		Data:        body,
	}, nil
}

// ParseWriteRequestPacket interprets a packet as a Write request.
func ParseWriteRequestPacket(p Packet) (WriteRequestView, error) {
	if err := p.requireCommand(CmdWrite, false); err != nil {
		return WriteRequestView{}, err
	}
	return ParseWriteRequestView(p.Data)
}

// ReadWriteRequestView is a borrowing view of a ReadWrite request: write
// data is sent, ReadLength bytes are expected back in the same exchange.
// Layout: group (4) + offset (4) + read length (4) + write length (4) + data.
type ReadWriteRequestView struct {
	IndexGroup  uint32
	IndexOffset uint32
	ReadLength  uint32
	Data        []byte
}

// Owned copies the view into a self-contained ReadWriteRequest.
func (r ReadWriteRequestView) Owned() ReadWriteRequest {
	return ReadWriteRequest{
		IndexGroup:  r.IndexGroup,
		IndexOffset: r.IndexOffset,
		ReadLength:  r.ReadLength,
		Data:        append([]byte(nil), r.Data...),
	}
}

// AppendTo appends the full wire form (header + write data) to buf.
func (r ReadWriteRequestView) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, r.IndexGroup)
	buf = binary.LittleEndian.AppendUint32(buf, r.IndexOffset)
	buf = binary.LittleEndian.AppendUint32(buf, r.ReadLength)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Data)))
	return append(buf, r.Data...)
}

// Bytes serializes the request into a new buffer.
func (r ReadWriteRequestView) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 16+len(r.Data)))
}

// Frame wraps the request into a complete AdsCommand frame.
func (r ReadWriteRequestView) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdReadWrite, RequestFlags(), RetOk, invokeId, r.Bytes())
}

// ReadWriteRequest is the owned form of a ReadWrite request.
type ReadWriteRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	ReadLength  uint32
	Data        []byte
}

// View re-borrows the owned request without copying.
func (r ReadWriteRequest) View() ReadWriteRequestView {
	return ReadWriteRequestView(r)
}

// Frame wraps the request into a complete AdsCommand frame.
func (r ReadWriteRequest) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return r.View().Frame(target, source, invokeId)
}

// ParseReadWriteRequestView decodes a ReadWrite request, borrowing the
// write-data region from the input.
func ParseReadWriteRequestView(data []byte) (ReadWriteRequestView, error) {
	if len(data) < 16 {
		return ReadWriteRequestView{}, fmt.Errorf("%w: ReadWrite request header needs 16 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	writeLength := binary.LittleEndian.Uint32(data[12:16])
	body := data[16:]
	if uint64(len(body)) != uint64(writeLength) {
		return ReadWriteRequestView{}, fmt.Errorf("%w: ReadWrite request declares %d write bytes, %d follow",
			ErrMalformedFrame, writeLength, len(body))
	}
	return ReadWriteRequestView{
		IndexGroup:  binary.LittleEndian.Uint32(data[0:4]),
		IndexOffset: binary.LittleEndian.Uint32(data[4:8]),
		ReadLength:  binary.LittleEndian.Uint32(data[8:12]),
		Data:        body,
	}, nil
}

// ParseReadWriteRequestPacket interprets a packet as a ReadWrite request.
func ParseReadWriteRequestPacket(p Packet) (ReadWriteRequestView, error) {
	if err := p.requireCommand(CmdReadWrite, false); err != nil {
		return ReadWriteRequestView{}, err
	}
	return ParseReadWriteRequestView(p.Data)
}

// ReadStateRequest queries the ADS and device state. It has no payload.
type ReadStateRequest struct{}

// Frame wraps the request into a complete AdsCommand frame.
func (ReadStateRequest) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdReadState, RequestFlags(), RetOk, invokeId, nil)
}

// ParseReadStateRequestPacket interprets a packet as a ReadState request.
func ParseReadStateRequestPacket(p Packet) (ReadStateRequest, error) {
	if err := p.requireCommand(CmdReadState, false); err != nil {
		return ReadStateRequest{}, err
	}
	if len(p.Data) != 0 {
		return ReadStateRequest{}, fmt.Errorf("%w: ReadState request carries no payload, got %d bytes",
			ErrMalformedFrame, len(p.Data))
	}
	return ReadStateRequest{}, nil
}

// DeviceInfoRequest queries name and version of the device. No payload.
type DeviceInfoRequest struct{}

// Frame wraps the request into a complete AdsCommand frame.
func (DeviceInfoRequest) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdReadDeviceInfo, RequestFlags(), RetOk, invokeId, nil)
}

// ParseDeviceInfoRequestPacket interprets a packet as a DeviceInfo request.
func ParseDeviceInfoRequestPacket(p Packet) (DeviceInfoRequest, error) {
	if err := p.requireCommand(CmdReadDeviceInfo, false); err != nil {
		return DeviceInfoRequest{}, err
	}
	if len(p.Data) != 0 {
		return DeviceInfoRequest{}, fmt.Errorf("%w: ReadDeviceInfo request carries no payload, got %d bytes",
			ErrMalformedFrame, len(p.Data))
	}
	return DeviceInfoRequest{}, nil
}

// WriteControlRequestView is a borrowing view of a WriteControl request:
// it switches the target to AdsState/DeviceState and may carry extra data.
// Layout: ads state (2) + device state (2) + length (4) + data (length).
type WriteControlRequestView struct {
	AdsState    State
	DeviceState DeviceState
	Data        []byte
}

// Owned copies the view into a self-contained WriteControlRequest.
func (r WriteControlRequestView) Owned() WriteControlRequest {
	return WriteControlRequest{
		AdsState:    r.AdsState,
		DeviceState: r.DeviceState,
		Data:        append([]byte(nil), r.Data...),
	}
}

// AppendTo appends the full wire form (header + data) to buf.
func (r WriteControlRequestView) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(r.AdsState))
	buf = binary.LittleEndian.AppendUint16(buf, r.DeviceState)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(r.Data)))
	return append(buf, r.Data...)
}

// Bytes serializes the request into a new buffer.
func (r WriteControlRequestView) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 8+len(r.Data)))
}

// Frame wraps the request into a complete AdsCommand frame.
func (r WriteControlRequestView) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdWriteControl, RequestFlags(), RetOk, invokeId, r.Bytes())
}

// WriteControlRequest is the owned form of a WriteControl request.
type WriteControlRequest struct {
	AdsState    State
	DeviceState DeviceState
	Data        []byte
}

// View re-borrows the owned request without copying.
func (r WriteControlRequest) View() WriteControlRequestView {
	return WriteControlRequestView(r)
}

// Frame wraps the request into a complete AdsCommand frame.
func (r WriteControlRequest) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return r.View().Frame(target, source, invokeId)
}

// ParseWriteControlRequestView decodes a WriteControl request, borrowing
// the data region from the input.
func ParseWriteControlRequestView(data []byte) (WriteControlRequestView, error) {
	if len(data) < 8 {
		return WriteControlRequestView{}, fmt.Errorf("%w: WriteControl request header needs 8 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	length := binary.LittleEndian.Uint32(data[4:8])
	body := data[8:]
	if uint64(len(body)) != uint64(length) {
		return WriteControlRequestView{}, fmt.Errorf("%w: WriteControl request declares %d data bytes, %d follow",
			ErrMalformedFrame, length, len(body))
	}
	return WriteControlRequestView{
		AdsState:    State(binary.LittleEndian.Uint16(data[0:2])),
		DeviceState: binary.LittleEndian.Uint16(data[2:4]),
		Data:        body,
	}, nil
}

// ParseWriteControlRequestPacket interprets a packet as a WriteControl request.
func ParseWriteControlRequestPacket(p Packet) (WriteControlRequestView, error) {
	if err := p.requireCommand(CmdWriteControl, false); err != nil {
		return WriteControlRequestView{}, err
	}
	return ParseWriteControlRequestView(p.Data)
}

// AddNotificationRequest registers a device notification subscription.
// Layout: group (4) + offset (4) + length (4) + mode (4) + max delay (4) +
// cycle time (4) + reserved (16). Delays travel as 100ns ticks.
type AddNotificationRequest struct {
	IndexGroup  uint32
	IndexOffset uint32
	Length      uint32
	Mode        TransMode
	MaxDelay    time.Duration
	CycleTime   time.Duration
	Reserved    [16]byte // must be zero; preserved on decode for round-trips
}

// AddNotificationRequestLen is the wire size of an AddNotificationRequest.
const AddNotificationRequestLen = 40

// AppendTo appends the 40-byte wire form to buf.
func (r AddNotificationRequest) AppendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, r.IndexGroup)
	buf = binary.LittleEndian.AppendUint32(buf, r.IndexOffset)
	buf = binary.LittleEndian.AppendUint32(buf, r.Length)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Mode))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.MaxDelay.Nanoseconds()/100))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.CycleTime.Nanoseconds()/100))
	return append(buf, r.Reserved[:]...)
}

// Bytes serializes the request into a new buffer.
func (r AddNotificationRequest) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, AddNotificationRequestLen))
}

// Frame wraps the request into a complete AdsCommand frame.
func (r AddNotificationRequest) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdAddNotification, RequestFlags(), RetOk, invokeId, r.Bytes())
}

// ParseAddNotificationRequest decodes an AddNotificationRequest from
// exactly 40 bytes.
func ParseAddNotificationRequest(data []byte) (AddNotificationRequest, error) {
	if len(data) != AddNotificationRequestLen {
		return AddNotificationRequest{}, fmt.Errorf("%w: AddDeviceNotification request must be %d bytes, got %d",
			ErrMalformedFrame, AddNotificationRequestLen, len(data))
	}
	r := AddNotificationRequest{
		IndexGroup:  binary.LittleEndian.Uint32(data[0:4]),
		IndexOffset: binary.LittleEndian.Uint32(data[4:8]),
		Length:      binary.LittleEndian.Uint32(data[8:12]),
		Mode:        TransMode(binary.LittleEndian.Uint32(data[12:16])),
		MaxDelay:    time.Duration(binary.LittleEndian.Uint32(data[16:20])) * 100,
		CycleTime:   time.Duration(binary.LittleEndian.Uint32(data[20:24])) * 100,
	}
	copy(r.Reserved[:], data[24:40])
	return r, nil
}

// ParseAddNotificationRequestPacket interprets a packet as an
// AddDeviceNotification request.
func ParseAddNotificationRequestPacket(p Packet) (AddNotificationRequest, error) {
	if err := p.requireCommand(CmdAddNotification, false); err != nil {
		return AddNotificationRequest{}, err
	}
	return ParseAddNotificationRequest(p.Data)
}

// DeleteNotificationRequest cancels a subscription by handle. After a
// successful delete no further samples for the handle should be expected;
// enforcing that is the caller's responsibility.
// Layout: handle (4).
type DeleteNotificationRequest struct {
	Handle NotificationHandle
}

// AppendTo appends the 4-byte wire form to buf.
func (r DeleteNotificationRequest) AppendTo(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(r.Handle))
}

// Bytes serializes the request into a new buffer.
func (r DeleteNotificationRequest) Bytes() []byte {
	return r.AppendTo(make([]byte, 0, 4))
}

// Frame wraps the request into a complete AdsCommand frame.
func (r DeleteNotificationRequest) Frame(target, source ams.Addr, invokeId uint32) ams.Frame {
	return newFrame(target, source, CmdDeleteNotification, RequestFlags(), RetOk, invokeId, r.Bytes())
}

// ParseDeleteNotificationRequest decodes the request from exactly 4 bytes.
func ParseDeleteNotificationRequest(data []byte) (DeleteNotificationRequest, error) {
	if len(data) != 4 {
		return DeleteNotificationRequest{}, fmt.Errorf("%w: DeleteDeviceNotification request must be 4 bytes, got %d",
			ErrMalformedFrame, len(data))
	}
	return DeleteNotificationRequest{
		Handle: NotificationHandle(binary.LittleEndian.Uint32(data)),
	}, nil
}

// ParseDeleteNotificationRequestPacket interprets a packet as a
// DeleteDeviceNotification request.
func ParseDeleteNotificationRequestPacket(p Packet) (DeleteNotificationRequest, error) {
	if err := p.requireCommand(CmdDeleteNotification, false); err != nil {
		return DeleteNotificationRequest{}, err
	}
	return ParseDeleteNotificationRequest(p.Data)
}
