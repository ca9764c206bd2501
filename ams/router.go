package ams

import (
	"encoding/binary"
	"fmt"
)

// Router-level control payloads. These frames are exchanged directly with
// the AMS router to register ports and observe router health; they carry no
// ADS header.

// PortConnectRequest asks the router to assign an AMS port.
// A desired port of 0 lets the router pick one.
type PortConnectRequest struct {
	DesiredPort uint16
}

// Frame builds the PortConnect frame (2-byte little-endian port payload).
func (r PortConnectRequest) Frame() Frame {
	payload := binary.LittleEndian.AppendUint16(nil, r.DesiredPort)
	return Frame{Command: CmdPortConnect, Payload: payload}
}

// ParsePortConnectRequest decodes a PortConnect request frame.
func ParsePortConnectRequest(f Frame) (PortConnectRequest, error) {
	if f.Command != CmdPortConnect {
		return PortConnectRequest{}, fmt.Errorf("%w: expected %s, got %s",
			ErrTypeMismatch, CmdPortConnect, f.Command)
	}
	if len(f.Payload) != 2 {
		return PortConnectRequest{}, fmt.Errorf("%w: PortConnect request payload must be 2 bytes, got %d",
			ErrMalformedFrame, len(f.Payload))
	}
	return PortConnectRequest{DesiredPort: binary.LittleEndian.Uint16(f.Payload)}, nil
}

// PortConnectResponse carries the address the router assigned to us.
type PortConnectResponse struct {
	Addr Addr
}

// Frame builds the PortConnect response frame (8-byte address payload).
func (r PortConnectResponse) Frame() Frame {
	return Frame{Command: CmdPortConnect, Payload: r.Addr.AppendTo(nil)}
}

// ParsePortConnectResponse decodes a PortConnect response frame.
func ParsePortConnectResponse(f Frame) (PortConnectResponse, error) {
	if f.Command != CmdPortConnect {
		return PortConnectResponse{}, fmt.Errorf("%w: expected %s, got %s",
			ErrTypeMismatch, CmdPortConnect, f.Command)
	}
	if len(f.Payload) != AddrLen {
		return PortConnectResponse{}, fmt.Errorf("%w: PortConnect response payload must be %d bytes, got %d",
			ErrMalformedFrame, AddrLen, len(f.Payload))
	}
	addr, err := AddrFromBytes(f.Payload)
	if err != nil {
		return PortConnectResponse{}, err
	}
	return PortConnectResponse{Addr: addr}, nil
}

// PortCloseRequest unregisters an AMS port. The router does not answer at
// the AMS level; it usually acknowledges by closing the TCP connection.
type PortCloseRequest struct {
	Port uint16
}

// Frame builds the PortClose frame (2-byte little-endian port payload).
func (r PortCloseRequest) Frame() Frame {
	payload := binary.LittleEndian.AppendUint16(nil, r.Port)
	return Frame{Command: CmdPortClose, Payload: payload}
}

// ParsePortCloseRequest decodes a PortClose request frame.
func ParsePortCloseRequest(f Frame) (PortCloseRequest, error) {
	if f.Command != CmdPortClose {
		return PortCloseRequest{}, fmt.Errorf("%w: expected %s, got %s",
			ErrTypeMismatch, CmdPortClose, f.Command)
	}
	if len(f.Payload) != 2 {
		return PortCloseRequest{}, fmt.Errorf("%w: PortClose payload must be 2 bytes, got %d",
			ErrMalformedFrame, len(f.Payload))
	}
	return PortCloseRequest{Port: binary.LittleEndian.Uint16(f.Payload)}, nil
}

// GetLocalNetIdRequest queries the router's local Net ID.
type GetLocalNetIdRequest struct{}

// Frame builds the GetLocalNetId request frame (4 zero bytes, per protocol).
func (GetLocalNetIdRequest) Frame() Frame {
	return Frame{Command: CmdGetLocalNetId, Payload: make([]byte, 4)}
}

// GetLocalNetIdResponse carries the router's local Net ID.
type GetLocalNetIdResponse struct {
	NetId NetId
}

// Frame builds the GetLocalNetId response frame (6-byte Net ID payload).
func (r GetLocalNetIdResponse) Frame() Frame {
	return Frame{Command: CmdGetLocalNetId, Payload: append([]byte(nil), r.NetId[:]...)}
}

// ParseGetLocalNetIdResponse decodes a GetLocalNetId response frame.
func ParseGetLocalNetIdResponse(f Frame) (GetLocalNetIdResponse, error) {
	if f.Command != CmdGetLocalNetId {
		return GetLocalNetIdResponse{}, fmt.Errorf("%w: expected %s, got %s",
			ErrTypeMismatch, CmdGetLocalNetId, f.Command)
	}
	if len(f.Payload) != NetIdLen {
		return GetLocalNetIdResponse{}, fmt.Errorf("%w: GetLocalNetId response payload must be %d bytes, got %d",
			ErrMalformedFrame, NetIdLen, len(f.Payload))
	}
	var resp GetLocalNetIdResponse
	copy(resp.NetId[:], f.Payload)
	return resp, nil
}

// RouterNotification is pushed by the router to every registered client
// when its state changes.
type RouterNotification struct {
	State RouterState
}

// Frame builds the RouterNotification frame (4-byte little-endian state).
func (r RouterNotification) Frame() Frame {
	payload := binary.LittleEndian.AppendUint32(nil, uint32(r.State))
	return Frame{Command: CmdRouterNotification, Payload: payload}
}

// ParseRouterNotification decodes a RouterNotification frame.
func ParseRouterNotification(f Frame) (RouterNotification, error) {
	if f.Command != CmdRouterNotification {
		return RouterNotification{}, fmt.Errorf("%w: expected %s, got %s",
			ErrTypeMismatch, CmdRouterNotification, f.Command)
	}
	if len(f.Payload) != 4 {
		return RouterNotification{}, fmt.Errorf("%w: RouterNotification payload must be 4 bytes, got %d",
			ErrMalformedFrame, len(f.Payload))
	}
	return RouterNotification{State: RouterState(binary.LittleEndian.Uint32(f.Payload))}, nil
}
