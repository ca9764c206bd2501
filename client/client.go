// Package client is a blocking ADS client. It dials the target's AMS
// router over TCP, registers a local port, and exposes the ADS command set
// as typed calls. A background reader correlates responses by invoke id, so
// requests may be issued from multiple goroutines, and dispatches pushed
// device notifications to per-handle callbacks.
package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"adslink/ads"
	"adslink/ams"
	"adslink/amsio"
	"adslink/logging"
)

// Well-known AMS ports.
const (
	PortPLC1          uint16 = 801   // TwinCAT 2 PLC runtime 1
	PortTC3PLC1       uint16 = 851   // TwinCAT 3 PLC runtime 1
	PortTC3PLC2       uint16 = 852   // TwinCAT 3 PLC runtime 2
	PortSystemService uint16 = 10000 // System service
)

// DefaultTCPPort is the TCP port the AMS router listens on.
const DefaultTCPPort = 48898

// ErrClosed is returned for operations on a closed client.
var ErrClosed = errors.New("client closed")

// ErrTimeout is returned when the target does not answer within the
// configured timeout.
var ErrTimeout = errors.New("request timed out")

// AmsError reports a non-zero error code in a response AMS header. It is
// distinct from ads.DeviceError, which reports a command-level result.
type AmsError struct {
	Code ads.ReturnCode
}

func (e *AmsError) Error() string {
	return fmt.Sprintf("AMS error: %s", e.Code)
}

// Client is a connected ADS client. All exported methods are safe for
// concurrent use.
type Client struct {
	conn   net.Conn
	writer *amsio.FrameWriter
	local  ams.Addr
	target ams.Addr

	timeout  time.Duration
	invokeId atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan ads.Packet

	subsMu sync.RWMutex
	subs   map[ads.NotificationHandle]NotificationFunc

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	readErr   atomic.Value // error
}

type options struct {
	targetNetId ams.NetId
	targetPort  uint16
	timeout     time.Duration
}

// Option configures Dial.
type Option func(*options)

// WithTargetNetId sets the target AMS Net ID explicitly. Without it the
// Net ID is derived from the IP address as IP.1.1.
func WithTargetNetId(netId ams.NetId) Option {
	return func(o *options) { o.targetNetId = netId }
}

// WithTargetPort sets the target AMS port. Default is 851 (TwinCAT 3 PLC
// runtime 1).
func WithTargetPort(port uint16) Option {
	return func(o *options) { o.targetPort = port }
}

// WithTimeout sets the dial and per-request timeout. Default is 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Dial connects to the AMS router at address (host or host:port; the
// router port 48898 is used when none is given), registers a local AMS
// port, and starts the response reader.
func Dial(address string, opts ...Option) (*Client, error) {
	cfg := &options{
		targetPort: PortTC3PLC1,
		timeout:    5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
		address = fmt.Sprintf("%s:%d", host, DefaultTCPPort)
	}

	if cfg.targetNetId.IsZero() {
		cfg.targetNetId, err = ams.NetIdFromIP(host)
		if err != nil {
			return nil, fmt.Errorf("Dial: cannot derive AMS Net ID from %q: %w", host, err)
		}
	}

	logging.DebugConnect("client", address)
	conn, err := net.DialTimeout("tcp", address, cfg.timeout)
	if err != nil {
		logging.DebugConnectError("client", address, err)
		return nil, fmt.Errorf("Dial: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}

	c, err := newClient(conn, ams.NewAddr(cfg.targetNetId, cfg.targetPort), cfg.timeout)
	if err != nil {
		conn.Close()
		logging.DebugConnectError("client", address, err)
		return nil, fmt.Errorf("Dial: %w", err)
	}
	logging.DebugConnectSuccess("client", address, fmt.Sprintf("local %s", c.local))
	return c, nil
}

// newClient registers a local port on an established connection and starts
// the reader. Split from Dial so tests can drive it over a pipe.
func newClient(conn net.Conn, target ams.Addr, timeout time.Duration) (*Client, error) {
	writer := amsio.NewFrameWriter(conn)
	reader := amsio.NewFrameReader(conn)

	// Register with the router. Port 0 lets it pick one for us.
	conn.SetDeadline(time.Now().Add(timeout))
	if err := writer.WriteFrame(ams.PortConnectRequest{}.Frame()); err != nil {
		return nil, fmt.Errorf("port connect: %w", err)
	}
	f, err := reader.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("port connect: %w", err)
	}
	resp, err := ams.ParsePortConnectResponse(f)
	if err != nil {
		return nil, fmt.Errorf("port connect: %w", err)
	}
	conn.SetDeadline(time.Time{})

	c := &Client{
		conn:    conn,
		writer:  writer,
		local:   resp.Addr,
		target:  target,
		timeout: timeout,
		pending: make(map[uint32]chan ads.Packet),
		subs:    make(map[ads.NotificationHandle]NotificationFunc),
		closed:  make(chan struct{}),
	}
	go c.readLoop(reader)
	return c, nil
}

// LocalAddr returns the AMS address the router assigned to this client.
func (c *Client) LocalAddr() ams.Addr {
	return c.local
}

// TargetAddr returns the AMS address requests are sent to.
func (c *Client) TargetAddr() ams.Addr {
	return c.target
}

// Close unregisters the local port and closes the connection. Pending
// requests fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		// Best effort; the router acknowledges by dropping the TCP
		// connection, which also stops the read loop.
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.writer.WriteFrame(ams.PortCloseRequest{Port: c.local.Port}.Frame())
		c.writeMu.Unlock()
		err = c.conn.Close()
		logging.DebugDisconnect("client", c.conn.RemoteAddr().String(), "closed")
	})
	return err
}

// readLoop consumes frames until the connection dies, delivering responses
// to waiting callers and notifications to subscription callbacks.
func (c *Client) readLoop(reader *amsio.FrameReader) {
	for {
		f, err := reader.ReadFrame()
		if err != nil {
			c.readErr.Store(err)
			c.failPending()
			select {
			case <-c.closed:
			default:
				logging.DebugError("client", "read loop", err)
			}
			return
		}

		switch f.Command {
		case ams.CmdAdsCommand:
			p, err := ads.ParsePacket(f)
			if err != nil {
				logging.DebugError("client", "packet parse", err)
				continue
			}
			if p.Header.Command == ads.CmdNotification {
				c.dispatchNotification(p)
				continue
			}
			c.deliver(p)
		case ams.CmdRouterNotification:
			if n, err := ams.ParseRouterNotification(f); err == nil {
				logging.DebugLog("client", "router state: %s", n.State)
			}
		default:
			logging.DebugLog("client", "ignoring frame with command %s", f.Command)
		}
	}
}

func (c *Client) deliver(p ads.Packet) {
	c.pendingMu.Lock()
	ch, ok := c.pending[p.Header.InvokeId]
	if ok {
		delete(c.pending, p.Header.InvokeId)
	}
	c.pendingMu.Unlock()
	if !ok {
		logging.DebugLog("client", "unmatched response, invoke id %d", p.Header.InvokeId)
		return
	}
	ch <- p
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// exchange sends one request frame and blocks for the matching response
// packet. build receives the invoke id to stamp into the frame.
func (c *Client) exchange(build func(invokeId uint32) ams.Frame) (ads.Packet, error) {
	select {
	case <-c.closed:
		return ads.Packet{}, ErrClosed
	default:
	}

	invokeId := c.invokeId.Add(1)
	ch := make(chan ads.Packet, 1)
	c.pendingMu.Lock()
	c.pending[invokeId] = ch
	c.pendingMu.Unlock()

	frame := build(invokeId)
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	err := c.writer.WriteFrame(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, invokeId)
		c.pendingMu.Unlock()
		return ads.Packet{}, fmt.Errorf("write request: %w", err)
	}

	select {
	case p, ok := <-ch:
		if !ok {
			if err, _ := c.readErr.Load().(error); err != nil {
				return ads.Packet{}, fmt.Errorf("connection lost: %w", err)
			}
			return ads.Packet{}, ErrClosed
		}
		if p.Header.ErrorCode != ads.RetOk {
			return ads.Packet{}, &AmsError{Code: p.Header.ErrorCode}
		}
		return p, nil
	case <-time.After(c.timeout):
		c.pendingMu.Lock()
		delete(c.pending, invokeId)
		c.pendingMu.Unlock()
		return ads.Packet{}, ErrTimeout
	case <-c.closed:
		c.pendingMu.Lock()
		delete(c.pending, invokeId)
		c.pendingMu.Unlock()
		return ads.Packet{}, ErrClosed
	}
}

// deviceResult converts a command-level return code into an error.
func deviceResult(code ads.ReturnCode) error {
	if code.IsOk() {
		return nil
	}
	return &ads.DeviceError{Code: code}
}

// Read reads length bytes at the given index group and offset.
func (c *Client) Read(group, offset, length uint32) ([]byte, error) {
	p, err := c.exchange(func(id uint32) ams.Frame {
		return ads.ReadRequest{IndexGroup: group, IndexOffset: offset, Length: length}.
			Frame(c.target, c.local, id)
	})
	if err != nil {
		return nil, err
	}
	resp, err := ads.ParseReadResponsePacket(p)
	if err != nil {
		return nil, err
	}
	if err := deviceResult(resp.Result); err != nil {
		return nil, err
	}
	return resp.Owned().Data, nil
}

// Write writes data at the given index group and offset.
func (c *Client) Write(group, offset uint32, data []byte) error {
	p, err := c.exchange(func(id uint32) ams.Frame {
		return ads.WriteRequest{IndexGroup: group, IndexOffset: offset, Data: data}.
			Frame(c.target, c.local, id)
	})
	if err != nil {
		return err
	}
	resp, err := ads.ParseWriteResponsePacket(p)
	if err != nil {
		return err
	}
	return deviceResult(resp.Result)
}

// ReadWrite writes data and reads back up to readLength bytes in one
// exchange.
func (c *Client) ReadWrite(group, offset, readLength uint32, data []byte) ([]byte, error) {
	p, err := c.exchange(func(id uint32) ams.Frame {
		return ads.ReadWriteRequest{
			IndexGroup:  group,
			IndexOffset: offset,
			ReadLength:  readLength,
			Data:        data,
		}.Frame(c.target, c.local, id)
	})
	if err != nil {
		return nil, err
	}
	resp, err := ads.ParseReadWriteResponsePacket(p)
	if err != nil {
		return nil, err
	}
	if err := deviceResult(resp.Result); err != nil {
		return nil, err
	}
	return resp.Owned().Data, nil
}

// ReadState returns the ADS state and device state of the target.
func (c *Client) ReadState() (ads.State, ads.DeviceState, error) {
	p, err := c.exchange(func(id uint32) ams.Frame {
		return ads.ReadStateRequest{}.Frame(c.target, c.local, id)
	})
	if err != nil {
		return 0, 0, err
	}
	resp, err := ads.ParseReadStateResponsePacket(p)
	if err != nil {
		return 0, 0, err
	}
	if err := deviceResult(resp.Result); err != nil {
		return 0, 0, err
	}
	return resp.AdsState, resp.DeviceState, nil
}

// WriteControl switches the target to the given ADS and device state,
// optionally carrying extra data.
func (c *Client) WriteControl(adsState ads.State, deviceState ads.DeviceState, data []byte) error {
	p, err := c.exchange(func(id uint32) ams.Frame {
		return ads.WriteControlRequest{
			AdsState:    adsState,
			DeviceState: deviceState,
			Data:        data,
		}.Frame(c.target, c.local, id)
	})
	if err != nil {
		return err
	}
	resp, err := ads.ParseWriteControlResponsePacket(p)
	if err != nil {
		return err
	}
	return deviceResult(resp.Result)
}

// DeviceInfo describes the target device runtime.
type DeviceInfo struct {
	MajorVersion uint8
	MinorVersion uint8
	BuildVersion uint16
	DeviceName   string
}

// String returns a human-readable device description.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s v%d.%d.%d", d.DeviceName, d.MajorVersion, d.MinorVersion, d.BuildVersion)
}

// ReadDeviceInfo queries name and version of the target device.
func (c *Client) ReadDeviceInfo() (DeviceInfo, error) {
	p, err := c.exchange(func(id uint32) ams.Frame {
		return ads.DeviceInfoRequest{}.Frame(c.target, c.local, id)
	})
	if err != nil {
		return DeviceInfo{}, err
	}
	resp, err := ads.ParseDeviceInfoResponsePacket(p)
	if err != nil {
		return DeviceInfo{}, err
	}
	if err := deviceResult(resp.Result); err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{
		MajorVersion: resp.MajorVersion,
		MinorVersion: resp.MinorVersion,
		BuildVersion: resp.BuildVersion,
		DeviceName:   resp.DeviceName.String(),
	}, nil
}
