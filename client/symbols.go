package client

import (
	"encoding/binary"
	"fmt"

	"adslink/ads"
)

// Index groups for symbolic access on the PLC runtime.
const (
	IndexGroupSymbolHandleByName  uint32 = 0xF003 // get handle by symbol name
	IndexGroupSymbolValueByHandle uint32 = 0xF005 // read/write value by handle
	IndexGroupSymbolReleaseHandle uint32 = 0xF006 // release handle
)

// HandleByName resolves a symbol name (e.g. "MAIN.nCount") to a runtime
// handle via ReadWrite on the symbol table. The handle stays valid until
// released or until the PLC program is reloaded.
func (c *Client) HandleByName(name string) (uint32, error) {
	// The name travels null-terminated in the legacy code page.
	encoded, err := ads.NewFixedString(len(name)+1, name)
	if err != nil {
		return 0, fmt.Errorf("symbol name %q: %w", name, err)
	}
	data, err := c.ReadWrite(IndexGroupSymbolHandleByName, 0, 4, encoded.Bytes())
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", name, err)
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("resolve %q: handle reply is %d bytes", name, len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReleaseHandle frees a handle obtained from HandleByName.
func (c *Client) ReleaseHandle(handle uint32) error {
	return c.Write(IndexGroupSymbolReleaseHandle, 0, binary.LittleEndian.AppendUint32(nil, handle))
}

// ReadSymbol reads length bytes of a named symbol's value, resolving and
// releasing a handle around the read.
func (c *Client) ReadSymbol(name string, length uint32) ([]byte, error) {
	handle, err := c.HandleByName(name)
	if err != nil {
		return nil, err
	}
	defer c.ReleaseHandle(handle)
	return c.Read(IndexGroupSymbolValueByHandle, handle, length)
}

// WriteSymbol writes a named symbol's value, resolving and releasing a
// handle around the write.
func (c *Client) WriteSymbol(name string, data []byte) error {
	handle, err := c.HandleByName(name)
	if err != nil {
		return err
	}
	defer c.ReleaseHandle(handle)
	return c.Write(IndexGroupSymbolValueByHandle, handle, data)
}

// SubscribeSymbol registers a notification on a named symbol's value. The
// symbol handle resolved here is left to the runtime; it stays valid for
// the life of the notification.
func (c *Client) SubscribeSymbol(name string, length uint32, opts SubscribeOptions, fn NotificationFunc) (ads.NotificationHandle, error) {
	handle, err := c.HandleByName(name)
	if err != nil {
		return 0, err
	}
	return c.Subscribe(IndexGroupSymbolValueByHandle, handle, length, opts, fn)
}
