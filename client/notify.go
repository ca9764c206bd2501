package client

import (
	"time"

	"adslink/ads"
	"adslink/ams"
	"adslink/logging"
)

// NotificationFunc receives one pushed sample. It runs on the client's
// read loop, so it must not block; hand heavy work to another goroutine.
type NotificationFunc func(ads.TimestampedSample)

// SubscribeOptions control how the device samples a subscribed region.
type SubscribeOptions struct {
	Mode      ads.TransMode
	MaxDelay  time.Duration
	CycleTime time.Duration
}

// DefaultSubscribeOptions samples on change with a 10ms cycle.
func DefaultSubscribeOptions() SubscribeOptions {
	return SubscribeOptions{
		Mode:      ads.TransServerOnChange,
		CycleTime: 10 * time.Millisecond,
	}
}

// Subscribe registers a device notification for length bytes at the given
// index group and offset and routes its samples to fn. It returns the
// handle needed to unsubscribe.
func (c *Client) Subscribe(group, offset, length uint32, opts SubscribeOptions, fn NotificationFunc) (ads.NotificationHandle, error) {
	p, err := c.exchange(func(id uint32) ams.Frame {
		return ads.AddNotificationRequest{
			IndexGroup:  group,
			IndexOffset: offset,
			Length:      length,
			Mode:        opts.Mode,
			MaxDelay:    opts.MaxDelay,
			CycleTime:   opts.CycleTime,
		}.Frame(c.target, c.local, id)
	})
	if err != nil {
		return 0, err
	}
	resp, err := ads.ParseAddNotificationResponsePacket(p)
	if err != nil {
		return 0, err
	}
	if err := deviceResult(resp.Result); err != nil {
		return 0, err
	}

	c.subsMu.Lock()
	c.subs[resp.Handle] = fn
	c.subsMu.Unlock()
	logging.DebugLog("client", "subscribed handle %s (group 0x%X offset 0x%X)", resp.Handle, group, offset)
	return resp.Handle, nil
}

// Unsubscribe deletes the notification on the device and removes the
// callback. The callback is removed even if the device reports an error,
// since no further samples should be acted on either way.
func (c *Client) Unsubscribe(handle ads.NotificationHandle) error {
	c.subsMu.Lock()
	delete(c.subs, handle)
	c.subsMu.Unlock()

	p, err := c.exchange(func(id uint32) ams.Frame {
		return ads.DeleteNotificationRequest{Handle: handle}.Frame(c.target, c.local, id)
	})
	if err != nil {
		return err
	}
	resp, err := ads.ParseDeleteNotificationResponsePacket(p)
	if err != nil {
		return err
	}
	return deviceResult(resp.Result)
}

// dispatchNotification fans one notification packet's samples out to the
// registered callbacks. Sample data is copied out of the frame buffer
// before the callback sees it, so callbacks may retain it.
func (c *Client) dispatchNotification(p ads.Packet) {
	view, err := ads.ParseNotificationPacket(p)
	if err != nil {
		logging.DebugError("client", "notification parse", err)
		return
	}
	for _, s := range view.Samples() {
		c.subsMu.RLock()
		fn := c.subs[s.Handle]
		c.subsMu.RUnlock()
		if fn == nil {
			logging.DebugLog("client", "sample for unknown handle %s dropped", s.Handle)
			continue
		}
		fn(ads.TimestampedSample{
			Timestamp: s.Timestamp,
			Handle:    s.Handle,
			Data:      append([]byte(nil), s.Data...),
		})
	}
}
