package amsio

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"adslink/ams"
)

// ErrStreamPoisoned is returned after a cancelled read or write. A cancel
// can leave a partial frame in flight, so the next byte on the wire is no
// longer a reliable envelope boundary and the connection must not be reused.
var ErrStreamPoisoned = errors.New("stream desynchronized by cancellation")

// Stream is a cancellable frame transport over a net.Conn. The read and
// write sides are independent: one goroutine may sit in ReadFrame while
// another calls WriteFrame. Cancellation closes the connection, which is
// the only portable way to interrupt a blocked net.Conn operation, and
// permanently poisons the stream.
type Stream struct {
	conn     net.Conn
	reader   *FrameReader
	writer   *FrameWriter
	writeMu  sync.Mutex
	readMu   sync.Mutex
	poisoned atomic.Bool
}

// NewStream wraps an established connection.
func NewStream(conn net.Conn) *Stream {
	return &Stream{
		conn:   conn,
		reader: NewFrameReader(conn),
		writer: NewFrameWriter(conn),
	}
}

// ReadFrame reads one frame, honoring ctx. If ctx is cancelled while the
// read is in flight the connection is closed and every later call fails
// with ErrStreamPoisoned.
func (s *Stream) ReadFrame(ctx context.Context) (ams.Frame, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if s.poisoned.Load() {
		return ams.Frame{}, ErrStreamPoisoned
	}
	if err := ctx.Err(); err != nil {
		return ams.Frame{}, err
	}

	stop := s.watchCancel(ctx)
	f, err := s.reader.ReadFrame()
	cancelled := stop()

	if cancelled {
		return ams.Frame{}, context.Cause(ctx)
	}
	return f, err
}

// WriteFrame writes one frame, honoring ctx, with the same poisoning
// semantics as ReadFrame.
func (s *Stream) WriteFrame(ctx context.Context, f ams.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.poisoned.Load() {
		return ErrStreamPoisoned
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	stop := s.watchCancel(ctx)
	err := s.writer.WriteFrame(f)
	cancelled := stop()

	if cancelled {
		return context.Cause(ctx)
	}
	return err
}

// Close closes the underlying connection. The stream is unusable afterwards.
func (s *Stream) Close() error {
	s.poisoned.Store(true)
	return s.conn.Close()
}

// watchCancel arranges for ctx cancellation to close the connection while
// one blocking operation is in flight. The returned stop function tears the
// watcher down and reports whether cancellation fired.
func (s *Stream) watchCancel(ctx context.Context) (stop func() bool) {
	done := make(chan struct{})
	var fired atomic.Bool
	go func() {
		select {
		case <-ctx.Done():
			fired.Store(true)
			s.poisoned.Store(true)
			s.conn.Close()
		case <-done:
		}
	}()
	return func() bool {
		close(done)
		return fired.Load()
	}
}
