package cancomm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Context is one CAN communication session. It owns at most one socket and
// the device list from the last BuildDeviceList call.
//
// All methods are safe for concurrent use; calls are serialized internally.
// Nothing blocks: Receive returns ErrNoFrame when no frame is queued and
// Transmit makes exactly one write attempt.
type Context struct {
	mu       sync.Mutex
	backend  Backend
	logger   zerolog.Logger
	metrics  *Metrics
	sock     Socket // nil when disconnected
	fd       bool
	device   string
	start    time.Time
	devices  []DeviceName
	released bool
}

// Option configures a Context.
type Option func(*Context)

// WithBackend selects the socket backend. Defaults to DefaultBackend().
func WithBackend(b Backend) Option {
	return func(c *Context) { c.backend = b }
}

// WithLogger sets the logger for connection events. Defaults to a no-op
// logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithMetrics records frame counters into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Context) { c.metrics = m }
}

// New creates a disconnected Context with an empty device list.
func New(opts ...Option) *Context {
	c := &Context{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.backend == nil {
		c.backend = DefaultBackend()
	}
	return c
}

// Close disconnects and releases the Context. Later calls to Connect return
// ErrClosed.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.disconnectLocked()
	c.released = true
	c.devices = nil
	return err
}

// Connect opens a raw CAN socket bound to the named interface (e.g. "can0").
// An existing connection is closed first.
//
// CAN FD is used when the interface MTU is CANFD_MTU and the kernel accepts
// CAN_RAW_FD_FRAMES; otherwise the session quietly stays on classic CAN. Use
// FD to find out which one was negotiated. The socket subscribes to all
// error frame classes; if the kernel refuses, Connect still succeeds.
func (c *Context) Connect(name string) error {
	if !validDeviceName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrClosed
	}
	_ = c.disconnectLocked()

	c.start = time.Now()
	sock, err := c.backend.Open()
	if err != nil {
		return fmt.Errorf("cancomm: connect %s: %w", name, err)
	}

	fd := false
	mtu, err := sock.MTU(name)
	switch {
	case err != nil:
		c.logger.Debug().Err(err).Str("device", name).Msg("mtu query failed, using classic CAN")
	case mtu == canfdFrameSize:
		fd = true
	case mtu != canFrameSize:
		c.logger.Debug().Int("mtu", mtu).Str("device", name).Msg("unrecognized mtu, using classic CAN")
	}
	if fd {
		if err := sock.EnableFD(); err != nil {
			c.logger.Warn().Err(err).Str("device", name).Msg("CAN FD rejected by kernel, using classic CAN")
			c.metrics.downgraded()
			fd = false
		}
	}

	if err := sock.EnableErrors(); err != nil {
		c.logger.Warn().Err(err).Str("device", name).Msg("error filter rejected, error frames will not be received")
	}

	if err := sock.SetNonblock(); err != nil {
		_ = sock.Close()
		return fmt.Errorf("cancomm: connect %s: set nonblock: %w", name, err)
	}
	if err := sock.Bind(name); err != nil {
		_ = sock.Close()
		return fmt.Errorf("cancomm: connect %s: bind: %w", name, err)
	}

	c.sock = sock
	c.fd = fd
	c.device = name
	c.logger.Debug().Str("device", name).Bool("fd", fd).Msg("connected")
	return nil
}

// Disconnect closes the socket. It is a no-op when not connected. The device
// list and timestamp origin are kept.
func (c *Context) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectLocked()
}

func (c *Context) disconnectLocked() error {
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	c.fd = false
	c.logger.Debug().Str("device", c.device).Msg("disconnected")
	c.device = ""
	return err
}

// Connected reports whether the Context holds a bound socket.
func (c *Context) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil
}

// FD reports whether CAN FD was negotiated for the current connection.
func (c *Context) FD() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil && c.fd
}

// Device returns the interface name of the current connection, or "".
func (c *Context) Device() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// Transmit sends one frame and returns the transmit time in microseconds
// since Connect.
//
// The frame goes out as CAN FD, with bit rate switching, only when FD was
// negotiated and flags contains FlagFD. CAN FD cannot carry every length, so
// the payload is zero-padded up to NormalizeLen(len(data)).
func (c *Context) Transmit(id uint32, extended bool, data []byte, flags Flags) (uint64, error) {
	if len(data) > MaxFDDataLen {
		return 0, ErrInvalidLen
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return 0, ErrNotConnected
	}

	fd := c.fd && flags&FlagFD != 0
	maxLen, size := MaxDataLen, canFrameSize
	if fd {
		maxLen, size = MaxFDDataLen, canfdFrameSize
	}
	if len(data) > maxLen {
		return 0, ErrInvalidLen
	}
	if err := validateID(id, extended); err != nil {
		return 0, err
	}

	w := wireFrame{canID: id, len: NormalizeLen(len(data))}
	if extended {
		w.canID |= canEffFlag
	}
	if fd {
		w.flags = canfdBRS | canfdFDF
	}
	copy(w.data[:], data)

	var buf [canfdFrameSize]byte
	encodeWire(buf[:size], &w)
	n, err := c.sock.Write(buf[:size])
	if err != nil {
		c.metrics.sendFailed()
		return 0, fmt.Errorf("cancomm: transmit: %w", err)
	}
	if n != size {
		c.metrics.sendFailed()
		return 0, ErrShortWrite
	}
	c.metrics.sent(fd)
	return uint64(time.Since(c.start).Microseconds()), nil
}

// TransmitFrame sends f using its ID, Extended, payload and FlagFD.
func (c *Context) TransmitFrame(f Frame) (uint64, error) {
	if int(f.Len) > MaxFDDataLen {
		return 0, ErrInvalidLen
	}
	return c.Transmit(f.ID, f.Extended, f.Payload(), f.Flags)
}

// Receive returns the next queued frame. It returns ErrNoFrame right away
// when nothing is queued, when the read had an unexpected size, or when the
// frame was a remote request, which is dropped.
//
// Length and data are reported as the kernel delivered them. Error frames
// come back with FlagError set and ID, Extended and Len cleared.
func (c *Context) Receive() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return Frame{}, ErrNotConnected
	}

	var buf [canfdFrameSize]byte
	n, at, err := c.sock.Read(buf[:])
	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return Frame{}, ErrNoFrame
		}
		return Frame{}, fmt.Errorf("cancomm: receive: %w", err)
	}
	if n != canFrameSize && n != canfdFrameSize {
		c.metrics.dropped()
		return Frame{}, ErrNoFrame
	}

	w := decodeWire(buf[:n])
	if w.canID&canRtrFlag != 0 {
		c.metrics.dropped()
		return Frame{}, ErrNoFrame
	}

	var f Frame
	f.Timestamp = c.since(at)
	if w.canID&canErrFlag != 0 {
		f.Flags = FlagError
		copy(f.Data[:MaxDataLen], w.data[:MaxDataLen])
		c.metrics.got(&f)
		return f, nil
	}
	f.Extended = w.canID&canEffFlag != 0
	if f.Extended {
		f.ID = w.canID & canEffMask
	} else {
		f.ID = w.canID & canSffMask
	}
	if n == canfdFrameSize {
		f.Flags |= FlagFD
	}
	f.Len = w.len
	f.Data = w.data
	c.metrics.got(&f)
	return f, nil
}

// since converts a kernel timestamp to microseconds after connect.
func (c *Context) since(at time.Time) uint64 {
	if at.IsZero() {
		at = time.Now()
	}
	d := at.Sub(c.start)
	if d < 0 {
		return 0
	}
	return uint64(d.Microseconds())
}
