package cancomm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

// LoopbackBus is an in-memory Backend with virtual CAN interfaces, for tests
// and simulations. Sockets bound to the same interface receive each other's
// frames but not their own, like vcan with CAN_RAW_RECV_OWN_MSGS off.
type LoopbackBus struct {
	mu        sync.Mutex
	closed    bool
	rejectFD  bool
	rejectErr bool
	ifaces   map[string]*LoopbackInterface
	order    []string
	sockets  map[*loopSocket]struct{}
}

// LoopbackInterface describes one virtual interface.
type LoopbackInterface struct {
	Name string
	// MTU is 16 for classic CAN and 72 for CAN FD. Zero means 16.
	MTU int
	// HardwareType is the ARP hardware type. Zero means ARPHRD_CAN; use any
	// other value to model a non-CAN interface.
	HardwareType uint16
	Down         bool
}

// Per-socket receive queue depth; later frames are dropped like a full
// kernel receive buffer.
const loopQueueLen = 256

var (
	errLoopNotBound  = errors.New("loopback: socket not bound")
	errLoopFrameSize = errors.New("loopback: invalid frame size")
	errLoopDown      = errors.New("loopback: interface down")
)

// NewLoopbackBus creates a loopback bus with the given interfaces.
func NewLoopbackBus(ifaces ...LoopbackInterface) *LoopbackBus {
	b := &LoopbackBus{
		ifaces:  make(map[string]*LoopbackInterface),
		sockets: make(map[*loopSocket]struct{}),
	}
	for _, ifc := range ifaces {
		b.AddInterface(ifc)
	}
	return b
}

// AddInterface adds or replaces a virtual interface.
func (b *LoopbackBus) AddInterface(ifc LoopbackInterface) {
	if ifc.MTU == 0 {
		ifc.MTU = canFrameSize
	}
	if ifc.HardwareType == 0 {
		ifc.HardwareType = hardwareTypeCAN
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ifaces[ifc.Name]; !ok {
		b.order = append(b.order, ifc.Name)
	}
	b.ifaces[ifc.Name] = &ifc
}

// RemoveInterface removes a virtual interface. Sockets bound to it stop
// receiving.
func (b *LoopbackBus) RemoveInterface(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ifaces[name]; !ok {
		return
	}
	delete(b.ifaces, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// RejectFD makes EnableFD fail on every socket, as on kernels without CAN FD
// support.
func (b *LoopbackBus) RejectFD(reject bool) {
	b.mu.Lock()
	b.rejectFD = reject
	b.mu.Unlock()
}

// RejectErrorFilter makes EnableErrors fail on every socket.
func (b *LoopbackBus) RejectErrorFilter(reject bool) {
	b.mu.Lock()
	b.rejectErr = reject
	b.mu.Unlock()
}

// OpenSockets returns the number of sockets that have not been closed.
func (b *LoopbackBus) OpenSockets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sockets)
}

// Inject delivers raw wire bytes to every socket bound to the named
// interface, as if another node had sent them. raw may have any size, which
// allows feeding error frames and truncated reads.
func (b *LoopbackBus) Inject(name string, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.ifaces[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNoDevice, name)
	}
	b.deliverLocked(name, raw, nil)
	return nil
}

// InjectFrame encodes f in the kernel layout and injects it. FD frames are
// sent as canfd_frame, others as can_frame.
func (b *LoopbackBus) InjectFrame(name string, f Frame) error {
	w := wireFrame{canID: f.ID, len: f.Len, data: f.Data}
	if f.Extended {
		w.canID |= canEffFlag
	}
	if f.IsError() {
		w.canID = canErrFlag | f.ID
	}
	size := canFrameSize
	if f.IsFD() {
		size = canfdFrameSize
		w.flags = canfdFDF
	}
	buf := make([]byte, size)
	encodeWire(buf, &w)
	return b.Inject(name, buf)
}

// Close closes the bus and every socket opened from it.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.sockets {
		s.closed = true
		s.queue = nil
	}
	b.sockets = make(map[*loopSocket]struct{})
	return nil
}

// Open creates a socket attached to the bus.
func (b *LoopbackBus) Open() (Socket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &loopSocket{bus: b}
	b.sockets[s] = struct{}{}
	return s, nil
}

func (b *LoopbackBus) Interfaces() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	return append([]string(nil), b.order...), nil
}

func (b *LoopbackBus) HardwareType(name string) (uint16, error) {
	ifc, err := b.lookup(name)
	if err != nil {
		return 0, err
	}
	return ifc.HardwareType, nil
}

func (b *LoopbackBus) InterfaceUp(name string) (bool, error) {
	ifc, err := b.lookup(name)
	if err != nil {
		return false, err
	}
	return !ifc.Down, nil
}

func (b *LoopbackBus) lookup(name string) (LoopbackInterface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ifc, ok := b.ifaces[name]
	if !ok {
		return LoopbackInterface{}, fmt.Errorf("%w: %q", ErrNoDevice, name)
	}
	return *ifc, nil
}

// deliverLocked queues raw on every live socket bound to name except from.
// Sockets without FD enabled never see canfd_frame sized data, and error
// frames only reach sockets with the error filter set.
func (b *LoopbackBus) deliverLocked(name string, raw []byte, from *loopSocket) {
	now := time.Now()
	isErr := len(raw) >= 4 && binary.NativeEndian.Uint32(raw[0:4])&canErrFlag != 0
	for s := range b.sockets {
		if s == from || s.closed || s.iface != name {
			continue
		}
		if len(raw) == canfdFrameSize && !s.fd {
			continue
		}
		if isErr && !s.errs {
			continue
		}
		if len(s.queue) >= loopQueueLen {
			continue
		}
		s.queue = append(s.queue, loopEntry{data: append([]byte(nil), raw...), at: now})
	}
}

type loopEntry struct {
	data []byte
	at   time.Time
}

// loopSocket state is guarded by bus.mu.
type loopSocket struct {
	bus      *LoopbackBus
	iface    string
	fd       bool
	errs     bool
	nonblock bool
	closed   bool
	queue    []loopEntry
}

func (s *loopSocket) MTU(name string) (int, error) {
	ifc, err := s.bus.lookup(name)
	if err != nil {
		return 0, err
	}
	return ifc.MTU, nil
}

func (s *loopSocket) EnableFD() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.bus.rejectFD {
		return errors.New("loopback: CAN FD not supported")
	}
	s.fd = true
	return nil
}

func (s *loopSocket) EnableErrors() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.bus.rejectErr {
		return errors.New("loopback: error filter not supported")
	}
	s.errs = true
	return nil
}

func (s *loopSocket) SetNonblock() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.nonblock = true
	return nil
}

func (s *loopSocket) Bind(name string) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.bus.ifaces[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNoDevice, name)
	}
	s.iface = name
	return nil
}

// Read never blocks, even before SetNonblock.
func (s *loopSocket) Read(buf []byte) (int, time.Time, error) {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return 0, time.Time{}, ErrClosed
	}
	if len(s.queue) == 0 {
		return 0, time.Time{}, ErrWouldBlock
	}
	e := s.queue[0]
	s.queue[0] = loopEntry{}
	s.queue = s.queue[1:]
	return copy(buf, e.data), e.at, nil
}

func (s *loopSocket) Write(buf []byte) (int, error) {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.iface == "" {
		return 0, errLoopNotBound
	}
	ifc, ok := s.bus.ifaces[s.iface]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoDevice, s.iface)
	}
	if ifc.Down {
		return 0, errLoopDown
	}
	switch len(buf) {
	case canFrameSize:
	case canfdFrameSize:
		if !s.fd || ifc.MTU != canfdFrameSize {
			return 0, errLoopFrameSize
		}
	default:
		return 0, errLoopFrameSize
	}
	s.bus.deliverLocked(s.iface, buf, s)
	return len(buf), nil
}

func (s *loopSocket) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.queue = nil
	delete(s.bus.sockets, s)
	return nil
}
