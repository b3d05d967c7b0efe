package cancomm

import "time"

// Backend provides raw CAN sockets and interface discovery. SocketCAN is the
// default on Linux; LoopbackBus is an in-memory implementation.
type Backend interface {
	// Open creates an unbound raw CAN socket.
	Open() (Socket, error)

	// Interfaces returns the names of all network interfaces in OS order.
	Interfaces() ([]string, error)

	// HardwareType returns the ARP hardware type (sa_family of the hardware
	// address) of the named interface.
	HardwareType(name string) (uint16, error)

	// InterfaceUp reports whether the named interface is administratively up.
	InterfaceUp(name string) (bool, error)
}

// Socket is a raw CAN socket as used by Context. Implementations do not
// need to be safe for concurrent use.
type Socket interface {
	// MTU returns the maximum transfer unit of the named interface.
	MTU(name string) (int, error)

	// EnableFD allows CAN FD frames on the socket.
	EnableFD() error

	// EnableErrors subscribes the socket to every error frame class. Raw
	// sockets start with an empty error mask and receive none.
	EnableErrors() error

	// SetNonblock switches the socket to non-blocking mode.
	SetNonblock() error

	// Bind restricts the socket to the named interface.
	Bind(name string) error

	// Read reads one frame into buf and reports the kernel capture time. It
	// returns ErrWouldBlock when nothing is queued.
	Read(buf []byte) (int, time.Time, error)

	// Write writes one frame.
	Write(buf []byte) (int, error)

	Close() error
}

// ARP hardware type of CAN interfaces (ARPHRD_CAN).
const hardwareTypeCAN = 280

// DefaultBackend returns the platform backend: SocketCAN on Linux, a backend
// that fails with ErrUnsupported elsewhere.
func DefaultBackend() Backend {
	return defaultBackend()
}
