package cancomm

import "errors"

var (
	ErrNotConnected = errors.New("cancomm: not connected")
	ErrClosed       = errors.New("cancomm: closed")
	ErrInvalidName  = errors.New("cancomm: invalid device name")
	ErrInvalidID    = errors.New("cancomm: invalid identifier")
	ErrInvalidLen   = errors.New("cancomm: invalid data length")
	ErrShortWrite   = errors.New("cancomm: short write")
	ErrUnsupported  = errors.New("cancomm: unsupported platform")
	ErrNoDevice     = errors.New("cancomm: no such device")

	// ErrNoFrame is returned by Receive when no frame is queued. It is not a
	// failure; poll again later.
	ErrNoFrame = errors.New("cancomm: no frame available")

	// ErrWouldBlock is returned by Socket.Read when the socket has nothing
	// queued.
	ErrWouldBlock = errors.New("cancomm: operation would block")
)
