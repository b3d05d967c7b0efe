package cancomm

// Bus sends and receives frames without blocking. *Context implements Bus;
// NewLoggedBus decorates one.
type Bus interface {
	// Transmit makes one attempt to send a frame and returns its timestamp
	// in microseconds since connect.
	Transmit(id uint32, extended bool, data []byte, flags Flags) (uint64, error)

	// Receive returns the next queued frame or ErrNoFrame.
	Receive() (Frame, error)
}

var _ Bus = (*Context)(nil)
