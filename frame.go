package cancomm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Flags describe how a frame travels on the bus.
type Flags uint8

const (
	// FlagFD marks a frame that uses CAN FD framing.
	FlagFD Flags = 1 << 0
	// FlagError marks an error notification from the kernel. It is only set
	// on received frames and ignored on transmit.
	FlagError Flags = 1 << 1
)

// Payload limits.
const (
	MaxDataLen   = 8
	MaxFDDataLen = 64
)

// Frame represents a classic CAN or CAN FD frame.
//
// Timestamp is in microseconds relative to the moment the owning Context
// connected. Error notifications have ID 0, Extended false and Len 0; the
// kernel's error detail bytes stay in Data.
type Frame struct {
	ID        uint32 // 11-bit (std) or 29-bit (ext)
	Extended  bool   // true for 29-bit identifier
	Len       uint8  // 0..8 classic, 0..64 FD
	Data      [MaxFDDataLen]byte
	Flags     Flags
	Timestamp uint64
}

// Validation limits.
const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
)

// SocketCAN can_id flags and masks (<linux/can.h>).
const (
	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canErrFlag = 0x20000000
	canEffMask = 0x1FFFFFFF
	canSffMask = 0x7FF
)

// canfd_frame flags.
const (
	canfdBRS = 0x01 // bit rate switch
	canfdFDF = 0x04 // FD frame
)

// Wire sizes, equal to CAN_MTU and CANFD_MTU.
const (
	canFrameSize   = 16
	canfdFrameSize = 72
)

// IsFD reports whether the frame uses CAN FD framing.
func (f Frame) IsFD() bool { return f.Flags&FlagFD != 0 }

// IsError reports whether the frame is an error notification.
func (f Frame) IsError() bool { return f.Flags&FlagError != 0 }

// Payload returns the valid data bytes.
func (f *Frame) Payload() []byte {
	n := int(f.Len)
	if n > MaxFDDataLen {
		n = MaxFDDataLen
	}
	return f.Data[:n]
}

// Validate returns an error if the frame cannot be transmitted.
func (f Frame) Validate() error {
	limit := uint8(MaxDataLen)
	if f.IsFD() {
		limit = MaxFDDataLen
	}
	if f.Len > limit {
		return ErrInvalidLen
	}
	return validateID(f.ID, f.Extended)
}

func validateID(id uint32, extended bool) error {
	if extended {
		if id > maxExtID {
			return ErrInvalidID
		}
	} else if id > maxStdID {
		return ErrInvalidID
	}
	return nil
}

// MustFrame constructs a classic or FD frame and panics if invalid.
// Convenience for examples and tests.
func MustFrame(id uint32, data []byte) Frame {
	var f Frame
	f.ID = id
	if id > maxStdID {
		f.Extended = true
	}
	if len(data) > MaxFDDataLen {
		panic(ErrInvalidLen)
	}
	if len(data) > MaxDataLen {
		f.Flags |= FlagFD
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		panic(err)
	}
	return f
}

// String renders the frame in candump style, e.g. "123 [2] DE AD" or
// "1ABCDEFF [##12] 01 02 ...". Error frames render as "ERROR".
func (f Frame) String() string {
	if f.IsError() {
		return "ERROR"
	}
	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	if f.IsFD() {
		fmt.Fprintf(&b, " [##%d]", f.Len)
	} else {
		fmt.Fprintf(&b, " [%d]", f.Len)
	}
	for _, c := range f.Payload() {
		fmt.Fprintf(&b, " %02X", c)
	}
	return b.String()
}

// wireFrame is the decoded view of struct can_frame / struct canfd_frame.
//
// Layout (host byte order for can_id):
//
//	0..3  can_id (with EFF/RTR/ERR flags)
//	4     len
//	5     flags (FD) / __pad (classic)
//	6..7  reserved
//	8..   data, 8 bytes classic or 64 bytes FD
type wireFrame struct {
	canID uint32
	len   uint8
	flags uint8
	data  [MaxFDDataLen]byte
}

// encodeWire writes w into buf, which must be canFrameSize or
// canfdFrameSize long.
func encodeWire(buf []byte, w *wireFrame) {
	clear(buf)
	binary.NativeEndian.PutUint32(buf[0:4], w.canID)
	buf[4] = w.len
	if len(buf) == canfdFrameSize {
		buf[5] = w.flags
	}
	copy(buf[8:], w.data[:len(buf)-8])
}

// decodeWire parses a frame read from the kernel. buf must hold at least
// canFrameSize bytes.
func decodeWire(buf []byte) wireFrame {
	var w wireFrame
	w.canID = binary.NativeEndian.Uint32(buf[0:4])
	w.len = buf[4]
	if len(buf) >= canfdFrameSize {
		w.flags = buf[5]
	}
	copy(w.data[:], buf[8:])
	return w
}
