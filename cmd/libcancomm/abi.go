package main

import (
	"github.com/notnil/cancomm"
)

// Flag bits and results shared with the C preamble in main.go.
const (
	abiTrue  = 1
	abiFalse = 0

	flagCANFDMsg  = 0x01
	flagCANErrMsg = 0x02

	maxDeviceCount = 255
)

// cFlags converts frame flags to the C flag bits.
func cFlags(f cancomm.Flags) uint8 {
	var out uint8
	if f&cancomm.FlagFD != 0 {
		out |= flagCANFDMsg
	}
	if f&cancomm.FlagError != 0 {
		out |= flagCANErrMsg
	}
	return out
}

// goFlags converts C transmit flags. The error bit is receive-only and is
// dropped.
func goFlags(f uint8) cancomm.Flags {
	var out cancomm.Flags
	if f&flagCANFDMsg != 0 {
		out |= cancomm.FlagFD
	}
	return out
}

func boolByte(b bool) uint8 {
	if b {
		return abiTrue
	}
	return abiFalse
}

// validPayload reports whether a C payload of length bytes can be read.
func validPayload(length uint8, haveData bool) bool {
	return length <= cancomm.MaxFDDataLen && (length == 0 || haveData)
}

// rxFrame is a received frame in the shape of the cancomm_receive out
// parameters.
type rxFrame struct {
	id        uint32
	ext       uint8
	length    uint8
	flags     uint8
	timestamp uint64
	data      []byte
}

// receive reads one frame from bus and packs it for the C caller.
func receive(bus cancomm.Bus) (rxFrame, bool) {
	f, err := bus.Receive()
	if err != nil {
		return rxFrame{}, false
	}
	return rxFrame{
		id:        f.ID,
		ext:       boolByte(f.Extended),
		length:    f.Len,
		flags:     cFlags(f.Flags),
		timestamp: f.Timestamp,
		data:      append([]byte(nil), f.Payload()...),
	}, true
}

// transmit sends one frame described by C arguments.
func transmit(bus cancomm.Bus, id uint32, ext uint8, payload []byte, flags uint8) (uint64, bool) {
	ts, err := bus.Transmit(id, ext != 0, payload, goFlags(flags))
	if err != nil {
		return 0, false
	}
	return ts, true
}

// nameList owns the per-handle copies of device names handed to C. T is
// *C.char in the library; alloc and free copy and release one name.
type nameList[T any] struct {
	alloc func(string) T
	free  func(T)
	names []T
}

// rebuild releases the previous names and stores copies of names. It
// returns the count, capped at maxDeviceCount.
func (l *nameList[T]) rebuild(names []string) uint8 {
	l.release()
	if len(names) > maxDeviceCount {
		names = names[:maxDeviceCount]
	}
	for _, n := range names {
		l.names = append(l.names, l.alloc(n))
	}
	return uint8(len(l.names))
}

// at returns the name at idx.
func (l *nameList[T]) at(idx uint8) (T, bool) {
	if int(idx) >= len(l.names) {
		var zero T
		return zero, false
	}
	return l.names[idx], true
}

func (l *nameList[T]) release() {
	for _, p := range l.names {
		l.free(p)
	}
	l.names = nil
}
