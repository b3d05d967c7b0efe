// Command libcancomm builds cancomm as a C shared library:
//
//	go build -buildmode=c-shared -o libcancomm.so ./cmd/libcancomm
//
// Contexts are opaque uintptr_t handles. Every function tolerates unknown
// handles and NULL pointers by reporting failure (0) instead of aborting.
package main

/*
#include <stdint.h>
#include <stdlib.h>

#define CANCOMM_TRUE              (1U)
#define CANCOMM_FALSE             (0U)
#define CANCOMM_FLAG_CANFD_MSG    (0x01U)
#define CANCOMM_FLAG_CANERR_MSG   (0x02U)
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/notnil/cancomm"
	"github.com/notnil/cancomm/internal/handle"
)

// session pairs a Context with the C copies of its device names, which must
// outlive the call that returned them.
type session struct {
	ctx *cancomm.Context

	mu    sync.Mutex
	names nameList[*C.char]
}

func newSession() *session {
	return &session{
		ctx: cancomm.New(),
		names: nameList[*C.char]{
			alloc: func(s string) *C.char { return C.CString(s) },
			free:  func(p *C.char) { C.free(unsafe.Pointer(p)) },
		},
	}
}

var sessions handle.Table[*session]

func lookup(h C.uintptr_t) (*session, bool) {
	return sessions.Get(uintptr(h))
}

//export cancomm_new
func cancomm_new() C.uintptr_t {
	return C.uintptr_t(sessions.Put(newSession()))
}

//export cancomm_free
func cancomm_free(h C.uintptr_t) {
	s, ok := sessions.Delete(uintptr(h))
	if !ok {
		return
	}
	_ = s.ctx.Close()
	s.mu.Lock()
	s.names.release()
	s.mu.Unlock()
}

//export cancomm_connect
func cancomm_connect(h C.uintptr_t, device *C.char) C.uint8_t {
	s, ok := lookup(h)
	if !ok || device == nil {
		return C.CANCOMM_FALSE
	}
	return C.uint8_t(boolByte(s.ctx.Connect(C.GoString(device)) == nil))
}

//export cancomm_disconnect
func cancomm_disconnect(h C.uintptr_t) {
	if s, ok := lookup(h); ok {
		_ = s.ctx.Disconnect()
	}
}

//export cancomm_transmit
func cancomm_transmit(h C.uintptr_t, id C.uint32_t, ext C.uint8_t, length C.uint8_t, data *C.uint8_t, flags C.uint8_t, timestamp *C.uint64_t) C.uint8_t {
	s, ok := lookup(h)
	if !ok || !validPayload(uint8(length), data != nil) {
		return C.CANCOMM_FALSE
	}
	var payload []byte
	if length > 0 {
		payload = C.GoBytes(unsafe.Pointer(data), C.int(length))
	}
	ts, ok := transmit(s.ctx, uint32(id), uint8(ext), payload, uint8(flags))
	if !ok {
		return C.CANCOMM_FALSE
	}
	if timestamp != nil {
		*timestamp = C.uint64_t(ts)
	}
	return C.CANCOMM_TRUE
}

// cancomm_receive writes one frame into the out parameters. data must have
// room for 64 bytes. It returns 0 when no frame is available or on error.
//
//export cancomm_receive
func cancomm_receive(h C.uintptr_t, id *C.uint32_t, ext *C.uint8_t, length *C.uint8_t, data *C.uint8_t, flags *C.uint8_t, timestamp *C.uint64_t) C.uint8_t {
	s, ok := lookup(h)
	if !ok || id == nil || ext == nil || length == nil || data == nil || flags == nil || timestamp == nil {
		return C.CANCOMM_FALSE
	}
	f, ok := receive(s.ctx)
	if !ok {
		return C.CANCOMM_FALSE
	}
	*id = C.uint32_t(f.id)
	*ext = C.uint8_t(f.ext)
	*length = C.uint8_t(f.length)
	*flags = C.uint8_t(f.flags)
	*timestamp = C.uint64_t(f.timestamp)
	if len(f.data) > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(data)), len(f.data)), f.data)
	}
	return C.CANCOMM_TRUE
}

// cancomm_devices_buildlist returns the number of CAN devices found, capped
// at 255. Zero also means enumeration failed.
//
//export cancomm_devices_buildlist
func cancomm_devices_buildlist(h C.uintptr_t) C.uint8_t {
	s, ok := lookup(h)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.BuildDeviceList()
	return C.uint8_t(s.names.rebuild(s.ctx.Devices()))
}

// cancomm_devices_name returns the device name at idx, or NULL. The string
// stays valid until the next cancomm_devices_buildlist or cancomm_free.
//
//export cancomm_devices_name
func cancomm_devices_name(h C.uintptr_t, idx C.uint8_t) *C.char {
	s, ok := lookup(h)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := s.names.at(uint8(idx))
	return p
}

func main() {}
