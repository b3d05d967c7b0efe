package cancomm

import (
	"bytes"
	"strings"
)

// deviceNameSize is IFNAMSIZ, including the terminating NUL.
const deviceNameSize = 16

// DeviceName is a fixed-width, NUL-padded interface name.
type DeviceName [deviceNameSize]byte

func makeDeviceName(s string) DeviceName {
	var d DeviceName
	copy(d[:deviceNameSize-1], s)
	return d
}

func (d DeviceName) String() string {
	if i := bytes.IndexByte(d[:], 0); i >= 0 {
		return string(d[:i])
	}
	return string(d[:])
}

func validDeviceName(name string) bool {
	return len(name) > 0 && len(name) < deviceNameSize && strings.IndexByte(name, 0) < 0
}

// BuildDeviceList replaces the device list with every interface that has
// the CAN hardware type, in the order the OS reports them, and returns the
// count. A failed enumeration also returns 0; the two cases are not
// distinguished.
func (c *Context) BuildDeviceList() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = c.devices[:0]
	names, err := c.backend.Interfaces()
	if err != nil {
		c.logger.Debug().Err(err).Msg("interface enumeration failed")
		return 0
	}
	for _, name := range names {
		if isDeviceCapable(c.backend, name) {
			c.devices = append(c.devices, makeDeviceName(name))
		}
	}
	return len(c.devices)
}

// DeviceName returns the name at index i of the last BuildDeviceList call.
// ok is false when i is out of range, including before the first call.
func (c *Context) DeviceName(i int) (name string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.devices) {
		return "", false
	}
	return c.devices[i].String(), true
}

// Devices returns a copy of the device list.
func (c *Context) Devices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.devices))
	for i, d := range c.devices {
		out[i] = d.String()
	}
	return out
}

// IsDeviceCapable reports whether the named interface is a CAN interface on
// the Context's backend.
func (c *Context) IsDeviceCapable(name string) bool {
	return isDeviceCapable(c.backend, name)
}

// IsDeviceCapable reports whether the named interface is a CAN interface on
// the default backend.
func IsDeviceCapable(name string) bool {
	return isDeviceCapable(DefaultBackend(), name)
}

func isDeviceCapable(b Backend, name string) bool {
	if !validDeviceName(name) {
		return false
	}
	hw, err := b.HardwareType(name)
	return err == nil && hw == hardwareTypeCAN
}
