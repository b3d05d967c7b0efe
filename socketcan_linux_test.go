//go:build linux

package cancomm

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// These tests need a vcan0 interface:
//
//	ip link add dev vcan0 type vcan && ip link set vcan0 up
func requireVCAN(t *testing.T) {
	t.Helper()
	if _, err := net.InterfaceByName("vcan0"); err != nil {
		t.Skip("vcan0 not available")
	}
	if !IsDeviceCapable("vcan0") {
		t.Skip("vcan0 is not a CAN interface")
	}
}

func TestSocketCAN_RoundTrip(t *testing.T) {
	requireVCAN(t)
	a := New()
	b := New()
	defer a.Close()
	defer b.Close()
	if err := a.Connect("vcan0"); err != nil {
		t.Fatalf("connect a: %v", err)
	}
	if err := b.Connect("vcan0"); err != nil {
		t.Fatalf("connect b: %v", err)
	}

	cases := []struct {
		id       uint32
		extended bool
		data     []byte
	}{
		{0x123, false, []byte{0x01, 0x02, 0x55, 0xAA}},
		{0x123A5, true, []byte{0xFF}},
	}
	for _, tc := range cases {
		if _, err := a.Transmit(tc.id, tc.extended, tc.data, 0); err != nil {
			t.Fatalf("transmit %#x: %v", tc.id, err)
		}
		var f Frame
		var err error
		deadline := time.Now().Add(time.Second)
		for {
			f, err = b.Receive()
			if !errors.Is(err, ErrNoFrame) || time.Now().After(deadline) {
				break
			}
			time.Sleep(time.Millisecond)
		}
		if err != nil {
			t.Fatalf("receive %#x: %v", tc.id, err)
		}
		if f.ID != tc.id || f.Extended != tc.extended || !bytes.Equal(f.Payload(), tc.data) {
			t.Fatalf("got %+v", f)
		}
	}
}

func TestSocketCAN_ReceiveEmptyDoesNotBlock(t *testing.T) {
	requireVCAN(t)
	c := New()
	defer c.Close()
	if err := c.Connect("vcan0"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	start := time.Now()
	for i := 0; i < 100; i++ {
		if _, err := c.Receive(); err != nil && !errors.Is(err, ErrNoFrame) {
			t.Fatalf("receive: %v", err)
		}
	}
	if d := time.Since(start); d > time.Second {
		t.Fatalf("receive blocked for %s", d)
	}
}

func TestSocketCAN_DeviceList(t *testing.T) {
	requireVCAN(t)
	c := New()
	defer c.Close()
	n := c.BuildDeviceList()
	found := false
	for i := 0; i < n; i++ {
		name, ok := c.DeviceName(i)
		if !ok || name == "" {
			t.Fatalf("DeviceName(%d) empty", i)
		}
		found = found || name == "vcan0"
	}
	if !found {
		t.Fatalf("vcan0 missing from %v", c.Devices())
	}
	if _, ok := c.DeviceName(n); ok {
		t.Fatalf("DeviceName(%d) should be absent", n)
	}
}

func TestSocketCAN_OpenErrorNotPrefixed(t *testing.T) {
	s, err := SocketCAN{}.Open()
	if err == nil {
		_ = s.Close()
		t.Skip("CAN sockets are available on this host")
	}
	if strings.HasPrefix(err.Error(), "cancomm:") {
		t.Fatalf("open error carries the package prefix: %v", err)
	}
	c := New()
	defer c.Close()
	err = c.Connect("can0")
	if err == nil {
		t.Fatalf("connect should fail without CAN sockets")
	}
	if n := strings.Count(err.Error(), "cancomm:"); n != 1 {
		t.Fatalf("connect error %q has %d prefixes", err, n)
	}
}
