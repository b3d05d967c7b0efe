//go:build linux

package cancomm

import (
	"errors"
	"fmt"
	"net"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SocketCAN implements Backend over Linux raw CAN sockets.
type SocketCAN struct{}

func defaultBackend() Backend { return SocketCAN{} }

// Open creates a raw CAN socket: AF_CAN, SOCK_RAW, CAN_RAW.
func (SocketCAN) Open() (Socket, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	return &rawSocket{fd: fd}, nil
}

// Interfaces lists every network interface, ordered by index.
func (SocketCAN) Interfaces() ([]string, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ifs))
	for _, ifc := range ifs {
		names = append(names, ifc.Name)
	}
	return names, nil
}

func (SocketCAN) HardwareType(name string) (uint16, error) {
	return getHardwareType(name)
}

func (SocketCAN) InterfaceUp(name string) (bool, error) {
	return isInterfaceUp(name)
}

type rawSocket struct {
	fd int
}

func (s *rawSocket) MTU(name string) (int, error) {
	return getInterfaceMTU(s.fd, name)
}

func (s *rawSocket) EnableFD() error {
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 1)
}

func (s *rawSocket) EnableErrors() error {
	return unix.SetsockoptInt(s.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, unix.CAN_ERR_MASK)
}

func (s *rawSocket) SetNonblock() error {
	return unix.SetNonblock(s.fd, true)
}

// Bind binds to the interface index looked up via net.InterfaceByName.
func (s *rawSocket) Bind(name string) error {
	netIf, err := net.InterfaceByName(name)
	if err != nil {
		return err
	}
	return unix.Bind(s.fd, &unix.SockaddrCAN{Ifindex: netIf.Index})
}

func (s *rawSocket) Read(buf []byte) (int, time.Time, error) {
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, time.Time{}, ErrWouldBlock
		}
		return 0, time.Time{}, err
	}
	return n, s.stamp(), nil
}

// stamp returns the kernel receive time of the last frame read. Falls back
// to the current time when SIOCGSTAMP is not available.
func (s *rawSocket) stamp() time.Time {
	var tv unix.Timeval
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(s.fd), uintptr(siocGStamp), uintptr(unsafe.Pointer(&tv)))
	if errno != 0 {
		return time.Now()
	}
	return time.Unix(tv.Unix())
}

func (s *rawSocket) Write(buf []byte) (int, error) {
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *rawSocket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
