//go:build linux

package cancomm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Linux network interface queries. The probing socket is a plain AF_INET
// datagram socket so these work even when the can module is not loaded.

const (
	siocGStamp = 0x8906 // SIOCGSTAMP
	iffUp      = 0x1    // IFF_UP
)

func newIfreq(name string) (*unix.Ifreq, error) {
	if !validDeviceName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return unix.NewIfreq(name)
}

// getInterfaceMTU reads SIOCGIFMTU using the given socket.
func getInterfaceMTU(fd int, name string) (int, error) {
	ifr, err := newIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFMTU, ifr); err != nil {
		return 0, err
	}
	return int(ifr.Uint32()), nil
}

// getHardwareType returns the sa_family of the interface hardware address
// (SIOCGIFHWADDR).
func getHardwareType(name string) (uint16, error) {
	ifr, err := newIfreq(name)
	if err != nil {
		return 0, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFHWADDR, ifr); err != nil {
		return 0, err
	}
	return ifr.Uint16(), nil
}

// isInterfaceUp returns true if the interface has IFF_UP set.
func isInterfaceUp(name string) (bool, error) {
	ifr, err := newIfreq(name)
	if err != nil {
		return false, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return false, err
	}
	defer unix.Close(fd)
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return false, err
	}
	return ifr.Uint16()&iffUp != 0, nil
}
