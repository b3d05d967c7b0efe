//go:build !linux

package cancomm

func defaultBackend() Backend { return unsupportedBackend{} }

type unsupportedBackend struct{}

func (unsupportedBackend) Open() (Socket, error) { return nil, ErrUnsupported }

func (unsupportedBackend) Interfaces() ([]string, error) { return nil, ErrUnsupported }

func (unsupportedBackend) HardwareType(string) (uint16, error) { return 0, ErrUnsupported }

func (unsupportedBackend) InterfaceUp(string) (bool, error) { return false, ErrUnsupported }
