//go:build linux

package transport

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// i2cSlave is the i2c-dev ioctl selecting the target address.
const i2cSlave = 0x0703

type devBus struct {
	fd int
}

func openI2CBus(path string) (i2cBus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &devBus{fd: fd}, nil
}

func (b *devBus) setAddress(addr uint16) error {
	return unix.IoctlSetInt(b.fd, i2cSlave, int(addr))
}

func (b *devBus) read(p []byte) error {
	n, err := unix.Read(b.fd, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short read: %d of %d bytes: %w", n, len(p), unix.EIO)
	}
	return nil
}

func (b *devBus) write(p []byte) error {
	n, err := unix.Write(b.fd, p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short write: %d of %d bytes: %w", n, len(p), unix.EIO)
	}
	return nil
}

func (b *devBus) close() error {
	return unix.Close(b.fd)
}

func isRetryableBusError(err error) bool {
	return errors.Is(err, unix.EIO) || errors.Is(err, unix.EREMOTEIO)
}
