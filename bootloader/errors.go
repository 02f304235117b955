package bootloader

import (
	"fmt"

	"github.com/moffa90/go-cyacd2/protocol"
)

// DeviceMismatchError indicates that the device silicon ID or revision
// doesn't match the image. It matches protocol.ErrDevice.
type DeviceMismatchError struct {
	ExpectedID  uint32
	ActualID    uint32
	ExpectedRev byte
	ActualRev   byte
}

func (e *DeviceMismatchError) Error() string {
	return fmt.Sprintf("device mismatch: image expects silicon ID 0x%08X rev 0x%02X, device has 0x%08X rev 0x%02X",
		e.ExpectedID, e.ExpectedRev, e.ActualID, e.ActualRev)
}

func (e *DeviceMismatchError) Unwrap() error { return protocol.ErrDevice }

// VerificationError indicates that the device reported the application
// checksum as invalid. It matches protocol.ErrChecksum.
type VerificationError struct {
	AppID byte
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("firmware verification failed: application %d checksum is invalid", e.AppID)
}

func (e *VerificationError) Unwrap() error { return protocol.ErrChecksum }

// RowError locates a failure at a data row of the image.
type RowError struct {
	Line    int
	Address uint32
	Err     error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (address 0x%08X): %v", e.Line, e.Address, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
