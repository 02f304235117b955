package protocol

import "fmt"

// DeviceInfo contains bootloader device identification information.
// Returned by the Enter Bootloader command.
type DeviceInfo struct {
	// SiliconID is the device silicon ID (4 bytes)
	SiliconID uint32

	// SiliconRev is the silicon revision (1 byte)
	SiliconRev byte

	// BootloaderVersion is the 24-bit bootloader version
	BootloaderVersion uint32
}

// VersionString formats the bootloader version as major.minor.patch,
// with the patch level in the low byte.
func (d DeviceInfo) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", byte(d.BootloaderVersion>>16), byte(d.BootloaderVersion>>8), byte(d.BootloaderVersion))
}
