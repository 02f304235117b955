package protocol

import (
	"hash/crc32"

	"github.com/sigurn/crc16"
)

// ChecksumMask is the 16-bit mask used in checksum calculations
const ChecksumMask = 0xFFFF

// ChecksumMode selects the 16-bit packet checksum algorithm.
// It is taken from the checksum type byte of the image header.
type ChecksumMode byte

const (
	// ChecksumSum uses basic summation: sum all bytes, then 2's complement
	ChecksumSum ChecksumMode = 0x00

	// ChecksumCRC16 uses CRC-16-CCITT (X-25 variant) with swapped output bytes
	ChecksumCRC16 ChecksumMode = 0x01
)

// ChecksumModeFromType maps an image header checksum type to a mode.
// Any value other than 1 selects summation.
func ChecksumModeFromType(t byte) ChecksumMode {
	if ChecksumMode(t) == ChecksumCRC16 {
		return ChecksumCRC16
	}
	return ChecksumSum
}

func (m ChecksumMode) String() string {
	if m == ChecksumCRC16 {
		return "crc16"
	}
	return "sum"
}

var (
	crc16Table  = crc16.MakeTable(crc16.CRC16_X_25)
	crc32cTable = crc32.MakeTable(crc32.Castagnoli)
)

// Sum16 computes the two's complement of the 16-bit byte sum.
func Sum16(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return 1 + (ChecksumMask ^ sum)
}

// CRC16 computes the reflected CRC-16-CCITT of data (initial value 0xFFFF,
// final complement) and returns it with its two bytes exchanged, which is
// the order the bootloader expects on the wire.
func CRC16(data []byte) uint16 {
	crc := crc16.Checksum(data, crc16Table)
	return crc<<8 | crc>>8
}

// Checksum16 computes the packet checksum of data for the given mode.
func Checksum16(data []byte, mode ChecksumMode) uint16 {
	if mode == ChecksumCRC16 {
		return CRC16(data)
	}
	return Sum16(data)
}

// CRC32C computes the Castagnoli CRC-32 used to protect a whole data row
// in program and verify commands.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// RowChecksum computes the 8-bit wrapping sum of a row's data.
func RowChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
