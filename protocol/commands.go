package protocol

import (
	"encoding/binary"
	"fmt"
)

// BuildEnterBootloaderCmd constructs an Enter Bootloader command frame.
//
// The payload is the low 32 bits of productID, little-endian. When bits
// 32..47 are set they follow as a 16-bit little-endian value:
//
//	[SOP][CMD][LEN_L][LEN_H][PRODUCT_ID(4)][PRODUCT_ID_EXT(2)?][CHECKSUM_L][CHECKSUM_H][EOP]
func BuildEnterBootloaderCmd(mode ChecksumMode, productID uint64) Packet {
	payload := make([]byte, 4, 6)
	binary.LittleEndian.PutUint32(payload, uint32(productID))
	if ext := uint16(productID >> 32); ext != 0 {
		payload = binary.LittleEndian.AppendUint16(payload, ext)
	}
	return BuildCommand(mode, CmdEnterBootloader, payload)
}

// BuildExitBootloaderCmd constructs an Exit Bootloader command frame.
// The device resets on receipt, so no response follows.
func BuildExitBootloaderCmd(mode ChecksumMode) Packet {
	return BuildCommand(mode, CmdExitBootloader, nil)
}

// BuildSyncBootloaderCmd constructs a Sync Bootloader command frame.
func BuildSyncBootloaderCmd(mode ChecksumMode) Packet {
	return BuildCommand(mode, CmdSyncBootloader, nil)
}

// BuildSendDataCmd constructs a Send Data command frame.
// The data is buffered by the bootloader and consumed by the next
// program or verify command.
func BuildSendDataCmd(mode ChecksumMode, data []byte) Packet {
	return BuildCommand(mode, CmdSendData, data)
}

// BuildSendDataNoResponseCmd is BuildSendDataCmd for bootloaders that do
// not acknowledge intermediate chunks.
func BuildSendDataNoResponseCmd(mode ChecksumMode, data []byte) Packet {
	return BuildCommand(mode, CmdSendDataNoResponse, data)
}

// BuildProgramDataCmd constructs a Program Data command frame.
//
// crc is the CRC32C of the whole row, including any data already sent
// with Send Data commands:
//
//	[SOP][CMD][LEN_L][LEN_H][ADDR(4)][CRC32C(4)][DATA...][CHECKSUM_L][CHECKSUM_H][EOP]
func BuildProgramDataCmd(mode ChecksumMode, address, crc uint32, data []byte) Packet {
	return BuildCommand(mode, CmdProgramData, addressedPayload(address, crc, data))
}

// BuildVerifyDataCmd constructs a Verify Data command frame. Layout as
// BuildProgramDataCmd.
func BuildVerifyDataCmd(mode ChecksumMode, address, crc uint32, data []byte) Packet {
	return BuildCommand(mode, CmdVerifyData, addressedPayload(address, crc, data))
}

func addressedPayload(address, crc uint32, data []byte) []byte {
	payload := make([]byte, ProgramDataOverhead, ProgramDataOverhead+len(data))
	binary.LittleEndian.PutUint32(payload[0:4], address)
	binary.LittleEndian.PutUint32(payload[4:8], crc)
	return append(payload, data...)
}

// BuildEraseDataCmd constructs an Erase Data command frame for the flash
// row containing address.
func BuildEraseDataCmd(mode ChecksumMode, address uint32) Packet {
	payload := binary.LittleEndian.AppendUint32(nil, address)
	return BuildCommand(mode, CmdEraseData, payload)
}

// BuildVerifyChecksumCmd constructs a Verify Application Checksum command frame.
func BuildVerifyChecksumCmd(mode ChecksumMode, appID byte) Packet {
	return BuildCommand(mode, CmdVerifyChecksum, []byte{appID})
}

// BuildSetMetadataCmd constructs a Set Application Metadata command frame:
//
//	[SOP][CMD][LEN_L][LEN_H][APP_ID][START(4)][SIZE(4)][CHECKSUM_L][CHECKSUM_H][EOP]
func BuildSetMetadataCmd(mode ChecksumMode, appID byte, start, size uint32) Packet {
	payload := make([]byte, 9)
	payload[0] = appID
	binary.LittleEndian.PutUint32(payload[1:5], start)
	binary.LittleEndian.PutUint32(payload[5:9], size)
	return BuildCommand(mode, CmdSetMetadata, payload)
}

// BuildSetEncryptionIVCmd constructs a Set EIV command frame.
// The vector must be empty, 8 or 16 bytes.
func BuildSetEncryptionIVCmd(mode ChecksumMode, iv []byte) (Packet, error) {
	switch len(iv) {
	case EIVLengthNone, EIVLengthShort, EIVLengthStrong:
	default:
		return nil, NewError(CodeLength, "build set EIV", "vector must be 0, 8 or 16 bytes, got %d", len(iv))
	}
	return BuildCommand(mode, CmdSetEncryptionIV, iv), nil
}

// BuildCustomCmd frames an arbitrary command byte and payload.
func BuildCustomCmd(mode ChecksumMode, cmd byte, payload []byte) (Packet, error) {
	if len(payload) > MaxDataSize {
		return nil, NewError(CodeLength, fmt.Sprintf("build command 0x%02X", cmd), "payload length %d exceeds maximum %d bytes", len(payload), MaxDataSize)
	}
	return BuildCommand(mode, cmd, payload), nil
}
