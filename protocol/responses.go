package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParseDefault checks a response that carries no payload and must report
// StatusSuccess. It returns the status byte alongside any error.
func ParseDefault(frame []byte, expectedSize int) (byte, error) {
	return parseGeneric("parse response", frame, 0, expectedSize, StatusSuccess)
}

// ParseCustom checks a response to a caller defined command that carries
// dataSize payload bytes and is expected to report expectedStatus.
func ParseCustom(frame []byte, dataSize, expectedSize int, expectedStatus byte) (byte, error) {
	return parseGeneric("parse custom response", frame, dataSize, expectedSize, expectedStatus)
}

// parseGeneric applies the structural checks shared by every response:
//
//	[SOP][STATUS][LEN_L][LEN_H][DATA...][CHECKSUM_L][CHECKSUM_H][EOP]
//
// The checks run in order: overall size, status, then markers and the
// declared length. The checksum is not verified here.
func parseGeneric(op string, frame []byte, dataSize, expectedSize int, expectedStatus byte) (byte, error) {
	cmdSize := dataSize + BaseCmdSize

	var status byte
	if len(frame) > 1 {
		status = frame[1]
	}

	if cmdSize != expectedSize {
		return status, NewError(CodeLength, op, "response of %d bytes, expected %d", cmdSize, expectedSize)
	}
	if len(frame) < cmdSize {
		return status, NewError(CodeLength, op, "got %d bytes, expected %d", len(frame), cmdSize)
	}

	if status != expectedStatus {
		if status == StatusSuccess {
			return status, NewError(CodeResponse, op, "device reported success, expected status 0x%02X", expectedStatus)
		}
		return status, &ProtocolError{Operation: op, StatusCode: status}
	}

	if frame[0] != StartOfPacket {
		return status, NewError(CodeData, op, "invalid start of packet: got 0x%02X, expected 0x%02X", frame[0], StartOfPacket)
	}
	if binary.LittleEndian.Uint16(frame[2:4]) != uint16(dataSize) {
		return status, NewError(CodeData, op, "declared length %d, expected %d", binary.LittleEndian.Uint16(frame[2:4]), dataSize)
	}
	if frame[cmdSize-1] != EndOfPacket {
		return status, NewError(CodeData, op, "invalid end of packet: got 0x%02X, expected 0x%02X", frame[cmdSize-1], EndOfPacket)
	}

	return status, nil
}

// ParseEnterBootloader parses the Enter Bootloader command response.
// Returns device identification information.
//
// Data format (EnterBootloaderDataSize bytes):
//
//	[SILICON_ID(4)][SILICON_REV(1)][BOOTLOADER_VER(3)]
func ParseEnterBootloader(frame []byte, size int) (*DeviceInfo, byte, error) {
	status, err := parseGeneric("enter bootloader", frame, EnterBootloaderDataSize, size, StatusSuccess)
	if err != nil {
		return nil, status, err
	}

	info := &DeviceInfo{
		SiliconID:         binary.LittleEndian.Uint32(frame[4:8]),
		SiliconRev:        frame[8],
		BootloaderVersion: uint32(frame[9]) | uint32(frame[10])<<8 | uint32(frame[11])<<16,
	}

	return info, status, nil
}

// ParseVerifyChecksum parses the Verify Application Checksum response.
//
// Data format (1 byte):
//   - Non-zero: application checksum is valid
//   - Zero: checksums do not match (application invalid)
func ParseVerifyChecksum(frame []byte, size int) (bool, byte, error) {
	status, err := parseGeneric("verify checksum", frame, 1, size, StatusSuccess)
	if err != nil {
		return false, status, err
	}
	return frame[4] != 0, status, nil
}

// TryParseStatus extracts the status byte of a response that failed a
// regular parse, for diagnostics. It trusts the frame only when the
// markers, declared length and checksum are all consistent and otherwise
// reports ErrUnknown.
func TryParseStatus(mode ChecksumMode, frame []byte) (byte, error) {
	if len(frame) < BaseCmdSize || frame[0] != StartOfPacket {
		return 0, &Error{Code: CodeUnknown, Op: "parse status", Msg: "no frame start"}
	}

	n := int(binary.LittleEndian.Uint16(frame[2:4]))
	if BaseCmdSize+n > len(frame) {
		return 0, &Error{Code: CodeUnknown, Op: "parse status", Msg: fmt.Sprintf("declared length %d exceeds %d received bytes", n, len(frame))}
	}
	if frame[6+n] != EndOfPacket {
		return 0, &Error{Code: CodeUnknown, Op: "parse status", Msg: "no frame end"}
	}
	if Checksum16(frame[:4+n], mode) != binary.LittleEndian.Uint16(frame[4+n:6+n]) {
		return 0, &Error{Code: CodeUnknown, Op: "parse status", Msg: "checksum mismatch"}
	}

	return frame[1], nil
}
