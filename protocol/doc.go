// Package protocol implements the packet layer of the cyacd2 bootloader
// protocol used by Cypress/Infineon PSoC devices.
//
// This package provides functions to build command frames, check response
// frames and compute the checksums the protocol relies on.
//
// # Protocol Overview
//
// The bootloader protocol uses a packet-based communication structure:
//
//	Command:  [SOP][CMD][LEN_L][LEN_H][DATA...][CHECKSUM_L][CHECKSUM_H][EOP]
//	Response: [SOP][STATUS][LEN_L][LEN_H][DATA...][CHECKSUM_L][CHECKSUM_H][EOP]
//
// Where:
//   - SOP = Start of Packet (0x01)
//   - EOP = End of Packet (0x17)
//   - LEN = 16-bit data length (little-endian)
//   - CHECKSUM = 16-bit checksum (little-endian) over SOP through DATA
//
// The checksum is either the two's complement of the byte sum or a
// byte-swapped CRC-16-CCITT, selected per session by the image header:
//
//	mode := protocol.ChecksumModeFromType(header.ChecksumType)
//
// # Command Builders
//
// Use the Build* functions to create command frames:
//
//	frame := protocol.BuildEnterBootloaderCmd(mode, productID)
//	frame := protocol.BuildProgramDataCmd(mode, addr, protocol.CRC32C(row), tail)
//	// ... etc
//
// # Response Parsers
//
// Responses are read with a known size and checked with ParseDefault or a
// command specific parser:
//
//	status, err := protocol.ParseDefault(frame, protocol.ResponseSizeDefault)
//	info, status, err := protocol.ParseEnterBootloader(frame, protocol.ResponseSizeEnterBootloader)
//
// # Error Handling
//
// Host side failures are *Error values that match the Err* sentinels with
// errors.Is. A non-success device status is a *ProtocolError and a
// transport failure is a *CommError. CodeOf folds any of them into a
// single numeric Code:
//
//	if errors.Is(err, protocol.ErrChecksum) {
//	    // application checksum did not verify
//	}
//	fmt.Printf("0x%04X\n", uint16(protocol.CodeOf(err)))
package protocol
