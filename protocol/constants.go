package protocol

// Frame structure constants for the cyacd2 bootloader protocol.
const (
	// StartOfPacket is the frame start marker (0x01)
	StartOfPacket = 0x01

	// EndOfPacket is the frame end marker (0x17)
	EndOfPacket = 0x17

	// BaseCmdSize is the framing overhead of every packet:
	// SOP(1) + CMD/STATUS(1) + LEN(2) + CHECKSUM(2) + EOP(1)
	BaseCmdSize = 7

	// MaxCommandSize is the largest frame the protocol allows.
	MaxCommandSize = 4103

	// MaxDataSize is the largest payload a single frame can carry.
	MaxDataSize = MaxCommandSize - BaseCmdSize
)

// Command codes.
const (
	// CmdVerifyChecksum verifies the entire application checksum
	CmdVerifyChecksum = 0x31

	// CmdSyncBootloader resets bootloader to clean state
	CmdSyncBootloader = 0x35

	// CmdSendData sends a data chunk to be buffered by the bootloader
	CmdSendData = 0x37

	// CmdEnterBootloader starts a bootload session
	CmdEnterBootloader = 0x38

	// CmdExitBootloader exits bootloader and launches application
	CmdExitBootloader = 0x3B

	// CmdEraseData erases the flash row at an absolute address
	CmdEraseData = 0x44

	// CmdSendDataNoResponse is CmdSendData without an acknowledgement
	CmdSendDataNoResponse = 0x47

	// CmdProgramData programs buffered data plus its payload at an address
	CmdProgramData = 0x49

	// CmdVerifyData compares buffered data plus its payload against flash
	CmdVerifyData = 0x4A

	// CmdSetMetadata sets the start address and length of an application
	CmdSetMetadata = 0x4C

	// CmdSetEncryptionIV sets the initialization vector for encrypted images
	CmdSetEncryptionIV = 0x4D

	// CmdBootloaderActive is the probe command answered only by a running bootloader
	CmdBootloaderActive = 0xEE
)

// Device status codes reported in byte 1 of every response.
const (
	StatusSuccess       = 0x00
	StatusErrKey        = 0x01
	StatusErrVerify     = 0x02
	StatusErrLength     = 0x03
	StatusErrData       = 0x04
	StatusErrCommand    = 0x05
	StatusErrDevice     = 0x06
	StatusErrVersion    = 0x07
	StatusErrChecksum   = 0x08
	StatusErrArray      = 0x09
	StatusErrRow        = 0x0A
	StatusErrProtect    = 0x0B
	StatusErrApp        = 0x0C
	StatusErrActive     = 0x0D
	StatusErrUnknown    = 0x0F
	StatusBootloaderAck = 0x04
)

// Response frame sizes, including framing.
const (
	// ResponseSizeDefault is the size of a response without payload
	ResponseSizeDefault = BaseCmdSize

	// ResponseSizeEnterBootloader carries silicon id, revision and version
	ResponseSizeEnterBootloader = BaseCmdSize + EnterBootloaderDataSize

	// ResponseSizeVerifyChecksum carries a single validity byte
	ResponseSizeVerifyChecksum = BaseCmdSize + 1

	// ResponseHeaderSize is read first when the payload size of a
	// custom response is not known in advance.
	ResponseHeaderSize = 4

	// EnterBootloaderDataSize is the payload size of the enter response
	EnterBootloaderDataSize = 8
)

// EIV lengths accepted by CmdSetEncryptionIV.
const (
	EIVLengthNone   = 0
	EIVLengthShort  = 8
	EIVLengthStrong = 16
)

// Overheads used when splitting a row into packets.
const (
	// ProgramDataOverhead is addr(4) + crc(4) in program/verify data payloads
	ProgramDataOverhead = 8

	// ProgramDataFrameOverhead is the framing plus ProgramDataOverhead
	ProgramDataFrameOverhead = BaseCmdSize + ProgramDataOverhead
)

// BootloaderActiveProbe returns the raw request that a running bootloader
// acknowledges with StatusBootloaderAck. It is not a regular frame.
func BootloaderActiveProbe() []byte {
	return []byte{0x00, 0x00, StartOfPacket, CmdBootloaderActive, EndOfPacket}
}
