package protocol

import "encoding/binary"

// Packet is a complete protocol frame:
//
//	[SOP][CMD/STATUS][LEN_L][LEN_H][DATA...][CHECKSUM_L][CHECKSUM_H][EOP]
//
// The checksum covers every byte before it, SOP included.
type Packet []byte

// BuildCommand frames payload as command cmd using the checksum mode.
// The caller guarantees len(payload) <= MaxDataSize.
func BuildCommand(mode ChecksumMode, cmd byte, payload []byte) Packet {
	n := len(payload)
	frame := make([]byte, BaseCmdSize+n)

	frame[0] = StartOfPacket
	frame[1] = cmd
	binary.LittleEndian.PutUint16(frame[2:4], uint16(n))
	copy(frame[4:], payload)

	checksum := Checksum16(frame[:4+n], mode)
	binary.LittleEndian.PutUint16(frame[4+n:6+n], checksum)
	frame[6+n] = EndOfPacket

	return frame
}

// Command returns the command byte of a request or the status byte of a response.
func (p Packet) Command() byte { return p[1] }

// Status is an alias of Command for responses.
func (p Packet) Status() byte { return p[1] }

// DataLen returns the payload length declared in the header.
func (p Packet) DataLen() int { return int(binary.LittleEndian.Uint16(p[2:4])) }

// Data returns the payload.
func (p Packet) Data() []byte { return p[4 : 4+p.DataLen()] }

// Checksum returns the checksum stored in the frame.
func (p Packet) Checksum() uint16 {
	n := p.DataLen()
	return binary.LittleEndian.Uint16(p[4+n : 6+n])
}

// DecodePacket validates a complete frame strictly: markers, declared
// length against the buffer and the checksum.
func DecodePacket(mode ChecksumMode, frame []byte) (Packet, error) {
	if len(frame) < BaseCmdSize {
		return nil, NewError(CodeLength, "decode packet", "frame too short: got %d bytes, minimum is %d", len(frame), BaseCmdSize)
	}
	if frame[0] != StartOfPacket {
		return nil, NewError(CodeData, "decode packet", "invalid start of packet: got 0x%02X, expected 0x%02X", frame[0], StartOfPacket)
	}

	p := Packet(frame)
	n := p.DataLen()
	if len(frame) != BaseCmdSize+n {
		return nil, NewError(CodeLength, "decode packet", "frame length mismatch: got %d bytes, expected %d", len(frame), BaseCmdSize+n)
	}
	if frame[6+n] != EndOfPacket {
		return nil, NewError(CodeData, "decode packet", "invalid end of packet: got 0x%02X, expected 0x%02X", frame[6+n], EndOfPacket)
	}

	if want, got := Checksum16(frame[:4+n], mode), p.Checksum(); want != got {
		return nil, NewError(CodeChecksum, "decode packet", "got 0x%04X, expected 0x%04X", got, want)
	}

	return p, nil
}
