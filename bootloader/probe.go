package bootloader

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/moffa90/go-cyacd2/protocol"
)

// Probe reports whether a bootloader is running on the device. It opens
// the transport, sends the bootloader-active request until it is
// acknowledged or the attempts run out, and closes the transport.
// Any failure is a *protocol.CommError.
func (p *Programmer) Probe(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.transport.Open(); err != nil {
		return &protocol.CommError{Op: "open", Err: err}
	}

	var lastErr error
	acked := false
	for attempt := 1; attempt <= p.config.ProbeAttempts && !acked; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		resp, err := transferOn(p.transport, p.config.CommandDelay, protocol.BootloaderActiveProbe(), protocol.ResponseSizeDefault)
		switch {
		case err != nil:
			lastErr = err
		case resp[0] == protocol.StartOfPacket && resp[1] == protocol.StatusBootloaderAck &&
			resp[protocol.ResponseSizeDefault-1] == protocol.EndOfPacket:
			acked = true
		default:
			lastErr = protocol.NewError(protocol.CodeResponse, "probe", "unexpected reply % X", resp)
		}
		if !acked {
			p.logDebug("probe not acknowledged", "attempt", attempt, "error", lastErr)
		}
	}

	cerr := p.transport.Close()
	if !acked {
		return &protocol.CommError{Op: "probe", Err: lastErr}
	}
	if cerr != nil {
		return &protocol.CommError{Op: "close", Err: cerr}
	}
	return nil
}

// CustomCommand is a caller-defined request outside the standard
// command set.
type CustomCommand struct {
	// Mode is the packet checksum the bootloader expects
	Mode protocol.ChecksumMode

	// Command is the command byte
	Command byte

	// Payload is sent as the packet data
	Payload []byte

	// ExpectData is set when the response carries a payload whose
	// length is only known from its header
	ExpectData bool

	// ExpectedStatus is the status the bootloader reports on success
	ExpectedStatus byte
}

// CustomResponse is the reply to a CustomCommand.
type CustomResponse struct {
	Status byte
	Data   []byte
}

// SendCustomCommand opens the transport, exchanges one custom command
// and closes the transport.
func (p *Programmer) SendCustomCommand(ctx context.Context, c CustomCommand) (resp *CustomResponse, err error) {
	if err := ctx.Err(); err != nil {
		return nil, &protocol.Error{Code: protocol.CodeAbort, Op: "custom command", Err: err}
	}
	cmd, err := protocol.BuildCustomCmd(c.Mode, c.Command, c.Payload)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.transport.Open(); err != nil {
		return nil, &protocol.CommError{Op: "open", Err: err}
	}
	defer func() {
		if cerr := p.transport.Close(); cerr != nil && err == nil {
			resp, err = nil, &protocol.CommError{Op: "close", Err: cerr}
		}
	}()

	p.logDebug("custom command", "cmd", fmt.Sprintf("0x%02X", c.Command), "length", len(c.Payload))

	if !c.ExpectData {
		frame, err := transferOn(p.transport, p.config.CommandDelay, cmd, protocol.ResponseSizeDefault)
		if err != nil {
			return nil, err
		}
		status, err := protocol.ParseCustom(frame, 0, protocol.ResponseSizeDefault, c.ExpectedStatus)
		if err != nil {
			return nil, err
		}
		return &CustomResponse{Status: status}, nil
	}

	head, err := transferOn(p.transport, p.config.CommandDelay, cmd, protocol.ResponseHeaderSize)
	if err != nil {
		return nil, err
	}
	if head[0] != protocol.StartOfPacket {
		return nil, protocol.NewError(protocol.CodeData, "custom command", "invalid start of packet: got 0x%02X", head[0])
	}
	dataLen := int(binary.LittleEndian.Uint16(head[2:4]))
	if dataLen > protocol.MaxDataSize {
		return nil, protocol.NewError(protocol.CodeDataLen, "custom command", "response length %d exceeds %d", dataLen, protocol.MaxDataSize)
	}

	frame := make([]byte, dataLen+protocol.BaseCmdSize)
	copy(frame, head)
	if err := p.transport.ReadData(frame[protocol.ResponseHeaderSize:]); err != nil {
		return nil, &protocol.CommError{Op: "read", Err: err}
	}

	status, err := protocol.ParseCustom(frame, dataLen, len(frame), c.ExpectedStatus)
	if err != nil {
		return nil, err
	}
	data := append([]byte(nil), frame[protocol.ResponseHeaderSize:protocol.ResponseHeaderSize+dataLen]...)
	return &CustomResponse{Status: status, Data: data}, nil
}
