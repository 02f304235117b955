// Package simulator is an in-memory cyacd2 bootloader. A Device answers
// the commands a host writes as a real bootloader would and implements
// transport.Transport, so sessions can run without hardware.
package simulator

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/moffa90/go-cyacd2/protocol"
	"github.com/moffa90/go-cyacd2/transport"
)

// Default identity, matching a PSoC 4 part.
const (
	DefaultSiliconID         = 0x1E9602AA
	DefaultSiliconRev        = 0x00
	DefaultBootloaderVersion = 0x011E00
)

// Command is one decoded command received by the device.
type Command struct {
	Code    byte
	Payload []byte
}

// Metadata is the application record set by CmdSetMetadata.
type Metadata struct {
	Start uint32
	Size  uint32
}

// Fault changes how the device handles one command code.
type Fault struct {
	// Status is reported instead of success when non-zero
	Status byte

	// WriteErr fails the host write of the command
	WriteErr error

	// ReadErr fails the host read of the response
	ReadErr error

	// Times limits the fault to the first n occurrences, 0 is unlimited
	Times int
}

// Device simulates a bootloader. Configure the exported fields before
// the first Open.
type Device struct {
	SiliconID         uint32
	SiliconRev        byte
	BootloaderVersion uint32

	// Mode is the packet checksum the device speaks
	Mode protocol.ChecksumMode

	// PacketSize is reported by DataPacketSize
	PacketSize int

	// Filler bytes are sent ahead of every response, as an I2C device
	// that is still busy clocks out 0xFF
	Filler int

	// AppInvalid makes verify-checksum report an invalid application
	AppInvalid bool

	// AppRunning leaves the bootloader-active probe unanswered
	AppRunning bool

	// OpenErr and CloseErr fail Open and Close
	OpenErr  error
	CloseErr error

	Log logrus.FieldLogger

	mu           sync.Mutex
	open         bool
	opens        int
	closes       int
	inBootloader bool
	buffer       []byte
	flash        map[uint32][]byte
	metadata     map[byte]Metadata
	eiv          []byte
	commands     []Command
	pending      []byte
	readErr      error
	faults       map[byte]*Fault
}

// New returns a device with the default identity, sum checksums and
// transport.DefaultPacketSize.
func New() *Device {
	return &Device{
		SiliconID:         DefaultSiliconID,
		SiliconRev:        DefaultSiliconRev,
		BootloaderVersion: DefaultBootloaderVersion,
		Mode:              protocol.ChecksumSum,
		PacketSize:        transport.DefaultPacketSize,
	}
}

// InjectFault applies f to every later command with code cmd.
func (d *Device) InjectFault(cmd byte, f Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.faults == nil {
		d.faults = make(map[byte]*Fault)
	}
	d.faults[cmd] = &f
}

func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.open = true
	d.opens++
	d.pending = nil
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.closes++
	return d.CloseErr
}

func (d *Device) DataPacketSize() int { return d.PacketSize }

// WriteData handles one command and queues its response.
func (d *Device) WriteData(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return transport.ErrNotOpen
	}
	d.pending, d.readErr = nil, nil

	if bytes.Equal(p, protocol.BootloaderActiveProbe()) {
		d.commands = append(d.commands, Command{Code: protocol.CmdBootloaderActive})
		if !d.AppRunning {
			d.respond(protocol.StatusBootloaderAck, nil)
		}
		return nil
	}

	pkt, err := protocol.DecodePacket(d.Mode, p)
	if err != nil {
		d.logger().WithError(err).Debug("malformed command")
		status := byte(protocol.StatusErrData)
		if protocol.CodeOf(err) == protocol.CodeChecksum {
			status = protocol.StatusErrChecksum
		}
		d.respond(status, nil)
		return nil
	}

	cmd := Command{Code: pkt.Command(), Payload: append([]byte(nil), pkt.Data()...)}
	d.commands = append(d.commands, cmd)

	if f := d.fault(cmd.Code); f != nil {
		if f.WriteErr != nil {
			return f.WriteErr
		}
		if f.ReadErr != nil {
			d.readErr = f.ReadErr
			return nil
		}
		if f.Status != protocol.StatusSuccess {
			d.respond(f.Status, nil)
			return nil
		}
	}

	d.handle(cmd)
	return nil
}

// fault returns the active fault for cmd and counts its use.
func (d *Device) fault(cmd byte) *Fault {
	f, ok := d.faults[cmd]
	if !ok {
		return nil
	}
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(d.faults, cmd)
		}
	}
	return f
}

func (d *Device) handle(cmd Command) {
	log := d.logger().WithField("cmd", cmd.Code)

	if cmd.Code != protocol.CmdEnterBootloader && !d.inBootloader {
		log.Debug("command outside bootload session")
		d.respond(protocol.StatusErrActive, nil)
		return
	}

	switch cmd.Code {
	case protocol.CmdEnterBootloader:
		if len(cmd.Payload) != 4 && len(cmd.Payload) != 6 {
			d.respond(protocol.StatusErrLength, nil)
			return
		}
		d.inBootloader = true
		d.buffer = nil
		data := make([]byte, protocol.EnterBootloaderDataSize)
		binary.LittleEndian.PutUint32(data[0:4], d.SiliconID)
		data[4] = d.SiliconRev
		data[5] = byte(d.BootloaderVersion)
		data[6] = byte(d.BootloaderVersion >> 8)
		data[7] = byte(d.BootloaderVersion >> 16)
		log.Debug("entered bootloader")
		d.respond(protocol.StatusSuccess, data)

	case protocol.CmdExitBootloader:
		d.inBootloader = false
		log.Debug("exited bootloader")

	case protocol.CmdSyncBootloader:
		d.buffer = nil
		d.respond(protocol.StatusSuccess, nil)

	case protocol.CmdSetMetadata:
		if len(cmd.Payload) != 9 {
			d.respond(protocol.StatusErrLength, nil)
			return
		}
		if d.metadata == nil {
			d.metadata = make(map[byte]Metadata)
		}
		d.metadata[cmd.Payload[0]] = Metadata{
			Start: binary.LittleEndian.Uint32(cmd.Payload[1:5]),
			Size:  binary.LittleEndian.Uint32(cmd.Payload[5:9]),
		}
		d.respond(protocol.StatusSuccess, nil)

	case protocol.CmdSetEncryptionIV:
		switch len(cmd.Payload) {
		case protocol.EIVLengthNone, protocol.EIVLengthShort, protocol.EIVLengthStrong:
			d.eiv = cmd.Payload
			d.respond(protocol.StatusSuccess, nil)
		default:
			d.respond(protocol.StatusErrLength, nil)
		}

	case protocol.CmdSendData:
		d.buffer = append(d.buffer, cmd.Payload...)
		d.respond(protocol.StatusSuccess, nil)

	case protocol.CmdSendDataNoResponse:
		d.buffer = append(d.buffer, cmd.Payload...)

	case protocol.CmdProgramData, protocol.CmdVerifyData:
		d.handleData(cmd)

	case protocol.CmdEraseData:
		if len(cmd.Payload) != 4 {
			d.respond(protocol.StatusErrLength, nil)
			return
		}
		delete(d.flash, binary.LittleEndian.Uint32(cmd.Payload))
		d.respond(protocol.StatusSuccess, nil)

	case protocol.CmdVerifyChecksum:
		valid := byte(1)
		if d.AppInvalid {
			valid = 0
		}
		d.respond(protocol.StatusSuccess, []byte{valid})

	default:
		log.Debug("unknown command")
		d.respond(protocol.StatusErrCommand, nil)
	}
}

// handleData completes a row: buffered send-data bytes plus the payload
// after address and CRC.
func (d *Device) handleData(cmd Command) {
	if len(cmd.Payload) < protocol.ProgramDataOverhead {
		d.respond(protocol.StatusErrLength, nil)
		return
	}
	addr := binary.LittleEndian.Uint32(cmd.Payload[0:4])
	crc := binary.LittleEndian.Uint32(cmd.Payload[4:8])
	row := append(d.buffer, cmd.Payload[protocol.ProgramDataOverhead:]...)
	d.buffer = nil

	if protocol.CRC32C(row) != crc {
		d.respond(protocol.StatusErrChecksum, nil)
		return
	}

	if cmd.Code == protocol.CmdVerifyData {
		if !bytes.Equal(d.flash[addr], row) {
			d.respond(protocol.StatusErrVerify, nil)
			return
		}
		d.respond(protocol.StatusSuccess, nil)
		return
	}

	if d.flash == nil {
		d.flash = make(map[uint32][]byte)
	}
	d.flash[addr] = row
	d.logger().WithField("address", addr).WithField("bytes", len(row)).Debug("programmed row")
	d.respond(protocol.StatusSuccess, nil)
}

func (d *Device) respond(status byte, data []byte) {
	for i := 0; i < d.Filler; i++ {
		d.pending = append(d.pending, transport.DefaultFiller)
	}
	d.pending = append(d.pending, protocol.BuildCommand(d.Mode, status, data)...)
}

// ReadData returns queued response bytes. When fewer bytes are queued
// than requested, the available ones are copied and the read times out.
func (d *Device) ReadData(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return transport.ErrNotOpen
	}
	if d.readErr != nil {
		return d.readErr
	}

	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	if n < len(p) {
		return transport.ErrReadTimeout
	}
	return nil
}

var quiet = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}()

func (d *Device) logger() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	return quiet
}

// Commands returns the commands received so far, in order.
func (d *Device) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}

// CommandCodes returns the codes of Commands.
func (d *Device) CommandCodes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	codes := make([]byte, len(d.commands))
	for i, c := range d.commands {
		codes[i] = c.Code
	}
	return codes
}

// Flash returns the row programmed at addr.
func (d *Device) Flash(addr uint32) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	row, ok := d.flash[addr]
	return row, ok
}

// Rows returns the number of programmed rows.
func (d *Device) Rows() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.flash)
}

// Metadata returns the record of application appID.
func (d *Device) Metadata(appID byte) (Metadata, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.metadata[appID]
	return m, ok
}

// EIV returns the last encryption IV set.
func (d *Device) EIV() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eiv
}

// InBootloader reports whether a bootload session is active.
func (d *Device) InBootloader() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inBootloader
}

// IsOpen reports whether the device is open.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Closes returns how many times Close was called.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Opens returns how many times Open succeeded.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// drain removes and returns the queued response bytes.
func (d *Device) drain() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		d.pending = nil
		return nil
	}
	out := d.pending
	d.pending = nil
	return out
}
