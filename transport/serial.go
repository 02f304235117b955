package transport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the UART speed of the stock PSoC bootloader.
const DefaultBaudRate = 115200

// SerialConfig describes a UART link.
type SerialConfig struct {
	Port        string
	BaudRate    int
	PacketSize  int
	ReadTimeout time.Duration
}

// NewSerial returns a Transport over a serial port. The port is opened
// 8N1 on Open.
func NewSerial(cfg SerialConfig) *Stream {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	open := func() (io.ReadWriteCloser, error) {
		mode := &serial.Mode{
			BaudRate: cfg.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}

		port, err := serial.Open(cfg.Port, mode)
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
		}

		// Reads return (0, nil) after this long so readFull can enforce
		// its own deadline.
		if err := port.SetReadTimeout(cfg.ReadTimeout / 10); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
		if err := port.ResetInputBuffer(); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("failed to flush input: %w", err)
		}
		return port, nil
	}

	return NewStream("serial "+cfg.Port, open, cfg.PacketSize, cfg.ReadTimeout)
}

// ListSerialPorts returns the names of the serial ports on this system.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
