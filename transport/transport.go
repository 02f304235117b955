// Package transport moves raw protocol frames between the host and a
// bootloader. Each Transport exchanges whole byte buffers: a Read fills
// the buffer completely or fails.
package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultPacketSize is the largest frame most bootloaders accept in one
// transfer (one 64-byte USB report).
const DefaultPacketSize = 64

// DefaultReadTimeout bounds a single ReadData when no timeout is configured.
const DefaultReadTimeout = time.Second

// MinPacketSize is the smallest usable packet size: the framing overhead
// plus at least one payload byte.
const MinPacketSize = 8

// Default identifiers of the Cypress USB HID bootloader.
const (
	DefaultUSBVendorID  = 0x04B4
	DefaultUSBProductID = 0xB71D
)

var (
	// ErrReadTimeout is returned when no complete response arrived in time.
	// It reports Timeout() true, like net and os deadline errors.
	ErrReadTimeout error = timeoutError{}

	// ErrNotOpen is returned by operations on a transport that is not open.
	ErrNotOpen = errors.New("transport: not open")
)

type timeoutError struct{}

func (timeoutError) Error() string { return "transport: read timeout" }
func (timeoutError) Timeout() bool { return true }

// Transport is the capability a bootload session needs from a link.
type Transport interface {
	// Open prepares the link. It is called once per session.
	Open() error

	// Close releases the link.
	Close() error

	// ReadData fills p completely.
	ReadData(p []byte) error

	// WriteData sends all of p.
	WriteData(p []byte) error

	// DataPacketSize is the largest frame the link accepts in one write.
	DataPacketSize() int
}

// Opener opens the byte stream behind a Stream.
type Opener func() (io.ReadWriteCloser, error)

// Stream adapts a byte stream such as a serial port or a WebSocket
// bridge to Transport.
type Stream struct {
	name       string
	open       Opener
	packetSize int
	timeout    time.Duration

	mu sync.Mutex
	rw io.ReadWriteCloser
}

// NewStream returns a Stream that calls open on Open. Zero values select
// DefaultPacketSize and DefaultReadTimeout.
func NewStream(name string, open Opener, packetSize int, timeout time.Duration) *Stream {
	if packetSize <= 0 {
		packetSize = DefaultPacketSize
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return &Stream{name: name, open: open, packetSize: packetSize, timeout: timeout}
}

func (s *Stream) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rw != nil {
		return nil
	}
	rw, err := s.open()
	if err != nil {
		return fmt.Errorf("open %s: %w", s.name, err)
	}
	s.rw = rw
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rw == nil {
		return nil
	}
	err := s.rw.Close()
	s.rw = nil
	return err
}

func (s *Stream) ReadData(p []byte) error {
	rw := s.conn()
	if rw == nil {
		return ErrNotOpen
	}
	return readFull(rw, p, s.timeout)
}

func (s *Stream) WriteData(p []byte) error {
	rw := s.conn()
	if rw == nil {
		return ErrNotOpen
	}
	for len(p) > 0 {
		n, err := rw.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

func (s *Stream) DataPacketSize() int { return s.packetSize }

func (s *Stream) String() string { return s.name }

func (s *Stream) conn() io.ReadWriteCloser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rw
}

// readFull reads until p is full. A read returning (0, nil) is a port
// level timeout; it is retried until timeout has elapsed since the last
// byte arrived.
func readFull(r io.Reader, p []byte, timeout time.Duration) error {
	last := time.Now()
	for len(p) > 0 {
		n, err := r.Read(p)
		p = p[n:]
		if err != nil {
			if errors.Is(err, io.EOF) && len(p) > 0 {
				return io.ErrUnexpectedEOF
			}
			if len(p) == 0 {
				return nil
			}
			return err
		}
		if n > 0 {
			last = time.Now()
			continue
		}
		if time.Since(last) >= timeout {
			return ErrReadTimeout
		}
	}
	return nil
}
