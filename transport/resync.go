package transport

import (
	"time"

	"github.com/moffa90/go-cyacd2/protocol"
)

// Resync defaults.
const (
	// DefaultFiller is the byte a bootloader clocks out while it has no
	// response ready.
	DefaultFiller = 0xFF

	// DefaultResyncRetries bounds the single-byte reads spent waiting
	// for the first response byte.
	DefaultResyncRetries = 10

	// DefaultResyncDelay separates single-byte reads that returned filler.
	DefaultResyncDelay = 10 * time.Millisecond
)

// ResyncConfig tunes a Resync.
type ResyncConfig struct {
	// Filler is the idle byte to skip. Zero selects DefaultFiller.
	Filler byte

	// MaxRetries bounds single-byte reads (default DefaultResyncRetries)
	MaxRetries int

	// RetryDelay is the pause after a filler byte (default DefaultResyncDelay)
	RetryDelay time.Duration

	// Sleep replaces time.Sleep, for tests
	Sleep func(time.Duration)
}

// Resync wraps a fixed-length-read transport whose device may answer
// with filler bytes before a response is ready, as a PSoC bootloader on
// I2C does. Leading filler is dropped and the missing tail is read so
// that callers always receive a response that starts at the first real
// byte.
//
// While a frame is in progress (a start marker was seen and no end
// marker has been read yet) reads are passed through unchanged.
type Resync struct {
	Transport

	cfg           ResyncConfig
	packetStarted bool
}

// NewResync decorates t.
func NewResync(t Transport, cfg ResyncConfig) *Resync {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultResyncRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultResyncDelay
	}
	if cfg.Filler == 0 {
		cfg.Filler = DefaultFiller
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Resync{Transport: t, cfg: cfg}
}

// Open opens the inner transport and forgets any partial frame.
func (r *Resync) Open() error {
	r.packetStarted = false
	return r.Transport.Open()
}

// ReadData fills p, skipping leading filler bytes.
func (r *Resync) ReadData(p []byte) error {
	size := len(p)
	if size == 0 {
		return nil
	}

	if err := r.Transport.ReadData(p); err != nil {
		return err
	}

	if r.packetStarted {
		if p[size-1] == protocol.EndOfPacket {
			r.packetStarted = false
		}
		return nil
	}

	i := 0
	for ; i < size; i++ {
		if p[i] == protocol.StartOfPacket {
			r.packetStarted = true
		}
		if p[i] != r.cfg.Filler {
			break
		}
	}

	if i == 0 {
		if p[size-1] == protocol.EndOfPacket {
			r.packetStarted = false
		}
		return nil
	}

	var good int
	if i == size {
		ok, err := r.readFirstGoodByte(p)
		if err != nil {
			return err
		}
		if !ok {
			return ErrReadTimeout
		}
		good = 1
	} else {
		good = copy(p, p[i:])
	}

	if good < size {
		if err := r.Transport.ReadData(p[good:]); err != nil {
			return err
		}
		if p[size-1] == protocol.EndOfPacket {
			r.packetStarted = false
		}
	}
	return nil
}

// readFirstGoodByte reads one byte at a time into p[0] until it is not
// filler, pausing after each filler byte.
func (r *Resync) readFirstGoodByte(p []byte) (bool, error) {
	for n := 0; n < r.cfg.MaxRetries; n++ {
		if err := r.Transport.ReadData(p[:1]); err != nil {
			return false, err
		}
		if p[0] != r.cfg.Filler {
			if p[0] == protocol.StartOfPacket {
				r.packetStarted = true
			}
			return true, nil
		}
		r.cfg.Sleep(r.cfg.RetryDelay)
	}
	return false, nil
}
