package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// I2C defaults, matching the PSoC 4 touch controller bootloader.
const (
	DefaultI2CRetries    = 5
	DefaultI2CRetryDelay = 5 * time.Millisecond

	// Application register map: writing CmdBitBootloaderJump to RegCmd
	// makes the running application reset into its bootloader.
	RegCmd               = 0x06
	CmdBitBootloaderJump = 1 << 5

	// BootloaderJumpDelay is the time the device needs to restart.
	BootloaderJumpDelay = 10 * time.Millisecond
)

// I2CConfig describes a bootloader reachable through a Linux i2c-dev bus.
type I2CConfig struct {
	// Bus is the character device, e.g. /dev/i2c-1
	Bus string

	// Address is the 7-bit address of the bootloader
	Address uint16

	// AppAddress is the 7-bit address of the running application, used
	// by JumpToBootloader
	AppAddress uint16

	// Retries bounds attempts on a bus error (default DefaultI2CRetries)
	Retries int

	// RetryDelay separates attempts (default DefaultI2CRetryDelay)
	RetryDelay time.Duration

	PacketSize int

	Log logrus.FieldLogger
}

// i2cBus is one open i2c-dev file.
type i2cBus interface {
	setAddress(addr uint16) error
	read(p []byte) error
	write(p []byte) error
	close() error
}

// I2C is a Transport over an I2C bus. Transfers that fail with EIO or
// EREMOTEIO, as a busy or clock-stretching device causes, are retried.
//
// Devices clock out filler while a response is not ready; wrap the
// transport in a Resync.
type I2C struct {
	cfg     I2CConfig
	log     logrus.FieldLogger
	openBus func(path string) (i2cBus, error)
	sleep   func(time.Duration)

	mu  sync.Mutex
	bus i2cBus
}

// NewI2C returns an I2C transport.
func NewI2C(cfg I2CConfig) *I2C {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultI2CRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultI2CRetryDelay
	}
	if cfg.PacketSize <= 0 {
		cfg.PacketSize = DefaultPacketSize
	}
	log := cfg.Log
	if log == nil {
		log = discardLogger()
	}
	return &I2C{
		cfg:     cfg,
		log:     log.WithFields(logrus.Fields{"transport": "i2c", "bus": cfg.Bus}),
		openBus: openI2CBus,
		sleep:   time.Sleep,
	}
}

// Open opens the bus and addresses the bootloader.
func (d *I2C) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bus != nil {
		return nil
	}
	bus, err := d.openBus(d.cfg.Bus)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.cfg.Bus, err)
	}
	if err := bus.setAddress(d.cfg.Address); err != nil {
		_ = bus.close()
		return fmt.Errorf("set address 0x%02X: %w", d.cfg.Address, err)
	}
	d.bus = bus
	return nil
}

func (d *I2C) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bus == nil {
		return nil
	}
	err := d.bus.close()
	d.bus = nil
	return err
}

func (d *I2C) ReadData(p []byte) error {
	return d.transfer("read", func(bus i2cBus) error { return bus.read(p) })
}

func (d *I2C) WriteData(p []byte) error {
	return d.transfer("write", func(bus i2cBus) error { return bus.write(p) })
}

func (d *I2C) DataPacketSize() int { return d.cfg.PacketSize }

// transfer runs fn, retrying bus errors.
func (d *I2C) transfer(op string, fn func(bus i2cBus) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bus == nil {
		return ErrNotOpen
	}

	var err error
	for attempt := 1; attempt <= d.cfg.Retries; attempt++ {
		err = fn(d.bus)
		if err == nil || !isRetryableBusError(err) {
			return err
		}
		d.log.WithError(err).WithField("attempt", attempt).Debugf("I2C %s failed", op)
		d.sleep(d.cfg.RetryDelay)
	}
	d.log.WithError(err).Errorf("I2C %s failed after %d retries", op, d.cfg.Retries)
	return err
}

// JumpToBootloader asks the running application at AppAddress to reset
// into its bootloader. The bus is opened for the duration of the call if
// needed, and the bootloader address is restored afterwards.
func (d *I2C) JumpToBootloader() error {
	d.mu.Lock()
	opened := d.bus == nil
	d.mu.Unlock()

	if opened {
		if err := d.Open(); err != nil {
			return err
		}
		defer func() { _ = d.Close() }()
	}

	err := d.transfer("jump", func(bus i2cBus) error {
		if err := bus.setAddress(d.cfg.AppAddress); err != nil {
			return err
		}
		defer func() { _ = bus.setAddress(d.cfg.Address) }()
		return bus.write([]byte{0x00, RegCmd, CmdBitBootloaderJump})
	})
	if err != nil {
		return fmt.Errorf("jump to bootloader: %w", err)
	}

	d.sleep(BootloaderJumpDelay)
	return nil
}
