// Package usb is a bootloader transport over USB endpoints, built on
// libusb through gousb. It needs cgo, so it lives apart from the
// transport package.
package usb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/moffa90/go-cyacd2/transport"
)

// Config describes a USB bootloader interface.
type Config struct {
	VendorID  uint16
	ProductID uint16

	// Serial selects one device when several match, empty matches any
	Serial string

	ConfigNumber    int // USB configuration number (default: 1)
	InterfaceNum    int // Interface number (default: 0)
	InEndpointAddr  int // Input endpoint address (default: 2)
	OutEndpointAddr int // Output endpoint address (default: 1)

	// PadReports pads every write to the endpoint packet size, as HID
	// interrupt endpoints require
	PadReports bool

	PacketSize   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Log logrus.FieldLogger
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		VendorID:        transport.DefaultUSBVendorID,
		ProductID:       transport.DefaultUSBProductID,
		ConfigNumber:    1,
		InterfaceNum:    0,
		InEndpointAddr:  2,
		OutEndpointAddr: 1,
		PadReports:      true,
		PacketSize:      transport.DefaultPacketSize,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
	}
}

// Device is a transport.Transport over a pair of USB interrupt or bulk
// endpoints.
type Device struct {
	cfg Config
	log logrus.FieldLogger

	mu    sync.Mutex
	ctx   *gousb.Context
	dev   *gousb.Device
	conf  *gousb.Config
	intf  *gousb.Interface
	epIn  *gousb.InEndpoint
	epOut *gousb.OutEndpoint
}

// New returns a USB transport. Zero fields of cfg take the values of
// DefaultConfig.
func New(cfg Config) *Device {
	def := DefaultConfig()
	if cfg.VendorID == 0 {
		cfg.VendorID = def.VendorID
	}
	if cfg.ProductID == 0 {
		cfg.ProductID = def.ProductID
	}
	if cfg.ConfigNumber == 0 {
		cfg.ConfigNumber = def.ConfigNumber
	}
	if cfg.InEndpointAddr == 0 {
		cfg.InEndpointAddr = def.InEndpointAddr
	}
	if cfg.OutEndpointAddr == 0 {
		cfg.OutEndpointAddr = def.OutEndpointAddr
	}
	if cfg.PacketSize <= 0 {
		cfg.PacketSize = def.PacketSize
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Device{cfg: cfg, log: log.WithField("transport", "usb")}
}

// Open finds the device and claims its interface and endpoints.
func (u *Device) Open() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.epIn != nil {
		return nil
	}

	u.ctx = gousb.NewContext()
	devs, err := u.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(u.cfg.VendorID) && desc.Product == gousb.ID(u.cfg.ProductID)
	})
	dev := u.pick(devs)
	if dev == nil {
		u.cleanup()
		if err != nil {
			return fmt.Errorf("open USB devices: %w", err)
		}
		return fmt.Errorf("no device found matching VID %s and PID %s", gousb.ID(u.cfg.VendorID), gousb.ID(u.cfg.ProductID))
	}
	u.dev = dev

	if err := u.dev.SetAutoDetach(true); err != nil {
		u.log.WithError(err).Debug("failed to set auto detach, continuing anyway")
	}

	if u.conf, err = u.dev.Config(u.cfg.ConfigNumber); err != nil {
		u.cleanup()
		return fmt.Errorf("failed to set config %d: %w", u.cfg.ConfigNumber, err)
	}
	if u.intf, err = u.conf.Interface(u.cfg.InterfaceNum, 0); err != nil {
		u.cleanup()
		return fmt.Errorf("failed to claim interface %d: %w", u.cfg.InterfaceNum, err)
	}
	if u.epIn, err = u.intf.InEndpoint(u.cfg.InEndpointAddr); err != nil {
		u.cleanup()
		return fmt.Errorf("failed to get input endpoint %d: %w", u.cfg.InEndpointAddr, err)
	}
	if u.epOut, err = u.intf.OutEndpoint(u.cfg.OutEndpointAddr); err != nil {
		u.cleanup()
		return fmt.Errorf("failed to get output endpoint %d: %w", u.cfg.OutEndpointAddr, err)
	}

	u.log.WithFields(logrus.Fields{
		"vid": gousb.ID(u.cfg.VendorID),
		"pid": gousb.ID(u.cfg.ProductID),
	}).Debug("USB device opened")
	return nil
}

// pick keeps the first device with a matching serial number and closes
// the others.
func (u *Device) pick(devs []*gousb.Device) *gousb.Device {
	var chosen *gousb.Device
	for _, d := range devs {
		if chosen == nil {
			if u.cfg.Serial == "" {
				chosen = d
				continue
			}
			if s, err := d.SerialNumber(); err == nil && s == u.cfg.Serial {
				chosen = d
				continue
			}
		}
		_ = d.Close()
	}
	return chosen
}

// Close releases the interface, the device and the libusb context.
func (u *Device) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cleanup()
}

// cleanup must be called with the lock held
func (u *Device) cleanup() error {
	var errs []error
	if u.intf != nil {
		u.intf.Close()
		u.intf = nil
	}
	if u.conf != nil {
		if err := u.conf.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close config: %w", err))
		}
		u.conf = nil
	}
	if u.dev != nil {
		if err := u.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close device: %w", err))
		}
		u.dev = nil
	}
	if u.ctx != nil {
		if err := u.ctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
		u.ctx = nil
	}
	u.epIn, u.epOut = nil, nil
	return errors.Join(errs...)
}

// ReadData reads reports until p is full. Bytes beyond len(p) in the
// last report are padding and are dropped.
func (u *Device) ReadData(p []byte) error {
	u.mu.Lock()
	ep := u.epIn
	u.mu.Unlock()
	if ep == nil {
		return transport.ErrNotOpen
	}

	report := make([]byte, ep.Desc.MaxPacketSize)
	for len(p) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), u.cfg.ReadTimeout)
		n, err := ep.ReadContext(ctx, report)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return transport.ErrReadTimeout
			}
			return fmt.Errorf("read failed: %w", err)
		}
		p = p[copy(p, report[:n]):]
	}
	return nil
}

// WriteData sends p, split and padded to whole reports when PadReports
// is set.
func (u *Device) WriteData(p []byte) error {
	u.mu.Lock()
	ep := u.epOut
	u.mu.Unlock()
	if ep == nil {
		return transport.ErrNotOpen
	}

	size := ep.Desc.MaxPacketSize
	for len(p) > 0 {
		chunk := p
		if u.cfg.PadReports {
			if len(chunk) > size {
				chunk = chunk[:size]
			}
			report := make([]byte, size)
			copy(report, chunk)
			if err := u.write(ep, report); err != nil {
				return err
			}
		} else if err := u.write(ep, chunk); err != nil {
			return err
		}
		p = p[len(chunk):]
	}
	return nil
}

func (u *Device) write(ep *gousb.OutEndpoint, b []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), u.cfg.WriteTimeout)
	defer cancel()

	if _, err := ep.WriteContext(ctx, b); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("write timeout after %v: %w", u.cfg.WriteTimeout, err)
		}
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// DataPacketSize returns the configured packet size.
func (u *Device) DataPacketSize() int { return u.cfg.PacketSize }

var _ transport.Transport = (*Device)(nil)
