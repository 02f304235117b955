package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-cyacd2/internal/config"
	"github.com/moffa90/go-cyacd2/internal/logging"
	"github.com/moffa90/go-cyacd2/internal/simulator"
	"github.com/moffa90/go-cyacd2/transport"
	"github.com/moffa90/go-cyacd2/transport/usb"
)

// settings holds the persistent flags shared by every command.
type settings struct {
	configPath   string
	transport    string
	port         string
	baud         int
	bus          string
	address      uint16
	appAddress   uint16
	jump         bool
	url          string
	vid          uint16
	pid          uint16
	usbSerial    string
	packetSize   int
	readTimeout  time.Duration
	commandDelay time.Duration
	resync       bool
	logLevel     string
	simulate     bool
}

var flags settings

func addTransportFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&flags.configPath, "config", "", "profile to load (default ~/.config/cydfu/config.yaml)")
	f.StringVarP(&flags.transport, "transport", "t", "", "serial, usb, i2c, websocket or simulator")
	f.StringVarP(&flags.port, "port", "p", "", "serial port")
	f.IntVarP(&flags.baud, "baud", "b", 0, "serial baud rate")
	f.StringVar(&flags.bus, "bus", "", "I2C bus device, e.g. /dev/i2c-1")
	f.Uint16Var(&flags.address, "address", 0, "I2C bootloader address")
	f.Uint16Var(&flags.appAddress, "app-address", 0, "I2C application address")
	f.BoolVar(&flags.jump, "jump", false, "ask the I2C application to jump to its bootloader first")
	f.StringVar(&flags.url, "url", "", "WebSocket bridge URL (ws:// or wss://)")
	f.Uint16Var(&flags.vid, "vid", 0, "USB vendor ID")
	f.Uint16Var(&flags.pid, "pid", 0, "USB product ID")
	f.StringVar(&flags.usbSerial, "usb-serial", "", "USB serial number when several devices match")
	f.IntVar(&flags.packetSize, "packet-size", 0, "largest frame sent in one transfer")
	f.DurationVar(&flags.readTimeout, "timeout", 0, "response timeout")
	f.DurationVar(&flags.commandDelay, "command-delay", 0, "delay between a command and reading its response")
	f.BoolVar(&flags.resync, "resync", false, "skip 0xFF filler before responses")
	f.StringVar(&flags.logLevel, "log-level", "", "panic, fatal, error, warn, info, debug or trace")
	f.BoolVar(&flags.simulate, "simulate", false, "use the in-memory simulator instead of hardware")
}

// loadSettings merges the profile with the flags set on cmd.
func loadSettings(cmd *cobra.Command) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}

	set := cmd.Flags().Changed
	if set("transport") {
		cfg.Transport = flags.transport
	}
	if set("port") {
		cfg.Serial.Port = flags.port
	}
	if set("baud") {
		cfg.Serial.BaudRate = flags.baud
	}
	if set("bus") {
		cfg.I2C.Bus = flags.bus
	}
	if set("address") {
		cfg.I2C.Address = flags.address
	}
	if set("app-address") {
		cfg.I2C.AppAddress = flags.appAddress
	}
	if set("jump") {
		cfg.I2C.Jump = flags.jump
	}
	if set("url") {
		cfg.WebSocket.URL = flags.url
	}
	if set("vid") {
		cfg.USB.VendorID = flags.vid
	}
	if set("pid") {
		cfg.USB.ProductID = flags.pid
	}
	if set("usb-serial") {
		cfg.USB.Serial = flags.usbSerial
	}
	if set("packet-size") {
		cfg.PacketSize = flags.packetSize
	}
	if set("timeout") {
		cfg.ReadTimeout = flags.readTimeout
	}
	if set("command-delay") {
		cfg.CommandDelay = flags.commandDelay
	}
	if set("resync") {
		cfg.Resync.Enabled = flags.resync
	}
	if flags.simulate {
		cfg.Transport = config.TransportSimulator
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := logging.ResolveLevel(flags.logLevel, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level, os.Stderr), nil
}

// link is the transport a command talks through.
type link struct {
	transport.Transport

	// sim is set for the simulator transport
	sim *simulator.Device

	// jump is set when the application must be asked to enter its
	// bootloader before a session
	jump func() error
}

func openLink(cfg *config.Config, log *logging.Logger) (*link, error) {
	l := &link{}
	lr := log.Logrus()

	switch cfg.Transport {
	case config.TransportSerial:
		l.Transport = transport.NewSerial(transport.SerialConfig{
			Port:        cfg.Serial.Port,
			BaudRate:    cfg.Serial.BaudRate,
			PacketSize:  cfg.PacketSize,
			ReadTimeout: cfg.ReadTimeout,
		})

	case config.TransportUSB:
		l.Transport = usb.New(usb.Config{
			VendorID:    cfg.USB.VendorID,
			ProductID:   cfg.USB.ProductID,
			Serial:      cfg.USB.Serial,
			PadReports:  true,
			PacketSize:  cfg.PacketSize,
			ReadTimeout: cfg.ReadTimeout,
			Log:         lr,
		})

	case config.TransportI2C:
		bus := transport.NewI2C(transport.I2CConfig{
			Bus:        cfg.I2C.Bus,
			Address:    cfg.I2C.Address,
			AppAddress: cfg.I2C.AppAddress,
			PacketSize: cfg.PacketSize,
			Log:        lr,
		})
		l.Transport = bus
		if cfg.I2C.Jump {
			l.jump = bus.JumpToBootloader
		}

	case config.TransportWebSocket:
		l.Transport = transport.NewWebSocket(transport.WebSocketConfig{
			URL:           cfg.WebSocket.URL,
			SkipTLSVerify: cfg.WebSocket.SkipTLSVerify,
			PacketSize:    cfg.PacketSize,
			ReadTimeout:   cfg.ReadTimeout,
		})

	case config.TransportSimulator:
		l.sim = simulator.New()
		l.sim.PacketSize = cfg.PacketSize
		l.sim.Log = lr.WithField("component", "simulator")
		l.Transport = l.sim

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	// I2C bootloaders clock out filler until a response is ready.
	if cfg.Resync.Enabled || cfg.Transport == config.TransportI2C {
		l.Transport = transport.NewResync(l.Transport, transport.ResyncConfig{
			Filler:     cfg.Resync.Filler,
			MaxRetries: cfg.Resync.Retries,
			RetryDelay: cfg.Resync.Delay,
		})
	}

	lr.WithField("transport", cfg.Transport).Debug("transport ready")
	return l, nil
}
