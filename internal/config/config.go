// Package config loads the cydfu profile: which transport to use and how
// to drive it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-cyacd2/protocol"
	"github.com/moffa90/go-cyacd2/transport"
)

const (
	appName    = "cydfu"
	configFile = "config.yaml"
)

// Transport kinds.
const (
	TransportSerial    = "serial"
	TransportUSB       = "usb"
	TransportI2C       = "i2c"
	TransportWebSocket = "websocket"
	TransportSimulator = "simulator"
)

// Config is a cydfu profile.
type Config struct {
	Transport    string        `yaml:"transport"`
	PacketSize   int           `yaml:"packet_size"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	CommandDelay time.Duration `yaml:"command_delay"`
	LogLevel     string        `yaml:"log_level"`

	Serial    SerialConfig    `yaml:"serial"`
	USB       USBConfig       `yaml:"usb"`
	I2C       I2CConfig       `yaml:"i2c"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Resync    ResyncConfig    `yaml:"resync"`
}

type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

type USBConfig struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	Serial    string `yaml:"serial"`
}

type I2CConfig struct {
	Bus        string `yaml:"bus"`
	Address    uint16 `yaml:"address"`
	AppAddress uint16 `yaml:"app_address"`

	// Jump asks the application to enter its bootloader before a session
	Jump bool `yaml:"jump"`
}

type WebSocketConfig struct {
	URL           string `yaml:"url"`
	SkipTLSVerify bool   `yaml:"skip_tls_verify"`
}

// ResyncConfig enables filler skipping. It is on by default for I2C.
type ResyncConfig struct {
	Enabled bool          `yaml:"enabled"`
	Filler  byte          `yaml:"filler"`
	Retries int           `yaml:"retries"`
	Delay   time.Duration `yaml:"delay"`
}

// Default returns the built-in profile: a serial port at 115200 baud.
func Default() *Config {
	return &Config{
		Transport:   TransportSerial,
		PacketSize:  transport.DefaultPacketSize,
		ReadTimeout: transport.DefaultReadTimeout,
		LogLevel:    "warn",
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: transport.DefaultBaudRate,
		},
		USB: USBConfig{
			VendorID:  transport.DefaultUSBVendorID,
			ProductID: transport.DefaultUSBProductID,
		},
		I2C: I2CConfig{
			Bus:     "/dev/i2c-1",
			Address: 0x08,
		},
		Resync: ResyncConfig{
			Filler:  transport.DefaultFiller,
			Retries: transport.DefaultResyncRetries,
			Delay:   transport.DefaultResyncDelay,
		},
	}
}

// Dir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/cydfu or $HOME/.config/cydfu
//   - macOS: $HOME/.config/cydfu
//   - Windows: %LOCALAPPDATA%\cydfu
func Dir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		profile := os.Getenv("USERPROFILE")
		if profile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(profile, "AppData", "Local", appName), nil
	case "darwin":
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// Path returns the default location of the profile.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the profile at path over Default. An empty path selects
// Path, and a missing default profile yields the defaults; a missing
// explicit path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the fields the selected transport depends on.
func (c *Config) Validate() error {
	if c.PacketSize < transport.MinPacketSize || c.PacketSize > protocol.MaxCommandSize {
		return fmt.Errorf("packet_size %d out of range %d-%d", c.PacketSize, transport.MinPacketSize, protocol.MaxCommandSize)
	}
	if c.ReadTimeout < 0 || c.CommandDelay < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	switch c.Transport {
	case TransportSerial:
		if c.Serial.Port == "" {
			return fmt.Errorf("serial.port is required")
		}
	case TransportUSB:
	case TransportI2C:
		if c.I2C.Bus == "" {
			return fmt.Errorf("i2c.bus is required")
		}
		if c.I2C.Address > 0x7F || c.I2C.AppAddress > 0x7F {
			return fmt.Errorf("i2c addresses must be 7-bit")
		}
		if c.I2C.Jump && c.I2C.AppAddress == 0 {
			return fmt.Errorf("i2c.app_address is required with i2c.jump")
		}
	case TransportWebSocket:
		if c.WebSocket.URL == "" {
			return fmt.Errorf("websocket.url is required")
		}
	case TransportSimulator:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}
