package bootloader

import "time"

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during an action to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// CommandDelay is slept between writing a command and reading its
	// response, for bootloaders that need time before answering
	CommandDelay time.Duration

	// ProductID overrides the product ID of the image header when
	// non-zero. The header carries 32 bits; the override may use 48.
	ProductID uint64

	// UnacknowledgedSendData sends row chunks with the send-data command
	// that gets no response
	UnacknowledgedSendData bool

	// ProbeAttempts bounds the bootloader-active probe
	ProbeAttempts int
}

// DefaultProbeAttempts is the number of probe exchanges tried before the
// bootloader is reported unreachable.
const DefaultProbeAttempts = 10

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ProbeAttempts: DefaultProbeAttempts,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track progress.
//
// Example:
//
//	prog := bootloader.New(t,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
//
// Example:
//
//	prog := bootloader.New(t, bootloader.WithLogger(logging.New(logrus.DebugLevel, os.Stderr)))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithCommandDelay sets a delay between each command and its response.
//
// Example:
//
//	prog := bootloader.New(t, bootloader.WithCommandDelay(5*time.Millisecond))
func WithCommandDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.CommandDelay = delay
		}
	}
}

// WithProductID sends id with Enter Bootloader instead of the product
// ID of the image header.
func WithProductID(id uint64) Option {
	return func(c *Config) {
		c.ProductID = id
	}
}

// WithUnacknowledgedSendData enables or disables send-data commands that
// get no response. The final program or verify command of each row is
// still acknowledged.
func WithUnacknowledgedSendData(enabled bool) Option {
	return func(c *Config) {
		c.UnacknowledgedSendData = enabled
	}
}

// WithProbeAttempts sets how many probe exchanges Probe tries.
func WithProbeAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ProbeAttempts = n
		}
	}
}
