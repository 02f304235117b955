package bootloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moffa90/go-cyacd2/cyacd"
	"github.com/moffa90/go-cyacd2/protocol"
	"github.com/moffa90/go-cyacd2/transport"
)

// Action selects what a session does with each data row.
type Action int

const (
	// ActionProgram writes every row, then checks the application checksum
	ActionProgram Action = iota

	// ActionErase erases the flash of every row
	ActionErase

	// ActionVerify compares every row with flash, then checks the
	// application checksum
	ActionVerify
)

func (a Action) String() string {
	switch a {
	case ActionProgram:
		return "program"
	case ActionErase:
		return "erase"
	case ActionVerify:
		return "verify"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Programmer runs bootload sessions for Cypress/Infineon microcontrollers
// over a transport.Transport.
//
// One session runs at a time per Programmer; concurrent RunAction calls
// wait for each other. Abort may be called from any goroutine.
type Programmer struct {
	transport transport.Transport
	config    Config

	mu    sync.Mutex
	abort atomic.Bool
}

// New creates a new Programmer with the given transport and options.
//
// Example:
//
//	t := transport.NewSerial(transport.SerialConfig{Port: "/dev/ttyUSB0"})
//	prog := bootloader.New(t,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithLogger(logger),
//	)
func New(t transport.Transport, opts ...Option) *Programmer {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		transport: t,
		config:    cfg,
	}
}

// Program writes the image at path to the device:
//  1. Open the transport and enter the bootloader
//  2. Validate the device silicon ID and revision against the image
//  3. Send the application metadata
//  4. Program all rows with progress tracking
//  5. Verify the application checksum
//  6. Exit the bootloader and close the transport
//
// Example:
//
//	err := prog.Program(context.Background(), "firmware.cyacd2")
//	fmt.Printf("result 0x%04X\n", uint16(protocol.CodeOf(err)))
func (p *Programmer) Program(ctx context.Context, path string) error {
	return p.runFile(ctx, ActionProgram, path)
}

// Erase erases the flash rows named by the image at path.
func (p *Programmer) Erase(ctx context.Context, path string) error {
	return p.runFile(ctx, ActionErase, path)
}

// Verify compares the image at path with the device flash, then checks
// the application checksum.
func (p *Programmer) Verify(ctx context.Context, path string) error {
	return p.runFile(ctx, ActionVerify, path)
}

func (p *Programmer) runFile(ctx context.Context, action Action, path string) error {
	img, err := cyacd.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = img.Close() }()

	return p.RunAction(ctx, action, img)
}

// RunAction runs one bootload session applying action to every data row
// of img. The header of img has already been read; img is consumed.
//
// The returned error maps to a single outcome code with protocol.CodeOf.
// Rows already written are not rolled back.
func (p *Programmer) RunAction(ctx context.Context, action Action, img *cyacd.Image) error {
	if img == nil || img.Header == nil {
		return protocol.NewError(protocol.CodeFile, "run action", "image cannot be nil")
	}
	if size := p.transport.DataPacketSize(); size < transport.MinPacketSize || size > protocol.MaxCommandSize {
		return protocol.NewError(protocol.CodeLength, "run action", "data packet size %d out of range %d-%d",
			size, transport.MinPacketSize, protocol.MaxCommandSize)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.abort.Store(false)

	s := newSession(p, img.Header)
	err := s.run(ctx, action, img)
	if err != nil {
		p.logError("action failed",
			"action", action.String(),
			"code", fmt.Sprintf("0x%04X", uint16(protocol.CodeOf(err))),
			"error", err,
		)
		return err
	}

	p.logInfo("action complete",
		"action", action.String(),
		"rows", s.rowsDone,
		"bytes", s.bytesDone,
		"elapsed", time.Since(s.started).String(),
	)
	return nil
}

// Abort stops the running session before its next image line. The
// session ends with protocol.ErrAborted. A request made while no session
// runs is discarded when the next one starts.
func (p *Programmer) Abort() {
	p.abort.Store(true)
}

// takeAbort reports and clears a pending abort request.
func (p *Programmer) takeAbort() bool {
	return p.abort.CompareAndSwap(true, false)
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
