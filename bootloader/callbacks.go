package bootloader

import "time"

// Phases reported in Progress.Phase.
const (
	PhaseEntering    = "entering"
	PhaseProgramming = "programming"
	PhaseErasing     = "erasing"
	PhaseVerifying   = "verifying"
	PhaseExiting     = "exiting"
	PhaseComplete    = "complete"
)

// Progress contains information about the progress of an action.
// Passed to ProgressCallback after each data row and on phase changes.
type Progress struct {
	// Phase describes the current operation phase:
	//   "entering"    - Entering bootloader mode
	//   "programming" - Programming flash rows
	//   "erasing"     - Erasing flash rows
	//   "verifying"   - Verifying rows or the application checksum
	//   "exiting"     - Exiting bootloader
	//   "complete"    - Operation completed successfully
	Phase string

	// CurrentRow is the number of data rows processed so far
	CurrentRow int

	// TotalRows is the number of data rows in the image
	TotalRows int

	// Fraction is the completion fraction (0.0 to 1.0)
	Fraction float64

	// Percentage is Fraction scaled to 0.0 to 100.0
	Percentage float64

	// BytesWritten is the number of row bytes sent so far
	BytesWritten int

	// ElapsedTime is the time elapsed since the action started
	ElapsedTime time.Duration
}

// ProgressCallback is called during an action to report progress.
// Implementations should return quickly to avoid blocking the session.
//
// Example:
//
//	prog := bootloader.New(t,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - Row %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentRow, p.TotalRows)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the programmer.
// internal/logging adapts logrus to it; any structured logger can be plugged in.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
