package protocol

import (
	"errors"
	"fmt"
)

// Code is the numeric outcome of an operation. Host side failures use the
// low codes, transport failures carry CommMask and device status failures
// carry BtldrMask.
type Code uint16

// Host outcome codes.
const (
	CodeSuccess  Code = 0x00
	CodeFile     Code = 0x01
	CodeEOF      Code = 0x02
	CodeLength   Code = 0x03
	CodeData     Code = 0x04
	CodeCmd      Code = 0x05
	CodeDevice   Code = 0x06
	CodeVersion  Code = 0x07
	CodeChecksum Code = 0x08
	CodeArray    Code = 0x09
	CodeRow      Code = 0x0A
	CodeBtldr    Code = 0x0B
	CodeActive   Code = 0x0C
	CodeUnknown  Code = 0x0F
	CodeResponse Code = 0x10
	CodeDataLen  Code = 0x12
	CodeAbort    Code = 0xAB

	// CommMask tags failures reported by the transport
	CommMask Code = 0x2000

	// BtldrMask tags non-success status codes reported by the device
	BtldrMask Code = 0x4000

	// CodeCommTimeout is reported when the transport timed out
	CodeCommTimeout Code = CommMask | 0x01
)

var codeNames = map[Code]string{
	CodeSuccess:  "success",
	CodeFile:     "file error",
	CodeEOF:      "end of file",
	CodeLength:   "invalid length",
	CodeData:     "invalid data",
	CodeCmd:      "invalid command",
	CodeDevice:   "device mismatch",
	CodeVersion:  "unsupported version",
	CodeChecksum: "checksum mismatch",
	CodeArray:    "invalid array",
	CodeRow:      "invalid row",
	CodeBtldr:    "bootloader error",
	CodeActive:   "application active",
	CodeUnknown:  "unknown error",
	CodeResponse: "unexpected response",
	CodeDataLen:  "invalid data length",
	CodeAbort:    "aborted",

	CodeCommTimeout: "communication timeout",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	switch {
	case c&BtldrMask != 0:
		return fmt.Sprintf("device status 0x%02X", byte(c))
	case c&CommMask != 0:
		return fmt.Sprintf("communication error 0x%02X", byte(c))
	}
	return fmt.Sprintf("code 0x%04X", uint16(c))
}

// Error is a host side failure. Two Errors match with errors.Is when their
// codes are equal, so the sentinels below can be used to classify any
// wrapped Error.
type Error struct {
	// Code classifies the failure
	Code Code

	// Op is the operation that failed
	Op string

	// Msg adds detail, may be empty
	Msg string

	// Err is the underlying cause, may be nil
	Err error
}

func (e *Error) Error() string {
	s := e.Code.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinel host errors for use with errors.Is.
var (
	ErrFile     = &Error{Code: CodeFile}
	ErrEOF      = &Error{Code: CodeEOF}
	ErrLength   = &Error{Code: CodeLength}
	ErrData     = &Error{Code: CodeData}
	ErrCmd      = &Error{Code: CodeCmd}
	ErrDevice   = &Error{Code: CodeDevice}
	ErrChecksum = &Error{Code: CodeChecksum}
	ErrActive   = &Error{Code: CodeActive}
	ErrUnknown  = &Error{Code: CodeUnknown}
	ErrResponse = &Error{Code: CodeResponse}
	ErrDataLen  = &Error{Code: CodeDataLen}
	ErrAborted  = &Error{Code: CodeAbort}
)

// NewError returns a host error with the given code.
func NewError(code Code, op string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ProtocolError represents an error returned by the bootloader.
// Contains the status code from the bootloader response.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// StatusCode is the error code from the bootloader
	StatusCode byte
}

func (e *ProtocolError) Error() string {
	statusName := getStatusName(e.StatusCode)
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, statusName, e.StatusCode)
}

// Code returns the status tagged with BtldrMask.
func (e *ProtocolError) Code() Code {
	return BtldrMask | Code(e.StatusCode)
}

// IsProtocolError returns true if err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// CommError wraps a failure reported by the transport while opening,
// closing, reading or writing.
type CommError struct {
	// Op is the transport operation that failed
	Op string

	// Err is the transport's error
	Err error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("communication error during %s: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error { return e.Err }

// Code returns the transport failure tagged with CommMask. Causes that
// report Timeout() true map to CodeCommTimeout.
func (e *CommError) Code() Code {
	var te interface{ Timeout() bool }
	if errors.As(e.Err, &te) && te.Timeout() {
		return CodeCommTimeout
	}
	var he *Error
	if errors.As(e.Err, &he) {
		return CommMask | he.Code
	}
	return CommMask | CodeUnknown
}

// IsCommError returns true if err is or wraps a CommError.
func IsCommError(err error) bool {
	var ce *CommError
	return errors.As(err, &ce)
}

// CodeOf maps err to its numeric outcome code. Errors that carry no code
// map to CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var ce *CommError
	if errors.As(err, &ce) {
		return ce.Code()
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code()
	}
	var he *Error
	if errors.As(err, &he) {
		return he.Code
	}
	return CodeUnknown
}

// getStatusName returns a human-readable name for a status code.
func getStatusName(code byte) string {
	switch code {
	case StatusSuccess:
		return "success"
	case StatusErrKey:
		return "invalid key"
	case StatusErrVerify:
		return "verification failed"
	case StatusErrLength:
		return "invalid length"
	case StatusErrData:
		return "invalid data"
	case StatusErrCommand:
		return "unrecognized command"
	case StatusErrDevice:
		return "device mismatch"
	case StatusErrVersion:
		return "bootloader version mismatch"
	case StatusErrChecksum:
		return "checksum mismatch"
	case StatusErrArray:
		return "invalid array ID"
	case StatusErrRow:
		return "invalid row number"
	case StatusErrProtect:
		return "flash protected"
	case StatusErrApp:
		return "invalid application"
	case StatusErrActive:
		return "application is active"
	case StatusErrUnknown:
		return "unknown error"
	default:
		return fmt.Sprintf("unknown status code 0x%02X", code)
	}
}
