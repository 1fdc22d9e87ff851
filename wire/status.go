// Package wire implements the tagged, length-prefixed on-wire codec shared
// by the device interpreter and the host engine: every device-to-host
// request carries a leading command-code byte. The reply codecs in this
// package carry no status word.
package wire

// StatusWord is a 16-bit transport-level outcome code. The message codecs
// in this package and the host engine neither append nor parse it.
// Numeric assignments are implementation-defined per deployment (spec §9);
// this package fixes one such assignment.
type StatusWord uint16

const (
	// StatusOK means the V-App exited; the reply body carries a 4-byte
	// big-endian exit code.
	StatusOK StatusWord = 0
	// StatusInterruptedExecution means the device is paused mid-execution;
	// the reply body is the next ClientCommandCode request.
	StatusInterruptedExecution StatusWord = 1
	// StatusVMRuntimeError is an unrecoverable interpreter fault.
	StatusVMRuntimeError StatusWord = 2
	// StatusVAppPanic means the application panicked; its message was
	// already delivered via a SendBuffer{Panic} exchange.
	StatusVAppPanic StatusWord = 3
)

// Valid reports whether s is one of the four defined status words.
func (s StatusWord) Valid() bool {
	switch s {
	case StatusOK, StatusInterruptedExecution, StatusVMRuntimeError, StatusVAppPanic:
		return true
	default:
		return false
	}
}

func (s StatusWord) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInterruptedExecution:
		return "InterruptedExecution"
	case StatusVMRuntimeError:
		return "VMRuntimeError"
	case StatusVAppPanic:
		return "VAppPanic"
	default:
		return "Unknown"
	}
}
