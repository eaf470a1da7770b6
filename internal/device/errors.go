package device

import (
	"errors"
	"fmt"
)

// Kind classifies a failed instrument conversation.
type Kind int

const (
	// Unreachable means the port is missing or could not be opened.
	Unreachable Kind = iota + 1
	// NoResponse means the instrument did not answer before the serial timeout.
	NoResponse
	// ProtocolError means the answer was not a valid Modbus frame.
	ProtocolError
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case NoResponse:
		return "no_response"
	case ProtocolError:
		return "protocol_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DeviceError is returned by every Link method. It is never fatal to the process.
type DeviceError struct {
	Kind    Kind
	Port    string
	Address int
	Op      string // "read" | "write" | "open"
	Err     error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s %s@%d: %s: %v", e.Op, e.Port, e.Address, e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// KindOf returns the kind of a DeviceError anywhere in err's chain, or 0.
func KindOf(err error) Kind {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// ConfigError reports a host the serial enumeration does not support.
type ConfigError struct {
	Platform string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("unsupported platform %q for serial port enumeration", e.Platform)
}

// ErrOutOfRange is returned when a setpoint does not fit a signed 16-bit register after scaling.
var ErrOutOfRange = errors.New("setpoint out of register range")
