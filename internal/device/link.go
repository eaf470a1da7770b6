package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"temperaturebox/internal/models"
)

// Link is one fallible conversation with one instrument. Implementations open
// the port per call and close it right after; retry policy belongs to the caller.
type Link interface {
	ReadProcess(ctx context.Context, conn models.Connection) (setpoint, processValue float64, err error)
	WriteSetpoint(ctx context.Context, conn models.Connection, value float64) error
}

// Drivers selectable with device.driver.
const (
	DriverModbus    = "modbus"
	DriverGoburrow  = "goburrow"
	DriverSimulated = "simulated"
)

// SerialSettings holds the line parameters shared by every box.
type SerialSettings struct {
	BaudRate uint
	DataBits uint
	Parity   string // "N", "E", "O"
	StopBits uint
	Timeout  time.Duration
}

// DefaultSerialSettings matches the instruments' factory configuration (9600 8N1).
func DefaultSerialSettings() SerialSettings {
	return SerialSettings{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   "N",
		StopBits: 1,
		Timeout:  500 * time.Millisecond,
	}
}

// New builds the Link for the named driver.
func New(driver string, s SerialSettings) (Link, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverModbus:
		return NewModbusLink(s), nil
	case DriverGoburrow:
		return NewRTULink(s), nil
	case DriverSimulated:
		return NewSimulatedLink(), nil
	default:
		return nil, fmt.Errorf("unknown device driver %q", driver)
	}
}

func normalizeParity(p string) string {
	switch strings.ToUpper(strings.TrimSpace(p)) {
	case "E", "EVEN":
		return "E"
	case "O", "ODD":
		return "O"
	default:
		return "N"
	}
}

func contextError(ctx context.Context, conn models.Connection, op string) error {
	if err := ctx.Err(); err != nil {
		return &DeviceError{Kind: NoResponse, Port: conn.Port, Address: conn.Address, Op: op, Err: err}
	}
	return nil
}
