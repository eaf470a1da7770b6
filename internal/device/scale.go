package device

import (
	"fmt"
	"math"
)

// Register map of the instrument.
const (
	RegisterSetpoint     uint16 = 0
	RegisterProcessValue uint16 = 1

	registerScale = 10.0

	MinAddress = 1
	MaxAddress = 24
)

// decodeRegister turns a raw signed register into °C.
func decodeRegister(raw uint16) float64 {
	return float64(int16(raw)) / registerScale
}

// encodeSetpoint turns °C into the raw signed register value, rounded to one decimal.
func encodeSetpoint(value float64) (uint16, error) {
	scaled := math.Round(value * registerScale)
	if math.IsNaN(scaled) || scaled < math.MinInt16 || scaled > math.MaxInt16 {
		return 0, fmt.Errorf("%w: %.1f", ErrOutOfRange, value)
	}
	return uint16(int16(scaled)), nil
}

// ValidAddress reports whether addr is a usable slave address.
func ValidAddress(addr int) bool {
	return addr >= MinAddress && addr <= MaxAddress
}

// ValidSetpoint reports whether value can be written to the setpoint register.
func ValidSetpoint(value float64) bool {
	_, err := encodeSetpoint(value)
	return err == nil
}
