package device

import (
	"context"
	"errors"
	"fmt"
	"os"

	"temperaturebox/internal/models"

	"github.com/simonvetter/modbus"
)

// modbusClient is the subset of *modbus.ModbusClient the link uses.
type modbusClient interface {
	Open() error
	Close() error
	SetUnitId(id uint8) error
	ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error)
	WriteRegister(addr uint16, value uint16) error
}

// ModbusLink talks Modbus RTU through github.com/simonvetter/modbus.
type ModbusLink struct {
	serial    SerialSettings
	newClient func(conf *modbus.ClientConfiguration) (modbusClient, error)
}

func NewModbusLink(s SerialSettings) *ModbusLink {
	return &ModbusLink{serial: s, newClient: dialModbus}
}

func dialModbus(conf *modbus.ClientConfiguration) (modbusClient, error) {
	c, err := modbus.NewClient(conf)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (l *ModbusLink) configuration(port string) *modbus.ClientConfiguration {
	var parity uint
	switch normalizeParity(l.serial.Parity) {
	case "E":
		parity = modbus.PARITY_EVEN
	case "O":
		parity = modbus.PARITY_ODD
	default:
		parity = modbus.PARITY_NONE
	}
	return &modbus.ClientConfiguration{
		URL:      "rtu://" + port,
		Speed:    l.serial.BaudRate,
		DataBits: l.serial.DataBits,
		Parity:   parity,
		StopBits: l.serial.StopBits,
		Timeout:  l.serial.Timeout,
	}
}

// session opens the port, addresses the slave and runs fn. The port is always closed afterwards.
func (l *ModbusLink) session(ctx context.Context, conn models.Connection, op string, fn func(c modbusClient) error) error {
	if err := contextError(ctx, conn, op); err != nil {
		return err
	}
	if !ValidAddress(conn.Address) {
		return &DeviceError{Kind: Unreachable, Port: conn.Port, Address: conn.Address, Op: op,
			Err: fmt.Errorf("address %d outside %d..%d", conn.Address, MinAddress, MaxAddress)}
	}

	release := sessions.acquire(conn.Port)
	defer release()

	client, err := l.newClient(l.configuration(conn.Port))
	if err != nil {
		return &DeviceError{Kind: Unreachable, Port: conn.Port, Address: conn.Address, Op: "open", Err: err}
	}
	if err := client.Open(); err != nil {
		return &DeviceError{Kind: Unreachable, Port: conn.Port, Address: conn.Address, Op: "open", Err: err}
	}
	defer func() { _ = client.Close() }()

	if err := client.SetUnitId(uint8(conn.Address)); err != nil {
		return &DeviceError{Kind: Unreachable, Port: conn.Port, Address: conn.Address, Op: op, Err: err}
	}
	if err := fn(client); err != nil {
		return &DeviceError{Kind: classifyModbusError(err), Port: conn.Port, Address: conn.Address, Op: op, Err: err}
	}
	return nil
}

// ReadProcess reads registers 0 (SV) and 1 (PV) in one request.
func (l *ModbusLink) ReadProcess(ctx context.Context, conn models.Connection) (float64, float64, error) {
	var regs []uint16
	err := l.session(ctx, conn, "read", func(c modbusClient) error {
		var err error
		regs, err = c.ReadRegisters(RegisterSetpoint, 2, modbus.HOLDING_REGISTER)
		if err != nil {
			return err
		}
		if len(regs) != 2 {
			return fmt.Errorf("%w: got %d registers", modbus.ErrProtocolError, len(regs))
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return decodeRegister(regs[0]), decodeRegister(regs[1]), nil
}

// WriteSetpoint writes register 0 as round(value*10).
func (l *ModbusLink) WriteSetpoint(ctx context.Context, conn models.Connection, value float64) error {
	raw, err := encodeSetpoint(value)
	if err != nil {
		return err
	}
	return l.session(ctx, conn, "write", func(c modbusClient) error {
		return c.WriteRegister(RegisterSetpoint, raw)
	})
}

func classifyModbusError(err error) Kind {
	switch {
	case errors.Is(err, modbus.ErrRequestTimedOut),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return NoResponse
	case errors.Is(err, modbus.ErrBadCRC),
		errors.Is(err, modbus.ErrShortFrame),
		errors.Is(err, modbus.ErrProtocolError),
		errors.Is(err, modbus.ErrBadUnitId),
		errors.Is(err, modbus.ErrUnexpectedParameters),
		errors.Is(err, modbus.ErrIllegalFunction),
		errors.Is(err, modbus.ErrIllegalDataAddress),
		errors.Is(err, modbus.ErrIllegalDataValue),
		errors.Is(err, modbus.ErrServerDeviceFailure):
		return ProtocolError
	default:
		return NoResponse
	}
}
