package device

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"temperaturebox/internal/models"

	"github.com/goburrow/modbus"
)

// RTULink talks Modbus RTU through github.com/goburrow/modbus. Some USB-RS485
// adapters behave better with its incremental frame reader.
type RTULink struct {
	serial SerialSettings
}

func NewRTULink(s SerialSettings) *RTULink {
	return &RTULink{serial: s}
}

func (l *RTULink) handler(conn models.Connection) *modbus.RTUClientHandler {
	h := modbus.NewRTUClientHandler(conn.Port)
	h.BaudRate = int(l.serial.BaudRate)
	h.DataBits = int(l.serial.DataBits)
	h.StopBits = int(l.serial.StopBits)
	h.Parity = normalizeParity(l.serial.Parity)
	h.SlaveId = byte(conn.Address)
	h.Timeout = l.serial.Timeout
	return h
}

func (l *RTULink) session(ctx context.Context, conn models.Connection, op string, fn func(c modbus.Client) error) error {
	if err := contextError(ctx, conn, op); err != nil {
		return err
	}
	if !ValidAddress(conn.Address) {
		return &DeviceError{Kind: Unreachable, Port: conn.Port, Address: conn.Address, Op: op,
			Err: fmt.Errorf("address %d outside %d..%d", conn.Address, MinAddress, MaxAddress)}
	}
	release := sessions.acquire(conn.Port)
	defer release()

	h := l.handler(conn)
	if err := h.Connect(); err != nil {
		return &DeviceError{Kind: Unreachable, Port: conn.Port, Address: conn.Address, Op: "open", Err: err}
	}
	defer func() { _ = h.Close() }()

	if err := fn(modbus.NewClient(h)); err != nil {
		return &DeviceError{Kind: classifyRTUError(err), Port: conn.Port, Address: conn.Address, Op: op, Err: err}
	}
	return nil
}

func (l *RTULink) ReadProcess(ctx context.Context, conn models.Connection) (float64, float64, error) {
	var raw []byte
	err := l.session(ctx, conn, "read", func(c modbus.Client) error {
		var err error
		raw, err = c.ReadHoldingRegisters(RegisterSetpoint, 2)
		if err != nil {
			return err
		}
		if len(raw) != 4 {
			return fmt.Errorf("modbus: short response, %d bytes", len(raw))
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return decodeRegister(binary.BigEndian.Uint16(raw[0:2])), decodeRegister(binary.BigEndian.Uint16(raw[2:4])), nil
}

func (l *RTULink) WriteSetpoint(ctx context.Context, conn models.Connection, value float64) error {
	raw, err := encodeSetpoint(value)
	if err != nil {
		return err
	}
	return l.session(ctx, conn, "write", func(c modbus.Client) error {
		_, err := c.WriteSingleRegister(RegisterSetpoint, raw)
		return err
	})
}

func classifyRTUError(err error) Kind {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return ProtocolError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NoResponse
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return NoResponse
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "crc") || strings.Contains(msg, "response") || strings.Contains(msg, "short") {
		return ProtocolError
	}
	return NoResponse
}
