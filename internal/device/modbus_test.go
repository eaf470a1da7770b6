package device

import (
	"context"
	"errors"
	"testing"

	"temperaturebox/internal/models"

	"github.com/simonvetter/modbus"
)

type fakeModbusClient struct {
	openErr  error
	readErr  error
	writeErr error
	regs     []uint16

	unitID   uint8
	opened   int
	closed   int
	written  []uint16
	readAddr uint16
}

func (f *fakeModbusClient) Open() error {
	f.opened++
	return f.openErr
}
func (f *fakeModbusClient) Close() error {
	f.closed++
	return nil
}
func (f *fakeModbusClient) SetUnitId(id uint8) error {
	f.unitID = id
	return nil
}
func (f *fakeModbusClient) ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	f.readAddr = addr
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.regs, nil
}
func (f *fakeModbusClient) WriteRegister(addr uint16, value uint16) error {
	f.written = append(f.written, value)
	return f.writeErr
}

func newTestModbusLink(c *fakeModbusClient) (*ModbusLink, *[]string) {
	var urls []string
	l := NewModbusLink(DefaultSerialSettings())
	l.newClient = func(conf *modbus.ClientConfiguration) (modbusClient, error) {
		urls = append(urls, conf.URL)
		return c, nil
	}
	return l, &urls
}

var testConn = models.Connection{Port: "/dev/ttyUSB0", Address: 3}

func TestModbusLink_ReadProcess_ScalesAndClosesPort(t *testing.T) {
	c := &fakeModbusClient{regs: []uint16{400, 245}}
	l, urls := newTestModbusLink(c)

	sv, pv, err := l.ReadProcess(context.Background(), testConn)
	if err != nil {
		t.Fatalf("ReadProcess: %v", err)
	}
	if sv != 40 || pv != 24.5 {
		t.Fatalf("got sv=%v pv=%v", sv, pv)
	}
	if c.unitID != 3 {
		t.Fatalf("unit id = %d, want 3", c.unitID)
	}
	if c.opened != 1 || c.closed != 1 {
		t.Fatalf("expected one open/close per call, got %d/%d", c.opened, c.closed)
	}
	if len(*urls) != 1 || (*urls)[0] != "rtu:///dev/ttyUSB0" {
		t.Fatalf("unexpected urls %v", *urls)
	}
}

func TestModbusLink_WriteSetpoint_Rounds(t *testing.T) {
	c := &fakeModbusClient{}
	l, _ := newTestModbusLink(c)

	if err := l.WriteSetpoint(context.Background(), testConn, 37.46); err != nil {
		t.Fatalf("WriteSetpoint: %v", err)
	}
	if len(c.written) != 1 || c.written[0] != 375 {
		t.Fatalf("written = %v, want [375]", c.written)
	}
	if c.closed != 1 {
		t.Fatalf("port not closed after write")
	}
}

func TestModbusLink_ErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		client *fakeModbusClient
		want   Kind
	}{
		{"open fails", &fakeModbusClient{openErr: errors.New("permission denied")}, Unreachable},
		{"timeout", &fakeModbusClient{readErr: modbus.ErrRequestTimedOut}, NoResponse},
		{"bad crc", &fakeModbusClient{readErr: modbus.ErrBadCRC}, ProtocolError},
		{"short answer", &fakeModbusClient{regs: []uint16{1}}, ProtocolError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newTestModbusLink(tc.client)
			_, _, err := l.ReadProcess(context.Background(), testConn)
			if KindOf(err) != tc.want {
				t.Fatalf("kind = %v, want %v (err=%v)", KindOf(err), tc.want, err)
			}
			var de *DeviceError
			if !errors.As(err, &de) || de.Port != testConn.Port || de.Address != testConn.Address {
				t.Fatalf("expected DeviceError carrying the connection, got %#v", err)
			}
		})
	}
}

func TestModbusLink_RejectsBadAddressWithoutIO(t *testing.T) {
	c := &fakeModbusClient{}
	l, urls := newTestModbusLink(c)

	_, _, err := l.ReadProcess(context.Background(), models.Connection{Port: "COM1", Address: 30})
	if KindOf(err) != Unreachable {
		t.Fatalf("kind = %v, want Unreachable", KindOf(err))
	}
	if len(*urls) != 0 {
		t.Fatalf("no client should be created for an invalid address")
	}
}

func TestModbusLink_CancelledContext(t *testing.T) {
	c := &fakeModbusClient{}
	l, _ := newTestModbusLink(c)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.WriteSetpoint(ctx, testConn, 30); KindOf(err) != NoResponse {
		t.Fatalf("expected NoResponse on cancelled context, got %v", err)
	}
	if c.opened != 0 {
		t.Fatalf("port opened despite cancelled context")
	}
}

func TestNew_Drivers(t *testing.T) {
	for _, d := range []string{"", "modbus", "goburrow", "SIMULATED"} {
		if _, err := New(d, DefaultSerialSettings()); err != nil {
			t.Errorf("New(%q): %v", d, err)
		}
	}
	if _, err := New("carrier-pigeon", DefaultSerialSettings()); err == nil {
		t.Errorf("expected error for unknown driver")
	}
}
