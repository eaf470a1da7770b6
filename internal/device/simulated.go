package device

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"temperaturebox/internal/models"
)

// Simulation constants for a small lab box.
const (
	AmbientC        = 25.0 // °C
	HeatRateCPerSec = 0.05 // °C per second while below setpoint
	CoolRateCPerSec = 0.02 // °C per second while above setpoint
	SoakToleranceC  = 0.1  // °C band treated as "at setpoint"
)

var errSimulatedFault = errors.New("simulated fault")

// instrument is one simulated controller.
type instrument struct {
	setpoint  float64
	pv        float64
	updatedAt time.Time
	fault     Kind
}

// SimulatedLink keeps in-memory instruments keyed by connection, so the
// engine can run headless. PV ramps toward SV as time passes.
type SimulatedLink struct {
	mu          sync.Mutex
	instruments map[models.Connection]*instrument
	now         func() time.Time
}

func NewSimulatedLink() *SimulatedLink {
	return &SimulatedLink{
		instruments: make(map[models.Connection]*instrument),
		now:         time.Now,
	}
}

// SetFault makes every call to conn fail with kind until cleared with 0.
func (l *SimulatedLink) SetFault(conn models.Connection, kind Kind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookup(conn).fault = kind
}

func (l *SimulatedLink) ReadProcess(ctx context.Context, conn models.Connection) (float64, float64, error) {
	if err := contextError(ctx, conn, "read"); err != nil {
		return 0, 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.lookup(conn)
	if err := in.failure(conn, "read"); err != nil {
		return 0, 0, err
	}
	l.advance(in)
	return roundTenth(in.setpoint), roundTenth(in.pv), nil
}

func (l *SimulatedLink) WriteSetpoint(ctx context.Context, conn models.Connection, value float64) error {
	if err := contextError(ctx, conn, "write"); err != nil {
		return err
	}
	raw, err := encodeSetpoint(value)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	in := l.lookup(conn)
	if err := in.failure(conn, "write"); err != nil {
		return err
	}
	l.advance(in)
	in.setpoint = decodeRegister(raw)
	return nil
}

// lookup returns the instrument for conn, creating it at ambient. Caller holds mu.
func (l *SimulatedLink) lookup(conn models.Connection) *instrument {
	in, ok := l.instruments[conn]
	if !ok {
		in = &instrument{setpoint: AmbientC, pv: AmbientC, updatedAt: l.now()}
		l.instruments[conn] = in
	}
	return in
}

func (in *instrument) failure(conn models.Connection, op string) error {
	if in.fault == 0 {
		return nil
	}
	return &DeviceError{Kind: in.fault, Port: conn.Port, Address: conn.Address, Op: op, Err: errSimulatedFault}
}

// advance moves pv toward the setpoint for the time elapsed since the last call.
func (l *SimulatedLink) advance(in *instrument) {
	now := l.now()
	elapsed := now.Sub(in.updatedAt).Seconds()
	in.updatedAt = now
	if elapsed <= 0 {
		return
	}
	in.pv = approach(in.pv, in.setpoint, elapsed)
}

// approach heats toward target at HeatRateCPerSec, or cools toward
// max(target, AmbientC) at CoolRateCPerSec. The box has no active cooling.
func approach(pv, target, elapsed float64) float64 {
	switch {
	case pv < target-SoakToleranceC:
		return minFloat(pv+HeatRateCPerSec*elapsed, target)
	case pv > target+SoakToleranceC:
		floor := maxFloat(target, AmbientC)
		if pv <= floor {
			return pv
		}
		return maxFloat(pv-CoolRateCPerSec*elapsed, floor)
	default:
		return target
	}
}

// roundTenth mimics the instrument's one-decimal register resolution.
func roundTenth(v float64) float64 {
	return math.Round(v*registerScale) / registerScale
}

func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}
