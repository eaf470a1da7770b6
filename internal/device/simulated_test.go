package device

import (
	"context"
	"testing"
	"time"

	"temperaturebox/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSimulatedLink() (*SimulatedLink, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewSimulatedLink()
	l.now = clk.now
	return l, clk
}

func TestApproach_HeatsTowardTargetAndClamps(t *testing.T) {
	got := approach(AmbientC, 40, 10)
	want := AmbientC + HeatRateCPerSec*10
	if got != want {
		t.Fatalf("got %.3f, want %.3f", got, want)
	}
	if got := approach(39.99, 40, 100); got != 40 {
		t.Fatalf("expected clamp to target, got %.3f", got)
	}
}

func TestApproach_CoolsButNotBelowAmbient(t *testing.T) {
	got := approach(60, 40, 10)
	want := 60 - CoolRateCPerSec*10
	if got != want {
		t.Fatalf("got %.3f, want %.3f", got, want)
	}
	if got := approach(AmbientC+1, 10, 1e6); got != AmbientC {
		t.Fatalf("expected clamp to ambient, got %.3f", got)
	}
	if got := approach(AmbientC-3, 10, 100); got != AmbientC-3 {
		t.Fatalf("no active cooling below ambient, got %.3f", got)
	}
}

func TestSimulatedLink_SetpointThenRamp(t *testing.T) {
	ctx := context.Background()
	l, clk := newTestSimulatedLink()
	conn := models.Connection{Port: "sim0", Address: 1}

	sv, pv, err := l.ReadProcess(ctx, conn)
	if err != nil || sv != AmbientC || pv != AmbientC {
		t.Fatalf("fresh instrument: sv=%v pv=%v err=%v", sv, pv, err)
	}
	if err := l.WriteSetpoint(ctx, conn, 40); err != nil {
		t.Fatalf("WriteSetpoint: %v", err)
	}
	clk.advance(100 * time.Second)
	sv, pv, err = l.ReadProcess(ctx, conn)
	if err != nil {
		t.Fatalf("ReadProcess: %v", err)
	}
	if sv != 40 {
		t.Fatalf("sv = %v, want 40", sv)
	}
	if pv != AmbientC+HeatRateCPerSec*100 {
		t.Fatalf("pv = %v, want %v", pv, AmbientC+HeatRateCPerSec*100)
	}
}

func TestSimulatedLink_FaultInjection(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestSimulatedLink()
	conn := models.Connection{Port: "sim0", Address: 2}
	other := models.Connection{Port: "sim0", Address: 3}

	l.SetFault(conn, NoResponse)
	if _, _, err := l.ReadProcess(ctx, conn); KindOf(err) != NoResponse {
		t.Fatalf("expected NoResponse, got %v", err)
	}
	if err := l.WriteSetpoint(ctx, conn, 30); KindOf(err) != NoResponse {
		t.Fatalf("expected NoResponse on write, got %v", err)
	}
	if _, _, err := l.ReadProcess(ctx, other); err != nil {
		t.Fatalf("fault leaked to another instrument: %v", err)
	}
	l.SetFault(conn, 0)
	if _, _, err := l.ReadProcess(ctx, conn); err != nil {
		t.Fatalf("fault not cleared: %v", err)
	}
}
