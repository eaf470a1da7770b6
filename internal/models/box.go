package models

import (
	"fmt"
	"math"
	"time"
)

// Step is one (temperature, duration) entry of a protocol.
type Step struct {
	Index         int     `json:"step"`        // 1-based
	Temperature   float64 `json:"temperature"` // °C
	DurationHours float64 `json:"time"`        // negative: hold forever
}

// Holds reports whether the step never expires.
func (s Step) Holds() bool { return s.DurationHours < 0 }

// Duration converts the step length to a time.Duration, saturating at the
// largest representable duration. Only valid when !Holds().
func (s Step) Duration() time.Duration {
	ns := s.DurationHours * 3600 * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// Expired reports whether elapsed has reached the step length. The comparison
// is done in seconds so that lengths beyond time.Duration's range never expire.
func (s Step) Expired(elapsed time.Duration) bool {
	if s.Holds() {
		return false
	}
	return elapsed.Seconds() >= s.DurationHours*3600
}

// Describe renders the step the way the protocol listing shows it.
func (s Step) Describe() string {
	return fmt.Sprintf("%d: %0.2f C for %0.2f h", s.Index, s.Temperature, s.DurationHours)
}

// Connection addresses one instrument on a serial port.
type Connection struct {
	Port    string `json:"port"`
	Address int    `json:"address"` // Modbus slave id, 1..24
}

// Reading is one instrument sample.
type Reading struct {
	Timestamp    time.Time `json:"timestamp"`
	Setpoint     float64   `json:"sv"` // °C
	ProcessValue float64   `json:"pv"` // °C
}

// RunState is the mutable execution record of a box. Only the scheduler writes it.
type RunState struct {
	Status             Status    `json:"status"`
	CurrentStep        int       `json:"current_step,omitempty"`
	Basename           string    `json:"basename,omitempty"`
	LogPath            string    `json:"filepath,omitempty"`
	StartTimestamp     time.Time `json:"start_timestamp,omitzero"`
	StepStartTimestamp time.Time `json:"step_start_timestamp,omitzero"`
	LastReading        *Reading  `json:"last_reading,omitempty"`

	HeaderWritten   bool   `json:"header_written,omitempty"`
	SetpointPending bool   `json:"setpoint_pending,omitempty"`
	SampleDue       bool   `json:"sample_due,omitempty"`
	LastError       string `json:"last_error,omitempty"`
}

// Box is one physical controller under management.
type Box struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Connection Connection `json:"connection"`
	Protocol   []Step     `json:"protocol"`
	State      RunState   `json:"state"`
}

// CurrentStep returns the active step, false when none is active.
func (b *Box) CurrentStep() (Step, bool) {
	i := b.State.CurrentStep
	if i < 1 || i > len(b.Protocol) {
		return Step{}, false
	}
	return b.Protocol[i-1], true
}

// Clone returns a deep copy safe to hand to other goroutines.
func (b *Box) Clone() Box {
	out := *b
	out.Protocol = append([]Step(nil), b.Protocol...)
	if b.State.LastReading != nil {
		r := *b.State.LastReading
		out.State.LastReading = &r
	}
	return out
}
