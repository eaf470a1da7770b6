package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatus_TextRoundTrip(t *testing.T) {
	for st, name := range statusNames {
		b, err := st.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", st, err)
		}
		if string(b) != name {
			t.Fatalf("MarshalText(%d) = %q, want %q", st, b, name)
		}
		var got Status
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != st {
			t.Fatalf("round trip %q: got %v", name, got)
		}
	}
}

func TestStatus_UnmarshalEmptyIsIdle(t *testing.T) {
	var rs RunState
	if err := json.Unmarshal([]byte(`{"status":""}`), &rs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rs.Status != StatusIdle {
		t.Fatalf("want idle, got %v", rs.Status)
	}
	if err := json.Unmarshal([]byte(`{"status":"exploded"}`), &rs); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestStatus_ActiveAndEditable(t *testing.T) {
	cases := map[Status]bool{
		StatusIdle:     false,
		StatusStarting: true,
		StatusRunning:  true,
		StatusStopped:  false,
		StatusDone:     false,
	}
	for st, active := range cases {
		if st.Active() != active {
			t.Errorf("%v.Active() = %v, want %v", st, st.Active(), active)
		}
		if st.Editable() == active {
			t.Errorf("%v.Editable() = %v, want %v", st, st.Editable(), !active)
		}
	}
}

func TestStep_DescribeAndDuration(t *testing.T) {
	s := Step{Index: 2, Temperature: 40, DurationHours: 1.5}
	if got := s.Describe(); got != "2: 40.00 C for 1.50 h" {
		t.Fatalf("Describe() = %q", got)
	}
	if s.Duration() != 90*time.Minute {
		t.Fatalf("Duration() = %v", s.Duration())
	}
	if s.Holds() {
		t.Fatalf("positive duration must not hold")
	}
	if !(Step{DurationHours: -1}).Holds() {
		t.Fatalf("negative duration must hold")
	}
}

func TestStep_HugeDurationNeverExpires(t *testing.T) {
	s := Step{Index: 1, Temperature: 40, DurationHours: 1e7}
	if s.Duration() <= 0 {
		t.Fatalf("Duration() = %v, want saturated positive value", s.Duration())
	}
	if s.Expired(10000 * time.Hour) {
		t.Fatalf("1e7 h step expired after 10000 h")
	}
	if !(Step{DurationHours: 1}).Expired(time.Hour) {
		t.Fatalf("boundary must be inclusive")
	}
	if (Step{DurationHours: -1}).Expired(1 << 62) {
		t.Fatalf("holding step expired")
	}
}

func TestBox_CloneIsDeep(t *testing.T) {
	b := Box{
		Protocol: []Step{{Index: 1, Temperature: 30, DurationHours: 1}},
		State:    RunState{CurrentStep: 1, LastReading: &Reading{Setpoint: 30, ProcessValue: 25}},
	}
	c := b.Clone()
	c.Protocol[0].Temperature = 99
	c.State.LastReading.ProcessValue = 99

	if b.Protocol[0].Temperature != 30 {
		t.Fatalf("clone shares protocol backing array")
	}
	if b.State.LastReading.ProcessValue != 25 {
		t.Fatalf("clone shares last reading")
	}
	step, ok := c.CurrentStep()
	if !ok || step.Index != 1 {
		t.Fatalf("CurrentStep() = %+v, %v", step, ok)
	}
}
