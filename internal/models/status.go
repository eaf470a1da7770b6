package models

import "fmt"

// Status is the execution state of a box.
type Status int

const (
	StatusIdle Status = iota
	StatusStarting
	StatusRunning
	StatusStopped
	StatusDone
)

var statusNames = map[Status]string{
	StatusIdle:     "idle",
	StatusStarting: "starting",
	StatusRunning:  "running",
	StatusStopped:  "stopped",
	StatusDone:     "done",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Active reports whether the scheduler drives I/O for a box in this state.
func (s Status) Active() bool {
	return s == StatusStarting || s == StatusRunning
}

// Editable reports whether protocol and connection edits are accepted.
func (s Status) Editable() bool {
	return !s.Active()
}

// MarshalText encodes the status as its lowercase name.
func (s Status) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText accepts the lowercase names; an empty value means idle.
func (s *Status) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = StatusIdle
		return nil
	}
	for st, name := range statusNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}
