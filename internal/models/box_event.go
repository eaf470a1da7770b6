package models

import "time"

// Event types persisted in the box history.
const (
	EventStart  = "START"
	EventStep   = "STEP"
	EventSample = "SAMPLE"
	EventDone   = "DONE"
	EventStop   = "STOP"
	EventError  = "ERROR"
	EventEdit   = "EDIT" // protocol or connection changed by an operator
)

// BoxEvent is a single history entry.
type BoxEvent struct {
	EventID     string    `json:"event_id"`
	BoxID       int       `json:"box_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // START | STEP | SAMPLE | DONE | STOP | ERROR
	Description string    `json:"description"` // status text shown to the user
	Metadata    any       `json:"metadata,omitempty"`
}

// Sample is one persisted instrument reading of a run.
type Sample struct {
	BoxID          int       `json:"box_id"`
	TakenAt        time.Time `json:"taken_at"`
	ElapsedSeconds float64   `json:"elapsed_s"`
	Setpoint       float64   `json:"sv"`
	ProcessValue   float64   `json:"pv"`
}
