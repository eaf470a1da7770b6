package service

import (
	"math"
	"path/filepath"
	"strings"

	"temperaturebox/internal/device"
	"temperaturebox/internal/models"
)

// The functions below are the command-side transitions of a box. They run on
// the scheduler goroutine only and leave the box untouched when they fail.

func startRun(b *models.Box, basename, dataDir string) error {
	basename = strings.TrimSpace(basename)
	if !validBasename(basename) {
		return ErrInvalidBasename
	}
	if b.State.Status.Active() {
		return ErrBoxRunning
	}
	if len(b.Protocol) == 0 {
		return ErrEmptyProtocol
	}
	b.State = models.RunState{
		Status:      models.StatusStarting,
		CurrentStep: 1,
		Basename:    basename,
		LogPath:     filepath.Join(dataDir, basename+".csv"),
	}
	return nil
}

func validBasename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// stopRun keeps the log association; a later start picks a new file.
func stopRun(b *models.Box) error {
	if !b.State.Status.Active() {
		return ErrNotRunning
	}
	b.State.Status = models.StatusStopped
	b.State.SetpointPending = false
	b.State.SampleDue = false
	return nil
}

// appendStep adds a step at the end of the protocol; earlier steps are never touched.
func appendStep(b *models.Box, temperature, hours float64) (models.Step, error) {
	if !b.State.Status.Editable() {
		return models.Step{}, ErrBoxRunning
	}
	if !finite(temperature) || !finite(hours) {
		return models.Step{}, ErrInvalidStep
	}
	if !device.ValidSetpoint(temperature) {
		return models.Step{}, invalid("temperature", "does not fit the setpoint register")
	}
	step := models.Step{Index: len(b.Protocol) + 1, Temperature: temperature, DurationHours: hours}
	b.Protocol = append(b.Protocol, step)
	return step, nil
}

func clearProtocol(b *models.Box) error {
	if !b.State.Status.Editable() {
		return ErrBoxRunning
	}
	b.Protocol = []models.Step{}
	return nil
}

func setConnection(b *models.Box, port string, address int) error {
	if !b.State.Status.Editable() {
		return ErrBoxRunning
	}
	port = strings.TrimSpace(port)
	if port == "" {
		return ErrInvalidPort
	}
	if !device.ValidAddress(address) {
		return ErrInvalidAddress
	}
	b.Connection = models.Connection{Port: port, Address: address}
	return nil
}

func setPort(b *models.Box, port string) error {
	if !b.State.Status.Editable() {
		return ErrBoxRunning
	}
	port = strings.TrimSpace(port)
	if port == "" {
		return ErrInvalidPort
	}
	b.Connection.Port = port
	return nil
}

func setAddress(b *models.Box, address int) error {
	if !b.State.Status.Editable() {
		return ErrBoxRunning
	}
	if !device.ValidAddress(address) {
		return ErrInvalidAddress
	}
	b.Connection.Address = address
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// resumeState repairs a persisted run state so the scheduler can pick it up.
// It returns false when the box had to be stopped.
func resumeState(b *models.Box) bool {
	st := &b.State
	switch st.Status {
	case models.StatusStarting:
		if len(b.Protocol) == 0 {
			st.Status = models.StatusStopped
			st.LastError = ErrEmptyProtocol.Reason
			return false
		}
		st.CurrentStep = 1
	case models.StatusRunning:
		if _, ok := b.CurrentStep(); !ok || st.StepStartTimestamp.IsZero() {
			st.Status = models.StatusStopped
			st.LastError = "persisted run state is inconsistent"
			return false
		}
		st.SampleDue = true
	}
	return true
}
