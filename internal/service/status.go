package service

import (
	"fmt"
	"strings"
	"time"

	"temperaturebox/internal/models"
)

// StatusText renders the multi-line summary displayed for a box:
//
//	Status: running
//	step: 2
//	1.50h (0.25h)
//	SV: 40.00
//	PV: 39.80
//
// Elapsed times are measured at the last reading, or at now before the first one.
func StatusText(b *models.Box, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s\n", b.State.Status)

	if b.State.Status == models.StatusRunning {
		at := now
		if r := b.State.LastReading; r != nil {
			at = r.Timestamp
		}
		fmt.Fprintf(&sb, "step: %d\n", b.State.CurrentStep)
		fmt.Fprintf(&sb, "%.2fh (%.2fh)\n",
			hoursSince(b.State.StartTimestamp, at), hoursSince(b.State.StepStartTimestamp, at))
		if r := b.State.LastReading; r != nil {
			fmt.Fprintf(&sb, "SV: %.2f\nPV: %.2f\n", r.Setpoint, r.ProcessValue)
		} else {
			sb.WriteString("SV: -\nPV: -\n")
		}
	}
	if b.State.LastError != "" {
		fmt.Fprintf(&sb, "error: %s\n", b.State.LastError)
	}
	return sb.String()
}

func hoursSince(from, at time.Time) float64 {
	if from.IsZero() || at.Before(from) {
		return 0
	}
	return at.Sub(from).Hours()
}

// CheckText formats a diagnostic read.
func CheckText(r models.Reading) string {
	return fmt.Sprintf("SV: %.1f\nPV: %.1f", r.Setpoint, r.ProcessValue)
}

// ProtocolText lists the steps one per line.
func ProtocolText(steps []models.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Describe())
	}
	return out
}

func snapshotOf(b *models.Box, now time.Time) models.BoxSnapshot {
	return models.BoxSnapshot{
		Box:          b.Clone(),
		StatusText:   StatusText(b, now),
		ProtocolText: ProtocolText(b.Protocol),
		TakenAt:      now,
	}
}
