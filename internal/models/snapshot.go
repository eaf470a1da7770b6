package models

import "time"

// BoxSnapshot is the read-only view of a box handed to the interactive layer.
type BoxSnapshot struct {
	Box
	StatusText   string    `json:"status_text"`
	ProtocolText []string  `json:"protocol_text"`
	TakenAt      time.Time `json:"taken_at"`
}
