package service

import (
	"context"
	"time"

	"temperaturebox/internal/models"
)

type MonitoringService struct {
	engine *Scheduler
}

func NewMonitoringService(engine *Scheduler) *MonitoringService {
	return &MonitoringService{engine: engine}
}

// ListBoxes returns a snapshot of every box, ordered by id.
func (s *MonitoringService) ListBoxes(ctx context.Context) ([]models.BoxSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snaps := s.engine.Snapshots()
	for i := range snaps {
		snaps[i].TakenAt = toUTC(snaps[i].TakenAt)
	}
	return snaps, nil
}

func (s *MonitoringService) GetBox(ctx context.Context, box int) (models.BoxSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.BoxSnapshot{}, err
	}
	snap, err := s.engine.Snapshot(box)
	if err != nil {
		return models.BoxSnapshot{}, err
	}
	snap.TakenAt = toUTC(snap.TakenAt)
	return snap, nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
