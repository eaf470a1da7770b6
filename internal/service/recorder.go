package service

import (
	"context"

	"temperaturebox/internal/logger"
	"temperaturebox/internal/models"
	"temperaturebox/internal/repository"

	"github.com/google/uuid"
)

// Recorder copies engine events into the history database. Failures are
// logged and never reach the engine.
type Recorder struct {
	eventRepo  repository.EventRepo
	sampleRepo repository.SampleRepo
	log        *logger.Logger
}

func NewRecorder(eventRepo repository.EventRepo, sampleRepo repository.SampleRepo, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{eventRepo: eventRepo, sampleRepo: sampleRepo, log: log}
}

// Run consumes sub until ctx is canceled or the subscription is closed.
func (r *Recorder) Run(ctx context.Context, sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			r.Record(ctx, ev)
		}
	}
}

// Record persists one event. Plain status refreshes carry no type and are skipped.
func (r *Recorder) Record(ctx context.Context, ev StatusChanged) {
	if ev.Type == "" {
		return
	}

	meta := map[string]any{
		"status": ev.Status.String(),
		"step":   ev.Step,
	}
	if ev.Error != "" {
		meta["error"] = ev.Error
	}
	if ev.OperatorID != 0 {
		meta["operator"] = ev.Operator
		meta["operator_id"] = ev.OperatorID
	}
	if ev.Reading != nil {
		meta["sv"] = ev.Reading.Setpoint
		meta["pv"] = ev.Reading.ProcessValue
	}

	err := r.eventRepo.Append(ctx, models.BoxEvent{
		EventID:     uuid.NewString(),
		BoxID:       ev.BoxID,
		OccurredAt:  ev.OccurredAt.UTC(),
		Type:        ev.Type,
		Description: ev.Text,
		Metadata:    meta,
	})
	if err != nil {
		r.log.Warnw("history_event_write_failed", "box", ev.BoxID, "type", ev.Type, "error", err)
	}

	if ev.Type != models.EventSample || ev.Reading == nil {
		return
	}
	err = r.sampleRepo.Append(ctx, models.Sample{
		BoxID:          ev.BoxID,
		TakenAt:        ev.Reading.Timestamp.UTC(),
		ElapsedSeconds: ev.Elapsed,
		Setpoint:       ev.Reading.Setpoint,
		ProcessValue:   ev.Reading.ProcessValue,
	})
	if err != nil {
		r.log.Warnw("history_sample_write_failed", "box", ev.BoxID, "error", err)
	}
}
