package service

import (
	"context"
	"strings"
	"time"

	"temperaturebox/internal/models"
	"temperaturebox/internal/repository"
)

type EventLogService struct {
	eventRepo  repository.EventRepo
	sampleRepo repository.SampleRepo
}

func NewEventLogService(eventRepo repository.EventRepo, sampleRepo repository.SampleRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, sampleRepo: sampleRepo}
}

var (
	errInvalidTimeRange = &ValidationError{Field: "range", Reason: "from must be <= to"}
	errInvalidEventType = &ValidationError{Field: "type", Reason: "must be one of START, STEP, SAMPLE, DONE, STOP, ERROR, EDIT"}
)

var eventTypes = map[string]bool{
	models.EventStart:  true,
	models.EventStep:   true,
	models.EventSample: true,
	models.EventDone:   true,
	models.EventStop:   true,
	models.EventError:  true,
	models.EventEdit:   true,
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

func normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	from, to = normalizeToUTC(from), normalizeToUTC(to)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, errInvalidTimeRange
	}
	return from, to, nil
}

// normalizeAndValidateFilter prepares query parameters and validates the filter.
func normalizeAndValidateFilter(f LogFilter) (repository.EventQuery, error) {
	from, to, err := normalizeRange(f.From, f.To)
	if err != nil {
		return repository.EventQuery{}, err
	}
	typ := normalizeEventType(f.Type)
	if typ != "" && !eventTypes[typ] {
		return repository.EventQuery{}, errInvalidEventType
	}
	q := repository.EventQuery{From: from, To: to, Type: typ, BoxID: -1}
	if f.BoxID != nil {
		q.BoxID = *f.BoxID
	}
	return q, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.BoxEvent, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}

func (s *EventLogService) Samples(ctx context.Context, f SampleFilter) ([]models.Sample, error) {
	from, to, err := normalizeRange(f.From, f.To)
	if err != nil {
		return nil, err
	}
	return s.sampleRepo.List(ctx, f.BoxID, from, to)
}
