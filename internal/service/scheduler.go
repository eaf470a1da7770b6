package service

import (
	"context"
	"sync"
	"time"

	"temperaturebox/internal/csvlog"
	"temperaturebox/internal/device"
	"temperaturebox/internal/logger"
	"temperaturebox/internal/models"
)

const (
	commandQueueSize = 16
	// maxBacklog caps the rows kept in memory while a run file is unwritable.
	maxBacklog = 4096
)

// RunLog persists the data rows of a run.
type RunLog interface {
	Start(path string) error
	Append(path string, r csvlog.Row) error
}

// Observer receives engine measurements. internal/metrics implements it.
type Observer interface {
	DeviceError(box int, kind string)
	Sampled(box int)
	LogError(box int)
	BoxStatus(box int, status models.Status)
	TickDuration(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) DeviceError(int, string) {}
func (nopObserver) Sampled(int) {}
func (nopObserver) LogError(int) {}
func (nopObserver) BoxStatus(int, models.Status) {}
func (nopObserver) TickDuration(time.Duration) {}

type SchedulerConfig struct {
	SampleInterval time.Duration // read_delta
	DataDirectory  string
}

// Scheduler owns every box. Only its Run goroutine mutates run state;
// everybody else submits commands and reads snapshots.
type Scheduler struct {
	cfg      SchedulerConfig
	link     device.Link
	runlog   RunLog
	broker   *Broker
	observer Observer
	log      *logger.Logger
	now      func() time.Time

	boxes     []models.Box
	boxLogs   []*logger.Logger
	startedBy []models.Operator
	backlog   map[string]*pendingRows
	commands  chan command
	done      chan struct{}
	runOnce   sync.Once

	mu        sync.RWMutex
	snapshots []models.BoxSnapshot
}

type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewScheduler takes ownership of boxes. Boxes persisted as starting or
// running resume where they left off.
func NewScheduler(boxes []models.Box, link device.Link, runlog RunLog, broker *Broker, cfg SchedulerConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		link:     link,
		runlog:   runlog,
		broker:   broker,
		observer: nopObserver{},
		log:      logger.Nop(),
		now:      time.Now,
		backlog:  make(map[string]*pendingRows),
		commands: make(chan command, commandQueueSize),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.broker == nil {
		s.broker = NewBroker(s.log)
	}

	now := s.now()
	s.boxes = make([]models.Box, len(boxes))
	s.boxLogs = make([]*logger.Logger, len(boxes))
	s.startedBy = make([]models.Operator, len(boxes))
	s.snapshots = make([]models.BoxSnapshot, len(boxes))
	for i := range boxes {
		b := boxes[i].Clone()
		b.ID = i
		s.boxLogs[i] = s.log.ForBox(i, b.Name)
		if b.State.Status.Active() {
			if resumeState(&b) {
				s.boxLogs[i].Infow("box_run_resumed", "status", b.State.Status.String(), "step", b.State.CurrentStep)
			} else {
				s.boxLogs[i].Warnw("box_run_not_resumed", "reason", b.State.LastError)
			}
		}
		s.boxes[i] = b
		s.snapshots[i] = snapshotOf(&b, now)
		s.observer.BoxStatus(i, b.State.Status)
	}
	return s
}

// Broker returns the event channel of the engine.
func (s *Scheduler) Broker() *Broker { return s.broker }

// Run evaluates every box each tick until ctx is canceled. Commands are
// applied as they arrive, between ticks.
func (s *Scheduler) Run(ctx context.Context, tick time.Duration) {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		s.log.Warnw("scheduler_already_running")
		return
	}
	defer close(s.done)

	s.log.Infow("scheduler_started", "boxes", len(s.boxes), "tick", tick.String(), "read_delta", s.cfg.SampleInterval.String())
	t := time.NewTicker(tick)
	defer t.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("scheduler_stopped")
			return
		case cmd := <-s.commands:
			cmd.reply <- s.execute(cmd)
		case <-t.C:
			s.tick(ctx)
		}
	}
}

// tick is one pass over all boxes. A failing box never blocks the others.
func (s *Scheduler) tick(ctx context.Context) {
	began := time.Now()
	s.flushAll(s.now())
	for i := range s.boxes {
		if ctx.Err() != nil {
			return
		}
		s.evaluate(ctx, i)
	}
	s.observer.TickDuration(time.Since(began))
}

func (s *Scheduler) evaluate(ctx context.Context, i int) {
	defer func() {
		if r := recover(); r != nil {
			s.boxLog(i).Errorw("box_tick_panic", "panic", r)
		}
	}()

	b := &s.boxes[i]
	now := s.now()
	switch b.State.Status {
	case models.StatusStarting:
		s.begin(ctx, b, now)
	case models.StatusRunning:
		s.advance(ctx, b, now)
	}
}

// begin moves a starting box to running: header, first setpoint, first sample.
// Any failure leaves the box starting and the next tick retries.
func (s *Scheduler) begin(ctx context.Context, b *models.Box, now time.Time) {
	st := &b.State
	if p := s.backlog[st.LogPath]; p != nil && len(p.rows) > 0 {
		// rows of an earlier run still target this file
		return
	}
	if !st.HeaderWritten {
		if err := s.runlog.Start(st.LogPath); err != nil {
			s.logFailed(b, st.LogPath, err, now)
			return
		}
		st.HeaderWritten = true
	}

	st.CurrentStep = 1
	first := b.Protocol[0]
	if err := s.link.WriteSetpoint(ctx, b.Connection, first.Temperature); err != nil {
		s.deviceFailed(b, "setpoint_write_failed", err, now)
		return
	}

	st.Status = models.StatusRunning
	st.StartTimestamp = now
	st.StepStartTimestamp = now
	st.SetpointPending = false
	st.LastError = ""
	s.boxLog(b.ID).Infow("box_run_started", "log_path", st.LogPath, "setpoint", first.Temperature)
	s.emitAs(b, models.EventStart, now, s.startedBy[b.ID])
	s.sample(ctx, b, now)
}

// advance runs the step-boundary and periodic-sample checks of a running box.
func (s *Scheduler) advance(ctx context.Context, b *models.Box, now time.Time) {
	st := &b.State
	if st.SetpointPending {
		s.writeSetpoint(ctx, b, now)
	}

	step, _ := b.CurrentStep()
	if step.Expired(now.Sub(st.StepStartTimestamp)) {
		if st.CurrentStep >= len(b.Protocol) {
			s.finish(b, now)
			return
		}
		st.CurrentStep++
		st.StepStartTimestamp = now
		st.SetpointPending = true
		s.writeSetpoint(ctx, b, now)

		next, _ := b.CurrentStep()
		s.boxLog(b.ID).Infow("box_step_advanced", "step", next.Index, "setpoint", next.Temperature, "hours", next.DurationHours)
		s.emit(b, models.EventStep, now)
		s.sample(ctx, b, now)
		return
	}

	if s.sampleDue(b, now) {
		s.sample(ctx, b, now)
	}
}

func (s *Scheduler) sampleDue(b *models.Box, now time.Time) bool {
	st := &b.State
	if st.SampleDue || st.LastReading == nil {
		return true
	}
	return now.Sub(st.LastReading.Timestamp) >= s.cfg.SampleInterval
}

func (s *Scheduler) finish(b *models.Box, now time.Time) {
	st := &b.State
	st.Status = models.StatusDone
	st.SetpointPending = false
	st.SampleDue = false
	s.boxLog(b.ID).Infow("box_run_done", "log_path", st.LogPath)
	s.emit(b, models.EventDone, now)
}

// writeSetpoint sends the current step's temperature. On failure the write
// stays pending and is retried next tick.
func (s *Scheduler) writeSetpoint(ctx context.Context, b *models.Box, now time.Time) {
	step, ok := b.CurrentStep()
	if !ok {
		return
	}
	if err := s.link.WriteSetpoint(ctx, b.Connection, step.Temperature); err != nil {
		s.deviceFailed(b, "setpoint_write_failed", err, now)
		return
	}
	b.State.SetpointPending = false
}

// sample reads the instrument, records the reading and appends a row.
// A failed read keeps the previous reading and marks a sample as due.
func (s *Scheduler) sample(ctx context.Context, b *models.Box, now time.Time) {
	st := &b.State
	sv, pv, err := s.link.ReadProcess(ctx, b.Connection)
	if err != nil {
		st.SampleDue = true
		s.deviceFailed(b, "device_read_failed", err, now)
		return
	}

	st.SampleDue = false
	st.LastError = ""
	st.LastReading = &models.Reading{Timestamp: now, Setpoint: sv, ProcessValue: pv}
	s.observer.Sampled(b.ID)

	p := s.backlog[st.LogPath]
	if p == nil {
		p = &pendingRows{box: b.ID}
		s.backlog[st.LogPath] = p
	}
	p.rows = append(p.rows, csvlog.Row{
		Timestamp:    now,
		Elapsed:      now.Sub(st.StartTimestamp),
		ProcessValue: pv,
		Setpoint:     sv,
	})
	s.flushLog(st.LogPath, now)
	s.emit(b, models.EventSample, now)
}

// pendingRows are rows not yet written to one log file. They stay keyed by
// path so a stopped or restarted box still gets its earlier run completed.
type pendingRows struct {
	box  int
	rows []csvlog.Row
}

// flushAll retries every log file with queued rows, whatever its box is doing now.
func (s *Scheduler) flushAll(now time.Time) {
	for path := range s.backlog {
		s.flushLog(path, now)
	}
}

// flushLog writes the rows queued for path in order and stops at the first failure.
func (s *Scheduler) flushLog(path string, now time.Time) {
	p := s.backlog[path]
	if p == nil {
		return
	}
	b := &s.boxes[p.box]
	for len(p.rows) > 0 {
		if err := s.runlog.Append(path, p.rows[0]); err != nil {
			if len(p.rows) > maxBacklog {
				dropped := len(p.rows) - maxBacklog
				p.rows = p.rows[dropped:]
				s.boxLog(b.ID).Warnw("log_backlog_truncated", "path", path, "dropped", dropped)
			}
			s.logFailed(b, path, err, now)
			return
		}
		p.rows = p.rows[1:]
	}
	delete(s.backlog, path)
}

func (s *Scheduler) deviceFailed(b *models.Box, msg string, err error, now time.Time) {
	kind := device.KindOf(err)
	kindName := "unknown"
	if kind != 0 {
		kindName = kind.String()
	}
	s.observer.DeviceError(b.ID, kindName)
	s.boxLog(b.ID).Warnw(msg, "kind", kindName, "error", err)
	s.setError(b, err, now)
}

func (s *Scheduler) logFailed(b *models.Box, path string, err error, now time.Time) {
	s.observer.LogError(b.ID)
	s.boxLog(b.ID).Errorw("log_write_failed", "path", path, "error", err)
	s.setError(b, err, now)
}

// setError surfaces err in the box status. Repeats of the same error are not re-emitted.
func (s *Scheduler) setError(b *models.Box, err error, now time.Time) {
	text := err.Error()
	if b.State.LastError == text {
		return
	}
	b.State.LastError = text
	s.emit(b, models.EventError, now)
}

// emit refreshes the box snapshot and publishes a StatusChanged.
func (s *Scheduler) emit(b *models.Box, eventType string, now time.Time) {
	s.emitAs(b, eventType, now, models.Operator{})
}

// emitAs is emit for an event caused by op's command.
func (s *Scheduler) emitAs(b *models.Box, eventType string, now time.Time, op models.Operator) {
	snap := snapshotOf(b, now)
	s.mu.Lock()
	s.snapshots[b.ID] = snap
	s.mu.Unlock()

	s.observer.BoxStatus(b.ID, b.State.Status)

	ev := StatusChanged{
		BoxID:      b.ID,
		BoxName:    b.Name,
		Type:       eventType,
		Status:     b.State.Status,
		Step:       b.State.CurrentStep,
		Text:       snap.StatusText,
		Error:      b.State.LastError,
		Operator:   op.Username,
		OperatorID: op.ID,
		OccurredAt: now,
	}
	if eventType == models.EventSample && b.State.LastReading != nil {
		r := *b.State.LastReading
		ev.Reading = &r
		ev.Elapsed = now.Sub(b.State.StartTimestamp).Seconds()
	}
	s.broker.Publish(ev)
}

func (s *Scheduler) boxLog(i int) *logger.Logger {
	if i >= 0 && i < len(s.boxLogs) && s.boxLogs[i] != nil {
		return s.boxLogs[i]
	}
	return s.log
}

// Snapshot returns a copy of one box as of its last change.
func (s *Scheduler) Snapshot(box int) (models.BoxSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if box < 0 || box >= len(s.snapshots) {
		return models.BoxSnapshot{}, ErrUnknownBox
	}
	snap := s.snapshots[box]
	snap.Box = snap.Box.Clone()
	return snap, nil
}

// Snapshots returns copies of every box.
func (s *Scheduler) Snapshots() []models.BoxSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BoxSnapshot, len(s.snapshots))
	for i, snap := range s.snapshots {
		snap.Box = snap.Box.Clone()
		out[i] = snap
	}
	return out
}

// Boxes returns the boxes for persisting the settings document.
func (s *Scheduler) Boxes() []models.Box {
	snaps := s.Snapshots()
	out := make([]models.Box, len(snaps))
	for i := range snaps {
		out[i] = snaps[i].Box
	}
	return out
}
